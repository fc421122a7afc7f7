package cmd

import (
	"log/slog"

	"github.com/gramflow/gramflow/pkg/instagram"
)

// NewInstagramClient creates the outbound social client. "fake" selects
// the recording client, used in development where real credentials are
// unavailable.
func NewInstagramClient(logger *slog.Logger, baseURL string) instagram.Client {
	if baseURL == "fake" {
		return instagram.NewFake()
	}

	opts := []instagram.GraphOption{instagram.WithLogger(logger)}
	if baseURL != "" {
		opts = append(opts, instagram.WithBaseURL(baseURL))
	}

	return instagram.NewGraphClient(opts...)
}
