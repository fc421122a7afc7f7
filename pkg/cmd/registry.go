package cmd

import (
	"log/slog"

	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/registry"
)

// NewRegistry creates a registry with the built-in node kinds registered.
func NewRegistry(logger *slog.Logger, limiter *ratelimit.Limiter, client instagram.Client) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(limiter, client)

	return reg
}
