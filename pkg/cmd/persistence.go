package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/persistence/file"
	"github.com/gramflow/gramflow/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. postgres:// and postgresql:// select PostgreSQL; anything else
// is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL)
	}
}
