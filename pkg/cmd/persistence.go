// Package cmd provides common initialization helpers shared by the
// command-line entry points.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/file"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/mongodb"
	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "mongodb"}

// NewPersistence builds a persistence backend from the database URL scheme.
// Unknown schemes fall back to the file store, treating the URL as a root
// directory path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "mongodb":
		return mongodb.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
