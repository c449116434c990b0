// Package store picks the registry backend named by the configuration.
package store

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/entityregistry/internal/config"
	"github.com/JonMunkholm/entityregistry/internal/core"
	"github.com/JonMunkholm/entityregistry/internal/store/postgres"
	"github.com/JonMunkholm/entityregistry/internal/store/sqlite"
)

// Store is a migratable core.Store.
type Store interface {
	core.Store
	Migrate(ctx context.Context) error
}

// Open connects to PostgreSQL for postgres:// URLs and to SQLite for
// everything else. Migrations run when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	if cfg.IsPostgres() {
		s, err = postgres.Open(ctx, cfg)
	} else {
		s, err = sqlite.Open(ctx, cfg.URL)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		slog.Debug("migrations up to date", "postgres", cfg.IsPostgres())
	}
	return s, nil
}
