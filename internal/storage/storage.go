// Package storage opens the configured backend and builds its repositories.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/tablestakes/internal/config"
	"github.com/fastprodman/tablestakes/internal/infra/pgutils"
	"github.com/fastprodman/tablestakes/internal/infra/sqliteutil"
	"github.com/fastprodman/tablestakes/internal/repos/events"
	pgevents "github.com/fastprodman/tablestakes/internal/repos/events/postgres"
	liteevents "github.com/fastprodman/tablestakes/internal/repos/events/sqlite"
	"github.com/fastprodman/tablestakes/internal/repos/sessions"
	pgsessions "github.com/fastprodman/tablestakes/internal/repos/sessions/postgres"
	litesessions "github.com/fastprodman/tablestakes/internal/repos/sessions/sqlite"
	"github.com/fastprodman/tablestakes/internal/repos/wallets"
	pgwallets "github.com/fastprodman/tablestakes/internal/repos/wallets/postgres"
	litewallets "github.com/fastprodman/tablestakes/internal/repos/wallets/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Backend is one database handle with the repositories bound to it.
type Backend struct {
	DB       *sql.DB
	Sessions sessions.Sessions
	Events   events.Events
	Wallets  wallets.Wallets
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		db, err := pgutils.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		return Postgres(db), nil
	case DriverSQLite:
		db, err := sqliteutil.OpenDB(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}

		return SQLite(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Postgres binds the Postgres repositories to an open handle.
func Postgres(db *sql.DB) *Backend {
	return &Backend{
		DB:       db,
		Sessions: pgsessions.New(db),
		Events:   pgevents.New(db),
		Wallets:  pgwallets.New(db),
	}
}

// SQLite binds the SQLite repositories to an open, migrated handle.
func SQLite(db *sql.DB) *Backend {
	return &Backend{
		DB:       db,
		Sessions: litesessions.New(db),
		Events:   liteevents.New(db),
		Wallets:  litewallets.New(db),
	}
}

func (b *Backend) Close() error {
	err := b.DB.Close()
	if err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
