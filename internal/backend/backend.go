// Package backend selects and constructs the ledger persistence backend.
package backend

import (
	"context"
	"fmt"

	"splitroom/internal/log"
	"splitroom/internal/store"
	"splitroom/internal/store/memory"
	"splitroom/internal/store/postgres"
	"splitroom/internal/store/sqlite"
)

// Type represents the kind of persistence backend.
type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite, Postgres:
		return true
	default:
		return false
	}
}

// Config holds what each backend needs to come up.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string
}

// Open constructs the Repository for the configured backend type.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (store.Repository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStorage)

	switch cfg.Type {
	case Memory:
		logger.Info("Initialized memory backend")
		return memory.New(), nil

	case SQLite:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case Postgres:
		repo, err := postgres.NewRepository(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres backend: %w", err)
		}
		logger.Info("Initialized postgres backend")
		return repo, nil

	default:
		return nil, fmt.Errorf("invalid backend type: %q", cfg.Type)
	}
}
