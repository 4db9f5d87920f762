package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/docgate"
	"github.com/sagarc03/docgate/database/postgres"
	"github.com/sagarc03/docgate/database/sqlite"
)

// Supported store types.
const (
	TypeNone     = "none"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config holds the configuration for the scoped token store.
type Config struct {
	// Type specifies the database type: "none", "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=none sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required_unless=Type none"`
	// Tables holds the table names
	Tables docgate.Tables `mapstructure:"tables"`
}

// Database is a connected token store backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetStore() docgate.TokenStore
	Close() error
}

// Connect opens the configured backend. It does not migrate.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case TypeSQLite:
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case TypePostgres:
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects, pings, migrates and validates the backend and returns its
// token store. Type "none" yields a nil store and a no-op cleanup.
// The returned cleanup function should be called to close the connection.
func Open(ctx context.Context, cfg Config) (docgate.TokenStore, func(), error) {
	if cfg.Type == TypeNone || cfg.Type == "" {
		return nil, func() {}, nil
	}

	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return db.GetStore(), cleanup, nil
}
