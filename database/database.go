package database

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/database/postgres"
	"github.com/sagarc03/edgeshelf/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type is the backend: "sqlite" or "postgres".
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string).
	DSN string `mapstructure:"dsn" validate:"required"`
	// Tables names the tables used by the backend.
	Tables edgeshelf.Tables `mapstructure:"tables"`
	// AutoMigrate creates missing tables on connect.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// Database is a connected metadata backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() edgeshelf.MetaDataRepo
	Close() error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Connect opens the configured backend, migrates it when AutoMigrate is set
// and validates the schema. The caller must Close the returned Database.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("database config: %w: %w", edgeshelf.ErrInvalidInput, err)
	}

	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	var (
		db  Database
		err error
	)

	switch cfg.Type {
	case "sqlite":
		db, err = sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.DSN, cfg.Tables)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", cfg.Type, err)
	}

	return db, nil
}
