// Package postgres stores the object metadata index in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/edgeshelf"
)

// DB is a PostgreSQL-backed metadata index.
type DB struct {
	pool   *pgxpool.Pool
	tables edgeshelf.Tables
}

// Connect creates a connection pool for dsn. Tables should be validated
// before calling Connect.
func Connect(ctx context.Context, dsn string, tables edgeshelf.Tables) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &DB{pool: pool, tables: tables}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate creates the metadata table and its indexes if missing.
func (d *DB) Migrate(ctx context.Context) error {
	if err := createMetaTable(ctx, d.pool, d.tables.MetaData); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the metadata table matches the expected schema.
func (d *DB) Validate(ctx context.Context) error {
	if err := validateTableSchema(ctx, d.pool, d.tables.MetaData, metaDataTableSchema); err != nil {
		return fmt.Errorf("validate schema %s: %w", d.tables.MetaData, err)
	}
	return nil
}

// GetRepo returns the MetaDataRepo for this database.
func (d *DB) GetRepo() edgeshelf.MetaDataRepo {
	return &repo{pool: d.pool, tableName: d.tables.MetaData}
}

// Close closes the pool.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}
