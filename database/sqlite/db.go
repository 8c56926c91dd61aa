package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/edgeshelf"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB is a SQLite-backed metadata index.
type DB struct {
	db     *sql.DB
	tables edgeshelf.Tables
}

// Connect opens the SQLite database at dsn. Tables should be validated
// before calling Connect.
func Connect(ctx context.Context, dsn string, tables edgeshelf.Tables) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// one connection: ":memory:" databases are per-connection and SQLite
	// serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	return &DB{db: db, tables: tables}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the metadata table and its indexes if missing.
func (d *DB) Migrate(ctx context.Context) error {
	if err := createMetaTable(ctx, d.db, d.tables.MetaData); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the metadata table matches the expected schema.
func (d *DB) Validate(ctx context.Context) error {
	if err := validateTableSchema(ctx, d.db, d.tables.MetaData, metaDataTableSchema); err != nil {
		return fmt.Errorf("validate schema %s: %w", d.tables.MetaData, err)
	}
	return nil
}

// GetRepo returns the MetaDataRepo for this database.
func (d *DB) GetRepo() edgeshelf.MetaDataRepo {
	return &repo{db: d.db, tableName: d.tables.MetaData}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
