package database_test

import (
	"context"
	"testing"

	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLite(t *testing.T) {
	ctx := context.Background()

	db, err := database.Connect(ctx, database.Config{
		Type:        "sqlite",
		DSN:         ":memory:",
		Tables:      edgeshelf.Tables{MetaData: "edgeshelf_metadata"},
		AutoMigrate: true,
	})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := db.GetRepo()
	_, inserted, err := repo.Upsert(ctx, edgeshelf.ObjectEntry{
		Name:        "cat.png",
		Size:        3,
		ETag:        "abc",
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestConnect_SQLite_WithoutMigrateFailsValidation(t *testing.T) {
	_, err := database.Connect(context.Background(), database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: edgeshelf.Tables{MetaData: "edgeshelf_metadata"},
	})
	assert.ErrorContains(t, err, "does not exist")
}

func TestConnect_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  database.Config
	}{
		{
			name: "unknown type",
			cfg:  database.Config{Type: "mysql", DSN: "x", Tables: edgeshelf.Tables{MetaData: "meta"}},
		},
		{
			name: "missing dsn",
			cfg:  database.Config{Type: "sqlite", Tables: edgeshelf.Tables{MetaData: "meta"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := database.Connect(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, edgeshelf.ErrInvalidInput)
		})
	}
}

func TestConnect_InvalidTableName(t *testing.T) {
	_, err := database.Connect(context.Background(), database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: edgeshelf.Tables{MetaData: "bad-name; DROP"},
	})
	assert.Error(t, err)
}
