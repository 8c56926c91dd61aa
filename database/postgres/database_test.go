package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/database/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Ping(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	db, err := postgres.Connect(ctx, getDSN(pool), edgeshelf.Tables{MetaData: "metadata"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.NoError(t, db.Ping(ctx), "ping should succeed after connect")
}

func TestDatabase_Migrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	assert.NoError(t, db.Migrate(ctx), "second migrate should succeed")
	assert.NoError(t, db.Validate(ctx))

	_, err := db.GetRepo().List(ctx, edgeshelf.ListQuery{Limit: 1})
	assert.NoError(t, err, "repo should work after migration")
}

func TestDatabase_Validate_MissingTable(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	db, err := postgres.Connect(ctx, getDSN(pool), edgeshelf.Tables{MetaData: "missing_" + getRandomString(t)})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = db.Validate(ctx)
	assert.ErrorContains(t, err, "does not exist")
}

func TestDatabase_Validate_WrongColumnType(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	tableName := "wrongtype_" + getRandomString(t)
	_, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			etag TEXT NOT NULL,
			file_size_bytes INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, tableName))
	require.NoError(t, err)
	defer func() { _ = dropTable(ctx, pool, tableName) }()

	db, err := postgres.Connect(ctx, getDSN(pool), edgeshelf.Tables{MetaData: tableName})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = db.Validate(ctx)
	assert.ErrorContains(t, err, "file_size_bytes: expected bigint, got integer")
}
