// Package sqlite implements edgeshelf.MetaDataRepo on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/database/internal"
)

type repo struct {
	db        *sql.DB
	tableName string
}

const selectColumns = `id, name, content_type, etag, file_size_bytes, created_at, updated_at`

// timestampLayout is fixed width so that text comparison orders timestamps.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...any) error
}

func scanMetaData(row scanner) (edgeshelf.MetaData, error) {
	var m edgeshelf.MetaData
	var idStr, createdAt, updatedAt string

	if err := row.Scan(&idStr, &m.Name, &m.ContentType, &m.Etag, &m.FileSizeBytes, &createdAt, &updatedAt); err != nil {
		return edgeshelf.MetaData{}, err
	}

	var err error
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return edgeshelf.MetaData{}, fmt.Errorf("parse uuid: %w", err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return edgeshelf.MetaData{}, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return edgeshelf.MetaData{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return m, nil
}

func (r *repo) Get(ctx context.Context, name string) (edgeshelf.MetaData, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = ?`, selectColumns, quoteIdentifier(r.tableName)) //nolint:gosec // table name is validated

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return edgeshelf.MetaData{}, edgeshelf.ErrNotFound
		}
		return edgeshelf.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry edgeshelf.ObjectEntry) (edgeshelf.MetaData, bool, error) {
	newID := uuid.New()
	now := time.Now().UTC().Format(timestampLayout)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, name, content_type, etag, file_size_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET content_type = excluded.content_type,
			etag = excluded.etag,
			file_size_bytes = excluded.file_size_bytes,
			updated_at = excluded.updated_at
		RETURNING %s`, quoteIdentifier(r.tableName), selectColumns)

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query,
		newID.String(), entry.Name, entry.ContentType, entry.ETag, entry.Size, now, now,
	))
	if err != nil {
		return edgeshelf.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	return m, m.ID == newID, nil
}

func (r *repo) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, quoteIdentifier(r.tableName)) //nolint:gosec // table name is validated

	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", edgeshelf.ErrNotFound)
	}

	return nil
}

func (r *repo) List(ctx context.Context, q edgeshelf.ListQuery) (edgeshelf.ListResult, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return edgeshelf.ListResult{}, fmt.Errorf("list: %w: %w", edgeshelf.ErrInvalidInput, err)
	}

	limit := internal.PageLimit(q.Limit)
	prefix := internal.EscapeLikePattern(q.Prefix)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s
		WHERE name LIKE ? || '%%' ESCAPE '\'`, selectColumns, quoteIdentifier(r.tableName))
	args := []any{prefix}

	if q.Cursor != "" {
		query += ` AND (created_at, name) > (?, ?)`
		args = append(args, cursor.CreatedAt.UTC().Format(timestampLayout), cursor.Name)
	}

	query += ` ORDER BY created_at, name LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return edgeshelf.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]edgeshelf.MetaData, 0, limit)
	for rows.Next() {
		m, err := scanMetaData(rows)
		if err != nil {
			return edgeshelf.ListResult{}, fmt.Errorf("list: scan: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return edgeshelf.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		last := items[limit-1]
		nextCursor = internal.EncodeCursor(last.CreatedAt, last.Name)
		items = items[:limit]
	}

	return edgeshelf.ListResult{Items: items, NextCursor: nextCursor}, nil
}
