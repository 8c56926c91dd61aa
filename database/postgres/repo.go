package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/edgeshelf"
	"github.com/sagarc03/edgeshelf/database/internal"
)

type repo struct {
	pool      *pgxpool.Pool
	tableName string
}

const selectColumns = `id, name, content_type, etag, file_size_bytes, created_at, updated_at`

func (r *repo) table() string {
	return pgx.Identifier{r.tableName}.Sanitize()
}

func scanMetaData(row pgx.Row, extra ...any) (edgeshelf.MetaData, error) {
	var m edgeshelf.MetaData
	dest := append([]any{&m.ID, &m.Name, &m.ContentType, &m.Etag, &m.FileSizeBytes, &m.CreatedAt, &m.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return edgeshelf.MetaData{}, err
	}
	return m, nil
}

func (r *repo) Get(ctx context.Context, name string) (edgeshelf.MetaData, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = $1`, selectColumns, r.table())

	m, err := scanMetaData(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return edgeshelf.MetaData{}, edgeshelf.ErrNotFound
		}
		return edgeshelf.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry edgeshelf.ObjectEntry) (edgeshelf.MetaData, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, content_type, etag, file_size_bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			file_size_bytes = EXCLUDED.file_size_bytes,
			updated_at = NOW()
		RETURNING %s, (xmax = 0) AS inserted
	`, r.table(), selectColumns)

	var inserted bool
	m, err := scanMetaData(r.pool.QueryRow(ctx, query, entry.Name, entry.ContentType, entry.ETag, entry.Size), &inserted)
	if err != nil {
		return edgeshelf.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	return m, inserted, nil
}

func (r *repo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, r.table()), name)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
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

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name LIKE $1 || '%%' ESCAPE '\'`, selectColumns, r.table())
	args := []any{internal.EscapeLikePattern(q.Prefix)}

	if q.Cursor != "" {
		query += ` AND (created_at, name) > ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.Name)
	}

	query += fmt.Sprintf(` ORDER BY created_at, name LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return edgeshelf.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

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
