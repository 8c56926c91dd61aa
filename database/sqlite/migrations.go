package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sagarc03/edgeshelf"
)

// quoteIdentifier quotes a SQLite identifier. Names are validated by
// edgeshelf.IsValidTableName before they reach here.
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

func createMetaTable(ctx context.Context, db *sql.DB, tableName string) error {
	if !edgeshelf.IsValidTableName(tableName) {
		return fmt.Errorf("create table: invalid table name: %s", tableName)
	}

	quotedTable := quoteIdentifier(tableName)
	indexList := quoteIdentifier(fmt.Sprintf("idx_%s_list", tableName))

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				content_type TEXT NOT NULL,
				etag TEXT NOT NULL,
				file_size_bytes INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`, quotedTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at, name)`, indexList, quotedTable),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", tableName, err)
		}
	}

	return nil
}

type columnInfo struct {
	dataType   string
	isNullable bool
}

var metaDataTableSchema = map[string]columnInfo{
	"id":              {"text", false},
	"name":            {"text", false},
	"content_type":    {"text", false},
	"etag":            {"text", false},
	"file_size_bytes": {"integer", false},
	"created_at":      {"text", false},
	"updated_at":      {"text", false},
}

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expected map[string]columnInfo) error {
	if !edgeshelf.IsValidTableName(tableName) {
		return fmt.Errorf("validate table schema: invalid table name: %s", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(tableName)))
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]columnInfo)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actual[name] = columnInfo{dataType: strings.ToLower(dataType), isNullable: notNull == 0}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	if len(actual) == 0 {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	var problems []string
	for col, want := range expected {
		got, ok := actual[col]
		switch {
		case !ok:
			problems = append(problems, "missing column "+col)
		case got.dataType != want.dataType:
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", col, want.dataType, got.dataType))
		case got.isNullable != want.isNullable:
			problems = append(problems, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", col, want.isNullable, got.isNullable))
		}
	}

	if len(problems) > 0 {
		return errors.New("table " + tableName + " schema validation failed: " + strings.Join(problems, "; "))
	}

	return nil
}
