// Package internal holds helpers shared by the metadata backends.
package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the decoded keyset position of a list page.
type Cursor struct {
	CreatedAt time.Time
	Name      string
}

// EncodeCursor encodes the position after (createdAt, name) as an opaque string.
func EncodeCursor(createdAt time.Time, name string) string {
	data := createdAt.UTC().Format(time.RFC3339Nano) + "|" + name
	return base64.URLEncoding.EncodeToString([]byte(data))
}

// DecodeCursor reverses EncodeCursor. An empty string decodes to the zero Cursor.
func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	ts, name, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return Cursor{}, errors.New("decode cursor: invalid format")
	}

	if name == "" {
		return Cursor{}, errors.New("decode cursor: empty name")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid timestamp: %w", err)
	}

	return Cursor{CreatedAt: createdAt, Name: name}, nil
}

// EscapeLikePattern escapes LIKE wildcards (%, _) and the escape character itself.
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}

// PageLimit clamps a requested page size to [1, 1000], defaulting to 100.
func PageLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return min(limit, 1000)
}
