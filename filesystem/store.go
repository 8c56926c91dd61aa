// Package filesystem stores object blobs in a directory tree. Writes are
// atomic (temp file then rename) and ETags are SHA-256 digests of the content.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sagarc03/edgeshelf"
)

const tmpPrefix = ".t"

// Store provides blob storage rooted at a directory.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a Store. The os.Root confines every operation to
// the directory, so names cannot escape it.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Get opens a blob for reading. Returns edgeshelf.ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, edgeshelf.ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		_ = f.Close()
		return nil, edgeshelf.ErrNotFound
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write copies content into a temp file, syncs it and renames it over name.
// The returned SaveResult holds the byte count and the SHA-256 ETag.
func (s *Store) Write(ctx context.Context, name string, content io.Reader) (edgeshelf.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return edgeshelf.SaveResult{}, err
	}

	tmpFile := tmpFileName()
	t, err := s.root.Create(tmpFile)
	if err != nil {
		return edgeshelf.SaveResult{}, fmt.Errorf("could not open temp file: %w", err)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(h, t), &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return edgeshelf.SaveResult{}, fmt.Errorf("could not copy blob contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return edgeshelf.SaveResult{}, fmt.Errorf("could not sync written blob: %w", err)
	}

	dest := filepath.FromSlash(name)
	if dir := filepath.Dir(dest); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return edgeshelf.SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if err := s.root.Rename(tmpFile, dest); err != nil {
		return edgeshelf.SaveResult{}, fmt.Errorf("failed to rename blob: %w", err)
	}
	success = true

	return edgeshelf.SaveResult{BytesWritten: written, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a blob. Returns edgeshelf.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(filepath.FromSlash(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return edgeshelf.ErrNotFound
		}
		return fmt.Errorf("could not delete blob: %w", err)
	}
	return nil
}

// List walks the tree and describes every blob, hashing each one. In-flight
// temp files are skipped. Meant for one-off index rebuilds.
func (s *Store) List(ctx context.Context) ([]edgeshelf.ObjectEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []edgeshelf.ObjectEntry{}
	if err := s.walkDir(ctx, ".", &entries); err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, dir string, entries *[]edgeshelf.ObjectEntry) error {
	dirEntries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, name, entries); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(entry.Name(), tmpPrefix) && dir == "." {
			continue
		}

		oe, err := s.describe(name)
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}
		*entries = append(*entries, oe)
	}

	return nil
}

func (s *Store) describe(name string) (edgeshelf.ObjectEntry, error) {
	f, err := s.root.Open(filepath.FromSlash(name))
	if err != nil {
		return edgeshelf.ObjectEntry{}, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close blob", "name", name, "err", closeErr)
		}
	}()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return edgeshelf.ObjectEntry{}, err
	}

	return edgeshelf.ObjectEntry{
		Name:        name,
		Size:        size,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ContentType: DetectContentType(name),
	}, nil
}

// DetectContentType guesses a media type from the name's extension.
func DetectContentType(name string) string {
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
