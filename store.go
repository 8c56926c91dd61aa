package edgeshelf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// MetaDataRepo defines the interface for managing object metadata persistence.
// Implementations must handle concurrent access safely.
type MetaDataRepo interface {
	// Get retrieves metadata for an object by name.
	// Returns ErrNotFound if the name is not indexed.
	Get(ctx context.Context, name string) (MetaData, error)

	// Upsert creates or updates the metadata entry for entry.Name.
	// The bool result is true if a new entry was created.
	Upsert(ctx context.Context, entry ObjectEntry) (MetaData, bool, error)

	// Delete removes the metadata entry for name.
	// Returns ErrNotFound if the name is not indexed.
	Delete(ctx context.Context, name string) error

	// List returns a page of entries ordered by creation time then name.
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

// FileStorage defines the interface for physical blob storage.
//
// All methods accept a context for cancellation. Implementations should
// respect it during long-running copies.
type FileStorage interface {
	// Get opens the blob stored under name.
	// Returns ErrNotFound if it doesn't exist. The caller closes the reader.
	Get(ctx context.Context, name string) (io.ReadSeekCloser, error)

	// Write stores content under name, replacing an existing blob. It should
	// write atomically, create parent directories and compute an ETag.
	Write(ctx context.Context, name string, content io.Reader) (SaveResult, error)

	// Delete removes the blob. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, name string) error

	// List walks the whole storage and describes every blob.
	// Used to rebuild the metadata index (see LocalStore.Populate).
	List(ctx context.Context) ([]ObjectEntry, error)
}

// LocalStore is an ObjectStore built from a metadata index and blob storage.
type LocalStore struct {
	repo           MetaDataRepo
	storage        FileStorage
	cleanupTimeout time.Duration
}

// LocalStoreConfig holds configuration options for LocalStore.
type LocalStoreConfig struct {
	CleanupTimeout time.Duration // Timeout for cleanup after a failed write (default: 30s)
}

func NewLocalStore(repo MetaDataRepo, storage FileStorage, cfg LocalStoreConfig) *LocalStore {
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &LocalStore{
		repo:           repo,
		storage:        storage,
		cleanupTimeout: cleanupTimeout,
	}
}

// Populate indexes every blob found in storage, creating or updating its
// metadata entry. It stops at the first error and is not atomic.
func (s *LocalStore) Populate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	files, err := s.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	for i, file := range files {
		if _, _, err := s.repo.Upsert(ctx, file); err != nil {
			return i, fmt.Errorf("populate '%s': %w", file.Name, err)
		}
	}

	return len(files), nil
}

// Get opens an object. The index is authoritative: a blob without an index
// entry is not found, and an indexed name whose blob is missing is reported
// as not found too.
func (s *LocalStore) Get(ctx context.Context, name string) (ObjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return ObjectRecord{}, fmt.Errorf("get object: %w", err)
	}

	m, err := s.repo.Get(ctx, name)
	if err != nil {
		return ObjectRecord{}, fmt.Errorf("get object: %w", err)
	}

	f, err := s.storage.Get(ctx, m.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("indexed object has no blob", "name", m.Name)
		}
		return ObjectRecord{}, fmt.Errorf("get object: %w", err)
	}

	return ObjectRecord{
		Name:         m.Name,
		Body:         f,
		Size:         m.FileSizeBytes,
		ContentType:  m.ContentType,
		ETag:         m.Etag,
		LastModified: m.UpdatedAt,
	}, nil
}

// Put writes content to storage and indexes it. If indexing fails the blob
// is removed using a detached context so cleanup survives cancellation.
func (s *LocalStore) Put(ctx context.Context, obj PutObject, content io.Reader) (MetaData, error) {
	if err := ctx.Err(); err != nil {
		return MetaData{}, fmt.Errorf("put object: %w", err)
	}

	if obj.ContentType == "" {
		return MetaData{}, fmt.Errorf("put object: %w: content type cannot be empty", ErrInvalidInput)
	}

	if !IsValidName(obj.Name) {
		return MetaData{}, fmt.Errorf("put object %q: %w", obj.Name, ErrInvalidInput)
	}

	saved, err := s.storage.Write(ctx, obj.Name, content)
	if err != nil {
		return MetaData{}, fmt.Errorf("put object %s: write failed: %w", obj.Name, err)
	}

	entry := ObjectEntry{
		Name:        obj.Name,
		Size:        saved.BytesWritten,
		ETag:        saved.Etag,
		ContentType: obj.ContentType,
	}

	m, _, upsertErr := s.repo.Upsert(ctx, entry)
	if upsertErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, obj.Name); delErr != nil {
			return MetaData{}, fmt.Errorf("put object %s: metadata upsert failed (%w) and cleanup failed: %w", obj.Name, upsertErr, delErr)
		}
		return MetaData{}, fmt.Errorf("put object %s: metadata upsert failed: %w", obj.Name, upsertErr)
	}

	return m, nil
}

// Delete removes the index entry then the blob. A blob that is already gone
// is not an error once the index entry has been removed.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if name == "" {
		return fmt.Errorf("delete object: %w: name cannot be empty", ErrInvalidInput)
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if err := s.storage.Delete(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete object %s: %w", name, err)
	}

	return nil
}

func (s *LocalStore) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	result, err := s.repo.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	return result, nil
}
