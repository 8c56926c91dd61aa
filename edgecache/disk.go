package edgecache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/sagarc03/edgeshelf"
	bolt "go.etcd.io/bbolt"
)

// DiskConfig configures the persistent cache. TTL defaults to one year.
type DiskConfig struct {
	Path string
	TTL  time.Duration
}

type diskEntry struct {
	ID        string `storm:"id"`
	Key       string
	Header    map[string][]string
	Body      []byte
	StoredAt  time.Time
	ExpiresAt int64 `storm:"index"`
}

// Disk is an edge cache persisted in a bbolt file.
type Disk struct {
	db  *storm.DB
	ttl time.Duration
	now func() time.Time
}

func OpenDisk(cfg DiskConfig) (*Disk, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open disk cache: %w: path is required", edgeshelf.ErrInvalidInput)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	codec, err := newCBORCodec()
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}

	db, err := storm.Open(cfg.Path, storm.Codec(codec), storm.BoltOptions(0o600, &bolt.Options{Timeout: 5 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("open disk cache %s: %w", cfg.Path, err)
	}

	if err := db.Init(&diskEntry{}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open disk cache: init: %w", err)
	}

	return &Disk{db: db, ttl: cfg.TTL, now: time.Now}, nil
}

func entryID(key edgeshelf.CacheKey) string {
	sum := key.Sum()
	return hex.EncodeToString(sum[:])
}

func (d *Disk) Match(ctx context.Context, key edgeshelf.CacheKey) (edgeshelf.CachedResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return edgeshelf.CachedResponse{}, false, err
	}

	var e diskEntry
	if err := d.db.One("ID", entryID(key), &e); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return edgeshelf.CachedResponse{}, false, nil
		}
		return edgeshelf.CachedResponse{}, false, fmt.Errorf("disk cache match: %w: %w", edgeshelf.ErrCacheFault, err)
	}

	// digest collision guard
	if e.Key != key.String() {
		return edgeshelf.CachedResponse{}, false, nil
	}

	if d.now().UnixNano() >= e.ExpiresAt {
		if err := d.db.DeleteStruct(&e); err != nil && !errors.Is(err, storm.ErrNotFound) {
			return edgeshelf.CachedResponse{}, false, fmt.Errorf("disk cache evict: %w: %w", edgeshelf.ErrCacheFault, err)
		}
		return edgeshelf.CachedResponse{}, false, nil
	}

	return edgeshelf.CachedResponse{
		Header:   http.Header(e.Header),
		Body:     e.Body,
		StoredAt: e.StoredAt,
	}, true, nil
}

func (d *Disk) Store(ctx context.Context, key edgeshelf.CacheKey, resp edgeshelf.CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := diskEntry{
		ID:        entryID(key),
		Key:       key.String(),
		Header:    resp.Header,
		Body:      resp.Body,
		StoredAt:  resp.StoredAt,
		ExpiresAt: d.now().Add(d.ttl).UnixNano(),
	}

	if err := d.db.Save(&e); err != nil {
		return fmt.Errorf("disk cache store: %w: %w", edgeshelf.ErrCacheFault, err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (d *Disk) Prune(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var expired []diskEntry
	err := d.db.Select(q.Lte("ExpiresAt", d.now().UnixNano())).Find(&expired)
	if err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("disk cache prune: %w", err)
	}

	for i := range expired {
		if err := d.db.DeleteStruct(&expired[i]); err != nil && !errors.Is(err, storm.ErrNotFound) {
			return i, fmt.Errorf("disk cache prune: %w", err)
		}
	}

	return len(expired), nil
}

func (d *Disk) Close() error {
	return d.db.Close()
}
