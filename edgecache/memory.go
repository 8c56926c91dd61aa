package edgecache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sagarc03/edgeshelf"
)

const (
	defaultMaxEntries = 1024
	defaultTTL        = 365 * 24 * time.Hour
)

// MemoryConfig configures the in-memory cache. Zero values fall back to
// 1024 entries and a one year TTL.
type MemoryConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// Memory is an in-process LRU edge cache.
type Memory struct {
	lru *expirable.LRU[string, edgeshelf.CachedResponse]
}

func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Memory{lru: expirable.NewLRU[string, edgeshelf.CachedResponse](cfg.MaxEntries, nil, cfg.TTL)}
}

func (m *Memory) Match(ctx context.Context, key edgeshelf.CacheKey) (edgeshelf.CachedResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return edgeshelf.CachedResponse{}, false, err
	}

	resp, ok := m.lru.Get(key.String())
	if !ok {
		return edgeshelf.CachedResponse{}, false, nil
	}
	resp.Header = resp.Header.Clone()
	return resp, true, nil
}

// Store keeps a private copy of resp.
func (m *Memory) Store(ctx context.Context, key edgeshelf.CacheKey, resp edgeshelf.CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.lru.Add(key.String(), edgeshelf.CachedResponse{
		Header:   resp.Header.Clone(),
		Body:     append([]byte(nil), resp.Body...),
		StoredAt: resp.StoredAt,
	})
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Nop is an EdgeCache that never hits.
type Nop struct{}

func (Nop) Match(context.Context, edgeshelf.CacheKey) (edgeshelf.CachedResponse, bool, error) {
	return edgeshelf.CachedResponse{}, false, nil
}

func (Nop) Store(context.Context, edgeshelf.CacheKey, edgeshelf.CachedResponse) error {
	return nil
}
