package edgeshelf_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/edgeshelf"
)

type fakeObject struct {
	body        string
	size        int64
	contentType string
	etag        string
}

// fakeStore is an ObjectStore serving fixed objects.
type fakeStore struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	err      error
	stall    bool
	getCalls atomic.Int64
}

// ctxBody fails reads once the context it was opened with is done, like a
// network body tied to its request.
type ctxBody struct {
	ctx   context.Context
	r     io.Reader
	stall bool
}

func (b *ctxBody) Read(p []byte) (int, error) {
	if b.stall {
		<-b.ctx.Done()
	}
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.Read(p)
}

func (b *ctxBody) Close() error { return nil }

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject)}
}

func (s *fakeStore) add(name, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = fakeObject{body: body, size: int64(len(body)), contentType: contentType, etag: "etag-" + name}
}

func (s *fakeStore) addSized(name, body string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = fakeObject{body: body, size: size, contentType: "image/png", etag: "etag-" + name}
}

func (s *fakeStore) Get(ctx context.Context, name string) (edgeshelf.ObjectRecord, error) {
	s.getCalls.Add(1)
	if s.err != nil {
		return edgeshelf.ObjectRecord{}, s.err
	}

	s.mu.Lock()
	obj, ok := s.objects[name]
	s.mu.Unlock()
	if !ok {
		return edgeshelf.ObjectRecord{}, fmt.Errorf("get %s: %w", name, edgeshelf.ErrNotFound)
	}

	return edgeshelf.ObjectRecord{
		Name:        name,
		Body:        &ctxBody{ctx: ctx, r: strings.NewReader(obj.body), stall: s.stall},
		Size:        obj.size,
		ContentType: obj.contentType,
		ETag:        obj.etag,
	}, nil
}

func (s *fakeStore) List(context.Context, edgeshelf.ListQuery) (edgeshelf.ListResult, error) {
	return edgeshelf.ListResult{}, errors.New("not implemented")
}

func (s *fakeStore) Put(context.Context, edgeshelf.PutObject, io.Reader) (edgeshelf.MetaData, error) {
	return edgeshelf.MetaData{}, errors.New("not implemented")
}

func (s *fakeStore) Delete(context.Context, string) error {
	return errors.New("not implemented")
}

// mapCache is an EdgeCache with injectable failures.
type mapCache struct {
	mu       sync.Mutex
	entries  map[string]edgeshelf.CachedResponse
	matchErr error
	storeErr error
	block    chan struct{}
	stores   int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]edgeshelf.CachedResponse)}
}

func (c *mapCache) Match(_ context.Context, key edgeshelf.CacheKey) (edgeshelf.CachedResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.matchErr != nil {
		return edgeshelf.CachedResponse{}, false, c.matchErr
	}
	resp, ok := c.entries[key.String()]
	return resp, ok, nil
}

func (c *mapCache) Store(ctx context.Context, key edgeshelf.CacheKey, resp edgeshelf.CachedResponse) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	if c.storeErr != nil {
		return c.storeErr
	}
	c.entries[key.String()] = resp
	return nil
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) record(kind, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, kind+":"+result)
}

func (o *recordingObserver) CacheLookup(result string) { o.record("lookup", result) }
func (o *recordingObserver) CacheStore(result string)  { o.record("store", result) }
func (o *recordingObserver) OriginFetch(result string) { o.record("origin", result) }

func (o *recordingObserver) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

type gatewayFixture struct {
	store    *fakeStore
	cache    *mapCache
	observer *recordingObserver
	gateway  *edgeshelf.Gateway
}

func newGatewayFixture(t *testing.T, cfg edgeshelf.GatewayConfig) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		store:    newFakeStore(),
		cache:    newMapCache(),
		observer: &recordingObserver{},
	}
	cfg.Observer = f.observer
	f.gateway = edgeshelf.NewGateway(edgeshelf.NewFetcher(f.store), f.cache, cfg)
	return f
}

func (f *gatewayFixture) request(t *testing.T, method, target string) edgeshelf.Request {
	t.Helper()
	u := mustURL(t, target)
	return edgeshelf.Request{Method: method, URL: u, Name: strings.TrimPrefix(u.Path, "/")}
}

// serve runs a request to completion and waits for the cache write.
func (f *gatewayFixture) serve(t *testing.T, method, target string) (*edgeshelf.Response, string, error) {
	t.Helper()
	resp, err := f.gateway.Serve(context.Background(), f.request(t, method, target))
	if err != nil {
		return nil, "", err
	}

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, f.gateway.Shutdown(context.Background()))

	return resp, string(body), nil
}

func TestGateway_MissThenHit(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")

	first, firstBody, err := f.serve(t, http.MethodGet, "/cat.png?size=thumb")
	require.NoError(t, err)
	assert.False(t, first.Hit)
	assert.Equal(t, "meow", firstBody)
	assert.Equal(t, "w=150,h=150,fit=cover", first.Header.Get(edgeshelf.HeaderTransformations))

	second, secondBody, err := f.serve(t, http.MethodGet, "/cat.png?size=thumb")
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, firstBody, secondBody)
	assert.Equal(t, first.Header, second.Header)

	assert.Equal(t, int64(1), f.store.getCalls.Load())
	assert.Equal(t, []string{
		"lookup:miss", "origin:found", "store:ok",
		"lookup:hit",
	}, f.observer.all())
}

func TestGateway_HeadSharesGetEntry(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")

	_, _, err := f.serve(t, http.MethodGet, "/cat.png")
	require.NoError(t, err)

	resp, _, err := f.serve(t, http.MethodHead, "/cat.png")
	require.NoError(t, err)
	assert.True(t, resp.Hit)
	assert.Equal(t, int64(1), f.store.getCalls.Load())
}

func TestGateway_DifferentQueryIsDifferentEntry(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")

	_, _, err := f.serve(t, http.MethodGet, "/cat.png?size=thumb&format=webp")
	require.NoError(t, err)
	resp, _, err := f.serve(t, http.MethodGet, "/cat.png?format=webp&size=thumb")
	require.NoError(t, err)

	assert.False(t, resp.Hit)
	assert.Equal(t, 2, f.cache.len())
}

func TestGateway_CanonicalQuerySharesEntry(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{CanonicalQuery: true})
	f.store.add("cat.png", "image/png", "meow")

	_, _, err := f.serve(t, http.MethodGet, "/cat.png?size=thumb&format=webp")
	require.NoError(t, err)
	resp, _, err := f.serve(t, http.MethodGet, "/cat.png?format=webp&size=thumb")
	require.NoError(t, err)

	assert.True(t, resp.Hit)
	assert.Equal(t, 1, f.cache.len())
}

func TestGateway_NotFoundIsNotCached(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})

	for range 2 {
		_, _, err := f.serve(t, http.MethodGet, "/missing.png")
		assert.ErrorIs(t, err, edgeshelf.ErrNotFound)
	}

	assert.Equal(t, 0, f.cache.len())
	assert.Equal(t, int64(2), f.store.getCalls.Load())
	assert.Equal(t, []string{"lookup:miss", "origin:absent", "lookup:miss", "origin:absent"}, f.observer.all())
}

func TestGateway_InvalidNameIsNotFound(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})

	_, err := f.gateway.Serve(context.Background(), edgeshelf.Request{
		Method: http.MethodGet,
		URL:    mustURL(t, "/x"),
		Name:   "../etc/passwd",
	})

	assert.ErrorIs(t, err, edgeshelf.ErrNotFound)
	assert.Equal(t, int64(0), f.store.getCalls.Load())
}

func TestGateway_OriginFault(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.err = errors.New("connection refused")

	_, _, err := f.serve(t, http.MethodGet, "/cat.png")

	assert.ErrorIs(t, err, edgeshelf.ErrOriginFault)
	assert.NotErrorIs(t, err, edgeshelf.ErrNotFound)
	assert.Equal(t, 0, f.cache.len())
	assert.Contains(t, f.observer.all(), "origin:error")
}

func TestGateway_CacheLookupFaultIsMiss(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")
	f.cache.matchErr = errors.New("cache offline")

	resp, body, err := f.serve(t, http.MethodGet, "/cat.png")

	require.NoError(t, err)
	assert.False(t, resp.Hit)
	assert.Equal(t, "meow", body)
	assert.Equal(t, "lookup:error", f.observer.all()[0])
}

func TestGateway_CacheStoreFaultIsInvisible(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")
	f.cache.storeErr = errors.New("disk full")

	_, body, err := f.serve(t, http.MethodGet, "/cat.png")

	require.NoError(t, err)
	assert.Equal(t, "meow", body)
	assert.Contains(t, f.observer.all(), "store:error")
}

func TestGateway_OversizeIsStreamedNotCached(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{MaxEntryBytes: 3})
	f.store.add("cat.png", "image/png", "meow")

	_, body, err := f.serve(t, http.MethodGet, "/cat.png")

	require.NoError(t, err)
	assert.Equal(t, "meow", body)
	assert.Equal(t, 0, f.cache.len())
	assert.Contains(t, f.observer.all(), "store:skipped")
}

func TestGateway_SizeMismatchIsNotCached(t *testing.T) {
	tests := []struct {
		name string
		size int64
	}{
		{"body shorter than size", 10},
		{"body longer than size", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
			f.store.addSized("cat.png", "meow", tt.size)

			_, body, err := f.serve(t, http.MethodGet, "/cat.png")

			require.NoError(t, err)
			assert.Equal(t, "meow", body)
			assert.Equal(t, 0, f.cache.len())
			assert.Contains(t, f.observer.all(), "store:skipped")
		})
	}
}

func TestGateway_EarlyCloseStillCaches(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow meow meow")

	resp, err := f.gateway.Serve(context.Background(), f.request(t, http.MethodGet, "/cat.png"))
	require.NoError(t, err)

	buf := make([]byte, 2)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, f.gateway.Shutdown(context.Background()))

	hit, body, err := f.serve(t, http.MethodGet, "/cat.png")
	require.NoError(t, err)
	assert.True(t, hit.Hit)
	assert.Equal(t, "meow meow meow", body)
}

func TestGateway_CanceledRequestStillCaches(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := f.gateway.Serve(ctx, f.request(t, http.MethodGet, "/cat.png"))
	require.NoError(t, err)
	cancel()

	require.NoError(t, resp.Body.Close())
	require.NoError(t, f.gateway.Shutdown(context.Background()))

	assert.Equal(t, 1, f.cache.len())
}

func TestGateway_CanceledRequestDrainsDetachedBody(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow meow meow")

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := f.gateway.Serve(ctx, f.request(t, http.MethodGet, "/cat.png"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	cancel()

	require.NoError(t, resp.Body.Close())
	require.NoError(t, f.gateway.Shutdown(context.Background()))

	assert.Equal(t, 1, f.cache.len())
	assert.Contains(t, f.observer.all(), "store:ok")

	hit, body, err := f.serve(t, http.MethodGet, "/cat.png")
	require.NoError(t, err)
	assert.True(t, hit.Hit)
	assert.Equal(t, "meow meow meow", body)
}

func TestGateway_StalledDrainIsBounded(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{StoreTimeout: 20 * time.Millisecond})
	f.store.add("cat.png", "image/png", "meow")
	f.store.stall = true

	resp, err := f.gateway.Serve(context.Background(), f.request(t, http.MethodGet, "/cat.png"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.gateway.Shutdown(ctx))

	assert.Equal(t, 0, f.cache.len())
	assert.Contains(t, f.observer.all(), "store:skipped")
}

func TestGateway_ReadAfterClose(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")

	resp, err := f.gateway.Serve(context.Background(), f.request(t, http.MethodGet, "/cat.png"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, resp.Body.Close())

	_, err = resp.Body.Read(make([]byte, 1))
	assert.Error(t, err)
	require.NoError(t, f.gateway.Shutdown(context.Background()))
}

func TestGateway_HitHeaderIsACopy(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{})
	f.store.add("cat.png", "image/png", "meow")

	_, _, err := f.serve(t, http.MethodGet, "/cat.png")
	require.NoError(t, err)

	hit, _, err := f.serve(t, http.MethodGet, "/cat.png")
	require.NoError(t, err)
	hit.Header.Set("Content-Type", "text/plain")

	again, _, err := f.serve(t, http.MethodGet, "/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", again.Header.Get("Content-Type"))
}

func TestGateway_ShutdownWaitsForPendingWrites(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{StoreTimeout: time.Minute})
	f.store.add("cat.png", "image/png", "meow")
	f.cache.block = make(chan struct{})

	resp, err := f.gateway.Serve(context.Background(), f.request(t, http.MethodGet, "/cat.png"))
	require.NoError(t, err)
	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = f.gateway.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(f.cache.block)
	require.NoError(t, f.gateway.Shutdown(context.Background()))
	assert.Equal(t, 1, f.cache.len())
}

func TestGateway_StoreTimeoutBoundsWrite(t *testing.T) {
	f := newGatewayFixture(t, edgeshelf.GatewayConfig{StoreTimeout: 10 * time.Millisecond})
	f.store.add("cat.png", "image/png", "meow")
	f.cache.block = make(chan struct{})

	_, _, err := f.serve(t, http.MethodGet, "/cat.png")

	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.len())
	assert.Contains(t, f.observer.all(), "store:error")
}
