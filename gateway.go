package edgeshelf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// CachedResponse is an immutable snapshot of an assembled response. A new
// write for the same key always replaces the previous snapshot.
type CachedResponse struct {
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// EdgeCache is the response cache consulted before the origin.
type EdgeCache interface {
	// Match returns the snapshot stored under key. ok is false on a miss.
	Match(ctx context.Context, key CacheKey) (resp CachedResponse, ok bool, err error)

	// Store writes resp under key, replacing any existing snapshot.
	Store(ctx context.Context, key CacheKey, resp CachedResponse) error
}

// Observation results reported to a GatewayObserver.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultError   = "error"
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFound   = "found"
	ResultAbsent  = "absent"
)

// GatewayObserver receives the outcome of each cache lookup, cache store and
// origin fetch.
type GatewayObserver interface {
	CacheLookup(result string)
	CacheStore(result string)
	OriginFetch(result string)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(string) {}
func (nopObserver) CacheStore(string)  {}
func (nopObserver) OriginFetch(string) {}

// GatewayConfig holds configuration options for Gateway.
type GatewayConfig struct {
	// CanonicalQuery sorts query parameters before building cache keys.
	CanonicalQuery bool
	// MaxEntryBytes is the largest body that is cached (default: 32 MiB).
	MaxEntryBytes int64
	// StoreTimeout bounds a detached cache write (default: 30s).
	StoreTimeout time.Duration
	Observer     GatewayObserver
}

// Request names the object to serve. URL carries the transformation
// parameters and is the basis of the cache key.
type Request struct {
	Method string
	URL    *url.URL
	Name   string
}

// Response is the outcome of Gateway.Serve. The caller must close Body.
type Response struct {
	Header http.Header
	Body   io.ReadCloser
	// Hit is true when the response came from the edge cache.
	Hit bool
}

// Gateway serves objects through the edge cache.
type Gateway struct {
	fetcher  *Fetcher
	cache    EdgeCache
	cfg      GatewayConfig
	observer GatewayObserver
	pending  sync.WaitGroup
}

func NewGateway(fetcher *Fetcher, cache EdgeCache, cfg GatewayConfig) *Gateway {
	if cfg.MaxEntryBytes <= 0 {
		cfg.MaxEntryBytes = 32 << 20
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 30 * time.Second
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Gateway{
		fetcher:  fetcher,
		cache:    cache,
		cfg:      cfg,
		observer: observer,
	}
}

// Serve returns the response for req. A cache hit is returned verbatim
// without contacting the origin. On a miss the object is fetched, assembled
// and streamed back; the snapshot is written to the cache in the background
// once the body has been read or closed. Absent objects yield ErrNotFound
// and are not cached. Origin failures are returned wrapped with
// ErrOriginFault. Cache failures are logged and treated as misses.
func (g *Gateway) Serve(ctx context.Context, req Request) (*Response, error) {
	descriptor := NormalizeTransform(req.URL.Query())
	key := BuildCacheKey(req.Method, req.URL, g.cfg.CanonicalQuery)

	cached, hit, err := g.cache.Match(ctx, key)
	switch {
	case err != nil:
		slog.Warn("edge cache lookup failed", "key", key.String(), "err", err)
		g.observer.CacheLookup(ResultError)
	case hit:
		g.observer.CacheLookup(ResultHit)
		slog.Debug("edge cache hit", "key", key.String())
		return &Response{
			Header: cached.Header.Clone(),
			Body:   io.NopCloser(bytes.NewReader(cached.Body)),
			Hit:    true,
		}, nil
	default:
		g.observer.CacheLookup(ResultMiss)
		slog.Debug("edge cache miss", "key", key.String())
	}

	// The origin body outlives the request when it is drained for the cache,
	// so it is opened on a detached context. Request cancellation still
	// aborts the fetch until Fetch returns.
	fetchCtx, cancelFetch := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancelFetch)
	rec, found, err := g.fetcher.Fetch(fetchCtx, req.Name)
	stop()

	if err != nil {
		cancelFetch()
		g.observer.OriginFetch(ResultError)
		return nil, fmt.Errorf("serve %s: %w", req.Name, err)
	}
	if !found {
		cancelFetch()
		g.observer.OriginFetch(ResultAbsent)
		return nil, fmt.Errorf("serve %s: %w", req.Name, ErrNotFound)
	}
	g.observer.OriginFetch(ResultFound)

	header, body := Assemble(rec, descriptor, req.Name)

	if rec.Size < 0 || rec.Size > g.cfg.MaxEntryBytes {
		g.observer.CacheStore(ResultSkipped)
		return &Response{Header: header, Body: &cancelBody{ReadCloser: body, cancel: cancelFetch}}, nil
	}

	fill := &fillBody{
		gw:     g,
		ctx:    context.WithoutCancel(ctx),
		cancel: cancelFetch,
		key:    key,
		header: header.Clone(),
		src:    body,
		size:   rec.Size,
	}
	fill.buf.Grow(int(rec.Size))

	return &Response{Header: header, Body: fill}, nil
}

// cancelBody releases the fetch context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// Shutdown waits for detached cache writes to finish or ctx to be done.
func (g *Gateway) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway shutdown: %w", ctx.Err())
	}
}

func (g *Gateway) store(ctx context.Context, key CacheKey, header http.Header, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.StoreTimeout)
	defer cancel()

	resp := CachedResponse{Header: header, Body: body, StoredAt: time.Now().UTC()}
	if err := g.cache.Store(ctx, key, resp); err != nil {
		slog.Warn("edge cache store failed", "key", key.String(), "err", err)
		g.observer.CacheStore(ResultError)
		return
	}
	g.observer.CacheStore(ResultOK)
}

// fillBody streams the origin body to the caller while capturing it for the
// cache. It is read and closed by a single goroutine.
type fillBody struct {
	gw     *Gateway
	ctx    context.Context
	cancel context.CancelFunc
	key    CacheKey
	header http.Header
	src    io.ReadCloser
	size   int64
	buf    bytes.Buffer
	eof    bool
	failed bool
	closed bool
}

func (f *fillBody) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("read on closed body")
	}

	n, err := f.src.Read(p)
	if n > 0 && !f.failed {
		f.buf.Write(p[:n])
		if int64(f.buf.Len()) > f.size {
			f.failed = true
		}
	}

	switch {
	case err == io.EOF:
		f.eof = true
	case err != nil:
		f.failed = true
	}

	return n, err
}

// Close releases the origin body. If the caller stopped reading early the
// rest of the body is drained in the background so the cache write still
// happens.
func (f *fillBody) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.failed {
		f.gw.observer.CacheStore(ResultSkipped)
		defer f.cancel()
		return f.src.Close()
	}

	f.gw.pending.Add(1)

	if f.eof {
		err := f.src.Close()
		f.cancel()
		go func() {
			defer f.gw.pending.Done()
			f.finish()
		}()
		return err
	}

	go func() {
		defer f.gw.pending.Done()
		defer f.cancel()

		// a stalled origin must not hold the drain forever
		timer := time.AfterFunc(f.gw.cfg.StoreTimeout, f.cancel)
		defer timer.Stop()

		remaining := f.size - int64(f.buf.Len())
		_, err := io.Copy(&f.buf, io.LimitReader(f.src, remaining+1))
		if closeErr := f.src.Close(); closeErr != nil {
			slog.Warn("failed to close origin body", "key", f.key.String(), "err", closeErr)
		}
		if err != nil {
			slog.Warn("origin drain failed", "key", f.key.String(), "err", err)
			f.gw.observer.CacheStore(ResultSkipped)
			return
		}
		f.finish()
	}()

	return nil
}

func (f *fillBody) finish() {
	if int64(f.buf.Len()) != f.size {
		slog.Warn("origin body size mismatch, not caching",
			"key", f.key.String(), "expected", f.size, "got", f.buf.Len())
		f.gw.observer.CacheStore(ResultSkipped)
		return
	}
	f.gw.store(f.ctx, f.key, f.header, f.buf.Bytes())
}
