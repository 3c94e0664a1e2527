package isorender

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/you/isorender/reqkey"
)

// Result is the settled outcome of a request cache entry: a value or an
// error, never both. A nil *Result means the entry is still pending.
type Result struct {
	Value any
	Err   error
}

// MarshalJSON renders the envelope in its wire form, {"value":...} or
// {"error":"..."}.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(map[string]string{"error": r.Err.Error()})
	}
	return json.Marshal(map[string]any{"value": r.Value})
}

// Refresh re-fetches (or force-sets) one cache entry. The returned channel
// closes once the entry has settled again.
type Refresh func(ctx context.Context, opts ...RefreshOption) <-chan struct{}

type refreshOpts struct {
	seed        *seedValue
	keepCurrent bool
}

type seedValue struct{ v any }

// RefreshOption adjusts a single refresh call.
type RefreshOption func(*refreshOpts)

// Seed force-sets the entry to v directly; no transport call occurs. Used to
// inject externally obtained data.
func Seed(v any) RefreshOption {
	return func(o *refreshOpts) { o.seed = &seedValue{v: v} }
}

// KeepCurrent leaves the displayed value in place while the fetch runs,
// instead of resetting it to the pending state.
func KeepCurrent() RefreshOption {
	return func(o *refreshOpts) { o.keepCurrent = true }
}

type useOpts struct {
	ttl    time.Duration
	ttlSet bool
}

// UseOption adjusts a single cache read.
type UseOption func(*useOpts)

// WithTTL marks the entry due for refresh once the last fetch is older than
// ttl. Zero disables staleness for this read.
func WithTTL(ttl time.Duration) UseOption {
	return func(o *useOpts) { o.ttl = ttl; o.ttlSet = true }
}

// CacheOption configures a RequestCache.
type CacheOption func(*RequestCache)

// WithBarrier registers automatically triggered fetches with b, so a server
// render loop can await them. Manual Refresh calls are never registered.
func WithBarrier(b *Barrier) CacheOption {
	return func(c *RequestCache) { c.barrier = b }
}

// WithNow sets a custom clock (tests).
func WithNow(now func() time.Time) CacheOption {
	return func(c *RequestCache) { c.now = now }
}

// WithDefaultTTL applies ttl to reads that carry no WithTTL of their own.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *RequestCache) { c.defaultTTL = ttl }
}

// WithCacheLogger sets the cache logger.
func WithCacheLogger(l Logger) CacheOption {
	return func(c *RequestCache) { c.logger = l }
}

// WithCacheMetrics sets the cache metrics recorder.
func WithCacheMetrics(m Metrics) CacheOption {
	return func(c *RequestCache) { c.metrics = m }
}

// RequestCache deduplicates and caches transport reads, keyed by
// (path, canonical params). Each entry is backed by a store variable under
// the same key, which is how cached data reaches the client snapshot.
type RequestCache struct {
	store      *Store
	transport  Transport
	barrier    *Barrier
	logger     Logger
	metrics    Metrics
	now        func() time.Time
	defaultTTL time.Duration

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	key    string
	path   string
	params string

	lastFetched time.Time
	inflight    chan struct{}
	refresh     Refresh
}

// NewRequestCache builds a cache layered on store.
func NewRequestCache(store *Store, transport Transport, opts ...CacheOption) *RequestCache {
	c := &RequestCache{
		store:     store,
		transport: transport,
		logger:    NopLogger(),
		metrics:   NopMetrics(),
		now:       time.Now,
		entries:   map[string]*cacheEntry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Use reads the entry for (path, params), fetching through the transport when
// the entry is missing or stale. While pending it returns (nil, refresh, nil);
// once settled, the value or the stored fetch error.
func (c *RequestCache) Use(ctx context.Context, path string, params any, opts ...UseOption) (any, Refresh, error) {
	if path == "" {
		return nil, nil, errEmptyPath
	}
	canon, err := reqkey.Canonical(params)
	if err != nil {
		return nil, nil, err
	}
	key := reqkey.Entry(path, canon)

	var o useOpts
	for _, opt := range opts {
		opt(&o)
	}
	ttl := c.defaultTTL
	if o.ttlSet {
		ttl = o.ttl
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{key: key, path: path, params: canon}
		e.refresh = func(ctx context.Context, opts ...RefreshOption) <-chan struct{} {
			var ro refreshOpts
			for _, opt := range opts {
				opt(&ro)
			}
			return c.start(ctx, e, ro, false)
		}
		c.entries[key] = e
		c.store.Get(key, nil) // materialize the backing variable
	}
	inflight := e.inflight != nil
	last := e.lastFetched
	c.mu.Unlock()

	res := asResult(c.store.Get(key, nil))

	due := false
	if !inflight {
		switch {
		case res == nil:
			due = true
		case ttl > 0 && !last.IsZero() && c.now().Sub(last) > ttl:
			due = true
		}
	}

	if due {
		c.metrics.IncCounter("request_cache_misses", 1, Label{Name: "path", Value: path})
		c.start(ctx, e, refreshOpts{}, true)
		res = asResult(c.store.Get(key, nil))
	} else {
		c.metrics.IncCounter("request_cache_hits", 1, Label{Name: "path", Value: path})
	}

	if res == nil {
		return nil, e.refresh, nil
	}
	if res.Err != nil {
		return nil, e.refresh, res.Err
	}
	return res.Value, e.refresh, nil
}

// ResetAll atomically replaces the cache namespace and notifies every prior
// entry's subscribers with nil, exactly once. Fetches still in flight for
// cleared keys are discarded when they settle; the replacement namespace is
// never touched. Calling it twice is the same as calling it once.
func (c *RequestCache) ResetAll() {
	c.mu.Lock()
	old := c.entries
	c.entries = map[string]*cacheEntry{}
	c.mu.Unlock()

	for key := range old {
		c.store.Delete(inflightName(key))
		c.store.Set(key, nil)
	}
	if len(old) > 0 {
		c.metrics.IncCounter("request_cache_resets", 1)
	}
}

// start launches (or joins) a fetch for e. Dedup invariant: at most one
// outstanding transport call per key.
func (c *RequestCache) start(ctx context.Context, e *cacheEntry, o refreshOpts, auto bool) <-chan struct{} {
	if o.seed != nil {
		c.mu.Lock()
		e.lastFetched = c.now()
		c.mu.Unlock()
		c.store.Set(e.key, &Result{Value: o.seed.v})
		return closedChan
	}

	c.mu.Lock()
	if e.inflight != nil {
		done := e.inflight
		c.mu.Unlock()
		return done
	}
	done := make(chan struct{})
	e.inflight = done
	c.mu.Unlock()

	if !o.keepCurrent {
		c.store.Set(e.key, nil)
	}
	c.store.MarkPrivate(inflightName(e.key))
	c.store.Set(inflightName(e.key), true)

	if auto && c.barrier != nil {
		c.barrier.Track(done)
	}

	go func() {
		defer close(done)
		v, err := c.transport.Get(ctx, e.path, e.params)
		res := &Result{Value: v}
		if err != nil {
			res = &Result{Err: err}
		}
		c.settle(e, res)
	}()
	return done
}

// settle publishes the fetch outcome, then releases the entry's inflight
// slot. Publication comes first so a concurrent Use can never observe a
// free inflight slot alongside a still-pending store value and start a
// redundant fetch. A fetch that outlived a ResetAll is discarded; the
// replacement namespace is never touched.
func (c *RequestCache) settle(e *cacheEntry, res *Result) {
	c.mu.Lock()
	current := c.entries[e.key] == e
	c.mu.Unlock()

	if current {
		c.store.Set(e.key, res)
		c.store.Delete(inflightName(e.key))
	}

	c.mu.Lock()
	e.inflight = nil
	e.lastFetched = c.now()
	c.mu.Unlock()

	if current && res.Err != nil {
		c.metrics.IncCounter("request_cache_fetch_errors", 1, Label{Name: "path", Value: e.path})
		c.logger.Warn("fetch failed", Field{Key: "key", Value: e.key}, Field{Key: "err", Value: res.Err})
	}
}

func inflightName(key string) string {
	return "inflight:" + key
}

// asResult interprets a store value as a cache envelope. Values seeded from a
// decoded snapshot arrive as generic JSON maps and are coerced back.
func asResult(v any) *Result {
	switch r := v.(type) {
	case nil:
		return nil
	case *Result:
		return r
	case map[string]any:
		if msg, ok := r["error"].(string); ok {
			return &Result{Err: errors.New(msg)}
		}
		if val, ok := r["value"]; ok {
			return &Result{Value: val}
		}
	}
	return nil
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

var errEmptyPath = errors.New("request path must be non-empty")
