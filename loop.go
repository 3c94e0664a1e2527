package isorender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/you/isorender/reqkey"
	"github.com/you/isorender/snapcache"
)

// RenderLoopOption mutates RenderLoop construction.
type RenderLoopOption func(*RenderLoop)

// WithLogger sets the loop logger.
func WithLogger(l Logger) RenderLoopOption {
	return func(rl *RenderLoop) { rl.logger = l }
}

// WithMetrics sets the loop metrics recorder.
func WithMetrics(m Metrics) RenderLoopOption {
	return func(rl *RenderLoop) { rl.metrics = m }
}

// WithSnapshotCache serves finalized snapshots from sc and stores new ones
// there, bounded by Config.SnapshotTTL. Redirects and incomplete snapshots
// are never cached.
func WithSnapshotCache(sc snapcache.Cache) RenderLoopOption {
	return func(rl *RenderLoop) { rl.snapshots = sc }
}

// WithInstanceIDProvider overrides the default instance ID provider.
func WithInstanceIDProvider(p InstanceIDProvider) RenderLoopOption {
	return func(rl *RenderLoop) { rl.instanceIDs = p }
}

// RenderLoop drives server-side rendering: render, collect newly registered
// work, await it, render again, until the tree is stable; then finalize the
// store state into a transferable snapshot. Each request gets a fresh store,
// cache and barrier, so concurrent requests never share state.
type RenderLoop struct {
	cfg         Config
	router      Router
	renderer    Renderer
	transport   Transport
	logger      Logger
	metrics     Metrics
	snapshots   snapcache.Cache
	instanceIDs InstanceIDProvider
	instanceID  string
}

// NewRenderLoop constructs a loop with sane defaults.
func NewRenderLoop(cfg Config, router Router, renderer Renderer, transport Transport, opts ...RenderLoopOption) (*RenderLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if router == nil || renderer == nil || transport == nil {
		return nil, fmt.Errorf("router, renderer, and transport are required")
	}
	rl := &RenderLoop{
		cfg:       cfg,
		router:    router,
		renderer:  renderer,
		transport: transport,
		logger:    NopLogger(),
		metrics:   NopMetrics(),
	}
	for _, opt := range opts {
		opt(rl)
	}
	if rl.instanceIDs == nil {
		rl.instanceIDs = NewDefaultInstanceIDProvider()
	}
	id, err := rl.instanceIDs.InstanceID()
	if err != nil {
		return nil, fmt.Errorf("get instance id: %w", err)
	}
	rl.instanceID = id
	return rl, nil
}

// Render produces the snapshot for one request. waitFor channels are awaited
// before the first pass, bounded by Config.PreRenderTimeout; on expiry
// rendering proceeds with whatever state is available.
func (rl *RenderLoop) Render(ctx context.Context, req Request, waitFor ...<-chan struct{}) (*Snapshot, error) {
	if req.Path == "" {
		return nil, errEmptyPath
	}
	id := rl.instanceID + "/" + uuid.NewString()
	snapKey := reqkey.Snapshot(req.Path, req.Query)

	if rl.snapshots != nil {
		if snap := rl.cachedSnapshot(ctx, snapKey); snap != nil {
			rl.metrics.IncCounter("snapshot_cache_hits", 1)
			return snap, nil
		}
	}

	match, err := rl.router.Match(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", req.URL(), err)
	}
	if match.Redirect() {
		rl.logger.Debug("redirect short-circuit",
			Field{Key: "url", Value: req.URL()},
			Field{Key: "target", Value: match.RedirectTarget})
		return &Snapshot{
			Identifier:     id,
			RedirectTarget: match.RedirectTarget,
			StatusCode:     match.StatusCode,
		}, nil
	}

	store := NewStore()
	barrier := NewBarrier()
	cache := NewRequestCache(store, rl.transport,
		WithBarrier(barrier),
		WithDefaultTTL(rl.cfg.DefaultRequestTTL),
		WithCacheLogger(rl.logger),
		WithCacheMetrics(rl.metrics),
	)
	rc := &RenderContext{
		ID:      id,
		Request: req,
		Match:   match,
		Store:   store,
		Cache:   cache,
		Barrier: barrier,
	}

	if err := waitPreRender(ctx, rl.cfg.PreRenderTimeout, rl.logger, waitFor); err != nil {
		return nil, err
	}

	var doc *RenderedDoc
	incomplete := false
	passes := 0
	for pass := 1; pass <= rl.cfg.MaxRenderPasses; pass++ {
		passes = pass
		doc, err = rl.renderer.Render(rc)
		if err != nil {
			return nil, fmt.Errorf("render pass %d: %w", pass, err)
		}

		pending := barrier.Len()
		if pending == 0 {
			break
		}
		if pass == rl.cfg.MaxRenderPasses {
			incomplete = true
			rl.logger.Warn("render pass cap reached, finalizing with partial data",
				Field{Key: "url", Value: req.URL()},
				Field{Key: "pending", Value: pending})
			break
		}
		rl.logger.Debug("awaiting data",
			Field{Key: "pass", Value: pass},
			Field{Key: "pending", Value: pending})
		if err := barrier.Wait(ctx); err != nil {
			return nil, fmt.Errorf("await data after pass %d: %w", pass, err)
		}
	}
	rl.metrics.ObserveHistogram("render_passes", float64(passes))

	snap := &Snapshot{
		Identifier:       id,
		InitialVariables: store.Export(),
		RenderedMarkup:   doc.Markup,
		DocumentMetadata: &doc.Metadata,
		Incomplete:       incomplete,
	}

	if rl.snapshots != nil && !incomplete {
		rl.storeSnapshot(ctx, snapKey, snap)
	}
	return snap, nil
}

// waitPreRender blocks on externally supplied must-resolve work, bounded by
// timeout. Expiry is logged and absorbed; only cancellation of the caller's
// context itself is fatal.
func waitPreRender(ctx context.Context, timeout time.Duration, logger Logger, waitFor []<-chan struct{}) error {
	if len(waitFor) == 0 {
		return nil
	}
	wctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	pre := NewBarrier()
	for _, ch := range waitFor {
		pre.Track(ch)
	}
	err := pre.Wait(wctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("pre-render wait: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("pre-render wait timed out, proceeding with available state",
			Field{Key: "timeout", Value: timeout})
		return nil
	}
	return fmt.Errorf("pre-render wait: %w", err)
}

func (rl *RenderLoop) cachedSnapshot(ctx context.Context, key string) *Snapshot {
	data, ok, err := rl.snapshots.Get(ctx, key)
	if err != nil {
		rl.logger.Warn("snapshot cache get failed", Field{Key: "key", Value: key}, Field{Key: "err", Value: err})
		return nil
	}
	if !ok {
		return nil
	}
	snap, err := DecodeSnapshot(bytes.NewReader(data))
	if err != nil {
		rl.logger.Warn("cached snapshot corrupt", Field{Key: "key", Value: key}, Field{Key: "err", Value: err})
		return nil
	}
	return snap
}

func (rl *RenderLoop) storeSnapshot(ctx context.Context, key string, snap *Snapshot) {
	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		rl.logger.Warn("snapshot encode failed", Field{Key: "key", Value: key}, Field{Key: "err", Value: err})
		return
	}
	if err := rl.snapshots.Put(ctx, key, buf.Bytes(), rl.cfg.SnapshotTTL); err != nil {
		rl.logger.Warn("snapshot cache put failed", Field{Key: "key", Value: key}, Field{Key: "err", Value: err})
	}
}
