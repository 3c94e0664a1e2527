package isorender

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ClientOption mutates Client construction.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClientMetrics sets the client metrics recorder.
func WithClientMetrics(m Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithClientRequest records the current location (path, query, scheme, host)
// on the render context handed to the renderer.
func WithClientRequest(req Request) ClientOption {
	return func(c *Client) { c.request = req }
}

// Client owns the process-wide store and request cache on the consumer side.
// Created once at bootstrap, it lives for the page's lifetime; every mounted
// component shares it.
type Client struct {
	cfg      Config
	store    *Store
	cache    *RequestCache
	renderer ClientRenderer
	logger   Logger
	metrics  Metrics
	request  Request
}

// NewClient constructs the client bootstrap.
func NewClient(cfg Config, transport Transport, renderer ClientRenderer, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil || renderer == nil {
		return nil, fmt.Errorf("transport and renderer are required")
	}
	c := &Client{
		cfg:      cfg,
		renderer: renderer,
		logger:   NopLogger(),
		metrics:  NopMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store = NewStore()
	c.cache = NewRequestCache(c.store, transport,
		WithDefaultTTL(cfg.DefaultRequestTTL),
		WithCacheLogger(c.logger),
		WithCacheMetrics(c.metrics),
	)
	return c, nil
}

// Store exposes the process-wide variable store.
func (c *Client) Store() *Store { return c.store }

// Cache exposes the process-wide request cache.
func (c *Client) Cache() *RequestCache { return c.cache }

// Hydrate seeds the store from a server snapshot and attaches to the
// server-rendered markup, so the first client render reads identical values
// instead of re-fetching. A nil snapshot falls back to a fresh Mount.
// waitFor channels are awaited before mounting, bounded by
// Config.PreRenderTimeout.
func (c *Client) Hydrate(ctx context.Context, snap *Snapshot, app App, waitFor ...<-chan struct{}) error {
	if snap == nil {
		return c.Mount(ctx, app, waitFor...)
	}
	if err := app.Validate(); err != nil {
		return err
	}
	if snap.Redirected() {
		return fmt.Errorf("cannot hydrate a redirect snapshot (target %s)", snap.RedirectTarget)
	}

	for name, v := range snap.InitialVariables {
		c.store.Seed(name, v)
	}
	if err := waitPreRender(ctx, c.cfg.PreRenderTimeout, c.logger, waitFor); err != nil {
		return err
	}

	rc := c.renderContext(snap.Identifier)
	c.logger.Debug("hydrating",
		Field{Key: "render", Value: snap.Identifier},
		Field{Key: "vars", Value: len(snap.InitialVariables)})
	if err := c.renderer.Hydrate(rc, app, snap.RenderedMarkup); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	c.metrics.IncCounter("client_hydrations", 1)
	return nil
}

// Mount performs an ordinary fresh render, for pure client navigations where
// no snapshot was delivered.
func (c *Client) Mount(ctx context.Context, app App, waitFor ...<-chan struct{}) error {
	if err := app.Validate(); err != nil {
		return err
	}
	if err := waitPreRender(ctx, c.cfg.PreRenderTimeout, c.logger, waitFor); err != nil {
		return err
	}

	rc := c.renderContext("client/" + uuid.NewString())
	if err := c.renderer.Mount(rc, app); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	c.metrics.IncCounter("client_mounts", 1)
	return nil
}

func (c *Client) renderContext(id string) *RenderContext {
	return &RenderContext{
		ID:      id,
		Request: c.request,
		Store:   c.store,
		Cache:   c.cache,
	}
}
