package isorender

import (
	"context"
	"errors"
)

// Request describes one server-side render request.
type Request struct {
	Path   string
	Query  string
	Scheme string
	Host   string
}

// URL reassembles the request target for logging and cache keys.
func (r Request) URL() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// Transport performs remote reads for REST-backed variables.
// Get should return a JSON-compatible value or an error; a failed Get
// surfaces as per-entry failure state, never as a render abort.
type Transport interface {
	Get(ctx context.Context, path string, params string) (any, error)
}

// Router resolves a request to a data-loading context or a redirect.
type Router interface {
	Match(ctx context.Context, req Request) (*Match, error)
}

// Match is the outcome of resolving a request against the route table.
// A redirect match short-circuits rendering entirely.
type Match struct {
	RedirectTarget string
	StatusCode     int
	Data           any
}

// Redirect reports whether the match carries a 3xx redirect.
func (m *Match) Redirect() bool {
	return m != nil && m.RedirectTarget != "" && m.StatusCode >= 300 && m.StatusCode < 400
}

// RenderedDoc is the output of one server render pass.
type RenderedDoc struct {
	Markup   string
	Metadata DocumentMetadata
}

// Renderer turns the component tree into markup against a render context.
// Render may synchronously trigger cache misses that register work with the
// context's barrier; the loop re-renders until no new work appears.
type Renderer interface {
	Render(rc *RenderContext) (*RenderedDoc, error)
}

// ClientRenderer is the live-UI side of the renderer capability.
type ClientRenderer interface {
	// Hydrate attaches to server-produced markup without recreating it.
	Hydrate(rc *RenderContext, app App, markup string) error
	// Mount performs an ordinary fresh render when no snapshot exists.
	Mount(rc *RenderContext, app App) error
}

// App is the root handed to the client renderer: either a route table or a
// prebuilt component tree, stated explicitly by the embedding caller rather
// than inferred from the value's shape.
type App struct {
	Routes any
	Tree   any
}

var errAppVariant = errors.New("app must set exactly one of Routes or Tree")

// Validate ensures exactly one variant is set.
func (a App) Validate() error {
	if (a.Routes == nil) == (a.Tree == nil) {
		return errAppVariant
	}
	return nil
}

// RenderContext is the explicit per-render handle threaded through the
// component tree: one per request on the server, one per process on the
// client. It replaces any ambient "current store" global.
type RenderContext struct {
	ID      string
	Request Request
	Match   *Match

	Store   *Store
	Cache   *RequestCache
	Barrier *Barrier
}

// Use reads a REST-backed variable through the context's request cache.
func (rc *RenderContext) Use(ctx context.Context, path string, params any, opts ...UseOption) (any, Refresh, error) {
	return rc.Cache.Use(ctx, path, params, opts...)
}

// Logger is a lightweight structured logger interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field holds a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// Metrics records counters and gauges.
type Metrics interface {
	IncCounter(name string, value float64, labels ...Label)
	SetGauge(name string, value float64, labels ...Label)
	ObserveHistogram(name string, value float64, labels ...Label)
}

// Label is a simple name/value pair for metrics.
type Label struct {
	Name  string
	Value string
}

type nopLogger struct{}

// NopLogger returns a no-op logger implementation.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

type nopMetrics struct{}

// NopMetrics returns a no-op metrics recorder.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) IncCounter(string, float64, ...Label)       {}
func (nopMetrics) SetGauge(string, float64, ...Label)         {}
func (nopMetrics) ObserveHistogram(string, float64, ...Label) {}
