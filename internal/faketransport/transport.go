// Package faketransport provides an in-memory Transport for tests.
package faketransport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Handler produces the response for one path.
type Handler func(params string) (any, error)

// Transport is an in-memory fake with per-path handlers, call counting and an
// optional artificial delay.
type Transport struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	delay    time.Duration
}

// New returns an empty fake transport.
func New() *Transport {
	return &Transport{
		handlers: map[string]Handler{},
		calls:    map[string]int{},
	}
}

// Handle registers a handler for path.
func (t *Transport) Handle(path string, fn Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[path] = fn
}

// HandleValue registers a fixed successful response for path.
func (t *Transport) HandleValue(path string, v any) {
	t.Handle(path, func(string) (any, error) { return v, nil })
}

// HandleError registers a fixed failure for path.
func (t *Transport) HandleError(path string, err error) {
	t.Handle(path, func(string) (any, error) { return nil, err })
}

// SetDelay makes every Get sleep for d before responding.
func (t *Transport) SetDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// Calls reports how many Gets hit path.
func (t *Transport) Calls(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[path]
}

// TotalCalls reports the number of Gets across all paths.
func (t *Transport) TotalCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.calls {
		total += n
	}
	return total
}

// Get implements the transport interface.
func (t *Transport) Get(ctx context.Context, path string, params string) (any, error) {
	t.mu.Lock()
	t.calls[path]++
	fn, ok := t.handlers[path]
	delay := t.delay
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("no handler for %s", path)
	}
	return fn(params)
}
