package isorender

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Barrier collects the in-flight asynchronous work registered during one
// render pass. The whole set is awaited as a batch and then discarded;
// entries are never removed individually. Success or failure of individual
// work items is invisible here; failures land in cache entry state.
type Barrier struct {
	mu      sync.Mutex
	pending []<-chan struct{}
}

// NewBarrier returns an empty barrier.
func NewBarrier() *Barrier {
	return &Barrier{}
}

// Track registers a completion channel with the current batch.
func (b *Barrier) Track(done <-chan struct{}) {
	if done == nil {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, done)
	b.mu.Unlock()
}

// Go runs fn asynchronously and tracks its completion, for work that is not
// a cache fetch (localization loads, externally supplied promises).
func (b *Barrier) Go(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	b.Track(done)
}

// Len reports how many items the current batch holds.
func (b *Barrier) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Wait blocks until every item registered so far has completed, then clears
// the batch. Work registered while Wait runs lands in the next batch. The
// only error condition is context expiry.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, done := range batch {
		done := done
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
