package isorender

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierWaitDrainsBatch(t *testing.T) {
	b := NewBarrier()
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		b.Go(func() {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		})
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}

	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := ran.Load(); got != 3 {
		t.Fatalf("ran = %d, want 3", got)
	}
	if b.Len() != 0 {
		t.Fatalf("batch not cleared, len = %d", b.Len())
	}
}

func TestBarrierWaitEmpty(t *testing.T) {
	b := NewBarrier()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("empty wait: %v", err)
	}
}

func TestBarrierTrackNilIgnored(t *testing.T) {
	b := NewBarrier()
	b.Track(nil)
	if b.Len() != 0 {
		t.Fatalf("nil channel must not be tracked")
	}
}

func TestBarrierWaitContextExpiry(t *testing.T) {
	b := NewBarrier()
	b.Track(make(chan struct{})) // never closes

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestBarrierLateWorkLandsInNextBatch(t *testing.T) {
	b := NewBarrier()
	first := make(chan struct{})
	b.Track(first)
	close(first)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	// second-order work discovered after the first batch settles
	inner := make(chan struct{})
	b.Track(inner)
	if b.Len() != 1 {
		t.Fatalf("late work should remain pending, len = %d", b.Len())
	}
	close(inner)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("batch not cleared, len = %d", b.Len())
	}
}
