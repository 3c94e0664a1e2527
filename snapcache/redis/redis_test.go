package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestPutGetRoundTrip(t *testing.T) {
	cache, _ := newCache(t)
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Put(ctx, "snap:abc", []byte(`{"identifier":"x"}`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, ok, err := cache.Get(ctx, "snap:abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || string(data) != `{"identifier":"x"}` {
		t.Fatalf("unexpected get: ok=%v data=%s", ok, data)
	}
}

func TestGetMissing(t *testing.T) {
	cache, _ := newCache(t)
	defer cache.Close()

	_, ok, err := cache.Get(context.Background(), "snap:none")
	if err != nil {
		t.Fatalf("get missing err: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestEntryExpires(t *testing.T) {
	cache, mr := newCache(t)
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Put(ctx, "snap:ttl", []byte("{}"), time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(2 * time.Second)
	_, ok, err := cache.Get(ctx, "snap:ttl")
	if err != nil {
		t.Fatalf("get after expiry err: %v", err)
	}
	if ok {
		t.Fatalf("expected snapshot to expire")
	}
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := New(Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return cache, mr
}
