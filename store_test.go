package isorender

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreGetCreatesEntry(t *testing.T) {
	s := NewStore()

	assert.Equal(t, "fallback", s.Get("greeting", "fallback"))

	// the setter minted at first sight is already live
	s.Setter("greeting")("hello")
	assert.Equal(t, "hello", s.Get("greeting", "fallback"))
}

func TestStoreGetKeepsExplicitNil(t *testing.T) {
	s := NewStore()
	notices := 0
	sub := s.Subscribe("theme", func(string, any) { notices++ })
	defer sub.Close()

	s.Set("theme", "dark")
	s.Set("theme", nil)

	// nil is the pending signal; a read must not resurrect a default
	assert.Nil(t, s.Get("theme", "light"))
	assert.Nil(t, s.Get("theme", nil))
	assert.Equal(t, 2, notices)
}

func TestStoreSetNotifiesSubscribers(t *testing.T) {
	s := NewStore()
	var got []any

	sub := s.Subscribe("counter", func(name string, v any) {
		assert.Equal(t, "counter", name)
		got = append(got, v)
	})
	defer sub.Close()

	s.Set("counter", 1)
	s.Set("counter", 2)
	assert.Equal(t, []any{1, 2}, got)
}

func TestStoreSetterStableIdentity(t *testing.T) {
	s := NewStore()
	first := s.Setter("x")
	second := s.Setter("x")

	first(10)
	assert.Equal(t, 10, s.Get("x", nil))
	second(20)
	assert.Equal(t, 20, s.Get("x", nil))
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	s := NewStore()
	calls := 0
	sub := s.Subscribe("v", func(string, any) { calls++ })

	sub.Close()
	sub.Close()
	s.Set("v", "after")
	assert.Zero(t, calls)
}

func TestSubscriptionRebind(t *testing.T) {
	s := NewStore()
	var seen []string
	sub := s.Subscribe("old", func(name string, v any) {
		seen = append(seen, name)
	})
	defer sub.Close()

	sub.Rebind("new")

	s.Set("old", 1)
	s.Set("new", 2)
	assert.Equal(t, []string{"new"}, seen)
}

func TestStoreEmptyNameIsNoop(t *testing.T) {
	s := NewStore()
	s.Set("", "x")
	assert.Nil(t, s.Get("", nil))
	assert.Empty(t, s.Export())

	sub := s.Subscribe("", func(string, any) { t.Fatal("must not fire") })
	sub.Close()
}

func TestStoreExportSkipsPrivate(t *testing.T) {
	s := NewStore()
	s.Set("public", "yes")
	s.Set("secret", "no")
	s.MarkPrivate("secret")

	exported := s.Export()
	assert.Equal(t, map[string]any{"public": "yes"}, exported)
}

func TestStoreSeedDoesNotNotify(t *testing.T) {
	s := NewStore()
	sub := s.Subscribe("seeded", func(string, any) { t.Fatal("seed must not notify") })
	defer sub.Close()

	s.Seed("seeded", 42)
	assert.Equal(t, 42, s.Get("seeded", nil))
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	s.Set("tmp", 1)
	s.Delete("tmp")
	assert.Empty(t, s.Export())
	// unknown name is a no-op
	s.Delete("missing")
}
