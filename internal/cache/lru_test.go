package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to be cached")
	}
	c.Set("c", "3") // evicts b, the least recently used

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected a=1, got %q %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clock.t = clock.t.Add(30 * time.Second)
	c.Set("b", "3") // refreshes b's deadline

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be expired")
	}
	if v, ok := c.Get("b"); !ok || v != "3" {
		t.Fatalf("expected b=3 to still be live, got %q %v", v, ok)
	}

	clock.t = clock.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestLRUPurgeAndDelete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be deleted")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected purge to empty the cache")
	}
	c.Set("c", "3")
	if v, ok := c.Get("c"); !ok || v != "3" {
		t.Fatalf("cache should be usable after purge")
	}
}

func TestLRUStats(t *testing.T) {
	c, clock := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Get("a")
	c.Get("missing")
	c.Set("b", "2")
	c.Set("c", "3") // evicts a

	clock.t = clock.t.Add(2 * time.Minute)
	c.Get("b") // expired

	got := c.Stats()
	want := Stats{Hits: 1, Misses: 2, Evictions: 1, Expired: 1, Entries: 1}
	if got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}
	if r := got.HitRatio(); r < 0.33 || r > 0.34 {
		t.Fatalf("HitRatio() = %v, want 1/3", r)
	}
	if (Stats{}).HitRatio() != 0 {
		t.Fatal("HitRatio of an unused cache should be 0")
	}
}

func TestManager(t *testing.T) {
	drafts, clock := newTestCache(10, time.Second)
	drafts.Set("a", "1")
	totals := NewLRUCache[int](4, time.Hour)
	totals.Set("v1", 3)

	m := NewManager(nil)
	m.Register("drafts", drafts)
	m.Register("categories", totals)

	clock.t = clock.t.Add(2 * time.Second)
	if n := m.CleanAll(); n != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", n)
	}

	stats := m.Stats()
	if len(stats) != 2 || stats[0].Name != "drafts" || stats[1].Name != "categories" {
		t.Fatalf("unexpected stats order %+v", stats)
	}
	if stats[0].Expired != 1 || stats[0].Entries != 0 || stats[1].Entries != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("Run should stop cleanly on cancel, got %v", err)
	}
}
