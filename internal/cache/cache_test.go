package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGetSet(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("a", "one", 0)

	got, ok := c.Get("a")
	if !ok || got != "one" {
		t.Errorf("Get(a) = %q, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("missing key should not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := New[int](time.Minute)
	current := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("short", 1, 10*time.Second)
	c.Set("long", 2, time.Hour)

	current = current.Add(30 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("short entry should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long entry should survive")
	}

	// The expired read evicted the entry.
	if c.Len() != 1 {
		t.Errorf("Len = %d after lazy eviction, want 1", c.Len())
	}
}

func TestDefaultTTL(t *testing.T) {
	c := New[int](time.Minute)
	current := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("k", 7, 0) // falls back to the one-minute default

	current = current.Add(59 * time.Second)
	if !c.Has("k") {
		t.Error("entry should still be live inside the default TTL")
	}
	current = current.Add(2 * time.Second)
	if c.Has("k") {
		t.Error("entry should have expired past the default TTL")
	}
}

func TestGetOrSet(t *testing.T) {
	c := New[int](time.Minute)
	calls := 0
	fetch := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet("k", fetch, 0)
		if err != nil || v != 42 {
			t.Fatalf("GetOrSet = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}

	// Errors pass through without caching.
	boom := errors.New("boom")
	_, err := c.GetOrSet("bad", func() (int, error) { return 0, boom }, 0)
	if err != boom {
		t.Errorf("err = %v, want boom", err)
	}
	if c.Has("bad") {
		t.Error("failed fetch must not be cached")
	}
}

func TestCleanup(t *testing.T) {
	c := New[int](time.Minute)
	current := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("a", 1, 10*time.Second)
	c.Set("b", 2, 10*time.Second)
	c.Set("c", 3, time.Hour)

	current = current.Add(time.Minute)
	if removed := c.Cleanup(); removed != 2 {
		t.Errorf("Cleanup removed %d, want 2", removed)
	}
	// Idempotent: a second sweep finds nothing.
	if removed := c.Cleanup(); removed != 0 {
		t.Errorf("second Cleanup removed %d, want 0", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestClearAndDelete(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	if c.Has("a") {
		t.Error("deleted key still present")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}
}

func TestFilterKey_Deterministic(t *testing.T) {
	a := FilterKey(decimal.NewFromInt(5), 20, decimal.NewFromInt(200), []string{"toys", "electronics"})
	b := FilterKey(decimal.NewFromInt(5), 20, decimal.NewFromInt(200), []string{"electronics", "toys"})
	if a != b {
		t.Errorf("category order changed the key: %q vs %q", a, b)
	}

	c := FilterKey(decimal.NewFromInt(10), 20, decimal.NewFromInt(200), []string{"electronics", "toys"})
	if a == c {
		t.Error("different filters must not collide")
	}
}
