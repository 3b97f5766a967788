package cache

import (
	"testing"
	"time"
)

type request struct {
	N       int     `json:"n"`
	Spacing float64 `json:"spacing"`
}

func TestKey(t *testing.T) {
	a, err := Key("linear", request{N: 8, Spacing: 0.5})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, _ := Key("linear", request{N: 8, Spacing: 0.5})
	c, _ := Key("planar", request{N: 8, Spacing: 0.5})
	d, _ := Key("linear", request{N: 9, Spacing: 0.5})

	if a != b {
		t.Error("equal requests should share a key")
	}
	if a == c || a == d {
		t.Error("different requests should not share a key")
	}
	if len(a) != 64 {
		t.Errorf("len(key) = %d, want 64", len(a))
	}

	if _, err := Key("linear", func() {}); err == nil {
		t.Error("Key() of an unmarshalable value should fail")
	}
}

func TestCache(t *testing.T) {
	c := New(2, time.Hour)
	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache hit")
	}
	c.Add("a", 1)
	c.Add("b", 2)
	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	// b is now least recently used.
	c.Add("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	want := Stats{Entries: 2, Hits: 1, Misses: 2}
	if got := c.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	c.Purge()
	if got := c.Stats(); got != (Stats{}) {
		t.Errorf("Stats() after Purge = %+v", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New(4, 20*time.Millisecond)
	c.Add("a", 1)
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
}

func TestDisabledCache(t *testing.T) {
	c := New(0, time.Hour)
	if c != nil {
		t.Fatal("New(0) should return nil")
	}
	c.Add("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache hit")
	}
	if c.Len() != 0 || c.Stats() != (Stats{}) {
		t.Error("disabled cache should be empty")
	}
	c.Purge()
}
