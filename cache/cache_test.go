package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func countingRetrieve(calls map[string]int) RetrieveFunc[string] {
	return func(_ context.Context, key string) (string, bool) {
		calls[key]++
		if key == "broken" {
			return "", false
		}
		return "value-" + key, true
	}
}

func TestMemoryCacheFIFOEviction(t *testing.T) {
	ctx := context.Background()
	calls := map[string]int{}
	c := NewMemoryCache(2, countingRetrieve(calls))

	for _, key := range []string{"a", "b", "c"} {
		if _, ok := c.Get(ctx, key); !ok {
			t.Fatalf("get %s failed", key)
		}
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
	if c.Contains("a") {
		t.Fatalf("expected a to be evicted first")
	}

	// Reading b does not refresh it
	c.Get(ctx, "b")
	c.Get(ctx, "a")
	if calls["a"] != 2 {
		t.Fatalf("expected a second retrieval of a, got %d", calls["a"])
	}
	if c.Contains("b") {
		t.Fatalf("expected b to be evicted after a was reinserted")
	}
	if !c.Contains("c") {
		t.Fatalf("expected c to still be cached")
	}
}

func TestMemoryCacheStats(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, countingRetrieve(map[string]int{}))

	if _, err := c.HitRate(); !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
	if _, err := c.MissRate(); !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}

	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "b")

	if c.Hits() != 2 || c.Misses() != 2 || c.Total() != 4 {
		t.Fatalf("unexpected counters hits=%d misses=%d total=%d", c.Hits(), c.Misses(), c.Total())
	}
	hit, err := c.HitRate()
	if err != nil || hit != 50 {
		t.Fatalf("expected hit rate 50, got %d (%v)", hit, err)
	}
	miss, err := c.MissRate()
	if err != nil || miss != 50 {
		t.Fatalf("expected miss rate 50, got %d (%v)", miss, err)
	}
}

func TestMemoryCacheFailedRetrievalNotStored(t *testing.T) {
	ctx := context.Background()
	calls := map[string]int{}
	c := NewMemoryCache(10, countingRetrieve(calls))

	if _, ok := c.Get(ctx, "broken"); ok {
		t.Fatalf("expected failed retrieval")
	}
	if _, ok := c.Get(ctx, "broken"); ok {
		t.Fatalf("expected failed retrieval")
	}
	if calls["broken"] != 2 {
		t.Fatalf("expected 2 retrieval attempts, got %d", calls["broken"])
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
	if c.Misses() != 2 {
		t.Fatalf("expected 2 misses, got %d", c.Misses())
	}
}

func TestMemoryCacheUnbounded(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0, countingRetrieve(map[string]int{}))
	for _, key := range []string{"a", "b", "c", "d"} {
		c.Get(ctx, key)
	}
	if c.Size() != 4 {
		t.Fatalf("expected 4 entries, got %d", c.Size())
	}
}

func TestLogRates(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	c := NewMemoryCache(10, countingRetrieve(map[string]int{}))
	LogRates(c, "photos")
	if strings.Contains(buf.String(), "hit_rate") {
		t.Fatalf("unused cache should not report rates: %s", buf.String())
	}

	c.Get(context.Background(), "a")
	c.Get(context.Background(), "a")
	c.Get(context.Background(), "a")
	c.Get(context.Background(), "b")
	buf.Reset()
	LogRates(c, "photos")
	out := buf.String()
	if !strings.Contains(out, `"hit_rate":50`) || !strings.Contains(out, `"miss_rate":50`) {
		t.Fatalf("unexpected log line %s", out)
	}
}
