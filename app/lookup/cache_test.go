package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type countingLookup struct {
	names map[int]string
	err   error
	calls int
}

func (c *countingLookup) LookupUsername(_ context.Context, userID int) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	name, ok := c.names[userID]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func TestCache_HitAndExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	next := &countingLookup{names: map[int]string{1: "peppy"}}
	cache := NewCache(next, time.Hour, clock)

	for i := 0; i < 3; i++ {
		name, err := cache.LookupUsername(context.Background(), 1)
		if err != nil || name != "peppy" {
			t.Fatalf("Expected 'peppy', got '%s' (%v)", name, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", next.calls)
	}

	clock.Advance(time.Hour + time.Second)
	if _, err := cache.LookupUsername(context.Background(), 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("Expected expired entry to be refreshed, got %d calls", next.calls)
	}
}

func TestCache_CachesNotFound(t *testing.T) {
	next := &countingLookup{names: map[int]string{}}
	cache := NewCache(next, time.Hour, clockwork.NewFakeClock())

	for i := 0; i < 2; i++ {
		if _, err := cache.LookupUsername(context.Background(), 9); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected negative result to be cached, got %d calls", next.calls)
	}
}

func TestCache_DoesNotCacheTransientErrors(t *testing.T) {
	next := &countingLookup{err: errors.New("timeout")}
	cache := NewCache(next, time.Hour, clockwork.NewFakeClock())

	cache.LookupUsername(context.Background(), 1)
	cache.LookupUsername(context.Background(), 1)

	if next.calls != 2 {
		t.Errorf("Expected transient errors to reach upstream every time, got %d calls", next.calls)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", cache.Len())
	}
}
