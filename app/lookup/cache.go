package lookup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Lookup resolves a forum user ID to a username.
type Lookup interface {
	LookupUsername(ctx context.Context, userID int) (string, error)
}

var _ Lookup = (*Client)(nil)
var _ Lookup = (*Cache)(nil)

type cacheEntry struct {
	name      string
	notFound  bool
	expiresAt time.Time
}

// Cache keeps lookup results for a fixed TTL. Missing users are cached as
// well; transient failures are not.
type Cache struct {
	next  Lookup
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[int]cacheEntry
}

func NewCache(next Lookup, ttl time.Duration, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		next:    next,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[int]cacheEntry),
	}
}

func (c *Cache) LookupUsername(ctx context.Context, userID int) (string, error) {
	now := c.clock.Now()

	c.mu.Lock()
	entry, ok := c.entries[userID]
	if ok && now.After(entry.expiresAt) {
		delete(c.entries, userID)
		ok = false
	}
	c.mu.Unlock()

	if ok {
		if entry.notFound {
			return "", ErrNotFound
		}
		return entry.name, nil
	}

	name, err := c.next.LookupUsername(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	c.mu.Lock()
	c.entries[userID] = cacheEntry{
		name:      name,
		notFound:  err != nil,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()

	return name, err
}

// Len reports the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
