// ABOUTME: Thread-safe TTL cache of resolved display names
// ABOUTME: Bounds identity lookups made by every read of the mailbox device

package identity

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// cacheEntry stores the resolved name, its timestamp and list element.
type cacheEntry struct {
	name      string
	timestamp time.Time
	element   *list.Element
}

// CachingResolver wraps a Resolver with a TTL-based, size-limited cache.
// Only successful lookups are cached. Uses a doubly-linked list to maintain
// insertion order for O(1) eviction.
type CachingResolver struct {
	next Resolver

	mu      sync.Mutex
	seen    map[UID]*cacheEntry
	order   *list.List // uids in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewCachingResolver wraps next with a cache of at most maxSize names kept for ttl.
func NewCachingResolver(next Resolver, ttl time.Duration, maxSize int) *CachingResolver {
	if maxSize < 1 {
		maxSize = 1
	}
	return &CachingResolver{
		next:    next,
		seen:    make(map[UID]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// ResolveName returns a cached name or asks the wrapped resolver.
func (c *CachingResolver) ResolveName(ctx context.Context, uid UID) (string, error) {
	if name, ok := c.lookup(uid); ok {
		return name, nil
	}

	name, err := c.next.ResolveName(ctx, uid)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.markLocked(uid, name)
	c.mu.Unlock()
	return name, nil
}

// LookupUID passes through to the wrapped resolver when it is a Directory.
func (c *CachingResolver) LookupUID(ctx context.Context, name string) (UID, error) {
	dir, ok := c.next.(Directory)
	if !ok {
		return NoUID, ErrNotFound
	}
	return dir.LookupUID(ctx, name)
}

// Forget drops a cached name, e.g. after a user is renamed or removed.
func (c *CachingResolver) Forget(uid UID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[uid]; ok {
		c.order.Remove(entry.element)
		delete(c.seen, uid)
	}
}

// Len returns the number of cached names, expired ones included.
func (c *CachingResolver) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *CachingResolver) lookup(uid UID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[uid]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		c.order.Remove(entry.element)
		delete(c.seen, uid)
		return "", false
	}
	return entry.name, true
}

// markLocked records a resolved name. Must be called with mu held.
func (c *CachingResolver) markLocked(uid UID, name string) {
	now := c.now()

	// If uid already exists, refresh it and move to back
	if entry, exists := c.seen[uid]; exists {
		entry.name = name
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(uid)
	c.seen[uid] = &cacheEntry{
		name:      name,
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held.
func (c *CachingResolver) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	uid, _ := front.Value.(UID)
	c.order.Remove(front)
	delete(c.seen, uid)
}
