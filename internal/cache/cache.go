package cache

import (
	"container/list"
	"sync"
	"time"
)

// TTLCache is an LRU cache whose entries expire after a fixed duration.
// Expired entries are dropped lazily on Get and eagerly by the janitor.
type TTLCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*list.Element
	order   *list.List

	stopJanitor chan struct{}
	janitorDone chan struct{}
	stopOnce    sync.Once
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New creates a TTL cache holding at most maxSize entries.
func New[V any](maxSize int, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		maxSize:     maxSize,
		ttl:         ttl,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if time.Now().After(e.expiresAt) {
		c.remove(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry
// when the cache is full.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[V]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, ok := c.entries[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(e)

	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
}

// Delete removes key from the cache if present.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
}

// Size returns the current number of entries.
func (c *TTLCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CleanExpired removes all expired entries and returns how many were dropped.
func (c *TTLCache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.remove(elem)
	}
	return len(expired)
}

// StartJanitor begins periodic eviction of expired entries.
func (c *TTLCache[V]) StartJanitor(interval time.Duration) {
	go func() {
		defer close(c.janitorDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CleanExpired()
			case <-c.stopJanitor:
				return
			}
		}
	}()
}

// Stop terminates the janitor goroutine and waits for it to exit.
// Only call Stop after StartJanitor.
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopJanitor)
		<-c.janitorDone
	})
}

// caller must hold c.mu
func (c *TTLCache[V]) remove(elem *list.Element) {
	e := elem.Value.(*entry[V])
	delete(c.entries, e.key)
	c.order.Remove(elem)
}
