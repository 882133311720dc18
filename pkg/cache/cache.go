// Package cache provides a bounded LRU cache for expensive resources
// such as live database engines. Entries are built on demand, promoted
// on every hit, and disposed exactly once, either when evicted to make
// room or when the cache is purged at shutdown.
package cache

import (
	"container/list"
	"sync"
)

// Cache is a bounded LRU mapping keys to resources. Construction of a
// missing entry is single-flight per key: concurrent callers for the
// same key block until the first caller's factory returns and then
// share its result.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	maxEntries int
	dispose    func(V)

	order    *list.List // front = most recently used
	entries  map[K]*list.Element
	inflight map[K]*call[V]
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// call tracks an in-flight factory invocation for a key.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// New creates a cache holding at most maxEntries resources. dispose is
// invoked on each resource as it leaves the cache; a nil dispose is
// treated as a no-op.
func New[K comparable, V any](maxEntries int, dispose func(V)) *Cache[K, V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if dispose == nil {
		dispose = func(V) {}
	}
	return &Cache[K, V]{
		maxEntries: maxEntries,
		dispose:    dispose,
		order:      list.New(),
		entries:    make(map[K]*list.Element),
		inflight:   make(map[K]*call[V]),
	}
}

// GetOrCreate returns the cached resource for key, building it with
// factory on a miss. A hit promotes the entry to most-recently-used and
// never calls factory. If factory fails the cache is left unchanged and
// the error is returned; concurrent waiters on the same key receive the
// same error.
func (c *Cache[K, V]) GetOrCreate(key K, factory func() (V, error)) (V, error) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		v := el.Value.(*entry[K, V]).value
		c.mu.Unlock()
		return v, nil
	}
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-cl.done
		return cl.value, cl.err
	}

	cl := &call[V]{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	v, err := factory()

	c.mu.Lock()
	delete(c.inflight, key)
	if err != nil {
		c.mu.Unlock()
		cl.err = err
		close(cl.done)
		var zero V
		return zero, err
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: v})

	var evicted []V
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		ent := oldest.Value.(*entry[K, V])
		delete(c.entries, ent.key)
		evicted = append(evicted, ent.value)
	}
	c.mu.Unlock()

	// Dispose outside the lock; dispose may block on network teardown.
	for _, old := range evicted {
		c.dispose(old)
	}

	cl.value = v
	close(cl.done)
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Contains reports whether key is currently cached, without promoting it.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Purge disposes every cached resource and clears the cache. Safe to
// call repeatedly; intended for shutdown.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	values := make([]V, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		values = append(values, el.Value.(*entry[K, V]).value)
	}
	c.order.Init()
	c.entries = make(map[K]*list.Element)
	c.mu.Unlock()

	for _, v := range values {
		c.dispose(v)
	}
}
