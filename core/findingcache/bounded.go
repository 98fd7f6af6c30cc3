// Package findingcache keeps the working set of per-file findings in memory
// and spills the least recently used files to a persistent store.
package findingcache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// DefaultCapacity is the number of files kept in memory by default.
const DefaultCapacity = 10_000

// Flusher persists entries that leave memory.
type Flusher[K comparable, V any] interface {
	// Flush writes value as the persisted state of key.
	Flush(key K, value V) error
	// Forget deletes the persisted state of key.
	Forget(key K) error
}

// Option configures a cache.
type Option func(*options)

type options struct {
	logger  hclog.Logger
	metrics *Metrics
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the collectors updated by the cache.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// BoundedCache is a fixed-capacity LRU map that flushes evicted entries
// through a Flusher. One mutex guards the whole structure, so the access-order
// bump and any eviction it triggers are atomic.
//
// Reads never fall through to the Flusher's storage: a miss means "unknown".
type BoundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	lru      *list.List // front is most recently used
	items    map[K]*list.Element
	store    Flusher[K, V]
	logger   hclog.Logger
	metrics  *Metrics
}

// NewBoundedCache creates a cache holding at most capacity entries in steady state.
// A non-positive capacity selects DefaultCapacity.
func NewBoundedCache[K comparable, V any](capacity int, store Flusher[K, V], opts ...Option) *BoundedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	o := buildOptions(opts)
	return &BoundedCache[K, V]{
		capacity: capacity,
		lru:      list.New(),
		items:    make(map[K]*list.Element),
		store:    store,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Get returns the in-memory value of key and marks it most recently used.
func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.metrics.miss()
		var zero V
		return zero, false
	}
	c.metrics.hit()
	c.lru.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Put stores value for key. When this takes the cache past capacity, the least
// recently used entry is flushed and dropped. If that flush fails the entry is
// kept, so the cache may run over capacity until the store recovers; any later
// Put, including an update, retries the eviction.
func (c *BoundedCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.lru.MoveToFront(el)
	} else {
		c.items[key] = c.lru.PushFront(&entry[K, V]{key: key, value: value})
	}

	for c.lru.Len() > c.capacity {
		if err := c.evictLocked(c.lru.Back()); err != nil {
			break
		}
	}
	c.metrics.setSize(c.lru.Len())
}

// evictLocked flushes the entry and removes it from memory once the flush succeeded.
func (c *BoundedCache[K, V]) evictLocked(el *list.Element) error {
	e := el.Value.(*entry[K, V])
	if err := c.store.Flush(e.key, e.value); err != nil {
		c.metrics.flushFailed()
		c.logger.Warn("failed to flush entry, keeping it in memory", "key", e.key, "error", err)
		return err
	}
	c.lru.Remove(el)
	delete(c.items, e.key)
	c.metrics.evicted()
	return nil
}

// EvictAll flushes every entry, least recently used first, and drops each one
// from memory only after its own flush succeeded. Entries whose flush failed
// stay servable and their errors are returned together.
func (c *BoundedCache[K, V]) EvictAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if err := c.evictLocked(el); err != nil {
			errs = append(errs, fmt.Errorf("flush %v: %w", el.Value.(*entry[K, V]).key, err))
		}
		el = prev
	}
	c.metrics.setSize(c.lru.Len())
	return errors.Join(errs...)
}

// FlushAll persists every entry and keeps them all in memory.
func (c *BoundedCache[K, V]) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry[K, V])
		if err := c.store.Flush(e.key, e.value); err != nil {
			c.metrics.flushFailed()
			errs = append(errs, fmt.Errorf("flush %v: %w", e.key, err))
		}
	}
	return errors.Join(errs...)
}

// Invalidate forgets key in memory and in the store.
func (c *BoundedCache[K, V]) Invalidate(key K) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.lru.Remove(el)
		delete(c.items, key)
		c.metrics.setSize(c.lru.Len())
	}
	return c.store.Forget(key)
}

// Purge drops every in-memory entry without flushing.
func (c *BoundedCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Init()
	clear(c.items)
	c.metrics.setSize(0)
}

// Len returns the number of entries in memory.
func (c *BoundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the in-memory keys, most recently used first.
func (c *BoundedCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}
