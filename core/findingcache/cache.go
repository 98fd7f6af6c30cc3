package findingcache

import (
	"fmt"

	"github.com/huangsam/stablelint/internal/contract"
	"github.com/huangsam/stablelint/schema"
)

// storeFlusher adapts a FindingStore to the Flusher interface.
type storeFlusher struct {
	store contract.FindingStore
}

func (f storeFlusher) Flush(file string, snap schema.Snapshot) error {
	return f.store.Save(file, snap.Findings)
}

func (f storeFlusher) Forget(file string) error {
	return f.store.Delete(file)
}

// FindingCache is the per-project working set of finding snapshots, backed by
// a FindingStore for files that fell out of memory.
type FindingCache struct {
	cache *BoundedCache[string, schema.Snapshot]
	store contract.FindingStore
}

// New creates a FindingCache over store.
func New(store contract.FindingStore, capacity int, opts ...Option) *FindingCache {
	return &FindingCache{
		cache: NewBoundedCache[string, schema.Snapshot](capacity, storeFlusher{store: store}, opts...),
		store: store,
	}
}

// Get returns the in-memory snapshot of file. It never reads the store.
func (c *FindingCache) Get(file string) (schema.Snapshot, bool) {
	snap, ok := c.cache.Get(file)
	if !ok {
		return schema.Snapshot{}, false
	}
	return snap.Clone(), true
}

// Put stores the snapshot of file, possibly spilling another file to the store.
func (c *FindingCache) Put(file string, snap schema.Snapshot) {
	snap = snap.Clone()
	snap.File = file
	c.cache.Put(file, snap)
}

// Previous returns the last known snapshot of file from memory, or else from
// the store. It returns nil when the file was never analyzed.
func (c *FindingCache) Previous(file string) (*schema.Snapshot, error) {
	if snap, ok := c.Get(file); ok {
		return &snap, nil
	}
	findings, ok, err := c.store.Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted findings: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &schema.Snapshot{File: file, Findings: findings}, nil
}

// WasEverAnalyzed reports whether findings are known for file in memory or in the store.
func (c *FindingCache) WasEverAnalyzed(file string) (bool, error) {
	if _, ok := c.cache.Get(file); ok {
		return true, nil
	}
	return c.store.Contains(file)
}

// ReplaceFindings stores all snapshots and persists the whole working set.
func (c *FindingCache) ReplaceFindings(snaps map[string]schema.Snapshot) error {
	for file, snap := range snaps {
		c.Put(file, snap)
	}
	return c.cache.FlushAll()
}

// Invalidate forgets file in memory and in the store.
func (c *FindingCache) Invalidate(file string) error {
	return c.cache.Invalidate(file)
}

// EvictAll flushes every in-memory snapshot to the store.
func (c *FindingCache) EvictAll() error {
	return c.cache.EvictAll()
}

// Clear drops every snapshot from the store and from memory.
func (c *FindingCache) Clear() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear finding store: %w", err)
	}
	c.cache.Purge()
	return nil
}

// Len returns the number of snapshots held in memory.
func (c *FindingCache) Len() int {
	return c.cache.Len()
}

// Files returns the files held in memory, most recently used first.
func (c *FindingCache) Files() []string {
	return c.cache.Keys()
}

// Close flushes the working set; call it when the project is closed.
func (c *FindingCache) Close() error {
	return c.EvictAll()
}
