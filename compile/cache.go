// Copyright © 2025 The cinder authors

package compile

import (
	"strings"
	"sync"
	"time"

	"github.com/cinderlang/cinder/analyzer"
	"github.com/cinderlang/cinder/runtime"
)

// Entry is one cached compilation result.
type Entry struct {
	// Hash is the structural hash of the IR the entry point was compiled
	// from.  Reuse requires an exact match; anything else is a forced
	// recompilation.
	Hash uint64
	// UniqueName is the synthetic unit name the entry point is registered
	// under in the symbol table.
	UniqueName string
	// EntryPoint is the compiled callable.
	EntryPoint runtime.Proc
	// MacroDeps records every macro var consulted while analyzing the
	// definition, with the root revision observed.  Any drift invalidates
	// the entry.
	MacroDeps []analyzer.MacroDep
	// Generation is the owning namespace's reload generation at creation.
	Generation uint64
	// CreatedAt records when the entry was stored.
	CreatedAt time.Time
}

// Stats counts cache traffic.  Reload-heavy workflows live and die by the
// hit rate, so the numbers are exported for the CLI and tests.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Stale     uint64
	Bypasses  uint64
	Evictions uint64
}

// Cache memoizes compiled definitions by qualified name and structural
// hash.  Lookups are far more frequent than stores or invalidations, so the
// cache takes a read lock on the hot path and a write lock only on miss and
// invalidation.  Failed compiles are never stored; the bridge simply never
// hands them to Store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	stats   Stats
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Lookup returns the cached entry for a qualified name when it is still
// valid: the structural hash matches exactly, every recorded macro root
// revision is current, and ns (when non-nil) has not been reloaded since
// the entry was stored.  A stale entry is evicted on the spot.
func (c *Cache) Lookup(name string, hash uint64, ns *runtime.Namespace) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		c.count(func(s *Stats) { s.Misses++ })
		return nil, false
	}
	if !c.valid(e, hash, ns) {
		c.mu.Lock()
		// Re-check under the write lock; another session may have stored a
		// fresh entry meanwhile.
		if cur, ok := c.entries[name]; ok && !c.valid(cur, hash, ns) {
			delete(c.entries, name)
			c.stats.Evictions++
		}
		c.stats.Stale++
		c.mu.Unlock()
		return nil, false
	}
	c.count(func(s *Stats) { s.Hits++ })
	return e, true
}

func (c *Cache) valid(e *Entry, hash uint64, ns *runtime.Namespace) bool {
	if e.Hash != hash {
		return false
	}
	if ns != nil && e.Generation != ns.Generation() {
		return false
	}
	for _, dep := range e.MacroDeps {
		if dep.Var.Rev() != dep.Rev {
			return false
		}
	}
	return true
}

// Store records a successful compilation for a qualified name, replacing
// any previous entry.
func (c *Cache) Store(name string, e *Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = e
}

// InvalidateName drops the entry for one qualified name.  Explicit
// interactive redefinition calls this before compiling: the user's intent
// is "recompile now", so the old entry must not be consulted.
func (c *Cache) InvalidateName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		delete(c.entries, name)
		c.stats.Evictions++
	}
	c.stats.Bypasses++
}

// InvalidateNamespace drops every entry belonging to the named namespace.
// Generation checking already makes such entries unreachable after a
// reload; this reclaims the space eagerly.
func (c *Cache) InvalidateNamespace(nsName string) {
	prefix := nsName + "/"
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.entries {
		if strings.HasPrefix(name, prefix) {
			delete(c.entries, name)
			c.stats.Evictions++
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Cache) count(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
