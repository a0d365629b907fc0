// Package circuitcache keys the expensive circuit-setup artifacts by
// input shape (spec.md §4.C). At most one build runs per shape;
// concurrent misses on the same shape rendezvous on the in-flight
// build rather than racing, via the build-token pattern called for in
// spec.md §9. Builds for different shapes proceed fully in parallel.
// Once built, proving against a shape is unsynchronized — the spec's
// §9 open question on build-vs-prove concurrency is resolved as "only
// the build is serialized".
package circuitcache

import (
	"sync"

	"github.com/near-zk/finality-prover/internal/types"
)

// BuildFunc compiles the circuit and proving/verifying artifacts for a
// shape. It is expensive — minutes, hundreds of MB — which is the
// entire reason this cache exists.
type BuildFunc func(shape types.Shape) (any, error)

type slot struct {
	done     chan struct{}
	artifact any
	err      error
}

// Cache is a process-local, shape-keyed artifact store. Safe for
// concurrent use by many workers sharing one process (the bus layer
// handles cross-process sharing by sharding tasks by shape, per
// spec.md §4.C).
type Cache struct {
	mu    sync.RWMutex
	slots map[types.Shape]*slot
}

func New() *Cache {
	return &Cache{slots: make(map[types.Shape]*slot)}
}

// GetOrBuild returns the cached artifact for shape, building it with
// build if this is the first call for that shape. Concurrent callers
// for the same shape block on the single in-flight build; callers for
// distinct shapes never block each other.
func (c *Cache) GetOrBuild(shape types.Shape, build BuildFunc) (any, error) {
	c.mu.RLock()
	s, ok := c.slots[shape]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		s, ok = c.slots[shape]
		if !ok {
			s = &slot{done: make(chan struct{})}
			c.slots[shape] = s
			c.mu.Unlock()

			s.artifact, s.err = build(shape)
			close(s.done)
			return s.artifact, s.err
		}
		c.mu.Unlock()
	}

	<-s.done
	return s.artifact, s.err
}

// Len reports the number of distinct shapes built (or in flight),
// used by the "one entry per msg_len_bits seen" invariant test.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}
