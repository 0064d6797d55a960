package cache

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/google/uuid"
)

type entry struct {
	view      *application.HierarchyView
	expiresAt time.Time
}

// MemoryHierarchyCache is a process-local TTL cache used when Redis is not
// configured. Expired entries are dropped lazily on read.
type MemoryHierarchyCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryHierarchyCache creates an empty cache.
func NewMemoryHierarchyCache(ttl time.Duration) *MemoryHierarchyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryHierarchyCache{
		entries: make(map[uuid.UUID]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryHierarchyCache) Get(_ context.Context, milestoneID uuid.UUID) (*application.HierarchyView, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[milestoneID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[milestoneID]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, milestoneID)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.view, true, nil
}

func (c *MemoryHierarchyCache) Set(_ context.Context, view *application.HierarchyView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[view.ID] = entry{view: view, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryHierarchyCache) Invalidate(_ context.Context, milestoneID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, milestoneID)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryHierarchyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
