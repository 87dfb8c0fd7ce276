package segment

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"aggnav/internal/domain"
	"aggnav/internal/metrics"
)

// Cache is the shared segment store of one schema generation. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.RWMutex
	segments map[string][]*Segment
	ids      map[string]struct{}
	loads    singleflight.Group
	metrics  *metrics.Engine
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		segments: make(map[string][]*Segment),
		ids:      make(map[string]struct{}),
	}
}

// SetMetrics sets the instruments used to count lookups.
func (c *Cache) SetMetrics(m *metrics.Engine) { c.metrics = m }

// Get returns the cell for req. ok is false when no segment covers the request;
// a covered request with no data row returns domain.NullCell.
func (c *Cache) Get(req *domain.CellRequest) (domain.Cell, bool) {
	c.mu.RLock()
	candidates := c.segments[RequestKey(req)]
	c.mu.RUnlock()

	for _, s := range candidates {
		if cell, ok := s.lookup(req); ok {
			if cell.Null {
				c.metrics.Lookup("null")
			} else {
				c.metrics.Lookup("hit")
			}
			return cell, true
		}
	}
	c.metrics.Lookup("miss")
	return domain.Cell{}, false
}

// Covers reports whether a published segment answers req. Unlike Get it is not
// counted as a lookup.
func (c *Cache) Covers(req *domain.CellRequest) bool {
	c.mu.RLock()
	candidates := c.segments[RequestKey(req)]
	c.mu.RUnlock()
	for _, s := range candidates {
		if _, ok := s.lookup(req); ok {
			return true
		}
	}
	return false
}

// Put publishes seg. It reports false when an identical segment is already present.
func (c *Cache) Put(seg *Segment) bool {
	id := seg.identity()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return false
	}
	c.ids[id] = struct{}{}
	key := seg.Key()
	// Copy on write so readers holding the old slice are unaffected.
	next := make([]*Segment, 0, len(c.segments[key])+1)
	next = append(next, c.segments[key]...)
	c.segments[key] = append(next, seg)
	return true
}

// Len returns the number of published segments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Load runs fn for query unless the same statement is already running, in which case
// the caller waits for and shares that result.
func (c *Cache) Load(ctx context.Context, query string, fn func(context.Context) ([][]any, error)) ([][]any, error) {
	v, err, _ := c.loads.Do(query, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([][]any), nil
}
