// Package stats memoizes column cardinalities and aggregate table row counts for one
// session.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"aggnav/internal/domain"
	"aggnav/internal/metrics"
	"aggnav/internal/synth"
)

// Cache holds the probe results of one session. It is safe for concurrent use.
type Cache struct {
	exec    domain.Executor
	synth   *synth.Synthesizer
	logger  *slog.Logger
	metrics *metrics.Engine

	mu     sync.RWMutex
	counts map[string]int64
	epoch  uint64 // bumped by Reset; probes started earlier do not memoize
	probes singleflight.Group
}

// NewCache creates an empty cache that probes through exec.
func NewCache(exec domain.Executor, s *synth.Synthesizer, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		exec:   exec,
		synth:  s,
		logger: logger,
		counts: make(map[string]int64),
	}
}

// SetMetrics sets the instruments used to count probes.
func (c *Cache) SetMetrics(m *metrics.Engine) { c.metrics = m }

// Cardinality returns the number of distinct values of column, probing the
// database on first use.
func (c *Cache) Cardinality(ctx context.Context, col *domain.Column) (int64, error) {
	key := "column:" + col.Key().String()
	return c.memoize(ctx, key, "cardinality", c.synth.CardinalitySQL(col))
}

// RowCount returns the row count of an aggregate table. A declared approximate row
// count is returned without a probe.
func (c *Cache) RowCount(ctx context.Context, agg *domain.AggregateDescriptor) (int64, error) {
	if agg.ApproxRowCount > 0 {
		return agg.ApproxRowCount, nil
	}
	return c.memoize(ctx, "table:"+agg.Name, "rowcount", c.synth.RowCountSQL(agg.Name))
}

// Reset forgets every memoized result.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int64)
	c.epoch++
}

// Len returns the number of memoized results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.counts)
}

func (c *Cache) memoize(ctx context.Context, key, kind, query string) (int64, error) {
	c.mu.RLock()
	n, ok := c.counts[key]
	epoch := c.epoch
	c.mu.RUnlock()
	if ok {
		c.metrics.Probe("hit")
		return n, nil
	}

	v, err, _ := c.probes.Do(fmt.Sprintf("%d/%s", epoch, key), func() (any, error) {
		c.metrics.Probe("probe")
		c.metrics.Statement(kind)
		c.logger.Debug("probing", "kind", kind, "sql", query)
		rows, err := c.exec.Query(ctx, query)
		if err != nil {
			return int64(0), fmt.Errorf("%s probe: %w", kind, err)
		}
		n, err := scalar(rows)
		if err != nil {
			return int64(0), fmt.Errorf("%s probe: %w", kind, err)
		}
		c.mu.Lock()
		if c.epoch == epoch {
			c.counts[key] = n
		}
		c.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func scalar(rows [][]any) (int64, error) {
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, fmt.Errorf("expected one value, got %d rows", len(rows))
	}
	d, err := domain.ToDecimal(rows[0][0])
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}
