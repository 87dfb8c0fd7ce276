// Package batch collects cell requests, groups them into batches that one statement
// can answer, and loads the batches into the segment cache.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"aggnav/internal/domain"
	"aggnav/internal/metrics"
	"aggnav/internal/navigator"
	"aggnav/internal/segment"
	"aggnav/internal/synth"
)

const defaultParallelism = 4

// Load is one planned statement: the batch it answers, the navigator's plan and the SQL.
type Load struct {
	Star     *domain.Star
	Columns  []*domain.Column
	Values   [][]domain.Literal
	Compound *domain.Predicate
	Measures []*domain.Measure
	Plan     *navigator.Plan
	SQL      string
	Requests []*domain.CellRequest
}

// Reader queues cell requests and answers them from the segment cache. A Reader is
// safe for concurrent use.
type Reader struct {
	cache       *segment.Cache
	navigator   *navigator.Navigator
	synth       *synth.Synthesizer
	exec        domain.Executor
	logger      *slog.Logger
	metrics     *metrics.Engine
	parallelism int

	mu      sync.Mutex
	pending []*domain.CellRequest
}

// NewReader creates a reader over a shared segment cache.
func NewReader(cache *segment.Cache, nav *navigator.Navigator, s *synth.Synthesizer, exec domain.Executor, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		cache:       cache,
		navigator:   nav,
		synth:       s,
		exec:        exec,
		logger:      logger,
		parallelism: defaultParallelism,
	}
}

// SetParallelism bounds how many batch statements run at once.
func (r *Reader) SetParallelism(n int) {
	if n > 0 {
		r.parallelism = n
	}
}

// SetMetrics sets the instruments used to count statements and load time.
func (r *Reader) SetMetrics(m *metrics.Engine) { r.metrics = m }

// RecordCellRequest queues req for the next LoadAggregations. It does no I/O.
func (r *Reader) RecordCellRequest(req *domain.CellRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, req)
}

// Pending returns the number of queued requests.
func (r *Reader) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// GetCellFromCache returns the loaded value of req. ok is false when no load has
// covered it.
func (r *Reader) GetCellFromCache(req *domain.CellRequest) (domain.Cell, bool) {
	return r.cache.Get(req)
}

// LoadAggregations loads every queued request that the cache cannot answer yet and
// clears the queue. Batches are loaded concurrently.
func (r *Reader) LoadAggregations(ctx context.Context) error {
	r.mu.Lock()
	queued := r.pending
	r.pending = nil
	r.mu.Unlock()

	var missing []*domain.CellRequest
	for _, req := range queued {
		if !r.cache.Covers(req) {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	loads, err := r.Plan(missing)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, l := range loads {
		g.Go(func() error {
			return r.load(gctx, l)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, req := range missing {
		if !r.cache.Covers(req) {
			return fmt.Errorf("load aggregations: request %s is not covered after load", req)
		}
	}
	return nil
}

// Plan groups requests into batches and plans one statement per batch without
// executing anything.
func (r *Reader) Plan(reqs []*domain.CellRequest) ([]*Load, error) {
	var loads []*Load
	for _, group := range groupRequests(reqs) {
		l := newLoad(group)
		p, err := r.navigator.Navigate(navigator.Batch{
			Star:     l.Star,
			Columns:  l.Columns,
			Compound: l.Compound,
			Measures: l.Measures,
		})
		if err != nil {
			return nil, fmt.Errorf("navigate batch: %w", err)
		}
		query, err := r.synth.SegmentSQL(p, l.Values, l.Compound)
		if err != nil {
			return nil, fmt.Errorf("synthesize batch: %w", err)
		}
		l.Plan = p
		l.SQL = query
		loads = append(loads, l)
	}
	return loads, nil
}

func (r *Reader) load(ctx context.Context, l *Load) error {
	start := time.Now()
	rows, err := r.cache.Load(ctx, l.SQL, func(ctx context.Context) ([][]any, error) {
		r.metrics.Statement("segment")
		return r.exec.Query(ctx, l.SQL)
	})
	if err != nil {
		return fmt.Errorf("load batch from %s: %w", l.Plan.Source, err)
	}

	segs, err := decompose(l, rows)
	if err != nil {
		return fmt.Errorf("load batch from %s: %w", l.Plan.Source, err)
	}
	for _, s := range segs {
		r.cache.Put(s)
	}

	r.metrics.ObserveLoad(time.Since(start))
	r.logger.Debug("loaded batch",
		"star", l.Star.Name,
		"source", l.Plan.Source,
		"requests", len(l.Requests),
		"rows", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// decompose splits result rows into one segment per measure. Rows hold the column
// values followed by the measure values.
func decompose(l *Load, rows [][]any) ([]*segment.Segment, error) {
	compound := ""
	if l.Compound != nil {
		compound = l.Compound.Key()
	}
	segs := make([]*segment.Segment, len(l.Measures))
	for i, m := range l.Measures {
		segs[i] = segment.New(l.Star.Name, m.Name, l.Columns, l.Values, compound)
	}

	width := len(l.Columns) + len(l.Measures)
	for _, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row has %d values, want %d", len(row), width)
		}
		tuple := make([]domain.Literal, len(l.Columns))
		for j, c := range l.Columns {
			v, err := domain.LiteralFromDB(c.Type, row[j])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c, err)
			}
			tuple[j] = v
		}
		for i := range l.Measures {
			raw := row[len(l.Columns)+i]
			if raw == nil {
				continue
			}
			d, err := domain.ToDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("measure %s: %w", l.Measures[i].Name, err)
			}
			segs[i].Set(tuple, domain.Cell{Value: d})
		}
	}
	return segs, nil
}
