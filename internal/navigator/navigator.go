package navigator

import (
	"fmt"
	"log/slog"

	"aggnav/internal/domain"
	"aggnav/internal/metrics"
)

// Navigator picks the source table for batches. It holds no per-query state.
type Navigator struct {
	logger  *slog.Logger
	metrics *metrics.Engine
}

// New creates a navigator.
func New(logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{logger: logger}
}

// SetMetrics sets the instruments used to count decisions.
func (n *Navigator) SetMetrics(m *metrics.Engine) { n.metrics = m }

// Navigate returns the plan for a batch. Aggregates are tried in declaration order;
// the compatible one with the fewest joins wins and the fact table is the fallback.
// The only error is a configuration error in a descriptor.
func (n *Navigator) Navigate(b Batch) (*Plan, error) {
	if b.Star == nil {
		return nil, domain.ErrValidation("batch has no star")
	}
	if len(b.Measures) == 0 {
		return nil, domain.ErrValidation("batch has no measures")
	}

	var best *Plan
	var rejected []Rejection
	for _, agg := range b.Star.Aggregates {
		p, reason, err := n.tryAggregate(b, agg)
		if err != nil {
			return nil, err
		}
		if p == nil {
			rejected = append(rejected, Rejection{Aggregate: agg.Name, Reason: reason})
			continue
		}
		if best == nil || len(p.Joins) < len(best.Joins) {
			if best != nil {
				rejected = append(rejected, Rejection{Aggregate: best.Source, Reason: "needs more joins"})
			}
			best = p
		} else {
			rejected = append(rejected, Rejection{Aggregate: agg.Name, Reason: "needs more joins"})
		}
	}

	if best == nil {
		best = factPlan(b)
	}
	best.Rejected = rejected
	n.record(best, b.Star)
	return best, nil
}

func (n *Navigator) record(p *Plan, star *domain.Star) {
	source := "fact"
	switch {
	case p.UsesAggregate():
		source = "aggregate"
	case p.Source != star.Fact.Name:
		source = "dimension"
	}
	n.metrics.Decision(source)
	n.logger.Debug("navigated batch",
		"star", star.Name,
		"source", p.Source,
		"joins", len(p.Joins),
		"group_by", p.GroupBy,
		"rejected", len(p.Rejected),
	)
}

// tryAggregate returns a plan reading agg, or the reason agg cannot answer the batch.
func (n *Navigator) tryAggregate(b Batch, agg *domain.AggregateDescriptor) (*Plan, string, error) {
	p := &Plan{Star: b.Star, Aggregate: agg, Source: agg.Name}
	joins := newJoinSet(nil)
	needed := make(map[domain.ColumnKey]bool)

	resolve := func(c *domain.Column) (ColumnRef, string) {
		needed[c.Key()] = true
		if lm, ok := agg.Collapsed(c); ok {
			return ColumnRef{Column: c, Table: agg.Name, Name: lm.AggColumn}, ""
		}
		if lm, ok := agg.JoinBack(c); ok {
			path, _ := c.Table.PathFrom(lm.Column.Table)
			joins.add(path, agg.Name, lm.AggColumn)
			return starRef(c), ""
		}
		return ColumnRef{}, fmt.Sprintf("column %s is not in its granularity", c)
	}

	for _, c := range b.Columns {
		ref, reason := resolve(c)
		if reason != "" {
			return nil, reason, nil
		}
		p.Columns = append(p.Columns, ref)
	}
	if b.Compound != nil {
		for _, c := range b.Compound.Columns {
			if _, ok := agg.Collapsed(c); !ok {
				return nil, fmt.Sprintf("compound predicate column %s is not collapsed", c), nil
			}
			ref, _ := resolve(c)
			p.Compound = append(p.Compound, ref)
		}
	}

	rolledUp := rolledUpLevels(agg, needed)
	rollup := len(rolledUp) > 0 || len(agg.IgnoreColumns) > 0
	for _, l := range agg.Levels {
		if !l.Collapsed {
			rollup = true
		}
	}
	if b.Compound != nil && rollup {
		return nil, "compound predicate needs an exact granularity match", nil
	}

	for _, m := range b.Measures {
		mm, ok := agg.Measure(m)
		if !ok {
			return nil, fmt.Sprintf("measure %q is not mapped", m.Name), nil
		}
		if !agg.HasColumn(mm.AggColumn) {
			return nil, "", domain.ErrConfiguration(agg.Name, "measure %q maps to column %q which the table does not have", m.Name, mm.AggColumn)
		}
		ref := MeasureRef{Measure: m, Table: agg.Name, Name: mm.AggColumn}
		if rollup {
			if m.Distinct() {
				if reason := distinctRollupReason(agg, m, rolledUp); reason != "" {
					return nil, reason, nil
				}
			}
			a, ok := mm.RollupAggregator()
			if !ok {
				return nil, fmt.Sprintf("measure %q cannot be rolled up", m.Name), nil
			}
			ref.Aggregator = a
		}
		p.Measures = append(p.Measures, ref)
	}

	p.Joins = joins.joins
	p.GroupBy = rollup
	return p, "", nil
}

// rolledUpLevels returns the collapsed levels of agg that the batch does not constrain.
func rolledUpLevels(agg *domain.AggregateDescriptor, needed map[domain.ColumnKey]bool) []domain.LevelMapping {
	var out []domain.LevelMapping
	for _, l := range agg.Levels {
		if l.Collapsed && !needed[l.Column.Key()] {
			out = append(out, l)
		}
	}
	return out
}

// distinctRollupReason checks that summing a distinct count over the rolled-up
// levels cannot count one member twice: every rolled-up collapsed level and every
// join-back level must hang off the fact column the measure counts.
func distinctRollupReason(agg *domain.AggregateDescriptor, m *domain.Measure, rolledUp []domain.LevelMapping) string {
	if !m.Column.Table.IsFact() || m.Column.Computed() {
		return fmt.Sprintf("distinct-count measure %q does not count a fact column", m.Name)
	}
	entity := m.Column.Name
	sameEntity := func(t *domain.Table) bool {
		root := t.Root()
		return root != nil && root.ParentKey == entity
	}
	for _, l := range rolledUp {
		if !sameEntity(l.Column.Table) {
			return fmt.Sprintf("distinct-count measure %q cannot roll up %s", m.Name, l.Column)
		}
	}
	for _, l := range agg.Levels {
		if l.Collapsed {
			continue
		}
		t := l.Column.Table
		if t.IsFact() || !t.Parent.IsFact() || t.ParentKey != entity {
			return fmt.Sprintf("distinct-count measure %q cannot roll up through %s", m.Name, l.Column)
		}
	}
	if len(agg.IgnoreColumns) > 0 {
		return fmt.Sprintf("distinct-count measure %q cannot roll up over ignored columns", m.Name)
	}
	return ""
}

// factPlan reads the fact table and joins every dimension table on the way to a
// constrained or measured column.
func factPlan(b Batch) *Plan {
	fact := b.Star.Fact
	p := &Plan{Star: b.Star, Source: fact.Name, GroupBy: true}
	joins := newJoinSet(fact)
	reach := func(t *domain.Table) {
		if t.IsFact() {
			return
		}
		root := t.Root()
		path, _ := t.PathFrom(root)
		joins.add(path, fact.Name, root.ParentKey)
	}

	for _, c := range b.Columns {
		reach(c.Table)
		p.Columns = append(p.Columns, starRef(c))
	}
	if b.Compound != nil {
		for _, c := range b.Compound.Columns {
			reach(c.Table)
			p.Compound = append(p.Compound, starRef(c))
		}
	}
	for _, m := range b.Measures {
		reach(m.Column.Table)
		p.Measures = append(p.Measures, MeasureRef{
			Measure:    m,
			Table:      m.Column.Table.Name,
			Name:       m.Column.Name,
			Expr:       m.Column.Expr,
			Aggregator: m.Aggregator,
		})
	}
	p.Joins = joins.joins
	return p
}
