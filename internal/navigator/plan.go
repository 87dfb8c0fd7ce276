// Package navigator chooses the table that answers a batch of cell requests: the
// cheapest compatible aggregate table, or the fact table.
package navigator

import (
	"aggnav/internal/domain"
)

// Batch is the shape shared by a group of cell requests.
type Batch struct {
	Star     *domain.Star
	Columns  []*domain.Column
	Compound *domain.Predicate
	Measures []*domain.Measure
}

// ColumnRef tells where a star column is read in the chosen source.
type ColumnRef struct {
	Column *domain.Column
	Table  string
	Name   string
	// Expr is set for key expressions read from star tables.
	Expr string
}

// MeasureRef is the projected measure expression. An empty Aggregator means the
// column is projected as stored.
type MeasureRef struct {
	Measure    *domain.Measure
	Table      string
	Name       string
	Expr       string
	Aggregator domain.Aggregator
}

// Join brings a dimension table into FROM: LeftTable.LeftKey = Table.Name.Table.Key.
type Join struct {
	Table     *domain.Table
	LeftTable string
	LeftKey   string
}

// Rejection records why an aggregate table was not used.
type Rejection struct {
	Aggregate string
	Reason    string
}

// Plan is the navigator's decision for one batch.
type Plan struct {
	Star *domain.Star
	// Aggregate is nil when the plan reads the fact table (or a dimension table for
	// member listings).
	Aggregate *domain.AggregateDescriptor
	Source    string
	Columns   []ColumnRef
	Compound  []ColumnRef
	Measures  []MeasureRef
	Joins     []Join
	// GroupBy is false only when the source already holds one row per requested tuple.
	GroupBy  bool
	Rejected []Rejection
}

// UsesAggregate reports whether the plan reads an aggregate table.
func (p *Plan) UsesAggregate() bool { return p.Aggregate != nil }

// joinSet accumulates joins in the order tables are first needed.
type joinSet struct {
	seen  map[*domain.Table]bool
	joins []Join
}

func newJoinSet(source *domain.Table) *joinSet {
	s := &joinSet{seen: make(map[*domain.Table]bool)}
	if source != nil {
		s.seen[source] = true
	}
	return s
}

// add joins every table of path not yet present. The first table joins to
// leftTable.leftKey, the rest to their parent.
func (s *joinSet) add(path []*domain.Table, leftTable, leftKey string) {
	for i, t := range path {
		if i > 0 {
			leftTable, leftKey = path[i-1].Name, t.ParentKey
		}
		if s.seen[t] {
			continue
		}
		s.seen[t] = true
		s.joins = append(s.joins, Join{Table: t, LeftTable: leftTable, LeftKey: leftKey})
	}
}

func starRef(c *domain.Column) ColumnRef {
	return ColumnRef{Column: c, Table: c.Table.Name, Name: c.Name, Expr: c.Expr}
}
