package domain

import (
	"strings"
)

// Table is a physical relation of a star. The fact table has no parent; every
// dimension table joins to its parent on Parent.ParentKey = Table.Key.
type Table struct {
	Name      string
	Parent    *Table
	ParentKey string
	Key       string
}

// IsFact reports whether t is the root of its star.
func (t *Table) IsFact() bool { return t.Parent == nil }

// Root returns the table directly below the fact table on the path to t.
// It is nil for the fact table itself.
func (t *Table) Root() *Table {
	if t.IsFact() {
		return nil
	}
	cur := t
	for !cur.Parent.IsFact() {
		cur = cur.Parent
	}
	return cur
}

// PathFrom returns the tables from ancestor (inclusive) down to t (inclusive).
// ok is false when ancestor is not on t's path.
func (t *Table) PathFrom(ancestor *Table) (path []*Table, ok bool) {
	for cur := t; cur != nil; cur = cur.Parent {
		path = append(path, cur)
		if cur == ancestor {
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, true
		}
	}
	return nil, false
}

// ColumnKey is the identity of a column: owning table plus expression.
type ColumnKey struct {
	Table string
	Expr  string
}

func (k ColumnKey) String() string { return k.Table + ":" + k.Expr }

// Column is a constrainable or measured column of a star.
type Column struct {
	Table *Table
	Name  string
	// Expr is a raw SQL key expression. Empty for plain columns.
	Expr string
	Type DataType
}

// Computed reports whether the column is a key expression rather than a plain column.
func (c *Column) Computed() bool { return c.Expr != "" }

// Expression is the unquoted table-qualified expression of the column.
func (c *Column) Expression() string {
	if c.Expr != "" {
		return c.Expr
	}
	return c.Table.Name + "." + c.Name
}

// Key returns the column identity.
func (c *Column) Key() ColumnKey {
	return ColumnKey{Table: c.Table.Name, Expr: c.Expression()}
}

func (c *Column) String() string { return c.Expression() }

// Aggregator names how a measure is computed.
type Aggregator string

const (
	AggSum           Aggregator = "sum"
	AggCount         Aggregator = "count"
	AggDistinctCount Aggregator = "distinct-count"
	AggAvg           Aggregator = "avg"
	AggMin           Aggregator = "min"
	AggMax           Aggregator = "max"
)

// ParseAggregator validates a schema aggregator name.
func ParseAggregator(s string) (Aggregator, error) {
	switch a := Aggregator(strings.ToLower(s)); a {
	case AggSum, AggCount, AggDistinctCount, AggAvg, AggMin, AggMax:
		return a, nil
	case "distinct count", "count-distinct":
		return AggDistinctCount, nil
	default:
		return "", ErrValidation("unknown aggregator %q", s)
	}
}

// Apply wraps a SQL expression in the aggregate function.
func (a Aggregator) Apply(expr string) string {
	switch a {
	case AggDistinctCount:
		return "count(distinct " + expr + ")"
	case "":
		return expr
	default:
		return string(a) + "(" + expr + ")"
	}
}

// Rollup returns the aggregator that combines pre-aggregated values of a.
// ok is false when partial results cannot be combined.
func (a Aggregator) Rollup() (Aggregator, bool) {
	switch a {
	case AggSum, AggCount, AggDistinctCount:
		return AggSum, true
	case AggMin:
		return AggMin, true
	case AggMax:
		return AggMax, true
	default:
		return "", false
	}
}

// Measure is a named aggregate over a column.
type Measure struct {
	Name       string
	Column     *Column
	Aggregator Aggregator
}

// Distinct reports whether the measure counts distinct values.
func (m *Measure) Distinct() bool { return m.Aggregator == AggDistinctCount }

// Level is a named attribute of a dimension backed by one column.
type Level struct {
	Name   string
	Column *Column
}

// Dimension groups levels for reference by name.
type Dimension struct {
	Name   string
	Levels []*Level
}

// Star is one fact table with its dimension tables, measures and aggregate tables.
// A star is immutable once built.
type Star struct {
	Name       string
	Fact       *Table
	Tables     []*Table
	Columns    []*Column
	Dimensions []*Dimension
	Measures   []*Measure
	Aggregates []*AggregateDescriptor
}

// Table returns the table with the given name.
func (s *Star) Table(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// LookupColumn returns a column by table and column name.
func (s *Star) LookupColumn(table, name string) (*Column, error) {
	for _, c := range s.Columns {
		if c.Table.Name == table && c.Name == name {
			return c, nil
		}
	}
	return nil, ErrNotFound("column %s.%s not found in star %q", table, name, s.Name)
}

// LookupMeasure returns a measure by name.
func (s *Star) LookupMeasure(name string) (*Measure, error) {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "[Measures].["), "]")
	for _, m := range s.Measures {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, ErrNotFound("measure %q not found in star %q", name, s.Name)
}

// ResolveColumn accepts "table.column" or "Dimension.Level" references.
func (s *Star) ResolveColumn(ref string) (*Column, error) {
	left, right, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, ErrValidation("column reference %q must be table.column or dimension.level", ref)
	}
	if c, err := s.LookupColumn(left, right); err == nil {
		return c, nil
	}
	for _, d := range s.Dimensions {
		if d.Name != left {
			continue
		}
		for _, l := range d.Levels {
			if l.Name == right {
				return l.Column, nil
			}
		}
	}
	return nil, ErrNotFound("column %q not found in star %q", ref, s.Name)
}

// Aggregate returns a registered aggregate descriptor by table name.
func (s *Star) Aggregate(name string) (*AggregateDescriptor, bool) {
	for _, a := range s.Aggregates {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Schema is the set of stars served by one generation of the engine.
type Schema struct {
	Name  string
	Stars []*Star
}

// Star returns a star by name.
func (s *Schema) Star(name string) (*Star, error) {
	for _, st := range s.Stars {
		if st.Name == name {
			return st, nil
		}
	}
	return nil, ErrNotFound("star %q not found", name)
}
