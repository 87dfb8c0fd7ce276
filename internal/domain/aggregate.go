package domain

// LevelMapping maps a star column to a column of an aggregate table.
//
// A collapsed mapping stores the star column's value directly in the aggregate.
// A non-collapsed mapping stores the key of a dimension table (Column must be that
// table's key column); the aggregate joins back to the table to reach its attributes.
type LevelMapping struct {
	Column    *Column
	AggColumn string
	Collapsed bool
}

// MeasureMapping maps a measure to a pre-aggregated column. Rollup overrides the
// aggregator used when rows of the aggregate are combined.
type MeasureMapping struct {
	Measure   *Measure
	AggColumn string
	Rollup    Aggregator
}

// RollupAggregator returns the aggregator applied when the aggregate is grouped further.
func (m MeasureMapping) RollupAggregator() (Aggregator, bool) {
	if m.Rollup != "" {
		return m.Rollup, true
	}
	return m.Measure.Aggregator.Rollup()
}

// AggregateDescriptor declares a pre-summarized table over a star's fact table.
// Descriptors are immutable once loaded.
type AggregateDescriptor struct {
	Name      string
	Levels    []LevelMapping
	Measures  []MeasureMapping
	FactCount string
	// IgnoreColumns are physical columns that take no part in matching.
	IgnoreColumns []string
	// Columns lists the physical columns of the table when known. Mappings are
	// checked against it.
	Columns []string
	// ApproxRowCount replaces the row count probe when positive.
	ApproxRowCount int64
}

// Collapsed returns the collapsed mapping for a star column.
func (a *AggregateDescriptor) Collapsed(c *Column) (LevelMapping, bool) {
	for _, l := range a.Levels {
		if l.Collapsed && l.Column.Key() == c.Key() {
			return l, true
		}
	}
	return LevelMapping{}, false
}

// JoinBack returns the non-collapsed mapping through which column c can be reached.
func (a *AggregateDescriptor) JoinBack(c *Column) (LevelMapping, bool) {
	for _, l := range a.Levels {
		if l.Collapsed {
			continue
		}
		if _, ok := c.Table.PathFrom(l.Column.Table); ok {
			return l, true
		}
	}
	return LevelMapping{}, false
}

// Measure returns the mapping for measure m. A count measure without an explicit
// mapping is answered by summing the fact count column.
func (a *AggregateDescriptor) Measure(m *Measure) (MeasureMapping, bool) {
	for _, mm := range a.Measures {
		if mm.Measure == m {
			return mm, true
		}
	}
	if m.Aggregator == AggCount && a.FactCount != "" {
		return MeasureMapping{Measure: m, AggColumn: a.FactCount, Rollup: AggSum}, true
	}
	return MeasureMapping{}, false
}

// HasColumn reports whether the aggregate declares a physical column. Undeclared
// column lists accept any name.
func (a *AggregateDescriptor) HasColumn(name string) bool {
	if len(a.Columns) == 0 {
		return true
	}
	for _, c := range a.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Validate checks every mapping against the declared columns of the aggregate.
func (a *AggregateDescriptor) Validate() error {
	for _, mm := range a.Measures {
		if !a.HasColumn(mm.AggColumn) {
			return ErrConfiguration(a.Name, "measure %q maps to column %q which the table does not have", mm.Measure.Name, mm.AggColumn)
		}
	}
	for _, l := range a.Levels {
		if !a.HasColumn(l.AggColumn) {
			return ErrConfiguration(a.Name, "level %s maps to column %q which the table does not have", l.Column, l.AggColumn)
		}
		if !l.Collapsed && l.Column.Name != l.Column.Table.Key {
			return ErrConfiguration(a.Name, "non-collapsed level %s must reference the key of table %s", l.Column, l.Column.Table.Name)
		}
	}
	if a.FactCount != "" && !a.HasColumn(a.FactCount) {
		return ErrConfiguration(a.Name, "fact count column %q is not declared", a.FactCount)
	}
	for _, c := range a.IgnoreColumns {
		if !a.HasColumn(c) {
			return ErrConfiguration(a.Name, "ignored column %q is not declared", c)
		}
	}
	return nil
}
