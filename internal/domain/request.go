package domain

import (
	"context"
	"sort"
	"strings"
)

// Constraint fixes one column of a cell request to a single value.
type Constraint struct {
	Column *Column
	Value  Literal
}

// CellRequest asks for one measure under a set of constraints. Constraints keep the
// order in which they were added.
type CellRequest struct {
	Star        *Star
	Measure     *Measure
	Constraints []Constraint
	// Compound is an optional tuple predicate applied on top of the constraints.
	Compound *Predicate
}

// NewCellRequest starts a request for measure on star.
func NewCellRequest(star *Star, measure *Measure) *CellRequest {
	return &CellRequest{Star: star, Measure: measure}
}

// Constrain appends a column = value constraint.
func (r *CellRequest) Constrain(c *Column, v Literal) error {
	for _, existing := range r.Constraints {
		if existing.Column.Key() == c.Key() {
			return ErrValidation("column %s is constrained twice", c)
		}
	}
	r.Constraints = append(r.Constraints, Constraint{Column: c, Value: v})
	return nil
}

// ConstrainCompound attaches a compound predicate. A list predicate is folded into a
// single-column compound predicate so that the cell aggregates over the whole list.
func (r *CellRequest) ConstrainCompound(p Predicate) error {
	if r.Compound != nil {
		return ErrValidation("request already carries a compound predicate")
	}
	switch p.Kind {
	case PredCompound:
	case PredList:
		tuples := make([][]Literal, len(p.Values))
		for i, v := range p.Values {
			tuples[i] = []Literal{v}
		}
		p = Predicate{Kind: PredCompound, Columns: []*Column{p.Column}, Tuples: tuples}
	case PredValue:
		return r.Constrain(p.Column, p.Values[0])
	default:
		return ErrValidation("unsupported predicate kind %s", p.Kind)
	}
	r.Compound = &p
	return nil
}

// Columns returns the constrained columns in request order.
func (r *CellRequest) Columns() []*Column {
	cols := make([]*Column, len(r.Constraints))
	for i, c := range r.Constraints {
		cols[i] = c.Column
	}
	return cols
}

// Value returns the constraint value for column c.
func (r *CellRequest) Value(c *Column) (Literal, bool) {
	for _, con := range r.Constraints {
		if con.Column.Key() == c.Key() {
			return con.Value, true
		}
	}
	return Literal{}, false
}

// CompoundKey returns the structural identity of the compound predicate, or "".
func (r *CellRequest) CompoundKey() string {
	if r.Compound == nil {
		return ""
	}
	return r.Compound.Key()
}

// ColumnSetKey identifies the constrained column set independent of order.
func ColumnSetKey(cols []*Column) string {
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.Key().String()
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// BatchKey groups requests that one statement can answer: same star, same
// constrained column set, same compound predicate.
func (r *CellRequest) BatchKey() string {
	return r.Star.Name + "|" + ColumnSetKey(r.Columns()) + "|" + r.CompoundKey()
}

func (r *CellRequest) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(r.Measure.Name)
	b.WriteString("]")
	for _, c := range r.Constraints {
		b.WriteString(" ")
		b.WriteString(c.Column.Expression())
		b.WriteString("=")
		b.WriteString(c.Value.String())
	}
	if r.Compound != nil {
		b.WriteString(" ")
		b.WriteString(r.Compound.Key())
	}
	return b.String()
}

// Executor runs a SQL statement and returns its rows as ordered column values.
type Executor interface {
	Query(ctx context.Context, query string) ([][]any, error)
}
