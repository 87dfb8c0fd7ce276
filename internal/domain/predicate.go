package domain

import (
	"sort"
	"strings"
)

// PredicateKind tags the closed set of predicate shapes.
type PredicateKind int

const (
	// PredValue is column = literal.
	PredValue PredicateKind = iota
	// PredList is column IN (literals).
	PredList
	// PredCompound is (col1, col2, ...) IN (tuples), kept apart from per-column predicates.
	PredCompound
)

func (k PredicateKind) String() string {
	switch k {
	case PredValue:
		return "value"
	case PredList:
		return "list"
	case PredCompound:
		return "compound"
	default:
		return "unknown"
	}
}

// Predicate is a constraint on one or more columns.
type Predicate struct {
	Kind PredicateKind
	// Column and Values are set for value and list predicates.
	Column *Column
	Values []Literal
	// Columns and Tuples are set for compound predicates. Each tuple holds one
	// literal per column.
	Columns []*Column
	Tuples  [][]Literal
}

// ValuePredicate returns column = value.
func ValuePredicate(c *Column, v Literal) Predicate {
	return Predicate{Kind: PredValue, Column: c, Values: []Literal{v}}
}

// ListPredicate returns column IN (values) with values sorted and deduplicated.
// A single value collapses to a value predicate.
func ListPredicate(c *Column, values []Literal) Predicate {
	values = SortedUnique(values)
	if len(values) == 1 {
		return ValuePredicate(c, values[0])
	}
	return Predicate{Kind: PredList, Column: c, Values: values}
}

// CompoundPredicate returns a tuple predicate. Tuples keep their given order.
func CompoundPredicate(columns []*Column, tuples [][]Literal) (Predicate, error) {
	if len(columns) == 0 {
		return Predicate{}, ErrValidation("compound predicate needs at least one column")
	}
	if len(tuples) == 0 {
		return Predicate{}, ErrValidation("compound predicate needs at least one tuple")
	}
	for _, t := range tuples {
		if len(t) != len(columns) {
			return Predicate{}, ErrValidation("compound tuple has %d values, want %d", len(t), len(columns))
		}
	}
	return Predicate{Kind: PredCompound, Columns: columns, Tuples: tuples}, nil
}

// ConstrainedColumns returns the columns the predicate touches.
func (p Predicate) ConstrainedColumns() []*Column {
	switch p.Kind {
	case PredValue, PredList:
		return []*Column{p.Column}
	case PredCompound:
		return p.Columns
	default:
		return nil
	}
}

// Key is a structural identity: equal keys mean the same columns, tuples and order.
func (p Predicate) Key() string {
	var b strings.Builder
	b.WriteString(p.Kind.String())
	switch p.Kind {
	case PredValue, PredList:
		b.WriteString("|")
		b.WriteString(p.Column.Key().String())
		for _, v := range p.Values {
			b.WriteString("|")
			b.WriteString(v.Key())
		}
	case PredCompound:
		for _, c := range p.Columns {
			b.WriteString("|")
			b.WriteString(c.Key().String())
		}
		for _, t := range p.Tuples {
			b.WriteString("|(")
			for i, v := range t {
				if i > 0 {
					b.WriteString(",")
				}
				b.WriteString(v.Key())
			}
			b.WriteString(")")
		}
	}
	return b.String()
}

// SortedUnique returns values ordered by Compare with duplicates removed.
func SortedUnique(values []Literal) []Literal {
	out := make([]Literal, 0, len(values))
	seen := make(map[Literal]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}
