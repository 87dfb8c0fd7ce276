// Package segment holds loaded cell values. A segment covers one measure over a set of
// columns, each restricted to the values that were loaded for it.
package segment

import (
	"strings"

	"aggnav/internal/domain"
)

const keySep = "\x1f"

// Segment is the result of one measure of one batch load. It is immutable once
// published to a Cache.
type Segment struct {
	Star     string
	Measure  string
	Columns  []*domain.Column
	Values   [][]domain.Literal
	Compound string

	axes []map[domain.Literal]struct{}
	data map[string]domain.Cell
}

// New creates an empty segment. values holds the loaded value set of each column.
func New(star, measure string, columns []*domain.Column, values [][]domain.Literal, compound string) *Segment {
	s := &Segment{
		Star:     star,
		Measure:  measure,
		Columns:  columns,
		Values:   make([][]domain.Literal, len(values)),
		Compound: compound,
		axes:     make([]map[domain.Literal]struct{}, len(values)),
		data:     make(map[string]domain.Cell),
	}
	for i, vs := range values {
		s.Values[i] = domain.SortedUnique(vs)
		s.axes[i] = make(map[domain.Literal]struct{}, len(s.Values[i]))
		for _, v := range s.Values[i] {
			s.axes[i][v] = struct{}{}
		}
	}
	return s
}

// Set records the value of one tuple. The tuple holds one literal per column.
func (s *Segment) Set(tuple []domain.Literal, c domain.Cell) {
	s.data[tupleKey(tuple)] = c
}

// Len returns the number of tuples with data.
func (s *Segment) Len() int { return len(s.data) }

// Key groups segments that may answer the same requests.
func (s *Segment) Key() string {
	return lookupKey(s.Star, s.Measure, domain.ColumnSetKey(s.Columns), s.Compound)
}

// identity distinguishes segments with the same key but different value sets.
func (s *Segment) identity() string {
	var b strings.Builder
	b.WriteString(s.Key())
	for i, c := range s.Columns {
		b.WriteString(keySep)
		b.WriteString(c.Key().String())
		b.WriteString("=")
		for _, v := range s.Values[i] {
			b.WriteString(v.Key())
			b.WriteString(",")
		}
	}
	return b.String()
}

// lookup answers req when every constrained value is in the loaded value set. A
// tuple inside the loaded sets with no data is a null cell.
func (s *Segment) lookup(req *domain.CellRequest) (domain.Cell, bool) {
	tuple := make([]domain.Literal, len(s.Columns))
	for i, c := range s.Columns {
		v, ok := req.Value(c)
		if !ok {
			return domain.Cell{}, false
		}
		if _, ok := s.axes[i][v]; !ok {
			return domain.Cell{}, false
		}
		tuple[i] = v
	}
	if cell, ok := s.data[tupleKey(tuple)]; ok {
		return cell, true
	}
	return domain.NullCell, true
}

func tupleKey(tuple []domain.Literal) string {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		parts[i] = v.Key()
	}
	return strings.Join(parts, keySep)
}

func lookupKey(star, measure, columns, compound string) string {
	return star + "|" + measure + "|" + columns + "|" + compound
}

// RequestKey returns the key of the segments that could answer req.
func RequestKey(req *domain.CellRequest) string {
	return lookupKey(req.Star.Name, req.Measure.Name, domain.ColumnSetKey(req.Columns()), req.CompoundKey())
}
