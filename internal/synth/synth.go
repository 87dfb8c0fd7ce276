// Package synth turns navigator plans into SQL text for a dialect.
package synth

import (
	"fmt"
	"strings"

	"aggnav/internal/dialect"
	"aggnav/internal/domain"
	"aggnav/internal/navigator"
	"aggnav/internal/sqlgen"
)

// Synthesizer renders statements for one dialect.
type Synthesizer struct {
	dialect *dialect.Dialect
	pretty  bool
}

// New creates a synthesizer. Pretty output splits clauses over several lines.
func New(d *dialect.Dialect, pretty bool) *Synthesizer {
	if d == nil {
		d = dialect.GenericDialect
	}
	return &Synthesizer{dialect: d, pretty: pretty}
}

// Dialect returns the target dialect.
func (s *Synthesizer) Dialect() *dialect.Dialect { return s.dialect }

// SegmentSQL renders the statement that loads a batch. values holds the literals
// for each plan column in order; an empty set leaves the column unconstrained.
// Columns are projected as c0..cN and measures as m0..mN.
func (s *Synthesizer) SegmentSQL(p *navigator.Plan, values [][]domain.Literal, compound *domain.Predicate) (string, error) {
	if len(values) != len(p.Columns) {
		return "", fmt.Errorf("segment sql: %d value sets for %d columns", len(values), len(p.Columns))
	}
	if (compound == nil) != (len(p.Compound) == 0) {
		return "", fmt.Errorf("segment sql: compound predicate does not match plan")
	}

	q := &sqlgen.Select{}
	exprs := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		exprs[i] = s.columnExpr(c)
		q.Item(exprs[i], s.alias('c', i))
	}
	for i, m := range p.Measures {
		q.Item(m.Aggregator.Apply(s.measureExpr(m)), s.alias('m', i))
	}
	s.from(q, p)

	joins := s.joins(q, p)
	for i, vs := range values {
		joins.reach(p.Columns[i].Table)
		if cond := s.inList(exprs[i], vs); cond != "" {
			q.Where(cond)
		}
	}
	if compound != nil {
		cond, err := s.compound(p.Compound, compound)
		if err != nil {
			return "", err
		}
		for _, c := range p.Compound {
			joins.reach(c.Table)
		}
		q.Where(cond)
	}
	joins.rest()

	if p.GroupBy {
		for _, e := range exprs {
			q.GroupBy(e)
		}
	}
	return q.Render(s.pretty), nil
}

// TupleSQL renders a member listing. The first listed plan columns are projected and
// sorted with nulls last; the remaining plan columns are constrained to constraints.
func (s *Synthesizer) TupleSQL(p *navigator.Plan, listed int, constraints []domain.Literal) (string, error) {
	if listed <= 0 || listed > len(p.Columns) {
		return "", fmt.Errorf("tuple sql: %d listed columns out of %d", listed, len(p.Columns))
	}
	if len(constraints) != len(p.Columns)-listed {
		return "", fmt.Errorf("tuple sql: %d constraint values for %d constrained columns", len(constraints), len(p.Columns)-listed)
	}

	q := &sqlgen.Select{}
	exprs := make([]string, listed)
	for i := range listed {
		exprs[i] = s.columnExpr(p.Columns[i])
		q.Item(exprs[i], s.alias('c', i))
	}
	s.from(q, p)

	joins := s.joins(q, p)
	for i := range listed {
		joins.reach(p.Columns[i].Table)
	}
	for i, v := range constraints {
		c := p.Columns[listed+i]
		joins.reach(c.Table)
		q.Where(s.equals(s.columnExpr(c), v))
	}
	joins.rest()
	for _, e := range exprs {
		q.GroupBy(e)
	}
	for _, e := range exprs {
		q.OrderBy(s.dialect.NullOrder(e))
	}
	return q.Render(s.pretty), nil
}

// CardinalitySQL renders the distinct-count probe for a column. Key expressions are
// counted through a derived table.
func (s *Synthesizer) CardinalitySQL(c *domain.Column) string {
	table := c.Table.Name
	if !c.Computed() {
		q := &sqlgen.Select{}
		q.Item("count(distinct "+s.dialect.ColumnExpr(c)+")", s.alias('c', 0))
		q.From(s.dialect.TableRef(table, table))
		return q.Render(s.pretty)
	}

	inner := &sqlgen.Select{}
	inner.Item("distinct "+c.Expr, s.alias('c', 0))
	inner.From(s.dialect.TableRef(table, table))

	alias := " " + s.dialect.QuoteIdent("init")
	if s.dialect.TableAliasAs {
		alias = " as" + alias
	}
	q := &sqlgen.Select{}
	q.Item("count(*)", "")
	q.From("(" + inner.Render(false) + ")" + alias)
	return q.Render(s.pretty)
}

// RowCountSQL renders the row count probe for a table.
func (s *Synthesizer) RowCountSQL(table string) string {
	q := &sqlgen.Select{}
	q.Item("count(*)", s.alias('c', 0))
	q.From(s.dialect.TableRef(table, table))
	return q.Render(s.pretty)
}

func (s *Synthesizer) from(q *sqlgen.Select, p *navigator.Plan) {
	q.From(s.dialect.TableRef(p.Source, p.Source))
	for _, j := range p.Joins {
		q.From(s.dialect.TableRef(j.Table.Name, j.Table.Name))
	}
}

// alias names the projected item c0..cN or m0..mN.
func (s *Synthesizer) alias(prefix byte, i int) string {
	return s.dialect.QuoteIdent(fmt.Sprintf("%c%d", prefix, i))
}

// joinWriter adds the join conditions of a plan to a statement, each once, so that a
// table's path from the source precedes the first predicate on one of its columns.
type joinWriter struct {
	s       *Synthesizer
	q       *sqlgen.Select
	joins   []navigator.Join
	byTable map[string]navigator.Join
	done    map[string]bool
}

func (s *Synthesizer) joins(q *sqlgen.Select, p *navigator.Plan) *joinWriter {
	w := &joinWriter{
		s:       s,
		q:       q,
		joins:   p.Joins,
		byTable: make(map[string]navigator.Join, len(p.Joins)),
		done:    make(map[string]bool, len(p.Joins)),
	}
	for _, j := range p.Joins {
		w.byTable[j.Table.Name] = j
	}
	return w
}

// reach emits the conditions on the path from the source to table.
func (w *joinWriter) reach(table string) {
	if w.done[table] {
		return
	}
	w.done[table] = true
	j, ok := w.byTable[table]
	if !ok || j.LeftKey == "" {
		return
	}
	w.reach(j.LeftTable)
	d := w.s.dialect
	w.q.Where(d.QuoteColumn(j.LeftTable, j.LeftKey) + " = " + d.QuoteColumn(j.Table.Name, j.Table.Key))
}

// rest emits the conditions no predicate has pulled in yet.
func (w *joinWriter) rest() {
	for _, j := range w.joins {
		w.reach(j.Table.Name)
	}
}

func (s *Synthesizer) columnExpr(c navigator.ColumnRef) string {
	if c.Expr != "" {
		return c.Expr
	}
	return s.dialect.QuoteColumn(c.Table, c.Name)
}

func (s *Synthesizer) measureExpr(m navigator.MeasureRef) string {
	if m.Expr != "" {
		return m.Expr
	}
	return s.dialect.QuoteColumn(m.Table, m.Name)
}

func (s *Synthesizer) equals(expr string, v domain.Literal) string {
	if v.Null {
		return expr + " is null"
	}
	return expr + " = " + s.dialect.FormatLiteral(v)
}

// inList renders expr = v for one value and expr in (...) for several. A null among
// several values becomes a separate "is null" disjunct.
func (s *Synthesizer) inList(expr string, values []domain.Literal) string {
	values = domain.SortedUnique(values)
	switch len(values) {
	case 0:
		return ""
	case 1:
		return s.equals(expr, values[0])
	}

	hasNull := false
	items := make([]string, 0, len(values))
	for _, v := range values {
		if v.Null {
			hasNull = true
			continue
		}
		items = append(items, s.dialect.FormatLiteral(v))
	}
	var cond string
	if len(items) == 1 {
		cond = expr + " = " + items[0]
	} else {
		cond = expr + " in (" + strings.Join(items, ", ") + ")"
	}
	if hasNull {
		return "(" + cond + " or " + expr + " is null)"
	}
	return cond
}

// compound renders a tuple predicate as row-value IN where the dialect allows it and
// as a disjunction of conjunctions otherwise.
func (s *Synthesizer) compound(refs []navigator.ColumnRef, p *domain.Predicate) (string, error) {
	if len(refs) != len(p.Columns) {
		return "", fmt.Errorf("compound predicate has %d columns, plan has %d", len(p.Columns), len(refs))
	}
	exprs := make([]string, len(refs))
	for i, r := range refs {
		exprs[i] = s.columnExpr(r)
	}

	if len(exprs) == 1 {
		values := make([]domain.Literal, len(p.Tuples))
		for i, t := range p.Tuples {
			values[i] = t[0]
		}
		return s.inList(exprs[0], values), nil
	}

	conj := func(t []domain.Literal) string {
		parts := make([]string, len(t))
		for i, v := range t {
			parts[i] = s.equals(exprs[i], v)
		}
		return "(" + strings.Join(parts, " and ") + ")"
	}
	if len(p.Tuples) == 1 {
		return conj(p.Tuples[0]), nil
	}

	if s.dialect.RowValueIn && !hasNull(p.Tuples) {
		rows := make([]string, len(p.Tuples))
		for i, t := range p.Tuples {
			vals := make([]string, len(t))
			for j, v := range t {
				vals[j] = s.dialect.FormatLiteral(v)
			}
			rows[i] = "(" + strings.Join(vals, ", ") + ")"
		}
		return "((" + strings.Join(exprs, ", ") + ") in (" + strings.Join(rows, ", ") + "))", nil
	}

	disj := make([]string, len(p.Tuples))
	for i, t := range p.Tuples {
		disj[i] = conj(t)
	}
	return "(" + strings.Join(disj, " or ") + ")", nil
}

func hasNull(tuples [][]domain.Literal) bool {
	for _, t := range tuples {
		for _, v := range t {
			if v.Null {
				return true
			}
		}
	}
	return false
}
