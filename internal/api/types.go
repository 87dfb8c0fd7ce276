package api

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"aggnav/internal/domain"
	"aggnav/internal/navigator"
)

// Constraint fixes a column ("table.column" or "Dimension.Level") to a value.
// Value is a JSON string, number or null.
type Constraint struct {
	Column string          `json:"column"`
	Value  json.RawMessage `json:"value"`
}

// Compound is a set of value tuples over Columns.
type Compound struct {
	Columns []string            `json:"columns"`
	Tuples  [][]json.RawMessage `json:"tuples"`
}

// Cell asks for one measure.
type Cell struct {
	Measure     string       `json:"measure"`
	Constraints []Constraint `json:"constraints,omitempty"`
	Compound    *Compound    `json:"compound,omitempty"`
}

// CellsRequest is the body of /v1/cells and /v1/explain.
type CellsRequest struct {
	Star  string `json:"star"`
	Cells []Cell `json:"cells"`
}

// CellValue is one answered cell. Value is null when no fact row matched.
type CellValue struct {
	Request string           `json:"request"`
	Value   *decimal.Decimal `json:"value"`
}

// CellsResponse answers a CellsRequest in request order.
type CellsResponse struct {
	Generation string      `json:"generation"`
	Cells      []CellValue `json:"cells"`
}

// Rejection explains why an aggregate table was skipped.
type Rejection struct {
	Aggregate string `json:"aggregate"`
	Reason    string `json:"reason"`
}

// PlanView describes the table a statement reads.
type PlanView struct {
	Source    string      `json:"source"`
	Aggregate bool        `json:"aggregate"`
	Joins     []string    `json:"joins,omitempty"`
	GroupBy   bool        `json:"group_by"`
	Rejected  []Rejection `json:"rejected,omitempty"`
	RowCount  *int64      `json:"row_count,omitempty"`
}

// LoadView is one planned statement.
type LoadView struct {
	Plan     PlanView `json:"plan"`
	SQL      string   `json:"sql"`
	Requests []string `json:"requests"`
}

// ExplainResponse lists the statements a CellsRequest would issue.
type ExplainResponse struct {
	Generation string     `json:"generation"`
	Loads      []LoadView `json:"loads"`
}

// TuplesRequest is the body of /v1/tuples.
type TuplesRequest struct {
	Star        string       `json:"star"`
	Columns     []string     `json:"columns"`
	Constraints []Constraint `json:"constraints,omitempty"`
	// Explain returns the plan and SQL without running it.
	Explain bool `json:"explain,omitempty"`
}

// TuplesResponse lists distinct tuples; nulls are JSON null.
type TuplesResponse struct {
	Generation string      `json:"generation"`
	Plan       PlanView    `json:"plan"`
	SQL        string      `json:"sql"`
	Tuples     [][]*string `json:"tuples,omitempty"`
}

// CardinalityResponse is the distinct value count of one column.
type CardinalityResponse struct {
	Star        string `json:"star"`
	Column      string `json:"column"`
	Cardinality int64  `json:"cardinality"`
}

// SessionResponse identifies a session and its generation.
type SessionResponse struct {
	ID         string `json:"id"`
	Generation string `json:"generation"`
}

// ReloadResponse reports the installed generation.
type ReloadResponse struct {
	Generation string `json:"generation"`
	Stars      int    `json:"stars"`
}

// ResolveCells turns a CellsRequest into cell requests against schema.
func ResolveCells(schema *domain.Schema, body CellsRequest) ([]*domain.CellRequest, error) {
	star, err := schema.Star(body.Star)
	if err != nil {
		return nil, err
	}
	if len(body.Cells) == 0 {
		return nil, domain.ErrValidation("at least one cell is required")
	}
	reqs := make([]*domain.CellRequest, 0, len(body.Cells))
	for _, c := range body.Cells {
		req, err := resolveCell(star, c)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func resolveCell(star *domain.Star, c Cell) (*domain.CellRequest, error) {
	m, err := star.LookupMeasure(c.Measure)
	if err != nil {
		return nil, err
	}
	req := domain.NewCellRequest(star, m)
	constraints, err := resolveConstraints(star, c.Constraints)
	if err != nil {
		return nil, err
	}
	for _, con := range constraints {
		if err := req.Constrain(con.Column, con.Value); err != nil {
			return nil, err
		}
	}
	if c.Compound != nil {
		p, err := resolveCompound(star, *c.Compound)
		if err != nil {
			return nil, err
		}
		if err := req.ConstrainCompound(p); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func resolveConstraints(star *domain.Star, in []Constraint) ([]domain.Constraint, error) {
	out := make([]domain.Constraint, 0, len(in))
	for _, con := range in {
		col, err := star.ResolveColumn(con.Column)
		if err != nil {
			return nil, err
		}
		v, err := parseValue(col, con.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Constraint{Column: col, Value: v})
	}
	return out, nil
}

func resolveColumns(star *domain.Star, refs []string) ([]*domain.Column, error) {
	cols := make([]*domain.Column, 0, len(refs))
	for _, ref := range refs {
		col, err := star.ResolveColumn(ref)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func resolveCompound(star *domain.Star, c Compound) (domain.Predicate, error) {
	cols, err := resolveColumns(star, c.Columns)
	if err != nil {
		return domain.Predicate{}, err
	}
	tuples := make([][]domain.Literal, len(c.Tuples))
	for i, raw := range c.Tuples {
		if len(raw) != len(cols) {
			return domain.Predicate{}, domain.ErrValidation("compound tuple %d has %d values, want %d", i, len(raw), len(cols))
		}
		tuple := make([]domain.Literal, len(raw))
		for j, v := range raw {
			if tuple[j], err = parseValue(cols[j], v); err != nil {
				return domain.Predicate{}, err
			}
		}
		tuples[i] = tuple
	}
	return domain.CompoundPredicate(cols, tuples)
}

func parseValue(col *domain.Column, raw json.RawMessage) (domain.Literal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.Null, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.Literal{}, domain.ErrValidation("invalid value for %s: %v", col, err)
		}
		return domain.ParseLiteral(col.Type, s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return domain.Literal{}, domain.ErrValidation("value for %s must be a string, number or null", col)
	}
	return domain.ParseLiteral(col.Type, n.String())
}

func planView(p *navigator.Plan) PlanView {
	v := PlanView{Source: p.Source, Aggregate: p.UsesAggregate(), GroupBy: p.GroupBy}
	for _, j := range p.Joins {
		v.Joins = append(v.Joins, j.Table.Name)
	}
	for _, rej := range p.Rejected {
		v.Rejected = append(v.Rejected, Rejection{Aggregate: rej.Aggregate, Reason: rej.Reason})
	}
	return v
}

func tupleView(tuples [][]domain.Literal) [][]*string {
	out := make([][]*string, len(tuples))
	for i, t := range tuples {
		row := make([]*string, len(t))
		for j, v := range t {
			if !v.Null {
				text := v.Text
				row[j] = &text
			}
		}
		out[i] = row
	}
	return out
}
