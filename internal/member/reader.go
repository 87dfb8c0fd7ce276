// Package member lists the distinct value tuples of level columns.
package member

import (
	"context"
	"fmt"
	"log/slog"

	"aggnav/internal/domain"
	"aggnav/internal/metrics"
	"aggnav/internal/navigator"
	"aggnav/internal/synth"
)

// TupleRequest asks for the distinct tuples of Columns where every constraint holds.
type TupleRequest struct {
	Star        *domain.Star
	Columns     []*domain.Column
	Constraints []domain.Constraint
}

// TupleResult is a member listing with the plan that produced it.
type TupleResult struct {
	Plan   *navigator.Plan
	SQL    string
	Tuples [][]domain.Literal
}

// Reader runs member listings.
type Reader struct {
	navigator *navigator.Navigator
	synth     *synth.Synthesizer
	exec      domain.Executor
	logger    *slog.Logger
	metrics   *metrics.Engine
}

// NewReader creates a member reader.
func NewReader(nav *navigator.Navigator, s *synth.Synthesizer, exec domain.Executor, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{navigator: nav, synth: s, exec: exec, logger: logger}
}

// SetMetrics sets the instruments used to count statements.
func (r *Reader) SetMetrics(m *metrics.Engine) { r.metrics = m }

// Explain plans a listing without executing it.
func (r *Reader) Explain(req TupleRequest) (*TupleResult, error) {
	if req.Star == nil {
		return nil, domain.ErrValidation("tuple request has no star")
	}
	constrained := make([]*domain.Column, len(req.Constraints))
	values := make([]domain.Literal, len(req.Constraints))
	for i, c := range req.Constraints {
		constrained[i] = c.Column
		values[i] = c.Value
	}
	p, err := r.navigator.NavigateTuples(req.Star, req.Columns, constrained)
	if err != nil {
		return nil, fmt.Errorf("navigate tuples: %w", err)
	}
	query, err := r.synth.TupleSQL(p, len(req.Columns), values)
	if err != nil {
		return nil, fmt.Errorf("synthesize tuples: %w", err)
	}
	return &TupleResult{Plan: p, SQL: query}, nil
}

// ReadTuples lists the distinct tuples in nulls-last order.
func (r *Reader) ReadTuples(ctx context.Context, req TupleRequest) (*TupleResult, error) {
	res, err := r.Explain(req)
	if err != nil {
		return nil, err
	}

	r.metrics.Statement("tuples")
	rows, err := r.exec.Query(ctx, res.SQL)
	if err != nil {
		return nil, fmt.Errorf("read tuples from %s: %w", res.Plan.Source, err)
	}

	res.Tuples = make([][]domain.Literal, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(req.Columns) {
			return nil, fmt.Errorf("read tuples: row has %d values, want %d", len(row), len(req.Columns))
		}
		tuple := make([]domain.Literal, len(row))
		for i, v := range row {
			lit, err := domain.LiteralFromDB(req.Columns[i].Type, v)
			if err != nil {
				return nil, fmt.Errorf("read tuples: column %s: %w", req.Columns[i], err)
			}
			tuple[i] = lit
		}
		res.Tuples = append(res.Tuples, tuple)
	}

	r.logger.Debug("read tuples", "star", req.Star.Name, "source", res.Plan.Source, "tuples", len(res.Tuples))
	return res, nil
}
