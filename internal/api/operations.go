package api

import (
	"context"

	"aggnav/internal/domain"
	"aggnav/internal/member"
	"aggnav/internal/session"
)

// EvaluateCells answers body on sess. Cells already cached in the session's
// generation are served without SQL; the rest load in batches.
func EvaluateCells(ctx context.Context, sess *session.Session, body CellsRequest) (*CellsResponse, error) {
	gen := sess.Generation()
	reader := sess.ReaderFor(gen)
	reqs, err := ResolveCells(gen.Schema, body)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		reader.RecordCellRequest(req)
	}
	if err := reader.LoadAggregations(ctx); err != nil {
		return nil, err
	}

	resp := &CellsResponse{Generation: gen.ID, Cells: make([]CellValue, len(reqs))}
	for i, req := range reqs {
		cell, ok := reader.GetCellFromCache(req)
		if !ok {
			return nil, domain.ErrConfiguration(req.Star.Name, "request %s is not covered after load", req)
		}
		resp.Cells[i] = CellValue{Request: req.String()}
		if !cell.Null {
			v := cell.Value
			resp.Cells[i].Value = &v
		}
	}
	return resp, nil
}

// ExplainCells plans body without loading it. Aggregate plans carry the
// table's row count.
func ExplainCells(ctx context.Context, sess *session.Session, body CellsRequest) (*ExplainResponse, error) {
	gen := sess.Generation()
	reader := sess.ReaderFor(gen)
	reqs, err := ResolveCells(gen.Schema, body)
	if err != nil {
		return nil, err
	}
	loads, err := reader.Plan(reqs)
	if err != nil {
		return nil, err
	}

	resp := &ExplainResponse{Generation: gen.ID, Loads: make([]LoadView, len(loads))}
	for i, l := range loads {
		view := LoadView{Plan: planView(l.Plan), SQL: l.SQL}
		if l.Plan.Aggregate != nil {
			if n, err := sess.Stats().RowCount(ctx, l.Plan.Aggregate); err == nil {
				view.Plan.RowCount = &n
			}
		}
		for _, req := range l.Requests {
			view.Requests = append(view.Requests, req.String())
		}
		resp.Loads[i] = view
	}
	return resp, nil
}

// ListTuples runs, or with body.Explain only plans, a member listing.
func ListTuples(ctx context.Context, sess *session.Session, body TuplesRequest) (*TuplesResponse, error) {
	gen := sess.Generation()
	members := sess.MembersFor(gen)
	star, err := gen.Schema.Star(body.Star)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(star, body.Columns)
	if err != nil {
		return nil, err
	}
	constraints, err := resolveConstraints(star, body.Constraints)
	if err != nil {
		return nil, err
	}

	req := member.TupleRequest{Star: star, Columns: cols, Constraints: constraints}
	var res *member.TupleResult
	if body.Explain {
		res, err = members.Explain(req)
	} else {
		res, err = members.ReadTuples(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &TuplesResponse{
		Generation: gen.ID,
		Plan:       planView(res.Plan),
		SQL:        res.SQL,
		Tuples:     tupleView(res.Tuples),
	}, nil
}
