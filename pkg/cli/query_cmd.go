package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"aggnav/internal/api"
	"aggnav/internal/app"
	"aggnav/internal/session"
)

// queryFlags select cells or tuples from the command line.
type queryFlags struct {
	star     string
	measures []string
	columns  []string
	where    []string
	file     string
	pretty   bool
}

func (q *queryFlags) register(cmd *cobra.Command, withMeasures bool) {
	f := cmd.Flags()
	f.StringVar(&q.star, "star", "Sales", "Star to query")
	f.StringArrayVarP(&q.where, "where", "w", nil, `Constraint "column=value", repeatable; value "null" matches missing values`)
	if withMeasures {
		f.StringArrayVarP(&q.measures, "measure", "m", nil, "Measure name, repeatable")
		f.StringVarP(&q.file, "file", "f", "", `JSON request body ("-" reads stdin)`)
	} else {
		f.StringArrayVarP(&q.columns, "column", "c", nil, "Level column to list, repeatable")
	}
	f.BoolVar(&q.pretty, "pretty", false, "Format SQL over several lines (default when stdout is a terminal)")
}

// withSession runs fn against a session on the configured warehouse.
func withSession(cmd *cobra.Command, g *globals, pretty bool, fn func(ctx context.Context, sess *session.Session) error) error {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("pretty") {
		cfg.FormattedSQL = pretty
	} else if !cfg.FormattedSQL {
		cfg.FormattedSQL = getOutputFormat(cmd) != "json" && isTerminal(cmd.OutOrStdout())
	}

	ctx := cmd.Context()
	warehouse, err := app.OpenWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer warehouse.Close() //nolint:errcheck

	a, err := app.New(ctx, app.Deps{Cfg: cfg, DB: warehouse, Logger: newLogger(cfg, cmd.ErrOrStderr())})
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	sess := a.Server.Open()
	defer sess.Close()
	return fn(ctx, sess)
}

func parseWhere(exprs []string) ([]api.Constraint, error) {
	out := make([]api.Constraint, 0, len(exprs))
	for _, e := range exprs {
		col, val, ok := strings.Cut(e, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid constraint %q: use column=value", e)
		}
		raw := json.RawMessage("null")
		if val != "null" {
			b, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			raw = b
		}
		out = append(out, api.Constraint{Column: col, Value: raw})
	}
	return out, nil
}

func (q *queryFlags) cellsRequest(stdin io.Reader) (api.CellsRequest, error) {
	if q.file != "" {
		var r io.Reader = stdin
		if q.file != "-" {
			f, err := os.Open(q.file) //nolint:gosec // path is user-supplied on purpose
			if err != nil {
				return api.CellsRequest{}, err
			}
			defer f.Close() //nolint:errcheck
			r = f
		}
		var body api.CellsRequest
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			return api.CellsRequest{}, fmt.Errorf("decode %s: %w", q.file, err)
		}
		return body, nil
	}

	if len(q.measures) == 0 {
		return api.CellsRequest{}, fmt.Errorf("at least one --measure or a --file is required")
	}
	constraints, err := parseWhere(q.where)
	if err != nil {
		return api.CellsRequest{}, err
	}
	body := api.CellsRequest{Star: q.star}
	for _, m := range q.measures {
		body.Cells = append(body.Cells, api.Cell{Measure: m, Constraints: constraints})
	}
	return body, nil
}

func newCellsCmd(g *globals) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "Load measure cells",
		Example: `  aggnav cells -m "Unit Sales" -w customer.gender=F
  aggnav cells -f request.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := q.cellsRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withSession(cmd, g, q.pretty, func(ctx context.Context, sess *session.Session) error {
				resp, err := api.EvaluateCells(ctx, sess, body)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(cmd.OutOrStdout(), resp)
				}
				rows := make([][]string, len(resp.Cells))
				for i, c := range resp.Cells {
					v := "(null)"
					if c.Value != nil {
						v = c.Value.String()
					}
					rows[i] = []string{c.Request, v}
				}
				PrintTable(cmd.OutOrStdout(), []string{"cell", "value"}, rows)
				return nil
			})
		},
	}
	q.register(cmd, true)
	return cmd
}

func newExplainCmd(g *globals) *cobra.Command {
	q := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the tables and SQL a set of cells would load from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := q.cellsRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withSession(cmd, g, q.pretty, func(ctx context.Context, sess *session.Session) error {
				resp, err := api.ExplainCells(ctx, sess, body)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(cmd.OutOrStdout(), resp)
				}
				out := cmd.OutOrStdout()
				for i, l := range resp.Loads {
					writePlan(out, i+1, l.Plan, len(l.Requests))
					_, _ = fmt.Fprintln(out, l.SQL)
					_, _ = fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	q.register(cmd, true)
	return cmd
}

func newTuplesCmd(g *globals) *cobra.Command {
	q := &queryFlags{}
	var explain bool
	cmd := &cobra.Command{
		Use:     "tuples",
		Short:   "List the distinct members of level columns",
		Example: `  aggnav tuples -c store.store_country -w time_by_day.the_year=1997`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			constraints, err := parseWhere(q.where)
			if err != nil {
				return err
			}
			body := api.TuplesRequest{Star: q.star, Columns: q.columns, Constraints: constraints, Explain: explain}
			return withSession(cmd, g, q.pretty, func(ctx context.Context, sess *session.Session) error {
				resp, err := api.ListTuples(ctx, sess, body)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(cmd.OutOrStdout(), resp)
				}
				if explain {
					writePlan(cmd.OutOrStdout(), 1, resp.Plan, 0)
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.SQL)
					return nil
				}
				rows := make([][]string, len(resp.Tuples))
				for i, t := range resp.Tuples {
					row := make([]string, len(t))
					for j, v := range t {
						row[j] = nullable(v)
					}
					rows[i] = row
				}
				PrintTable(cmd.OutOrStdout(), q.columns, rows)
				return nil
			})
		},
	}
	q.register(cmd, false)
	cmd.Flags().BoolVar(&explain, "explain", false, "Print the plan and SQL without running it")
	return cmd
}

func writePlan(w io.Writer, n int, p api.PlanView, requests int) {
	kind := "fact"
	if p.Aggregate {
		kind = "aggregate"
	}
	_, _ = fmt.Fprintf(w, "-- load %d: %s (%s", n, p.Source, kind)
	if requests > 0 {
		_, _ = fmt.Fprintf(w, ", %d requests", requests)
	}
	if p.RowCount != nil {
		_, _ = fmt.Fprintf(w, ", %d rows", *p.RowCount)
	}
	_, _ = fmt.Fprintln(w, ")")
	if len(p.Joins) > 0 {
		_, _ = fmt.Fprintf(w, "-- joins: %s\n", strings.Join(p.Joins, ", "))
	}
	for _, r := range p.Rejected {
		_, _ = fmt.Fprintf(w, "-- skipped %s: %s\n", r.Aggregate, r.Reason)
	}
}
