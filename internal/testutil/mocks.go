// Package testutil provides shared fixtures and mock implementations of domain
// interfaces for use in tests across the codebase.
package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"aggnav/internal/db"
	"aggnav/internal/domain"
	"aggnav/internal/schema"
)

// === Executor Mock ===

// MockExecutor implements domain.Executor for testing and records every statement.
type MockExecutor struct {
	QueryFn func(ctx context.Context, query string) ([][]any, error)

	mu      sync.Mutex
	Queries []string // collected statements for assertions
}

// Query implements the interface method for testing.
func (m *MockExecutor) Query(ctx context.Context, query string) ([][]any, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.QueryFn != nil {
		return m.QueryFn(ctx, query)
	}
	return nil, nil
}

// Statements returns a copy of the recorded statements.
func (m *MockExecutor) Statements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Queries)
}

// Count returns how many statements were issued.
func (m *MockExecutor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// Reset forgets recorded statements.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = nil
}

// CannedRows returns a QueryFn that answers each listed statement with its rows and
// every other statement with no rows.
func CannedRows(answers map[string][][]any) func(context.Context, string) ([][]any, error) {
	return func(_ context.Context, query string) ([][]any, error) {
		return answers[query], nil
	}
}

// === Schema fixtures ===

// FoodMart returns the sample schema that matches the tables created by db.RunMigrations.
func FoodMart(t *testing.T) *domain.Schema {
	t.Helper()
	s, err := schema.Parse(db.SampleSchema)
	if err != nil {
		t.Fatalf("parse sample schema: %v", err)
	}
	return s
}

// FoodMartWithout returns the sample schema with the named aggregates excluded from
// the Sales star.
func FoodMartWithout(t *testing.T, aggregates ...string) *domain.Schema {
	t.Helper()
	var doc schema.Document
	if err := yaml.Unmarshal(db.SampleSchema, &doc); err != nil {
		t.Fatalf("decode sample schema: %v", err)
	}
	for i := range doc.Spec.Stars {
		if doc.Spec.Stars[i].Name == "Sales" {
			doc.Spec.Stars[i].Exclude = append(doc.Spec.Stars[i].Exclude, aggregates...)
		}
	}
	s, err := schema.Build(doc)
	if err != nil {
		t.Fatalf("build sample schema: %v", err)
	}
	return s
}

// Sales returns the Sales star of the sample schema.
func Sales(t *testing.T, s *domain.Schema) *domain.Star {
	t.Helper()
	return MustStar(t, s, "Sales")
}

// MustStar returns a star or fails the test.
func MustStar(t *testing.T, s *domain.Schema, name string) *domain.Star {
	t.Helper()
	star, err := s.Star(name)
	if err != nil {
		t.Fatalf("star %s: %v", name, err)
	}
	return star
}

// Column looks up table.column or fails the test.
func Column(t *testing.T, star *domain.Star, table, name string) *domain.Column {
	t.Helper()
	c, err := star.LookupColumn(table, name)
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	return c
}

// Request builds a cell request from alternating table, column, value strings.
func Request(t *testing.T, star *domain.Star, measure string, constraints ...string) *domain.CellRequest {
	t.Helper()
	if len(constraints)%3 != 0 {
		t.Fatalf("constraints must be table, column, value triples")
	}
	m, err := star.LookupMeasure(measure)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	r := domain.NewCellRequest(star, m)
	for i := 0; i < len(constraints); i += 3 {
		c := Column(t, star, constraints[i], constraints[i+1])
		v, err := domain.ParseLiteral(c.Type, constraints[i+2])
		if err != nil {
			t.Fatalf("value: %v", err)
		}
		if err := r.Constrain(c, v); err != nil {
			t.Fatalf("constrain: %v", err)
		}
	}
	return r
}

// YearQuarterMonth builds a compound predicate over time_by_day year, quarter and
// month from {year, quarter, month} string tuples.
func YearQuarterMonth(t *testing.T, star *domain.Star, tuples ...[3]string) domain.Predicate {
	t.Helper()
	cols := []*domain.Column{
		Column(t, star, "time_by_day", "the_year"),
		Column(t, star, "time_by_day", "quarter"),
		Column(t, star, "time_by_day", "month_of_year"),
	}
	values := make([][]domain.Literal, len(tuples))
	for i, tup := range tuples {
		for j, s := range tup {
			v, err := domain.ParseLiteral(cols[j].Type, s)
			if err != nil {
				t.Fatalf("value: %v", err)
			}
			values[i] = append(values[i], v)
		}
	}
	p, err := domain.CompoundPredicate(cols, values)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	return p
}
