package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggnav/internal/db"
	"aggnav/internal/dialect"
	"aggnav/internal/domain"
	"aggnav/internal/engine"
	"aggnav/internal/metrics"
	"aggnav/internal/middleware"
	"aggnav/internal/session"
	"aggnav/internal/testutil"
)

type testAPI struct {
	server *session.Server
	router http.Handler
}

func setupAPI(t *testing.T, limit middleware.RateLimitConfig) *testAPI {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := session.NewServer(testutil.FoodMart(t), engine.NewSQLExecutor(db.OpenTestSQLite(t), nil), session.Options{
		Dialect: dialect.SQLiteDialect,
		Metrics: metrics.New(reg),
	})
	require.NoError(t, err)
	rl := session.NewReloader(srv, func() (*domain.Schema, error) { return testutil.FoodMart(t), nil }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router := NewRouter(ctx, NewHandler(srv, rl, nil), RouterConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimit:          limit,
		Gatherer:           reg,
	})
	return &testAPI{server: srv, router: router}
}

func (a *testAPI) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func values(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	body := decodeBody[map[string]any](t, rec)
	cells := body["cells"].([]any)
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c.(map[string]any)["value"]
	}
	return out
}

func TestCells(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	rec := a.do(t, http.MethodPost, "/v1/cells", `{
		"star": "Sales",
		"cells": [
			{"measure": "Unit Sales", "constraints": [{"column": "customer.gender", "value": "F"}]},
			{"measure": "Customer Count", "constraints": [{"column": "Gender.Gender", "value": "F"}]},
			{"measure": "Unit Sales", "constraints": [
				{"column": "store.store_state", "value": "WA"},
				{"column": "customer.gender", "value": "F"}
			]},
			{"measure": "Store Sales", "constraints": [
				{"column": "time_by_day.the_year", "value": 1997},
				{"column": "store.store_state", "value": "CA"}
			]}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"10", "2", nil, "16"}, values(t, rec))
}

func TestCells_Compound(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	rec := a.do(t, http.MethodPost, "/v1/cells", `{
		"star": "Sales",
		"cells": [{
			"measure": "Customer Count",
			"constraints": [{"column": "customer.gender", "value": "F"}],
			"compound": {
				"columns": ["time_by_day.the_year", "time_by_day.quarter", "time_by_day.month_of_year"],
				"tuples": [[1997, "Q1", 1], [1997, "Q2", "5"]]
			}
		}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"2"}, values(t, rec))
}

func TestCells_Errors(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"star":`, http.StatusBadRequest},
		{"unknown field", `{"star": "Sales", "cube": "x"}`, http.StatusBadRequest},
		{"no cells", `{"star": "Sales", "cells": []}`, http.StatusBadRequest},
		{"unknown star", `{"star": "Warehouse", "cells": [{"measure": "Unit Sales"}]}`, http.StatusNotFound},
		{"unknown measure", `{"star": "Sales", "cells": [{"measure": "Profit"}]}`, http.StatusNotFound},
		{"bad column ref", `{"star": "Sales", "cells": [{"measure": "Unit Sales", "constraints": [{"column": "gender", "value": "F"}]}]}`, http.StatusBadRequest},
		{"bad numeric", `{"star": "Sales", "cells": [{"measure": "Unit Sales", "constraints": [{"column": "time_by_day.the_year", "value": "soon"}]}]}`, http.StatusBadRequest},
		{"ragged tuple", `{"star": "Sales", "cells": [{"measure": "Unit Sales", "compound": {"columns": ["time_by_day.the_year"], "tuples": [[1997, 1998]]}}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/v1/cells", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			body := decodeBody[Error](t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestExplain(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	rec := a.do(t, http.MethodPost, "/v1/explain", `{
		"star": "Sales",
		"cells": [
			{"measure": "Unit Sales", "constraints": [{"column": "customer.gender", "value": "F"}]},
			{"measure": "Unit Sales", "constraints": [{"column": "customer.gender", "value": "M"}]}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[ExplainResponse](t, rec)
	require.Len(t, body.Loads, 1, "both cells share one statement")
	load := body.Loads[0]
	assert.Equal(t, "agg_g_ms_pcat_sales_fact_1997", load.Plan.Source)
	assert.True(t, load.Plan.Aggregate)
	assert.Contains(t, load.SQL, "in ('F', 'M')")
	assert.Len(t, load.Requests, 2)
	assert.Equal(t, a.server.Generation().ID, body.Generation)
}

func TestTuples(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	rec := a.do(t, http.MethodPost, "/v1/tuples", `{"star": "Sales", "columns": ["store.store_country"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, []any{[]any{"USA"}, []any{nil}}, body["tuples"])

	rec = a.do(t, http.MethodPost, "/v1/tuples", `{
		"star": "Sales",
		"columns": ["store.store_country"],
		"constraints": [{"column": "time_by_day.the_year", "value": 1997}],
		"explain": true
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[TuplesResponse](t, rec)
	assert.Equal(t, "agg_c_14_sales_fact_1997", res.Plan.Source)
	assert.Contains(t, res.SQL, "group by store.store_country")
	assert.Empty(t, res.Tuples)

	rec = a.do(t, http.MethodPost, "/v1/tuples", `{"star": "Sales", "columns": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCardinality(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	rec := a.do(t, http.MethodGet, "/v1/cardinality?star=Sales&column=store.store_country", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decodeBody[CardinalityResponse](t, rec).Cardinality)

	rec = a.do(t, http.MethodGet, "/v1/cardinality?star=Sales+Ragged&column=store_ragged.store_country", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), decodeBody[CardinalityResponse](t, rec).Cardinality)

	rec = a.do(t, http.MethodGet, "/v1/cardinality?star=Sales", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessions(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})
	shared := a.server.Sessions()

	rec := a.do(t, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decodeBody[SessionResponse](t, rec)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, shared+1, a.server.Sessions())

	rec = a.do(t, http.MethodGet, "/v1/cardinality?star=Sales&column=customer.gender", "", middleware.SessionHeader, sess.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), decodeBody[CardinalityResponse](t, rec).Cardinality)

	rec = a.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, shared, a.server.Sessions())

	rec = a.do(t, http.MethodGet, "/v1/cardinality?star=Sales&column=customer.gender", "", middleware.SessionHeader, sess.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReload(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})
	before := a.server.Generation().ID

	rec := a.do(t, http.MethodPost, "/v1/admin/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[ReloadResponse](t, rec)
	assert.NotEqual(t, before, body.Generation)
	assert.Equal(t, a.server.Generation().ID, body.Generation)
	assert.Equal(t, 4, body.Stars)
}

func TestMetricsAndHealth(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{})

	rec := a.do(t, http.MethodPost, "/v1/cells", `{"star": "Sales", "cells": [{"measure": "Unit Sales", "constraints": [{"column": "customer.gender", "value": "M"}]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `aggnav_sql_statements_total{kind="segment"} 1`)

	rec = a.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.True(t, strings.Contains(rec.Body.String(), a.server.Generation().ID))
}

func TestRateLimitOnV1(t *testing.T) {
	a := setupAPI(t, middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	rec := a.do(t, http.MethodGet, "/v1/cardinality?star=Sales&column=customer.gender", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/cardinality?star=Sales&column=customer.gender", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = a.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}
