// Package api provides the HTTP handlers of the aggregation engine.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aggnav/internal/domain"
	"aggnav/internal/middleware"
	"aggnav/internal/session"
)

const maxBodyBytes = 1 << 20

// Handler serves cell, explain, tuple and cardinality requests.
type Handler struct {
	server   *session.Server
	reloader *session.Reloader
	shared   *session.Session
	logger   *slog.Logger
}

// NewHandler creates a handler. Requests without a session header use a shared session.
func NewHandler(server *session.Server, reloader *session.Reloader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		server:   server,
		reloader: reloader,
		shared:   server.Open(),
		logger:   logger,
	}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.OpenSession)
	r.Delete("/sessions/{id}", h.CloseSession)
	r.Post("/cells", h.Cells)
	r.Post("/explain", h.Explain)
	r.Post("/tuples", h.Tuples)
	r.Get("/cardinality", h.Cardinality)
	r.Post("/admin/reload", h.Reload)
}

func (h *Handler) session(r *http.Request) (*session.Session, error) {
	id := r.Header.Get(middleware.SessionHeader)
	if id == "" {
		return h.shared, nil
	}
	return h.server.Session(id)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// OpenSession starts a session; clients send its id in X-Session-ID.
func (h *Handler) OpenSession(w http.ResponseWriter, _ *http.Request) {
	sess := h.server.Open()
	writeJSON(w, http.StatusCreated, SessionResponse{ID: sess.ID, Generation: sess.Generation().ID})
}

// CloseSession discards a session and its caches.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.server.Session(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

// Cells records every requested cell, loads the missing ones in batches and
// returns the values in request order.
func (h *Handler) Cells(w http.ResponseWriter, r *http.Request) {
	var body CellsRequest
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := EvaluateCells(r.Context(), sess, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Explain plans a CellsRequest without loading it.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var body CellsRequest
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := ExplainCells(r.Context(), sess, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tuples lists the distinct member tuples of level columns.
func (h *Handler) Tuples(w http.ResponseWriter, r *http.Request) {
	var body TuplesRequest
	if err := decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := ListTuples(r.Context(), sess, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cardinality returns the distinct value count of ?star=&column=.
func (h *Handler) Cardinality(w http.ResponseWriter, r *http.Request) {
	starName := r.URL.Query().Get("star")
	ref := r.URL.Query().Get("column")
	if starName == "" || ref == "" {
		h.writeError(w, r, domain.ErrValidation("star and column query parameters are required"))
		return
	}
	sess, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	star, err := sess.Generation().Schema.Star(starName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	col, err := star.ResolveColumn(ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := sess.Stats().Cardinality(r.Context(), col)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CardinalityResponse{Star: star.Name, Column: ref, Cardinality: n})
}

// Reload installs a new generation from the schema source.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	gen, err := h.reloader.ReloadNow()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Generation: gen.ID, Stars: len(gen.Schema.Stars)})
}
