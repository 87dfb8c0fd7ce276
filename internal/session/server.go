// Package session owns schema generations and the per-client state built on them.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"aggnav/internal/dialect"
	"aggnav/internal/domain"
	"aggnav/internal/metrics"
	"aggnav/internal/navigator"
	"aggnav/internal/segment"
	"aggnav/internal/synth"
)

// Generation is one immutable schema with the caches built against it.
// Readers hold on to the generation they started with.
type Generation struct {
	ID        string
	Schema    *domain.Schema
	Segments  *segment.Cache
	Navigator *navigator.Navigator
	Created   time.Time
}

// Options configures a Server.
type Options struct {
	Dialect     *dialect.Dialect
	Pretty      bool
	Parallelism int
	Metrics     *metrics.Engine
	Logger      *slog.Logger
}

// Server hands out sessions over the current generation.
type Server struct {
	exec    domain.Executor
	synth   *synth.Synthesizer
	opts    Options
	logger  *slog.Logger
	current atomic.Pointer[Generation]

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer creates a server serving schema through exec.
func NewServer(schema *domain.Schema, exec domain.Executor, opts Options) (*Server, error) {
	if schema == nil {
		return nil, domain.ErrValidation("schema is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		exec:     exec,
		synth:    synth.New(opts.Dialect, opts.Pretty),
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
	s.current.Store(s.newGeneration(schema))
	return s, nil
}

func (s *Server) newGeneration(schema *domain.Schema) *Generation {
	cache := segment.NewCache()
	cache.SetMetrics(s.opts.Metrics)
	nav := navigator.New(s.logger)
	nav.SetMetrics(s.opts.Metrics)
	return &Generation{
		ID:        uuid.NewString(),
		Schema:    schema,
		Segments:  cache,
		Navigator: nav,
		Created:   time.Now(),
	}
}

// Generation returns the generation new work runs against.
func (s *Server) Generation() *Generation { return s.current.Load() }

// Synth returns the statement synthesizer shared by every generation.
func (s *Server) Synth() *synth.Synthesizer { return s.synth }

// Reload installs a fresh generation for schema. Work already running keeps its
// generation; new readers never see the old segment cache.
func (s *Server) Reload(schema *domain.Schema) (*Generation, error) {
	if schema == nil {
		return nil, domain.ErrValidation("schema is required")
	}
	gen := s.newGeneration(schema)
	old := s.current.Swap(gen)
	s.opts.Metrics.Reload()
	s.logger.Info("schema generation installed", "generation", gen.ID, "previous", old.ID, "stars", len(schema.Stars))
	return gen, nil
}

// Open starts a new session.
func (s *Server) Open() *Session {
	sess := newSession(s)
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Debug("session opened", "session", sess.ID)
	return sess
}

// Session returns an open session by id.
func (s *Server) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound("session %q not found", id)
	}
	return sess, nil
}

// Sessions reports how many sessions are open.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire closes sessions idle for longer than maxIdle and returns how many it closed.
func (s *Server) Expire(maxIdle time.Duration) int {
	now := time.Now()
	var idle []*Session
	s.mu.Lock()
	for _, sess := range s.sessions {
		if now.Sub(sess.LastUsed()) > maxIdle {
			idle = append(idle, sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range idle {
		sess.Close()
	}
	return len(idle)
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
