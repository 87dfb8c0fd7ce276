package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"aggnav/internal/batch"
	"aggnav/internal/member"
	"aggnav/internal/stats"
)

// Session is one client's view of the engine. Its cardinality cache belongs to
// the generation it was last used with and is reset when that changes.
type Session struct {
	ID     string
	server *Server
	stats  *stats.Cache

	mu       sync.Mutex
	gen      *Generation
	lastUsed time.Time
	closed   bool
}

func newSession(s *Server) *Session {
	c := stats.NewCache(s.exec, s.synth, s.logger)
	c.SetMetrics(s.opts.Metrics)
	return &Session{
		ID:       uuid.NewString(),
		server:   s,
		stats:    c,
		gen:      s.Generation(),
		lastUsed: time.Now(),
	}
}

// Generation returns the server's current generation, dropping cached
// cardinalities when it moved since the last call.
func (s *Session) Generation() *Generation {
	current := s.server.Generation()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	if s.gen != current {
		s.server.logger.Debug("session moved to new generation", "session", s.ID, "generation", current.ID)
		s.stats.Reset()
		s.gen = current
	}
	return current
}

// Stats returns the session's cardinality cache, valid for the current generation.
func (s *Session) Stats() *stats.Cache {
	s.Generation()
	return s.stats
}

// NewReader returns a batch reader over the current generation.
func (s *Session) NewReader() *batch.Reader {
	return s.ReaderFor(s.Generation())
}

// ReaderFor returns a batch reader over gen. Requests resolved against gen.Schema
// must be loaded through a reader for the same generation.
func (s *Session) ReaderFor(gen *Generation) *batch.Reader {
	r := batch.NewReader(gen.Segments, gen.Navigator, s.server.synth, s.server.exec, s.server.logger)
	if s.server.opts.Parallelism > 0 {
		r.SetParallelism(s.server.opts.Parallelism)
	}
	r.SetMetrics(s.server.opts.Metrics)
	return r
}

// Members returns a member reader over the current generation.
func (s *Session) Members() *member.Reader {
	return s.MembersFor(s.Generation())
}

// MembersFor returns a member reader over gen.
func (s *Session) MembersFor(gen *Generation) *member.Reader {
	r := member.NewReader(gen.Navigator, s.server.synth, s.server.exec, s.server.logger)
	r.SetMetrics(s.server.opts.Metrics)
	return r
}

// LastUsed reports when the session last touched its generation.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close discards the session's caches. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.stats.Reset()
	s.server.forget(s.ID)
	s.server.logger.Debug("session closed", "session", s.ID)
}
