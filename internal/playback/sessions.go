package playback

import (
	"log/slog"
	"sync"
	"time"
)

const DefaultSessionIdleTTL = 12 * time.Hour

type sessionEntry struct {
	gate     *Gate
	lastSeen time.Time
}

// Sessions keeps one Gate per client session. Idle sessions are forgotten,
// which resets their external-app prompt state.
type Sessions struct {
	mu       sync.Mutex
	entries  map[string]*sessionEntry
	resolver Resolver
	cfg      Config
	idleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewSessions(resolver Resolver, cfg Config, idleTTL time.Duration, logger *slog.Logger) *Sessions {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &Sessions{
		entries:  make(map[string]*sessionEntry),
		resolver: resolver,
		cfg:      cfg,
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// Gate returns the gate for id, creating a fresh session when needed.
func (s *Sessions) Gate(id string) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if now.Sub(e.lastSeen) > s.idleTTL {
			delete(s.entries, key)
		}
	}

	e, ok := s.entries[id]
	if !ok {
		e = &sessionEntry{
			gate: NewGate(s.resolver, NewSession(), s.cfg, s.logger.With("session", id), WithClock(s.now)),
		}
		s.entries[id] = e
	}
	e.lastSeen = now
	return e.gate
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
