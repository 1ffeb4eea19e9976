package server

import (
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/metrics"
)

// Session is a registered connection identity. Room is empty while the
// session is in the lobby.
type Session struct {
	ID           string
	Name         string
	Room         string
	RegisteredAt time.Time
	outbox       *Outbox
}

// SessionInfo is a copy of a session that stays valid after the registry
// lock is released.
type SessionInfo struct {
	ID           string
	Name         string
	Room         string
	Bound        bool
	RegisteredAt time.Time
}

func (s *Session) info() SessionInfo {
	return SessionInfo{ID: s.ID, Name: s.Name, Room: s.Room, Bound: s.outbox != nil, RegisteredAt: s.RegisteredAt}
}

// Sessions is the connection registry: live sessions keyed by id.
//
// Operations that also touch room membership go through Rooms, which takes
// its own lock before this one. Sessions never acquires the room lock.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Add inserts a new session in the lobby. The name must already satisfy the
// display name policy; duplicate names are allowed.
func (s *Sessions) Add(name string) SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newUniqueToken(func(token string) bool {
		_, taken := s.sessions[token]
		return taken
	})
	session := &Session{ID: id, Name: name, RegisteredAt: time.Now()}
	s.sessions[id] = session
	metrics.SessionsActive.Inc()
	return session.info()
}

// Bind attaches the outbound handle of a freshly established stream.
func (s *Sessions) Bind(id string, outbox *Outbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if session.outbox != nil {
		return ErrStreamBound
	}
	session.outbox = outbox
	return nil
}

// Get returns a snapshot of the session.
func (s *Sessions) Get(id string) (SessionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return session.info(), true
}

// Len returns the number of registered sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Snapshot copies every session. Intended for diagnostics and tests.
func (s *Sessions) Snapshot() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.info())
	}
	return out
}

// lookupLocked and removeLocked require s.mu to be held by the caller.
func (s *Sessions) lookupLocked(id string) (*Session, bool) {
	session, ok := s.sessions[id]
	return session, ok
}

func (s *Sessions) removeLocked(id string) {
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		metrics.SessionsActive.Dec()
	}
}
