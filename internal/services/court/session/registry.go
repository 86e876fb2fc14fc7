package session

import (
	"sync"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
)

// Registry tracks the active session of each match.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// claim reserves matchID for s. A match that already has an active session
// yields MATCH_ALREADY_ACTIVE.
func (r *Registry) claim(matchID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[matchID]; ok {
		return apperrors.WithMetadata(apperrors.CodeMatchAlreadyActive, "match already has an active session", map[string]string{"match_id": matchID})
	}
	r.sessions[matchID] = s
	return nil
}

// release frees matchID when it is still held by s.
func (r *Registry) release(matchID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[matchID] == s {
		delete(r.sessions, matchID)
	}
}

// Active returns the active session for matchID.
func (r *Registry) Active(matchID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[matchID]
	return s, ok
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll closes every active session.
func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
