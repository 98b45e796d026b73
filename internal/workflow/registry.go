package workflow

import (
	"strings"
	"sync"
)

// Registry maps operators to their sessions.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions share deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Get returns the operator's session.
func (r *Registry) Get(operatorID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[operatorID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// GetOrCreate returns the operator's session, creating it if needed.
func (r *Registry) GetOrCreate(operatorID string) (*Session, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrInvalidOperatorID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[operatorID]
	if !ok {
		s = NewSession(operatorID, r.deps)
		r.sessions[operatorID] = s
	}
	return s, nil
}

// Remove closes and forgets the operator's session.
func (r *Registry) Remove(operatorID string) error {
	r.mu.Lock()
	s, ok := r.sessions[operatorID]
	delete(r.sessions, operatorID)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
