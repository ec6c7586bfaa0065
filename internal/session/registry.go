// internal/session/registry.go
package session

import (
	"sort"
	"sync"
)

// Registry tracks the rooms that currently have an active billing loop.
// Insert and Remove are atomic, so a room holds at most one session and each
// session is removed exactly once.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Insert adds s unless its room already has a session.
func (r *Registry) Insert(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.roomID]; exists {
		return false
	}
	r.sessions[s.roomID] = s
	return true
}

// Get returns the active session of a room, or nil.
func (r *Registry) Get(roomID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[roomID]
}

// Remove deletes the room entry only if it still points at s.
// Exactly one caller observes true for a given session.
func (r *Registry) Remove(roomID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[roomID]; !ok || cur != s {
		return false
	}
	delete(r.sessions, roomID)
	return true
}

// List returns the active sessions ordered by room id.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].roomID < out[j].roomID })
	return out
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
