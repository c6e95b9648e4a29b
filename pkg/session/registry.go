package session

import (
	"fmt"
	"sync"
)

// Factory builds a fully wired Service for one presentation.
type Factory func(name string) (*Service, error)

// Registry hands out at most one live Service per presentation. Sessions
// are created lazily on first access and stay alive until dropped, so
// every client of the same presentation shares one broker and one
// conversation.
type Registry struct {
	mu       sync.Mutex
	factory  Factory
	sessions map[string]*Service
}

// NewRegistry creates an empty registry around the factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Service),
	}
}

// Get returns the presentation's session, creating it on first use.
func (r *Registry) Get(name string) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc, ok := r.sessions[name]; ok {
		return svc, nil
	}
	svc, err := r.factory(name)
	if err != nil {
		return nil, fmt.Errorf("creating session for %q: %w", name, err)
	}
	r.sessions[name] = svc
	return svc, nil
}

// Peek returns the session only if one is already live.
func (r *Registry) Peek(name string) (*Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.sessions[name]
	return svc, ok
}

// Drop removes a presentation's session, typically after the
// presentation is deleted. The next Get builds a fresh one.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, name)
}
