package agent

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateAgent is returned when a name is registered twice.
	ErrDuplicateAgent = errors.New("agent: duplicate agent name")
	// ErrUnknownAgent is returned when a looked-up name is not registered.
	ErrUnknownAgent = errors.New("agent: unknown agent")
)

// Entry describes a registered agent.
type Entry struct {
	Name        string
	Description string
}

// Registry is a thread-safe directory of agents in registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	agents map[string]Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds agents. Names must be unique and non-empty.
func (r *Registry) Register(agents ...Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range agents {
		name := a.Name()
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrUnknownAgent)
		}
		if _, ok := r.agents[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateAgent, name)
		}
		r.agents[name] = a
		r.order = append(r.order, name)
	}

	return nil
}

// Get returns the named agent.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[name]
	return a, ok
}

// Lookup returns the named agents in the order given.
func (r *Registry) Lookup(names ...string) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(names))
	for _, n := range names {
		a, ok := r.agents[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, n)
		}
		out = append(out, a)
	}
	return out, nil
}

// Agents returns every agent in registration order.
func (r *Registry) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.agents[n])
	}
	return out
}

// List returns entries in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.order))
	for _, n := range r.order {
		a := r.agents[n]
		entries = append(entries, Entry{Name: n, Description: a.Description()})
	}
	return entries
}
