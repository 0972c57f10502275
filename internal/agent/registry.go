package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the immutable-after-startup table of agent plugins. It is
// built once during bootstrap and passed explicitly to resolution code.
type Registry struct {
	mu        sync.RWMutex
	plugins   map[string]*Plugin
	order     []string
	defaultID string
}

// NewRegistry creates a registry whose first registered plugin becomes the
// default unless SetDefault overrides it.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds or replaces a plugin.
func (r *Registry) Register(p *Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.plugins[p.ID] = p
	if r.defaultID == "" {
		r.defaultID = p.ID
	}
}

// SetDefault marks the given plugin id as the default agent.
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[id]; !ok {
		return fmt.Errorf("agent not registered: %s", id)
	}
	r.defaultID = id
	return nil
}

// DefaultID returns the default agent id.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// Get retrieves a plugin by exact id.
func (r *Registry) Get(id string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

// IDs returns all plugin ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns all plugins in registration order.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(r.order))
	for _, id := range r.order {
		plugins = append(plugins, r.plugins[id])
	}
	return plugins
}

// Resolve maps a requested agent string to a registered plugin id. Exact id
// matches always win. With fuzzy enabled, a case-insensitive prefix or
// substring match against ids and display names is accepted when it is
// unambiguous. Returns "" when nothing (or more than one thing) matched.
func (r *Registry) Resolve(requested string, fuzzy bool) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requested = strings.TrimSpace(requested)
	if requested == "" {
		return ""
	}
	if _, ok := r.plugins[requested]; ok {
		return requested
	}
	if !fuzzy {
		return ""
	}

	needle := strings.ToLower(requested)
	var matches []string
	for _, id := range r.order {
		p := r.plugins[id]
		haystacks := []string{strings.ToLower(id), strings.ToLower(p.DisplayName())}
		for _, h := range haystacks {
			if strings.HasPrefix(h, needle) || strings.Contains(h, needle) {
				matches = append(matches, id)
				break
			}
		}
	}

	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}

// Names returns the sorted set of display names, for error messages.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, p := range r.plugins {
		name := p.DisplayName()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
