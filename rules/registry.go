package rules

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateRule is returned when a rule ID is registered twice.
	ErrDuplicateRule = errors.New("rules: duplicate rule id")
	// ErrUnknownRule is returned when an operation names an unregistered rule.
	ErrUnknownRule = errors.New("rules: unknown rule id")
)

// Info describes a registered rule.
type Info struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

type entry struct {
	rule    Rule
	enabled bool
}

// Registry is an ordered set of rules. Registration order is evaluation and
// reporting order. A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends r, enabled.
func (g *Registry) Register(r Rule) error {
	return g.register(r, true)
}

// RegisterDisabled appends r without enabling it.
func (g *Registry) RegisterDisabled(r Rule) error {
	return g.register(r, false)
}

func (g *Registry) register(r Rule, enabled bool) error {
	if r == nil || r.ID() == "" {
		return errors.New("rules: rule must have an id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.find(r.ID()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID())
	}
	g.entries = append(g.entries, entry{rule: r, enabled: enabled})
	return nil
}

// Unregister removes the rule with the given id. It reports whether a rule was removed.
func (g *Registry) Unregister(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.find(id)
	if i < 0 {
		return false
	}
	g.entries = append(g.entries[:i:i], g.entries[i+1:]...)
	return true
}

// SetEnabled switches a registered rule on or off.
func (g *Registry) SetEnabled(id string, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRule, id)
	}
	g.entries[i].enabled = on
	return nil
}

// Get returns the rule with the given id.
func (g *Registry) Get(id string) (Rule, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i := g.find(id); i >= 0 {
		return g.entries[i].rule, true
	}
	return nil, false
}

// Enabled returns the enabled rules in registration order.
func (g *Registry) Enabled() []Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Rule, 0, len(g.entries))
	for _, e := range g.entries {
		if e.enabled {
			out = append(out, e.rule)
		}
	}
	return out
}

// Describe lists every registered rule in registration order.
func (g *Registry) Describe() []Info {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Info, len(g.entries))
	for i, e := range g.entries {
		out[i] = Info{ID: e.rule.ID(), Description: e.rule.Description(), Enabled: e.enabled}
	}
	return out
}

// Len returns the number of registered rules.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *Registry) find(id string) int {
	for i, e := range g.entries {
		if e.rule.ID() == id {
			return i
		}
	}
	return -1
}
