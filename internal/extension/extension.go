// Package extension models the components a Lattice application is assembled
// from. A Component is a self-contained extension contributing code units;
// a Unit is one such contribution, carrying the concrete value whose
// interface set decides which capability contracts it implements.
//
// Registration is explicit and happens once at startup. There is no process
// scanning: an extension that wants to contribute must call Register.
package extension

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Common extension error types
var (
	// ErrDuplicateComponent is returned when a component name is registered twice
	ErrDuplicateComponent = errors.New("component is already registered")

	// ErrNilComponent is returned when a nil component is registered
	ErrNilComponent = errors.New("component must not be nil")
)

// LinkFn is a zero-argument link query a unit exposes, such as "which schema
// do I serve". It returns the name of the target unit; an empty name means
// the link is not usable.
type LinkFn func() (string, error)

// Unit is one code unit contributed by a component.
type Unit struct {
	// Name identifies the unit uniquely across the whole inventory.
	Name string

	// Impl is the concrete value probed for contract implementation.
	Impl interface{}

	// Links holds the unit's named link functions.
	Links map[string]LinkFn
}

// Link returns the named link function, if the unit declares one.
func (u *Unit) Link(name string) (LinkFn, bool) {
	fn, ok := u.Links[name]
	return fn, ok
}

// Component is a self-contained extension contributing code units.
type Component struct {
	Name        string
	Description string
	Units       []*Unit
}

// Inventory lists the registered components, filtered by the configured
// scope patterns. All mutation happens during startup registration; reads
// afterwards are cheap map and slice copies.
type Inventory struct {
	mu         sync.RWMutex
	components map[string]*Component
	unitIndex  map[string]*Unit
	patterns   []string
	log        *zap.Logger
}

// NewInventory creates an inventory scoped to the given name/description
// prefix patterns. An empty pattern list places every component in scope.
func NewInventory(patterns []string, log *zap.Logger) *Inventory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inventory{
		components: make(map[string]*Component),
		unitIndex:  make(map[string]*Unit),
		patterns:   patterns,
		log:        log,
	}
}

// Register adds a component to the inventory. It is intended to be called
// once per component at application startup.
func (inv *Inventory) Register(c *Component) error {
	if c == nil {
		return ErrNilComponent
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.components[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, c.Name)
	}
	inv.components[c.Name] = c

	for _, unit := range c.Units {
		if _, ok := inv.unitIndex[unit.Name]; ok {
			// First registration wins; a shadowed unit is a packaging
			// problem, not a reason to fail startup.
			inv.log.Warn("duplicate unit name, keeping first registration",
				zap.String("unit", unit.Name),
				zap.String("component", c.Name),
			)
			continue
		}
		inv.unitIndex[unit.Name] = unit
	}

	return nil
}

// Components returns the in-scope components sorted by name.
func (inv *Inventory) Components() []*Component {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	result := make([]*Component, 0, len(inv.components))
	for _, c := range inv.components {
		if inv.inScope(c) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Units returns every unit of every in-scope component, in deterministic
// order (components by name, units in contribution order).
func (inv *Inventory) Units() []*Unit {
	var units []*Unit
	for _, c := range inv.Components() {
		units = append(units, c.Units...)
	}
	return units
}

// Unit finds a unit by name anywhere in the inventory.
func (inv *Inventory) Unit(name string) (*Unit, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	unit, ok := inv.unitIndex[name]
	return unit, ok
}

// Count returns the number of registered components, in scope or not.
func (inv *Inventory) Count() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	return len(inv.components)
}

// inScope reports whether a component matches the configured patterns.
func (inv *Inventory) inScope(c *Component) bool {
	if len(inv.patterns) == 0 {
		return true
	}
	for _, pattern := range inv.patterns {
		if matchPattern(c.Name, pattern) || matchPattern(c.Description, pattern) {
			return true
		}
	}
	return false
}

// matchPattern matches a string against a pattern with wildcards.
func matchPattern(s, pattern string) bool {
	if pattern == s || pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(s, parts[0]) && strings.HasSuffix(s, parts[1])
		}
	}

	return false
}
