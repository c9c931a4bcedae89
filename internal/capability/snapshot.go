package capability

import (
	"sort"

	"github.com/latticekit/lattice/internal/extension"
)

// Snapshot is the immutable result of scanning all in-scope components for
// capability implementers. It is never mutated after construction; readers
// share it freely without synchronization.
type Snapshot struct {
	generation uint64
	contracts  map[string]Contract
	byContract map[string]map[string][]*extension.Unit
	flat       map[string][]*extension.Unit
}

// Generation returns the build counter of this snapshot. It distinguishes
// rebuilds for cache keying and carries no other meaning.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Units returns the implementers of a contract across all components.
// Unknown contracts and contracts without implementers both yield an empty
// slice, never an error.
func (s *Snapshot) Units(contract string) []*extension.Unit {
	units := s.flat[contract]
	result := make([]*extension.Unit, len(units))
	copy(result, units)
	return result
}

// UnitsByComponent returns the implementers of a contract grouped by the
// component that contributed them. Components contributing no implementers
// are omitted.
func (s *Snapshot) UnitsByComponent(contract string) map[string][]*extension.Unit {
	grouped := s.byContract[contract]
	result := make(map[string][]*extension.Unit, len(grouped))
	for component, units := range grouped {
		cp := make([]*extension.Unit, len(units))
		copy(cp, units)
		result[component] = cp
	}
	return result
}

// Contract returns a declared contract by name.
func (s *Snapshot) Contract(name string) (Contract, bool) {
	c, ok := s.contracts[name]
	return c, ok
}

// Contracts returns all declared contracts sorted by name.
func (s *Snapshot) Contracts() []Contract {
	result := make([]Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
