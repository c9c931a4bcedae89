package capability

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/extension"
	"github.com/latticekit/lattice/internal/memo"
)

// Index builds and serves the capability snapshot. The snapshot is published
// through an atomic pointer: after warm-up every read is a lock-free
// dereference, and rebuilding swaps the pointer without blocking readers.
//
// Cold-start races are tolerated. The build is pure and deterministic for a
// fixed inventory, so two goroutines racing to build produce identical
// content and the last write wins with no observable inconsistency.
type Index struct {
	inventory  *extension.Inventory
	memo       memo.Memoizer
	log        *zap.Logger
	snapshot   atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(ix *Index) { ix.log = log }
}

// WithMemoizer sets the memoizer used for link-map application.
func WithMemoizer(m memo.Memoizer) Option {
	return func(ix *Index) { ix.memo = m }
}

// NewIndex creates a capability index over an inventory. The snapshot is
// built lazily on first use, or eagerly via Warm.
func NewIndex(inventory *extension.Inventory, opts ...Option) *Index {
	ix := &Index{
		inventory: inventory,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.memo == nil {
		ix.memo = memo.NewMemory()
	}
	return ix
}

// Warm builds the snapshot in a short-lived background goroutine and
// publishes it, then the goroutine exits. Readers arriving before the build
// finishes fall back to building inline, which is harmless (see above).
func (ix *Index) Warm() {
	go func() {
		ix.snapshot.Store(ix.build())
	}()
}

// Rebuild repopulates the snapshot from the current inventory and swaps it
// in atomically. Readers holding the old snapshot keep a consistent view.
func (ix *Index) Rebuild() {
	ix.snapshot.Store(ix.build())
}

// Snapshot returns the current snapshot, building it on first use.
func (ix *Index) Snapshot() *Snapshot {
	if snap := ix.snapshot.Load(); snap != nil {
		return snap
	}
	snap := ix.build()
	ix.snapshot.Store(snap)
	return snap
}

// Units returns the implementers of a contract across all components.
func (ix *Index) Units(contract string) []*extension.Unit {
	return ix.Snapshot().Units(contract)
}

// UnitsByComponent returns the implementers of a contract grouped by
// component.
func (ix *Index) UnitsByComponent(contract string) map[string][]*extension.Unit {
	return ix.Snapshot().UnitsByComponent(contract)
}

// Contracts returns all declared contracts.
func (ix *Index) Contracts() []Contract {
	return ix.Snapshot().Contracts()
}

// Unit finds a unit by name in the underlying inventory.
func (ix *Index) Unit(name string) (*extension.Unit, bool) {
	return ix.inventory.Unit(name)
}

// build scans the in-scope inventory:
//  1. enumerate code units per component;
//  2. collect the contracts actually declared by loaded units (the
//     meta-contract);
//  3. filter every component's units by structural implementation of each
//     contract;
//  4. merge into the grouped and flat index shapes.
func (ix *Index) build() *Snapshot {
	snap := &Snapshot{
		generation: ix.generation.Add(1),
		contracts:  make(map[string]Contract),
		byContract: make(map[string]map[string][]*extension.Unit),
		flat:       make(map[string][]*extension.Unit),
	}

	components := ix.inventory.Components()

	for _, component := range components {
		for _, unit := range component.Units {
			declarer, ok := unit.Impl.(Declarer)
			if !ok {
				continue
			}
			for _, contract := range declarer.DeclareContracts() {
				if _, exists := snap.contracts[contract.Name]; exists {
					ix.log.Warn("contract declared more than once, keeping first declaration",
						zap.String("contract", contract.Name),
						zap.String("unit", unit.Name),
					)
					continue
				}
				snap.contracts[contract.Name] = contract
			}
		}
	}

	for name, contract := range snap.contracts {
		grouped := make(map[string][]*extension.Unit)
		for _, component := range components {
			var matched []*extension.Unit
			for _, unit := range component.Units {
				if safeProbe(contract, unit.Impl, ix.log) {
					matched = append(matched, unit)
				}
			}
			if len(matched) > 0 {
				grouped[component.Name] = matched
				snap.flat[name] = append(snap.flat[name], matched...)
			}
		}
		if len(grouped) > 0 {
			snap.byContract[name] = grouped
		}
	}

	ix.log.Debug("capability snapshot built",
		zap.Uint64("generation", snap.generation),
		zap.Int("components", len(components)),
		zap.Int("contracts", len(snap.contracts)),
	)

	return snap
}
