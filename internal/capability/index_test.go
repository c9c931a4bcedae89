package capability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/latticekit/lattice/internal/extension"
)

// widget is a capability interface contributed by the test fixtures.
type widget interface {
	WidgetSpec() string
}

type widgetImpl struct {
	spec string
}

func (w widgetImpl) WidgetSpec() string { return w.spec }

// contractPack declares the contracts used across the tests.
type contractPack struct{}

func (contractPack) DeclareContracts() []Contract {
	return []Contract{
		{Name: "Widget", Probe: ProbeFor[widget]()},
		{Name: "Nav", Probe: ProbeFor[interface{ NavEntries() []string }]()},
	}
}

func buildInventory(t *testing.T) *extension.Inventory {
	t.Helper()
	inv := extension.NewInventory(nil, nil)

	require.NoError(t, inv.Register(&extension.Component{
		Name: "core",
		Units: []*extension.Unit{
			{Name: "core.Contracts", Impl: contractPack{}},
		},
	}))
	require.NoError(t, inv.Register(&extension.Component{
		Name: "a",
		Units: []*extension.Unit{
			{Name: "a.Banner", Impl: widgetImpl{spec: "banner"}},
			{Name: "a.Helper", Impl: struct{}{}},
		},
	}))
	require.NoError(t, inv.Register(&extension.Component{
		Name: "b",
		Units: []*extension.Unit{
			{Name: "b.Sidebar", Impl: widgetImpl{spec: "sidebar"}},
		},
	}))

	return inv
}

func TestIndexUnits(t *testing.T) {
	t.Run("two components contributing one contract", func(t *testing.T) {
		ix := NewIndex(buildInventory(t))

		units := ix.Units("Widget")
		require.Len(t, units, 2)
		assert.Equal(t, "a.Banner", units[0].Name)
		assert.Equal(t, "b.Sidebar", units[1].Name)

		grouped := ix.UnitsByComponent("Widget")
		require.Len(t, grouped, 2)
		assert.Equal(t, "a.Banner", grouped["a"][0].Name)
		assert.Equal(t, "b.Sidebar", grouped["b"][0].Name)
	})

	t.Run("contract with zero implementers yields empty list", func(t *testing.T) {
		ix := NewIndex(buildInventory(t))
		assert.Empty(t, ix.Units("Nav"))
		assert.Empty(t, ix.UnitsByComponent("Nav"))
	})

	t.Run("unknown contract yields empty list, never an error", func(t *testing.T) {
		ix := NewIndex(buildInventory(t))
		assert.Empty(t, ix.Units("NoSuchContract"))
	})

	t.Run("component with no matching units is omitted from grouping", func(t *testing.T) {
		ix := NewIndex(buildInventory(t))
		grouped := ix.UnitsByComponent("Widget")
		assert.NotContains(t, grouped, "core")
	})
}

func TestIndexDeterminism(t *testing.T) {
	ix := NewIndex(buildInventory(t))

	first := ix.Snapshot()
	ix.Rebuild()
	second := ix.Snapshot()

	assert.Equal(t, first.Units("Widget"), second.Units("Widget"))
	assert.Equal(t, first.UnitsByComponent("Widget"), second.UnitsByComponent("Widget"))
	assert.Equal(t, len(first.Contracts()), len(second.Contracts()))
	assert.NotEqual(t, first.Generation(), second.Generation())
}

func TestIndexContracts(t *testing.T) {
	ix := NewIndex(buildInventory(t))

	contracts := ix.Contracts()
	require.Len(t, contracts, 2)
	// Sorted by name
	assert.Equal(t, "Nav", contracts[0].Name)
	assert.Equal(t, "Widget", contracts[1].Name)
}

func TestIndexDuplicateContractDeclaration(t *testing.T) {
	inv := buildInventory(t)
	require.NoError(t, inv.Register(&extension.Component{
		Name: "dup",
		Units: []*extension.Unit{
			{Name: "dup.Contracts", Impl: contractPack{}},
		},
	}))

	core, logs := observer.New(zap.WarnLevel)
	ix := NewIndex(inv, WithLogger(zap.New(core)))

	require.Len(t, ix.Contracts(), 2)
	assert.Equal(t, 2, logs.FilterMessageSnippet("declared more than once").Len())
}

func TestIndexWarm(t *testing.T) {
	ix := NewIndex(buildInventory(t))
	ix.Warm()

	// Whether or not the background build has finished, readers get a
	// consistent snapshot.
	units := ix.Units("Widget")
	assert.Len(t, units, 2)
}

func TestIndexConcurrentReads(t *testing.T) {
	ix := NewIndex(buildInventory(t))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Len(t, ix.Units("Widget"), 2)
			}
		}()
	}
	// A concurrent rebuild must not disturb readers.
	ix.Rebuild()
	wg.Wait()
}

func TestSafeProbe(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	panicking := Contract{Name: "Boom", Probe: func(interface{}) bool { panic("probe bug") }}
	assert.False(t, safeProbe(panicking, struct{}{}, log))
	assert.Equal(t, 1, logs.Len())

	nilProbe := Contract{Name: "Nil"}
	assert.False(t, safeProbe(nilProbe, struct{}{}, log))
}
