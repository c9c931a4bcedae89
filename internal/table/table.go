// Package table reconciles the storage-side table catalog with the
// code-declared table metadata contributed by extensions, and serves the
// result through a registry indexed by all three identity forms of a table:
// opaque id, name, and code schema.
package table

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/extension"
	"github.com/latticekit/lattice/internal/storage"
)

// ErrNotBuilt is returned when the registry is read before Build succeeded.
var ErrNotBuilt = errors.New("table registry not built")

// Descriptor is the reconciled identity of one polymorphic record table.
type Descriptor struct {
	// ID is the storage-assigned opaque table id. Virtual tables get a
	// synthetic negative id.
	ID int64

	// Name is the table name shared by storage and code.
	Name string

	// Schema is the code-declared schema value. Nil means the table is
	// known to storage but carries no code schema.
	Schema interface{}

	// Virtual marks a declared type with no physical backing store;
	// resolving its pointers is a pure in-memory cast.
	Virtual bool
}

// Decl is the code-declared table metadata a unit contributes.
type Decl struct {
	Name    string
	Schema  interface{}
	Virtual bool
}

// Provider is implemented by units contributing table declarations.
type Provider interface {
	Tables() []Decl
}

// index is the immutable triple-keyed lookup structure.
type index struct {
	byID     map[int64]*Descriptor
	byName   map[string]*Descriptor
	bySchema map[interface{}]*Descriptor
	all      []*Descriptor
}

// Registry maps between the three identity forms of every table. It is
// populated once at startup by a single writer and never mutated afterward;
// reads are unsynchronized dereferences of the published index.
type Registry struct {
	inventory *extension.Inventory
	store     storage.Store
	log       *zap.Logger
	index     atomic.Pointer[index]
}

// NewRegistry creates an unbuilt table registry.
func NewRegistry(inventory *extension.Inventory, store storage.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		inventory: inventory,
		store:     store,
		log:       log,
	}
}

// Build reads the storage catalog and the code declarations, pairs them by
// name, and publishes the reconciled index. Mismatches are logged loudly and
// dropped from the indexed set - never merged under an assumption - and never
// abort startup. Only a failing catalog read is an error.
func (r *Registry) Build(ctx context.Context) error {
	catalog, err := r.store.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table catalog: %w", err)
	}

	decls := r.collectDecls()

	idx := &index{
		byID:     make(map[int64]*Descriptor),
		byName:   make(map[string]*Descriptor),
		bySchema: make(map[interface{}]*Descriptor),
	}

	for _, row := range catalog {
		decl, ok := decls[row.Name]
		if !ok {
			r.log.Warn("table catalog entry has no code schema, dropping from index",
				zap.Int64("id", row.ID),
				zap.String("table", row.Name),
			)
			continue
		}
		if decl.Virtual {
			r.log.Warn("table declared virtual but present in storage catalog, dropping from index",
				zap.Int64("id", row.ID),
				zap.String("table", row.Name),
			)
			delete(decls, row.Name)
			continue
		}
		r.add(idx, &Descriptor{ID: row.ID, Name: row.Name, Schema: decl.Schema})
		delete(decls, row.Name)
	}

	// What remains in decls has no catalog row: virtual tables get a
	// synthetic id; physical declarations without storage are dropped.
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	nextVirtual := int64(-1)
	for _, name := range names {
		decl := decls[name]
		if !decl.Virtual {
			r.log.Warn("declared table missing from storage catalog, dropping from index",
				zap.String("table", name),
			)
			continue
		}
		r.add(idx, &Descriptor{ID: nextVirtual, Name: name, Schema: decl.Schema, Virtual: true})
		nextVirtual--
	}

	sort.Slice(idx.all, func(i, j int) bool { return idx.all[i].Name < idx.all[j].Name })

	r.index.Store(idx)
	r.log.Info("table registry built",
		zap.Int("tables", len(idx.all)),
	)
	return nil
}

// collectDecls gathers table declarations from every in-scope unit. The first
// declaration of a name wins; later ones are logged and ignored.
func (r *Registry) collectDecls() map[string]Decl {
	decls := make(map[string]Decl)
	for _, unit := range r.inventory.Units() {
		provider, ok := unit.Impl.(Provider)
		if !ok {
			continue
		}
		for _, decl := range provider.Tables() {
			if _, exists := decls[decl.Name]; exists {
				r.log.Warn("table declared more than once, keeping first declaration",
					zap.String("table", decl.Name),
					zap.String("unit", unit.Name),
				)
				continue
			}
			decls[decl.Name] = decl
		}
	}
	return decls
}

func (r *Registry) add(idx *index, d *Descriptor) {
	idx.byID[d.ID] = d
	idx.byName[d.Name] = d
	if d.Schema != nil && reflect.TypeOf(d.Schema).Comparable() {
		idx.bySchema[d.Schema] = d
	}
	idx.all = append(idx.all, d)
}

// LookupID finds a descriptor by its opaque table id.
func (r *Registry) LookupID(id int64) (*Descriptor, bool) {
	idx := r.index.Load()
	if idx == nil {
		return nil, false
	}
	d, ok := idx.byID[id]
	return d, ok
}

// LookupName finds a descriptor by table name.
func (r *Registry) LookupName(name string) (*Descriptor, bool) {
	idx := r.index.Load()
	if idx == nil {
		return nil, false
	}
	d, ok := idx.byName[name]
	return d, ok
}

// LookupSchema finds a descriptor by its code schema value.
func (r *Registry) LookupSchema(schema interface{}) (*Descriptor, bool) {
	idx := r.index.Load()
	if idx == nil {
		return nil, false
	}
	d, ok := idx.bySchema[schema]
	return d, ok
}

// MustLookupID is the strict variant of LookupID: absence is a programming
// error and panics.
func (r *Registry) MustLookupID(id int64) *Descriptor {
	d, ok := r.LookupID(id)
	if !ok {
		panic(fmt.Sprintf("table registry: no table with id %d", id))
	}
	return d
}

// MustLookupName is the strict variant of LookupName.
func (r *Registry) MustLookupName(name string) *Descriptor {
	d, ok := r.LookupName(name)
	if !ok {
		panic(fmt.Sprintf("table registry: no table named %q", name))
	}
	return d
}

// All lists every indexed descriptor sorted by name.
func (r *Registry) All() []*Descriptor {
	idx := r.index.Load()
	if idx == nil {
		return nil
	}
	result := make([]*Descriptor, len(idx.all))
	copy(result, idx.all)
	return result
}
