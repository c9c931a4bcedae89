// Package lattice assembles the capability registry and record resolution
// collaborators into one runtime. Host applications register their extension
// components, warm the runtime, and hand the resolvers to request handlers.
package lattice

import (
	"context"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/boundary"
	"github.com/latticekit/lattice/internal/capability"
	"github.com/latticekit/lattice/internal/config"
	"github.com/latticekit/lattice/internal/extension"
	"github.com/latticekit/lattice/internal/introspect"
	"github.com/latticekit/lattice/internal/memo"
	"github.com/latticekit/lattice/internal/pointer"
	"github.com/latticekit/lattice/internal/preload"
	"github.com/latticekit/lattice/internal/resolve"
	"github.com/latticekit/lattice/internal/storage"
	"github.com/latticekit/lattice/internal/table"
)

// Re-exported collaborator types. Host code deals in these; the internal
// packages stay internal.
type (
	Component = extension.Component
	Unit      = extension.Unit
	LinkFn    = extension.LinkFn
	Contract  = capability.Contract
	Declarer  = capability.Declarer
	Record    = storage.Record
	Query     = storage.Query
	Store     = storage.Store
	Pointer   = pointer.Pointer
	TableDecl = table.Decl
	Path      = preload.Path
	Config    = config.Config

	CapabilityIndex  = capability.Index
	TableRegistry    = table.Registry
	PointerResolver  = pointer.Resolver
	PreloadEngine    = preload.Engine
	ContractResolver = resolve.Resolver
)

// ProbeFor builds a contract probe for the interface T.
func ProbeFor[T any]() func(interface{}) bool {
	return capability.ProbeFor[T]()
}

// Bare creates an unresolved pointer from a record id and table id.
func Bare(id string, tableID int64) *Pointer {
	return pointer.Bare(id, tableID)
}

// LoadConfig reads lattice.yml and the environment.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// Runtime owns the wired registries of one application.
type Runtime struct {
	cfg       *config.Config
	log       *zap.Logger
	memoizer  memo.Memoizer
	inventory *extension.Inventory
	index     *capability.Index
	store     storage.Store
	filter    boundary.Filter
	tables    *table.Registry
	pointers  *pointer.Resolver
	engine    *preload.Engine
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger shared by all collaborators.
func WithLogger(log *zap.Logger) RuntimeOption {
	return func(rt *Runtime) { rt.log = log }
}

// WithStore sets the storage collaborator. Without one the runtime still
// serves capability resolution; table and pointer operations need it.
func WithStore(store storage.Store) RuntimeOption {
	return func(rt *Runtime) { rt.store = store }
}

// WithMemoizer replaces the default in-process memoizer, e.g. with the
// redis-backed one for multi-process deployments.
func WithMemoizer(m memo.Memoizer) RuntimeOption {
	return func(rt *Runtime) { rt.memoizer = m }
}

// WithBoundary installs a custom permission filter, overriding the
// claims-scoped filter the configuration would build.
func WithBoundary(f boundary.Filter) RuntimeOption {
	return func(rt *Runtime) { rt.filter = f }
}

// NewRuntime wires a runtime from configuration.
func NewRuntime(cfg *config.Config, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(rt)
	}

	if rt.memoizer == nil {
		mc := memo.DefaultConfig()
		if cfg.Memo.TTL > 0 {
			mc.DefaultTTL = cfg.Memo.TTL
		}
		if cfg.Memo.ErrorTTL > 0 {
			mc.ErrorTTL = cfg.Memo.ErrorTTL
		}
		rt.memoizer = memo.NewMemoryWithConfig(mc)
	}
	if rt.filter == nil && cfg.Boundary.Secret != "" {
		rt.filter = boundary.NewClaimsFilter(cfg.Boundary.Secret, cfg.Boundary.TenantField)
	}

	rt.inventory = extension.NewInventory(cfg.Scope.Patterns, rt.log)
	rt.index = capability.NewIndex(rt.inventory,
		capability.WithLogger(rt.log),
		capability.WithMemoizer(rt.memoizer),
	)

	if rt.store != nil {
		rt.tables = table.NewRegistry(rt.inventory, rt.store, rt.log)

		pointerOpts := []pointer.ResolverOption{pointer.WithLogger(rt.log)}
		if rt.filter != nil {
			pointerOpts = append(pointerOpts, pointer.WithBoundary(rt.filter))
		}
		rt.pointers = pointer.NewResolver(rt.tables, rt.store, pointerOpts...)
		rt.engine = preload.NewEngine(rt.pointers, rt.log)
	}

	return rt
}

// Register adds an extension component. Components registered after Warm
// require a Rebuild to become visible in the snapshot.
func (rt *Runtime) Register(c *Component) error {
	return rt.inventory.Register(c)
}

// Warm builds the capability snapshot in the background and, when storage is
// wired, reconciles the table registry inline. Applications call it once
// after registering their components.
func (rt *Runtime) Warm(ctx context.Context) error {
	rt.index.Warm()
	if rt.tables != nil {
		return rt.tables.Build(ctx)
	}
	return nil
}

// Rebuild repopulates the capability snapshot from the current inventory.
func (rt *Runtime) Rebuild() {
	rt.index.Rebuild()
}

// Index exposes the capability index.
func (rt *Runtime) Index() *capability.Index {
	return rt.index
}

// Tables exposes the table registry. Nil without a store.
func (rt *Runtime) Tables() *table.Registry {
	return rt.tables
}

// Pointers exposes the pointer resolver. Nil without a store.
func (rt *Runtime) Pointers() *pointer.Resolver {
	return rt.pointers
}

// Preload exposes the graph preload engine. Nil without a store.
func (rt *Runtime) Preload() *preload.Engine {
	return rt.engine
}

// Resolver builds a contract resolver for a custom contract and link pairing.
func (rt *Runtime) Resolver(contract, ownerLink, selfLink string, opts ...resolve.Option) *resolve.Resolver {
	opts = append([]resolve.Option{resolve.WithLogger(rt.log)}, opts...)
	return resolve.New(rt.index, contract, ownerLink, selfLink, opts...)
}

// ContextResolver builds the standard Context resolver.
func (rt *Runtime) ContextResolver(opts ...resolve.Option) *resolve.Resolver {
	return rt.Resolver("Context", "schema", "context", opts...)
}

// QueryResolver builds the standard Query resolver.
func (rt *Runtime) QueryResolver(opts ...resolve.Option) *resolve.Resolver {
	return rt.Resolver("Query", "schema", "query", opts...)
}

// WidgetResolver builds the standard Widget resolver.
func (rt *Runtime) WidgetResolver(opts ...resolve.Option) *resolve.Resolver {
	return rt.Resolver("Widget", "schema", "widget", opts...)
}

// IntrospectionHandler returns the read-only HTTP debug surface, ready to
// mount on any router.
func (rt *Runtime) IntrospectionHandler() *introspect.Handler {
	return introspect.NewHandler(rt.index, rt.tables, rt.log)
}

// Close releases the runtime's background resources.
func (rt *Runtime) Close() error {
	switch closer := rt.memoizer.(type) {
	case interface{ Close() error }:
		return closer.Close()
	case interface{ Close() }:
		closer.Close()
	}
	return nil
}
