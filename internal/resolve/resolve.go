// Package resolve answers "which unit provides behavior X for unit S"
// questions on top of the capability index. Each resolver pairs a capability
// contract (Context, Query, Widget, ...) with the link conventions that tie
// implementers to the schema units they serve.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/capability"
	"github.com/latticekit/lattice/internal/extension"
)

// ErrNotResolved is returned when every resolution strategy, including the
// fallback, came up empty.
var ErrNotResolved = errors.New("no implementation resolved")

// Fallback is invoked when all built-in strategies fail. It may supply a
// substitute unit or return an error, which is wrapped in ErrNotResolved
// semantics by the caller-facing API.
type Fallback func(ctx context.Context, unit *extension.Unit) (*extension.Unit, error)

// Resolver finds the implementation of one contract for a given unit.
type Resolver struct {
	ix       *capability.Index
	contract string
	// ownerLink is the link implementers declare to name the unit they
	// serve ("schema" on a Context unit pointing at its schema).
	ownerLink string
	// selfLink is the link a unit may declare to name its own counterpart
	// ("context" on a schema unit pointing at its context).
	selfLink string
	fallback Fallback
	log      *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback replaces the default warn-and-miss fallback.
func WithFallback(fb Fallback) Option {
	return func(r *Resolver) { r.fallback = fb }
}

// WithLogger sets the resolver's logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New creates a resolver for an arbitrary contract and link pairing.
func New(ix *capability.Index, contract, ownerLink, selfLink string, opts ...Option) *Resolver {
	r := &Resolver{
		ix:        ix,
		contract:  contract,
		ownerLink: ownerLink,
		selfLink:  selfLink,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fallback == nil {
		r.fallback = r.warnAndMiss
	}
	return r
}

// Standard resolver pairings. The contract and link names are conventions
// shared with extension authors.

// NewSchemaResolver resolves the schema unit backing another unit.
func NewSchemaResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Schema", "owner", "schema", opts...)
}

// NewContextResolver resolves the context implementation for a schema.
func NewContextResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Context", "schema", "context", opts...)
}

// NewQueryResolver resolves the custom query implementation for a schema.
func NewQueryResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Query", "schema", "query", opts...)
}

// NewWidgetResolver resolves the widget implementation for a schema.
func NewWidgetResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Widget", "schema", "widget", opts...)
}

// NewNavResolver resolves the navigation contribution for a schema.
func NewNavResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Nav", "schema", "nav", opts...)
}

// NewSettingsResolver resolves the settings surface for a schema.
func NewSettingsResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Settings", "schema", "settings", opts...)
}

// NewExtensionResolver resolves the extension entry point for a schema.
func NewExtensionResolver(ix *capability.Index, opts ...Option) *Resolver {
	return New(ix, "Extension", "schema", "extension", opts...)
}

// For resolves the contract implementation for the given unit. Strategies in
// order: the unit itself implements the contract; the reverse link map knows
// an implementer serving the unit; the unit's own counterpart link names one;
// the fallback. No strategy is allowed to panic past this chain.
func (r *Resolver) For(ctx context.Context, unit *extension.Unit) (*extension.Unit, error) {
	if unit == nil {
		return nil, fmt.Errorf("%w: %s for nil unit", ErrNotResolved, r.contract)
	}

	if resolved := r.bySelf(unit); resolved != nil {
		return resolved, nil
	}
	if resolved := r.byLinkMap(ctx, unit); resolved != nil {
		return resolved, nil
	}
	if resolved := r.byOwnLink(unit); resolved != nil {
		return resolved, nil
	}

	return r.fallback(ctx, unit)
}

// bySelf checks whether the unit itself implements the contract.
func (r *Resolver) bySelf(unit *extension.Unit) (resolved *extension.Unit) {
	defer func() {
		if rec := recover(); rec != nil {
			resolved = nil
		}
	}()

	contract, ok := r.ix.Snapshot().Contract(r.contract)
	if !ok || contract.Probe == nil {
		return nil
	}
	if contract.Probe(unit.Impl) {
		return unit
	}
	return nil
}

// byLinkMap consults the reverse map built from implementers' owner links.
func (r *Resolver) byLinkMap(ctx context.Context, unit *extension.Unit) *extension.Unit {
	maps, err := r.ix.ApplyLinks(ctx, r.contract, r.ownerLink)
	if err != nil {
		r.log.Warn("link map application failed",
			zap.String("contract", r.contract),
			zap.Error(err),
		)
		return nil
	}
	return maps.Reverse[unit.Name]
}

// byOwnLink asks the unit's own counterpart link as a last resort.
func (r *Resolver) byOwnLink(unit *extension.Unit) (resolved *extension.Unit) {
	defer func() {
		if rec := recover(); rec != nil {
			resolved = nil
		}
	}()

	fn, ok := unit.Link(r.selfLink)
	if !ok {
		return nil
	}
	target, err := fn()
	if err != nil || target == "" {
		return nil
	}
	linked, ok := r.ix.Unit(target)
	if !ok {
		return nil
	}
	return linked
}

// warnAndMiss is the default fallback: one warning, a not-found result.
func (r *Resolver) warnAndMiss(_ context.Context, unit *extension.Unit) (*extension.Unit, error) {
	r.log.Warn("no implementation found",
		zap.String("contract", r.contract),
		zap.String("unit", unit.Name),
	)
	return nil, fmt.Errorf("%w: %s for %s", ErrNotResolved, r.contract, unit.Name)
}
