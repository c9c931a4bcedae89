// Package pointer resolves generic, type-erased record references into their
// concrete, table-specific records. A Pointer carries only an id and a table
// id; the registry decides which table - and therefore which record shape and
// which query path - it belongs to.
package pointer

import (
	"errors"
	"fmt"

	"github.com/latticekit/lattice/internal/storage"
	"github.com/latticekit/lattice/internal/table"
)

// Common resolution error types. Permission denials surface as ErrNotFound
// at this boundary so callers cannot distinguish "absent" from "hidden".
var (
	// ErrNotFound is returned by strict resolution when the target is
	// absent or access-denied.
	ErrNotFound = errors.New("pointer target not found")

	// ErrUnknownTable is returned by strict resolution when the pointer's
	// table id is not in the registry.
	ErrUnknownTable = errors.New("unknown table")
)

// Pointer is a minimal generic reference: an id plus the opaque id of the
// table it lives in. A pointer has a single logical owner per call and is
// never mutated concurrently.
type Pointer struct {
	ID      string
	TableID int64

	// Resolved holds the concrete record once attached. Fields present
	// before resolution survive a fetch; they are never clobbered.
	Resolved storage.Record

	resolved bool
}

// Forge constructs a pointer cheaply from an already-typed record. No I/O
// happens; the record itself becomes the resolved payload.
func Forge(record storage.Record, desc *table.Descriptor) (*Pointer, error) {
	id, ok := record["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("cannot forge pointer: record has no string id")
	}
	return &Pointer{
		ID:       id,
		TableID:  desc.ID,
		Resolved: record,
		resolved: true,
	}, nil
}

// Bare constructs an unresolved pointer, typically from storage columns.
func Bare(id string, tableID int64) *Pointer {
	return &Pointer{ID: id, TableID: tableID}
}

// IsResolved reports whether a concrete record has been attached.
func (p *Pointer) IsResolved() bool {
	return p.resolved
}

// attach merges a freshly fetched record under any fields already populated
// on the pointer, then marks it resolved.
func (p *Pointer) attach(fetched storage.Record) {
	if p.Resolved == nil {
		p.Resolved = fetched
		p.resolved = true
		return
	}
	for field, value := range fetched {
		if _, exists := p.Resolved[field]; !exists {
			p.Resolved[field] = value
		}
	}
	p.resolved = true
}

// castVirtual marks a virtual-table pointer resolved using only its known
// fields. Zero storage queries by construction.
func (p *Pointer) castVirtual() {
	if p.Resolved == nil {
		p.Resolved = storage.Record{}
	}
	if _, exists := p.Resolved["id"]; !exists {
		p.Resolved["id"] = p.ID
	}
	p.resolved = true
}

// Options control resolution behavior.
type Options struct {
	// Strict surfaces ErrNotFound and ErrUnknownTable instead of
	// degrading to the unresolved pointer.
	Strict bool

	// Refresh re-fetches even if a payload is already attached.
	Refresh bool

	// SkipBoundary bypasses the optional boundary filter for this call.
	// Storage-level constraints still apply.
	SkipBoundary bool
}

// Option configures a single resolution call.
type Option func(*Options)

// Strict makes resolution failures surface as errors.
func Strict() Option {
	return func(o *Options) { o.Strict = true }
}

// Refresh forces a re-fetch of already-resolved pointers.
func Refresh() Option {
	return func(o *Options) { o.Refresh = true }
}

// SkipBoundary skips the boundary filter for this call.
func SkipBoundary() Option {
	return func(o *Options) { o.SkipBoundary = true }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
