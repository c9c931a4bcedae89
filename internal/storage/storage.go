// Package storage defines the query collaborator the resolution layer depends
// on, plus a database/sql reference implementation. The core treats storage
// purely as an interface; callers may substitute any backend that satisfies
// Store.
package storage

import (
	"context"
	"errors"
)

// Record is the generic row shape the resolution layer works with.
type Record = map[string]interface{}

// Common storage error types
var (
	// ErrNotFound is returned when a single-record query matches nothing
	ErrNotFound = errors.New("record not found")

	// ErrInvalidQuery is returned when a query has no table
	ErrInvalidQuery = errors.New("invalid query: table is required")
)

// Query describes a generic record lookup. Filters are ANDed equality
// predicates; IDIn, when set, restricts to a batch of ids in one round trip.
type Query struct {
	Table   string
	Filters map[string]interface{}
	IDIn    []string
	OrderBy string
	Limit   int
}

// CatalogRow is one entry of the storage-side table catalog.
type CatalogRow struct {
	ID   int64
	Name string
}

// Store is the injected storage collaborator.
type Store interface {
	// Single returns exactly one record or ErrNotFound.
	Single(ctx context.Context, q Query) (Record, error)

	// Many returns all records matching the query.
	Many(ctx context.Context, q Query) ([]Record, error)

	// Catalog returns the storage-side table catalog used for
	// startup reconciliation.
	Catalog(ctx context.Context) ([]CatalogRow, error)
}
