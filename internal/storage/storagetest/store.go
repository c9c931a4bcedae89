// Package storagetest provides an in-memory Store for tests that need to
// assert on query behavior, most importantly how many queries a resolution
// issued.
package storagetest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/latticekit/lattice/internal/storage"
)

// Store is an in-memory storage.Store recording every query it serves.
type Store struct {
	mu      sync.Mutex
	tables  map[string][]storage.Record
	catalog []storage.CatalogRow
	queries []storage.Query
}

// New creates an empty test store.
func New() *Store {
	return &Store{tables: make(map[string][]storage.Record)}
}

// Seed adds records to a table. Records without an "id" get a generated one.
func (s *Store) Seed(table string, records ...storage.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		if _, ok := record["id"]; !ok {
			record["id"] = uuid.NewString()
		}
	}
	s.tables[table] = append(s.tables[table], records...)
}

// SeedCatalog sets the table catalog.
func (s *Store) SeedCatalog(rows ...storage.CatalogRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append(s.catalog, rows...)
}

// Queries returns every data query served so far (catalog reads excluded).
func (s *Store) Queries() []storage.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]storage.Query, len(s.queries))
	copy(result, s.queries)
	return result
}

// QueryCount returns the number of data queries served so far.
func (s *Store) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// Single implements storage.Store.
func (s *Store) Single(ctx context.Context, q storage.Query) (storage.Record, error) {
	records, err := s.Many(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// Many implements storage.Store.
func (s *Store) Many(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, q)

	var results []storage.Record
	for _, record := range s.tables[q.Table] {
		if matches(record, q) {
			results = append(results, record)
		}
		if q.Limit > 0 && len(results) == q.Limit {
			break
		}
	}
	return results, nil
}

// Catalog implements storage.Store.
func (s *Store) Catalog(ctx context.Context) ([]storage.CatalogRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]storage.CatalogRow, len(s.catalog))
	copy(result, s.catalog)
	return result, nil
}

func matches(record storage.Record, q storage.Query) bool {
	if len(q.IDIn) > 0 {
		id, _ := record["id"].(string)
		found := false
		for _, want := range q.IDIn {
			if id == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for field, want := range q.Filters {
		if record[field] != want {
			return false
		}
	}
	return true
}
