package pointer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/boundary"
	"github.com/latticekit/lattice/internal/storage"
	"github.com/latticekit/lattice/internal/table"
)

// SingleQuerier is the custom single-record query contract a table's schema
// may implement, replacing the generic id-filtered select.
type SingleQuerier interface {
	QueryRecord(ctx context.Context, store storage.Store, id string) (storage.Record, error)
}

// BatchQuerier is the custom batch query contract a table's schema may
// implement. A batch must stay one storage round trip.
type BatchQuerier interface {
	QueryRecords(ctx context.Context, store storage.Store, ids []string) ([]storage.Record, error)
}

// Resolver turns generic pointers into concrete records via table-directed
// dispatch.
type Resolver struct {
	tables   *table.Registry
	store    storage.Store
	boundary boundary.Filter
	log      *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBoundary installs the optional permission-filter collaborator. Leaving
// it out means "skip the extra narrowing", not "bypass storage access rules".
func WithBoundary(f boundary.Filter) ResolverOption {
	return func(r *Resolver) { r.boundary = f }
}

// WithLogger sets the resolver's logger.
func WithLogger(log *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver creates a pointer resolver.
func NewResolver(tables *table.Registry, store storage.Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		tables: tables,
		store:  store,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// One performs a single generic record lookup. Permission denials collapse
// into ErrNotFound so absence and denial are indistinguishable to callers;
// the actual cause is logged at debug level only.
func (r *Resolver) One(ctx context.Context, q storage.Query, opts ...Option) (storage.Record, error) {
	o := buildOptions(opts)

	q, err := r.applyBoundary(ctx, q, o)
	if err != nil {
		r.log.Debug("single lookup denied by boundary",
			zap.String("table", q.Table),
			zap.Error(err),
		)
		return nil, ErrNotFound
	}

	record, err := r.store.Single(ctx, q)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.log.Debug("single lookup missed", zap.String("table", q.Table))
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// Follow resolves one pointer in place:
//  1. look up the pointer's table descriptor;
//  2. virtual table: cast the known fields, zero storage queries;
//  3. otherwise exactly one query restricted to the pointer's id, through
//     the schema's own query implementation if it declares one.
//
// Under default options both "not found" and "permission denied" leave the
// pointer unresolved and return nil. Strict mode surfaces the failure.
func (r *Resolver) Follow(ctx context.Context, p *Pointer, opts ...Option) error {
	o := buildOptions(opts)

	if p.IsResolved() && !o.Refresh {
		return nil
	}

	desc, ok := r.tables.LookupID(p.TableID)
	if !ok {
		if o.Strict {
			return fmt.Errorf("%w: id %d", ErrUnknownTable, p.TableID)
		}
		r.log.Debug("pointer references unknown table, leaving unresolved",
			zap.Int64("table_id", p.TableID),
			zap.String("id", p.ID),
		)
		return nil
	}

	if desc.Virtual {
		p.castVirtual()
		return nil
	}

	record, err := r.fetchOne(ctx, desc, p.ID, o)
	if err != nil {
		if o.Strict {
			return err
		}
		r.log.Debug("pointer resolution degraded",
			zap.String("table", desc.Name),
			zap.String("id", p.ID),
			zap.Error(err),
		)
		return nil
	}

	p.attach(record)
	return nil
}

// Resolve batch-resolves pointers, grouping by table and issuing exactly one
// query per distinct table. A failure on one pointer degrades that pointer
// only; in strict mode the first failure aborts.
func (r *Resolver) Resolve(ctx context.Context, ps []*Pointer, opts ...Option) error {
	o := buildOptions(opts)

	groups := make(map[int64][]*Pointer)
	var tableIDs []int64
	for _, p := range ps {
		if p == nil || (p.IsResolved() && !o.Refresh) {
			continue
		}
		if _, seen := groups[p.TableID]; !seen {
			tableIDs = append(tableIDs, p.TableID)
		}
		groups[p.TableID] = append(groups[p.TableID], p)
	}
	sort.Slice(tableIDs, func(i, j int) bool { return tableIDs[i] < tableIDs[j] })

	for _, tableID := range tableIDs {
		if err := r.resolveGroup(ctx, tableID, groups[tableID], o); err != nil {
			return err
		}
	}
	return nil
}

// resolveGroup resolves all pointers of one table with a single query.
func (r *Resolver) resolveGroup(ctx context.Context, tableID int64, group []*Pointer, o Options) error {
	desc, ok := r.tables.LookupID(tableID)
	if !ok {
		if o.Strict {
			return fmt.Errorf("%w: id %d", ErrUnknownTable, tableID)
		}
		r.log.Debug("batch group references unknown table, leaving unresolved",
			zap.Int64("table_id", tableID),
			zap.Int("pointers", len(group)),
		)
		return nil
	}

	if desc.Virtual {
		for _, p := range group {
			p.castVirtual()
		}
		return nil
	}

	ids := distinctIDs(group)

	records, err := r.fetchBatch(ctx, desc, ids, o)
	if err != nil {
		if o.Strict {
			return err
		}
		r.log.Debug("batch resolution degraded",
			zap.String("table", desc.Name),
			zap.Int("pointers", len(group)),
			zap.Error(err),
		)
		return nil
	}

	byID := make(map[string]storage.Record, len(records))
	for _, record := range records {
		if id, ok := record["id"].(string); ok {
			byID[id] = record
		}
	}

	for _, p := range group {
		record, found := byID[p.ID]
		if !found {
			if o.Strict {
				return fmt.Errorf("%w: %s in %s", ErrNotFound, p.ID, desc.Name)
			}
			continue
		}
		p.attach(record)
	}
	return nil
}

// fetchOne issues the single-record query for a pointer.
func (r *Resolver) fetchOne(ctx context.Context, desc *table.Descriptor, id string, o Options) (storage.Record, error) {
	if querier, ok := desc.Schema.(SingleQuerier); ok {
		record, err := querier.QueryRecord(ctx, r.store, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, id, desc.Name)
			}
			return nil, err
		}
		return record, nil
	}

	q := storage.Query{Table: desc.Name, IDIn: []string{id}}
	q, err := r.applyBoundary(ctx, q, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, id, desc.Name)
	}

	record, err := r.store.Single(ctx, q)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, id, desc.Name)
		}
		return nil, err
	}
	return record, nil
}

// fetchBatch issues the one batched query for a table group.
func (r *Resolver) fetchBatch(ctx context.Context, desc *table.Descriptor, ids []string, o Options) ([]storage.Record, error) {
	if querier, ok := desc.Schema.(BatchQuerier); ok {
		return querier.QueryRecords(ctx, r.store, ids)
	}

	q := storage.Query{Table: desc.Name, IDIn: ids}
	q, err := r.applyBoundary(ctx, q, o)
	if err != nil {
		return nil, fmt.Errorf("%w: batch in %s", ErrNotFound, desc.Name)
	}

	return r.store.Many(ctx, q)
}

// applyBoundary narrows a query through the optional boundary filter.
func (r *Resolver) applyBoundary(ctx context.Context, q storage.Query, o Options) (storage.Query, error) {
	if r.boundary == nil || o.SkipBoundary {
		return q, nil
	}
	return r.boundary.Apply(ctx, q)
}

func distinctIDs(group []*Pointer) []string {
	seen := make(map[string]bool, len(group))
	var ids []string
	for _, p := range group {
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
