package preload

import (
	"context"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/pointer"
	"github.com/latticekit/lattice/internal/storage"
)

// Engine walks object graphs and batch-resolves embedded pointers through a
// pointer.Resolver. Per-table batches are issued sequentially in the calling
// context; there are no background workers.
type Engine struct {
	resolver *pointer.Resolver
	log      *zap.Logger
}

// NewEngine creates a preload engine.
func NewEngine(resolver *pointer.Resolver, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{resolver: resolver, log: log}
}

// Preload resolves the pointers at every given path inside the graph. The
// graph may be a single record, a list of records, or a page wrapper holding
// an edge list; wrappers are preserved and only their edges transformed.
//
// A pointer that cannot be resolved stays in place as its unresolved
// placeholder; one bad reference never fails the rest of the graph.
// Nested paths are handled iteratively: each round consumes one path
// element, so termination is by construction.
func (e *Engine) Preload(ctx context.Context, graph interface{}, paths []Path, opts ...pointer.Option) error {
	roots := rootsOf(graph)
	if len(roots) == 0 {
		return nil
	}

	for _, path := range paths {
		current := roots
		for _, key := range path {
			next, err := e.preloadLevel(ctx, current, key, opts)
			if err != nil {
				return err
			}
			if len(next) == 0 {
				break
			}
			current = next
		}
	}
	return nil
}

// PreloadKey is the single-key fast path: one level, no nesting.
func (e *Engine) PreloadKey(ctx context.Context, graph interface{}, key string, opts ...pointer.Option) error {
	roots := rootsOf(graph)
	if len(roots) == 0 {
		return nil
	}
	_, err := e.preloadLevel(ctx, roots, key, opts)
	return err
}

// preloadLevel resolves the pointers at key across all roots and returns the
// records now sitting there, which become the roots of the next level.
func (e *Engine) preloadLevel(ctx context.Context, roots []storage.Record, key string, opts []pointer.Option) ([]storage.Record, error) {
	var pending []slot
	var pointers []*pointer.Pointer
	var next []storage.Record

	for _, root := range roots {
		for _, s := range slotsAt(root, key) {
			switch v := s.get().(type) {
			case *pointer.Pointer:
				if v.IsResolved() {
					s.set(v.Resolved)
					next = append(next, v.Resolved)
					continue
				}
				pending = append(pending, s)
				pointers = append(pointers, v)
			case storage.Record:
				// Already concrete; only relevant for nested paths.
				next = append(next, v)
			}
		}
	}

	if len(pointers) == 0 {
		return next, nil
	}

	if err := e.resolver.Resolve(ctx, pointers, opts...); err != nil {
		return nil, err
	}

	for i, s := range pending {
		p := pointers[i]
		if !p.IsResolved() {
			// Leave the unresolved placeholder in place.
			e.log.Debug("preload left pointer unresolved",
				zap.String("key", key),
				zap.String("id", p.ID),
				zap.Int64("table_id", p.TableID),
			)
			continue
		}
		s.set(p.Resolved)
		next = append(next, p.Resolved)
	}

	return next, nil
}
