// Package boundary provides the optional permission-filter collaborator.
// A Filter narrows a storage query before it is issued; when no filter is
// installed the resolver skips the extra narrowing. That is fail-open only in
// the sense of "no additional restriction" - storage must still enforce its
// own baseline constraints independently.
package boundary

import (
	"context"
	"errors"

	"github.com/latticekit/lattice/internal/storage"
)

// ErrPermissionDenied is returned when the caller may not see the queried
// records at all.
var ErrPermissionDenied = errors.New("permission denied")

// Filter transforms a query to enforce an access boundary.
type Filter interface {
	Apply(ctx context.Context, q storage.Query) (storage.Query, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(ctx context.Context, q storage.Query) (storage.Query, error)

// Apply implements Filter.
func (f FilterFunc) Apply(ctx context.Context, q storage.Query) (storage.Query, error) {
	return f(ctx, q)
}
