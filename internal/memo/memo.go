// Package memo provides a keyed compute cache with TTL. It absorbs repeated
// expensive computations such as link-map application and schema-or-table
// resolution. Failed computations are cached too, with a short error TTL, so
// a failing upstream is not hammered on every call.
package memo

import (
	"context"
	"errors"
	"time"
)

// Memoizer is the memoization collaborator.
type Memoizer interface {
	// GetOrCompute returns the cached value for key, computing and caching
	// it with the given TTL on a miss.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error)

	// Forget drops a cached entry.
	Forget(ctx context.Context, key string) error
}

// Config holds common memoizer configuration.
type Config struct {
	// DefaultTTL is used when GetOrCompute is called with a zero TTL.
	DefaultTTL time.Duration
	// ErrorTTL bounds how long a failed computation is remembered.
	ErrorTTL time.Duration
	// Prefix is prepended to all keys.
	Prefix string
}

// DefaultConfig returns a default memoizer configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		ErrorTTL:   10 * time.Second,
		Prefix:     "lattice:",
	}
}

// ErrCachedFailure wraps a computation error served from cache.
var ErrCachedFailure = errors.New("cached computation failure")
