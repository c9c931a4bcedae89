package memo

import (
	"context"
	"sync"
	"time"
)

// Memory implements an in-process memoizer with TTL support.
type Memory struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

// entry represents one memoized computation result.
type entry struct {
	value      interface{}
	err        error
	expiration time.Time
}

// NewMemory creates an in-process memoizer with default configuration.
func NewMemory() *Memory {
	return NewMemoryWithConfig(DefaultConfig())
}

// NewMemoryWithConfig creates an in-process memoizer with custom configuration.
func NewMemoryWithConfig(config Config) *Memory {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{
		config: config,
		cancel: cancel,
	}

	go m.sweepExpired(ctx)

	return m
}

// GetOrCompute returns the cached value for key, computing it on a miss.
// Concurrent misses on the same key may compute more than once; callers are
// expected to memoize pure computations where a duplicate build is harmless.
func (m *Memory) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	if cached, ok := m.data.Load(fullKey); ok {
		e := cached.(entry)
		if e.expiration.IsZero() || time.Now().Before(e.expiration) {
			return e.value, e.err
		}
		m.data.Delete(fullKey)
	}

	value, err := fn()

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if err != nil && m.config.ErrorTTL > 0 && m.config.ErrorTTL < ttl {
		ttl = m.config.ErrorTTL
	}

	e := entry{value: value, err: err}
	if ttl > 0 {
		e.expiration = time.Now().Add(ttl)
	}
	m.data.Store(fullKey, e)

	return value, err
}

// Forget drops a cached entry.
func (m *Memory) Forget(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Close stops the background sweeper.
func (m *Memory) Close() {
	m.cancel()
}

// sweepExpired periodically removes expired entries.
func (m *Memory) sweepExpired(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.data.Range(func(key, value interface{}) bool {
				e := value.(entry)
				if !e.expiration.IsZero() && now.After(e.expiration) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
