package memo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	m := NewRedisWithClient(client, Config{
		DefaultTTL: time.Minute,
		ErrorTTL:   time.Second,
		Prefix:     "t:",
	})
	return m, srv
}

func TestRedisGetOrCompute(t *testing.T) {
	t.Run("computes once and serves from cache", func(t *testing.T) {
		m, _ := setupRedis(t)

		calls := 0
		fn := func() (interface{}, error) {
			calls++
			return map[string]interface{}{"name": "posts"}, nil
		}

		first, err := m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		require.NoError(t, err)

		second, err := m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, first, second)
	})

	t.Run("failure is cached with the error TTL", func(t *testing.T) {
		m, srv := setupRedis(t)

		calls := 0
		fn := func() (interface{}, error) {
			calls++
			return nil, errors.New("upstream down")
		}

		_, err := m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		require.Error(t, err)

		_, err = m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		assert.ErrorIs(t, err, ErrCachedFailure)
		assert.Equal(t, 1, calls)

		// After the error TTL elapses the computation runs again.
		srv.FastForward(2 * time.Second)

		_, err = m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("forget drops the entry", func(t *testing.T) {
		m, _ := setupRedis(t)

		calls := 0
		fn := func() (interface{}, error) {
			calls++
			return float64(calls), nil
		}

		_, err := m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		require.NoError(t, err)
		require.NoError(t, m.Forget(context.Background(), "k"))

		got, err := m.GetOrCompute(context.Background(), "k", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, float64(2), got)
	})
}
