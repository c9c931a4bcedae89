package memo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements a Redis-backed memoizer for JSON-serializable values.
// Cached failures are stored as a marker payload so the error TTL discipline
// survives process restarts.
type Redis struct {
	client *redis.Client
	config Config
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Config holds common memoizer configuration
	Config Config
}

// DefaultRedisConfig returns a default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Config: DefaultConfig(),
	}
}

// envelope is the stored representation of a memoized result.
type envelope struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewRedis creates a Redis-backed memoizer, verifying connectivity first.
func NewRedis(config RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client, config: config.Config}, nil
}

// NewRedisWithClient creates a Redis-backed memoizer with an existing client.
func NewRedisWithClient(client *redis.Client, config Config) *Redis {
	return &Redis{client: client, config: config}
}

// GetOrCompute returns the cached value for key, computing it on a miss.
// Values round-trip through JSON, so a computed map comes back as
// map[string]interface{} regardless of its original concrete type.
func (r *Redis) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	fullKey := r.config.Prefix + key

	data, err := r.client.Get(ctx, fullKey).Bytes()
	if err == nil {
		var env envelope
		if err := json.Unmarshal(data, &env); err == nil {
			if env.Error != "" {
				return nil, fmt.Errorf("%w: %s", ErrCachedFailure, env.Error)
			}
			var value interface{}
			if err := json.Unmarshal(env.Value, &value); err == nil {
				return value, nil
			}
		}
		// Undecodable entry: fall through and recompute.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	value, computeErr := fn()

	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}

	var env envelope
	if computeErr != nil {
		env.Error = computeErr.Error()
		if r.config.ErrorTTL > 0 && r.config.ErrorTTL < ttl {
			ttl = r.config.ErrorTTL
		}
	} else {
		encoded, err := json.Marshal(value)
		if err != nil {
			// Not serializable: return the value uncached.
			return value, nil
		}
		env.Value = encoded
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return value, computeErr
	}
	if err := r.client.Set(ctx, fullKey, payload, ttl).Err(); err != nil {
		return value, computeErr
	}

	return value, computeErr
}

// Forget drops a cached entry.
func (r *Redis) Forget(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.config.Prefix+key).Err()
}
