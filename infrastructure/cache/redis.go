package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// KeyPrefix namespaces result keys in a shared Redis.
const KeyPrefix = "reelscout:results:"

// redisStore is the subset of the go-redis API the cache uses.
type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Redis stores results as JSON under KeyPrefix.
type Redis struct {
	store  redisStore
	ttl    time.Duration
	logger zerolog.Logger
}

var _ ports.ResultCache = (*Redis)(nil)

// NewRedis connects to the server at rawURL.
func NewRedis(rawURL string, ttl time.Duration, logger zerolog.Logger) (*Redis, error) {
	if rawURL == "" {
		return nil, ports.NewConfigError("cache.redis_url", ports.ErrConfigNotFound)
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, ports.NewConfigError("cache.redis_url", err)
	}

	logger.Info().Str("addr", opts.Addr).Dur("ttl", ttl).Msg("redis result cache configured")
	return newRedisWithStore(redis.NewClient(opts), ttl, logger), nil
}

func newRedisWithStore(store redisStore, ttl time.Duration, logger zerolog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Close releases the connection pool.
func (r *Redis) Close() error { return r.store.Close() }

// Get reads and decodes results. A missing key is a miss, not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]domain.RankedResult, bool, error) {
	data, err := r.store.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ports.NewCacheError(key, "get", err)
	}

	var results []domain.RankedResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, ports.NewCacheError(key, "get", fmt.Errorf("%w: %w", ports.ErrCacheCorrupted, err))
	}
	return results, true, nil
}

// Set encodes and stores results for ttl, or the cache default when ttl is
// zero.
func (r *Redis) Set(ctx context.Context, key string, results []domain.RankedResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	data, err := json.Marshal(results)
	if err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	if err := r.store.Set(ctx, KeyPrefix+key, data, ttl).Err(); err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	r.logger.Debug().Str("key", key).Int("results", len(results)).Dur("ttl", ttl).Msg("results cached")
	return nil
}
