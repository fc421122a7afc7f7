// Package redis implements ratelimit.Store on Redis, so every worker
// process gates actions against the same counters. Daily counters live in
// Hashes, hourly history in Sorted Sets, the last-action timestamp in a
// plain key; everything carries an expiry and self-prunes.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := redisstore.NewStore(client)
//	limiter := ratelimit.NewLimiter(store)
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// Compile-time interface check.
var _ ratelimit.Store = (*Store)(nil)

// Store implements ratelimit.Store backed by Redis. The caller owns the
// Redis client lifecycle.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger.With("module", "ratelimit_redis") }
}

// NewStore creates a Redis-backed rate-limit store.
func NewStore(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) IncrementHash(ctx context.Context, key string, fields map[string]int64, expiry time.Duration) error {
	pipe := s.client.TxPipeline()

	for field, delta := range fields {
		pipe.HIncrBy(ctx, key, field, delta)
	}

	pipe.Expire(ctx, key, expiry)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment hash %s: %w", key, err)
	}

	return nil
}

func (s *Store) ReadHash(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash %s: %w", key, err)
	}

	fields := make(map[string]int64, len(raw))

	for field, value := range raw {
		count, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			s.logger.WarnContext(ctx, "Skipping non-numeric hash field",
				"key", key, "field", field, "value", value)

			continue
		}

		fields[field] = count
	}

	return fields, nil
}

func (s *Store) AddToSortedSet(ctx context.Context, key string, score float64, member string, expiry time.Duration) error {
	pipe := s.client.TxPipeline()

	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, key, expiry)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add to sorted set %s: %w", key, err)
	}

	return nil
}

func (s *Store) SortedSetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sorted set %s: %w", key, err)
	}

	return members, nil
}

func (s *Store) SetValue(ctx context.Context, key, value string, expiry time.Duration) error {
	err := s.client.Set(ctx, key, value, expiry).Err()
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}

func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ratelimit.ErrNotFound
		}

		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}

	return value, nil
}
