package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/ratelimit/memory"
	redisstore "github.com/gramflow/gramflow/pkg/ratelimit/redis"
)

// NewLimiter creates the action rate limiter. A Redis URL selects the
// shared store all workers see; an empty URL falls back to an in-memory
// store, which only limits correctly in single-process setups.
func NewLimiter(ctx context.Context, logger *slog.Logger, redisURL string, opts ...ratelimit.Option) (*ratelimit.Limiter, goredis.UniversalClient, error) {
	opts = append([]ratelimit.Option{ratelimit.WithLogger(logger)}, opts...)

	if redisURL == "" {
		logger.WarnContext(ctx, "No Redis URL configured, using in-memory rate limit store")

		return ratelimit.NewLimiter(memory.NewStore(), opts...), nil, nil
	}

	redisOpts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return ratelimit.NewLimiter(redisstore.NewStore(client), opts...), client, nil
}
