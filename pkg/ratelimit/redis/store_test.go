package redis

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisTc "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

var redisContainer *redisTc.RedisContainer

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error

	redisContainer, err = redisTc.Run(ctx, "redis:7-alpine")
	if err != nil {
		panic("Failed to start Redis container: " + err.Error())
	}

	code := m.Run()

	if err := redisContainer.Terminate(ctx); err != nil {
		panic("Failed to terminate Redis container: " + err.Error())
	}

	os.Exit(code)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	uri, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	client := goredis.NewClient(options)
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	store := NewStore(client)
	require.NoError(t, store.Ping(ctx))

	return store
}

func TestIncrementAndReadHash(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 1, "comment_reply": 1}, time.Hour))
	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 1}, time.Hour))

	fields, err := store.ReadHash(ctx, "counters")
	require.NoError(t, err)

	assert.Equal(t, int64(2), fields["total"])
	assert.Equal(t, int64(1), fields["comment_reply"])
}

func TestReadHashMissingKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fields, err := store.ReadHash(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSortedSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddToSortedSet(ctx, "history", 20, "second", time.Hour))
	require.NoError(t, store.AddToSortedSet(ctx, "history", 10, "first", time.Hour))

	members, err := store.SortedSetMembers(ctx, "history")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, members)
}

func TestValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SetValue(ctx, "last", "2026-03-14T10:00:00Z", time.Hour))

	value, err := store.GetValue(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14T10:00:00Z", value)

	_, err = store.GetValue(ctx, "missing")
	assert.ErrorIs(t, err, ratelimit.ErrNotFound)
}

func TestKeysCarryExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	uri, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	client := goredis.NewClient(options)
	defer client.Close()

	require.NoError(t, store.IncrementHash(ctx, "expiring", map[string]int64{"total": 1}, time.Hour))

	ttl, err := client.TTL(ctx, "expiring").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestLimiterOnRedis(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	limiter := ratelimit.NewLimiter(store)

	limits := models.DefaultRateLimits()
	limits.MaxActionsPerHour = 1
	limits.MinDelaySeconds = 0
	limits.MaxDelaySeconds = 0

	decision, err := limiter.CanPerformAction(ctx, "wf-redis", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	require.NoError(t, limiter.RecordAction(ctx, "wf-redis", models.ActionTypeCommentReply,
		map[string]string{"comment_id": "c1"}))

	decision, err = limiter.CanPerformAction(ctx, "wf-redis", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	history, err := limiter.History(ctx, "wf-redis", 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "c1", history[0].Metadata["comment_id"])
}
