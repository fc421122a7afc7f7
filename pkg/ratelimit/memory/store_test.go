package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/ratelimit/memory"
)

func TestHashRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 1, "a": 1}, time.Hour))
	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 2}, time.Hour))

	fields, err := store.ReadHash(ctx, "counters")
	require.NoError(t, err)

	assert.Equal(t, int64(3), fields["total"])
	assert.Equal(t, int64(1), fields["a"])
}

func TestSortedSetOrdersByScore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.AddToSortedSet(ctx, "history", 30, "third", time.Hour))
	require.NoError(t, store.AddToSortedSet(ctx, "history", 10, "first", time.Hour))
	require.NoError(t, store.AddToSortedSet(ctx, "history", 20, "second", time.Hour))

	members, err := store.SortedSetMembers(ctx, "history")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, members)
}

func TestGetValueMissingKey(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	_, err := store.GetValue(ctx, "missing")
	assert.ErrorIs(t, err, ratelimit.ErrNotFound)
}

func TestKeysExpire(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))

	require.NoError(t, store.SetValue(ctx, "scalar", "v", time.Minute))
	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 1}, time.Minute))
	require.NoError(t, store.AddToSortedSet(ctx, "history", 1, "m", time.Minute))

	now = now.Add(30 * time.Second)

	value, err := store.GetValue(ctx, "scalar")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	now = now.Add(31 * time.Second)

	_, err = store.GetValue(ctx, "scalar")
	assert.ErrorIs(t, err, ratelimit.ErrNotFound)

	fields, err := store.ReadHash(ctx, "counters")
	require.NoError(t, err)
	assert.Empty(t, fields)

	members, err := store.SortedSetMembers(ctx, "history")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestWriteRefreshesExpiry(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))

	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 1}, time.Minute))

	now = now.Add(45 * time.Second)
	require.NoError(t, store.IncrementHash(ctx, "counters", map[string]int64{"total": 1}, time.Minute))

	// 90s after the first write but only 45s after the refresh.
	now = now.Add(45 * time.Second)

	fields, err := store.ReadHash(ctx, "counters")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fields["total"])
}
