package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/ratelimit/memory"
)

func openLimits() models.RateLimitConfig {
	return models.RateLimitConfig{
		MaxActionsPerDay:      100,
		MaxActionsPerHour:     50,
		MinDelaySeconds:       0,
		MaxDelaySeconds:       0,
		CommentRepliesEnabled: true,
		DMSendsEnabled:        true,
	}
}

func TestCanPerformActionDisabledType(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(memory.NewStore())

	limits := openLimits()
	limits.DMSendsEnabled = false

	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeDMSend, limits)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "disabled for this workflow")
	assert.Zero(t, decision.WaitTime, "the type gate consults no counters")
}

func TestCanPerformActionAllowsWhenUnderLimits(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(memory.NewStore())

	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeCommentReply, openLimits())
	require.NoError(t, err)

	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reason)
}

func TestCanPerformActionDailyCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	limiter := ratelimit.NewLimiter(memory.NewStore(), ratelimit.WithClock(func() time.Time { return now }))

	limits := openLimits()
	limits.MaxActionsPerDay = 2

	for range 2 {
		require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))
	}

	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "daily limit of 2")
	// 10:30 -> next midnight is 13h30m away.
	assert.Equal(t, 13*time.Hour+30*time.Minute, decision.WaitTime)
}

func TestCanPerformActionHourlyCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 45, 0, 0, time.UTC)
	limiter := ratelimit.NewLimiter(memory.NewStore(), ratelimit.WithClock(func() time.Time { return now }))

	limits := openLimits()
	limits.MaxActionsPerHour = 3

	for range 4 {
		require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeDMSend, nil))
	}

	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeDMSend, limits)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "hourly limit of 3")
	assert.Equal(t, 15*time.Minute, decision.WaitTime)
}

func TestCanPerformActionMinimumDelay(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limiter := ratelimit.NewLimiter(memory.NewStore(), ratelimit.WithClock(clock))

	// Degenerate [10,10] range pins the random draw to exactly 10s.
	limits := openLimits()
	limits.MinDelaySeconds = 10
	limits.MaxDelaySeconds = 10

	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))

	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "minimum delay")
	assert.Equal(t, 10*time.Second, decision.WaitTime)

	// Once the gap has elapsed the same check passes.
	now = now.Add(11 * time.Second)

	decision, err = limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestMinimumDelayIsRedrawnPerCheck(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	draws := []float64{0.0, 1.0}
	limiter := ratelimit.NewLimiter(memory.NewStore(),
		ratelimit.WithClock(func() time.Time { return now }),
		ratelimit.WithRandom(func() float64 {
			draw := draws[0]
			draws = draws[1:]

			return draw
		}),
	)

	limits := openLimits()
	limits.MinDelaySeconds = 10
	limits.MaxDelaySeconds = 60

	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))
	now = now.Add(15 * time.Second)

	// First check draws the low end (10s): 15s elapsed passes.
	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// An immediate retry with identical elapsed time draws the high end
	// (60s) and is denied: the threshold is re-drawn on every check.
	decision, err = limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeCommentReply, limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 45*time.Second, decision.WaitTime)
}

func TestStatsSplitsByType(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewLimiter(memory.NewStore(), ratelimit.WithClock(func() time.Time { return now }))

	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))
	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))
	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeDMSend, nil))

	stats, err := limiter.Stats(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Daily.Total)
	assert.Equal(t, 2, stats.Daily.ByType[models.ActionTypeCommentReply])
	assert.Equal(t, 1, stats.Daily.ByType[models.ActionTypeDMSend])

	assert.Equal(t, 3, stats.Hourly.Total)
	assert.Equal(t, 2, stats.Hourly.ByType[models.ActionTypeCommentReply])
	assert.Equal(t, 1, stats.Hourly.ByType[models.ActionTypeDMSend])
}

func TestStatsIsolatedPerWorkflow(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(memory.NewStore())

	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))

	stats, err := limiter.Stats(ctx, "wf-2")
	require.NoError(t, err)

	assert.Zero(t, stats.Daily.Total)
	assert.Zero(t, stats.Hourly.Total)
}

func TestHistoryMergesCurrentAndPreviousHour(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 50, 0, 0, time.UTC)
	limiter := ratelimit.NewLimiter(memory.NewStore(), ratelimit.WithClock(func() time.Time { return now }))

	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply,
		map[string]string{"comment_id": "c1"}))

	// Cross the hour boundary and record two more.
	now = now.Add(15 * time.Minute)
	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeDMSend, nil))
	now = now.Add(1 * time.Minute)
	require.NoError(t, limiter.RecordAction(ctx, "wf-1", models.ActionTypeCommentReply, nil))

	history, err := limiter.History(ctx, "wf-1", 10)
	require.NoError(t, err)

	require.Len(t, history, 3)
	assert.Equal(t, models.ActionTypeCommentReply, history[0].Type)
	assert.Equal(t, models.ActionTypeDMSend, history[1].Type)
	assert.Equal(t, "c1", history[2].Metadata["comment_id"])
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))

	truncated, err := limiter.History(ctx, "wf-1", 2)
	require.NoError(t, err)
	assert.Len(t, truncated, 2)
}

// TestConcurrentCheckThenRecordOvershoot pins the documented race: the
// check and the record are separate round-trips, so overlapping checkers
// can exceed the cap, but never by more than the number of concurrent
// checkers — and once everything settles, further checks are denied.
func TestConcurrentCheckThenRecordOvershoot(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(memory.NewStore())

	limits := openLimits()
	limits.MaxActionsPerHour = 5

	const workers = 20

	var wg sync.WaitGroup

	allowed := make(chan struct{}, workers)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeDMSend, limits)
			if err != nil || !decision.Allowed {
				return
			}

			allowed <- struct{}{}

			_ = limiter.RecordAction(ctx, "wf-1", models.ActionTypeDMSend, nil)
		}()
	}

	wg.Wait()
	close(allowed)

	permitted := len(allowed)
	assert.GreaterOrEqual(t, permitted, limits.MaxActionsPerHour)
	assert.LessOrEqual(t, permitted, workers)

	decision, err := limiter.CanPerformAction(ctx, "wf-1", models.ActionTypeDMSend, limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "once recorded, the cap holds")
}
