package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/otelhelper"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed  bool
	Reason   string
	WaitTime time.Duration
}

// Limiter gates outbound social actions per workflow and action type.
//
// A permission check and the matching RecordAction are two separate store
// round-trips, not one atomic operation: under concurrency, checks that
// overlap before either records can overshoot the configured cap by at
// most the number of in-flight checkers. The limits are a safety margin
// against platform throttling, not a hard guarantee, so this slack is
// accepted rather than paid for with a per-workflow lock.
type Limiter struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	random func() float64
}

// Option configures the Limiter.
type Option func(*Limiter)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger.With("module", "ratelimit") }
}

// WithTracer sets the tracer for permission check and record spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Limiter) { l.tracer = tracer }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithRandom overrides the uniform [0,1) source used for the
// minimum-delay draw, for tests.
func WithRandom(random func() float64) Option {
	return func(l *Limiter) { l.random = random }
}

// NewLimiter creates a limiter on top of the given store.
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		logger: slog.Default().With("module", "ratelimit"),
		tracer: noop.NewTracerProvider().Tracer("ratelimit"),
		now:    time.Now,
		random: rand.Float64,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// CanPerformAction decides whether the workflow may perform an action of
// the given type right now. Checks short-circuit in a fixed order: the
// action-type gate, the daily cap, the hourly cap, then the minimum
// inter-action delay.
//
// The minimum-delay threshold is a fresh uniform draw from
// [MinDelaySeconds, MaxDelaySeconds] on every check, so an immediate
// retry with identical elapsed time can be judged against a different
// threshold. This mirrors how the platform evaluates the jittered gap and
// keeps outbound timing non-uniform.
func (l *Limiter) CanPerformAction(ctx context.Context, workflowID string, actionType models.ActionType, limits models.RateLimitConfig) (*Decision, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "limiter.check",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ActionTypeKey, string(actionType)),
	)
	defer span.End()

	decision, err := l.check(ctx, workflowID, actionType, limits)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Bool(otelhelper.AllowedKey, decision.Allowed))

	return decision, nil
}

func (l *Limiter) check(ctx context.Context, workflowID string, actionType models.ActionType, limits models.RateLimitConfig) (*Decision, error) {
	if !limits.ActionEnabled(actionType) {
		return &Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s actions are disabled for this workflow", actionType),
		}, nil
	}

	now := l.now()

	stats, err := l.Stats(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to read action stats for workflow %s: %w", workflowID, err)
	}

	if limits.MaxActionsPerDay > 0 && stats.Daily.Total >= limits.MaxActionsPerDay {
		midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

		return &Decision{
			Allowed:  false,
			Reason:   fmt.Sprintf("daily limit of %d actions reached", limits.MaxActionsPerDay),
			WaitTime: midnight.Sub(now),
		}, nil
	}

	if limits.MaxActionsPerHour > 0 && stats.Hourly.Total >= limits.MaxActionsPerHour {
		nextHour := now.Truncate(time.Hour).Add(time.Hour)

		return &Decision{
			Allowed:  false,
			Reason:   fmt.Sprintf("hourly limit of %d actions reached", limits.MaxActionsPerHour),
			WaitTime: nextHour.Sub(now),
		}, nil
	}

	lastRaw, err := l.store.GetValue(ctx, lastActionKey(workflowID))

	switch {
	case err == nil:
		last, parseErr := time.Parse(time.RFC3339Nano, lastRaw)
		if parseErr != nil {
			// A corrupt scalar only loses delay memory; treat as no
			// previous action rather than blocking the workflow.
			l.logger.WarnContext(ctx, "Discarding unparsable last-action timestamp",
				"workflow_id", workflowID, "value", lastRaw)

			break
		}

		required := l.drawDelay(limits)
		if elapsed := now.Sub(last); elapsed < required {
			return &Decision{
				Allowed:  false,
				Reason:   fmt.Sprintf("minimum delay of %s between actions not yet elapsed", required.Round(time.Millisecond)),
				WaitTime: required - elapsed,
			}, nil
		}
	case errors.Is(err, ErrNotFound):
		// No previous action: the delay check passes trivially.
	default:
		return nil, fmt.Errorf("failed to read last action for workflow %s: %w", workflowID, err)
	}

	return &Decision{Allowed: true}, nil
}

// RecordAction registers a permitted action: it increments the daily
// counters, appends to the current hour's history and overwrites the
// last-action timestamp. Called unconditionally after the limiter allowed
// an action, whether or not the social call itself succeeded, so the
// counters reflect permitted attempts.
func (l *Limiter) RecordAction(ctx context.Context, workflowID string, actionType models.ActionType, metadata map[string]string) error {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "limiter.record",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ActionTypeKey, string(actionType)),
	)
	defer span.End()

	err := l.record(ctx, workflowID, actionType, metadata)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (l *Limiter) record(ctx context.Context, workflowID string, actionType models.ActionType, metadata map[string]string) error {
	now := l.now()

	record := models.ActionRecord{Timestamp: now, Type: actionType, Metadata: metadata}

	member, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode action record: %w", err)
	}

	err = l.store.IncrementHash(ctx, dailyKey(workflowID, now), map[string]int64{
		totalField:         1,
		string(actionType): 1,
	}, dailyExpiry)
	if err != nil {
		return fmt.Errorf("failed to increment daily counters for workflow %s: %w", workflowID, err)
	}

	err = l.store.AddToSortedSet(ctx, hourlyKey(workflowID, now), float64(now.UnixMilli()), string(member), hourlyExpiry)
	if err != nil {
		return fmt.Errorf("failed to append hourly action for workflow %s: %w", workflowID, err)
	}

	err = l.store.SetValue(ctx, lastActionKey(workflowID), now.Format(time.RFC3339Nano), lastActionExpiry)
	if err != nil {
		return fmt.Errorf("failed to store last action for workflow %s: %w", workflowID, err)
	}

	l.logger.DebugContext(ctx, "Recorded action",
		"workflow_id", workflowID, "action_type", actionType)

	return nil
}

// Stats aggregates the workflow's recorded actions for the current
// calendar day and the current hour. The daily hash is already
// aggregated; the hourly split is re-derived by scanning the current
// hour's entries, since the store keeps no per-type hourly counter.
func (l *Limiter) Stats(ctx context.Context, workflowID string) (*models.ActionStats, error) {
	now := l.now()

	daily, err := l.store.ReadHash(ctx, dailyKey(workflowID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to read daily counters for workflow %s: %w", workflowID, err)
	}

	stats := &models.ActionStats{
		Daily:  models.ActionBucket{ByType: make(map[models.ActionType]int)},
		Hourly: models.ActionBucket{ByType: make(map[models.ActionType]int)},
	}

	for field, count := range daily {
		if field == totalField {
			stats.Daily.Total = int(count)

			continue
		}

		stats.Daily.ByType[models.ActionType(field)] = int(count)
	}

	hourly, err := l.hourRecords(ctx, hourlyKey(workflowID, now))
	if err != nil {
		return nil, err
	}

	for _, record := range hourly {
		stats.Hourly.Total++
		stats.Hourly.ByType[record.Type]++
	}

	return stats, nil
}

// History returns the workflow's most recent actions, newest first,
// merged from the current and previous hour's entries. Used for
// observability and debugging, never for the allow/deny decision.
func (l *Limiter) History(ctx context.Context, workflowID string, limit int) ([]models.ActionRecord, error) {
	now := l.now()

	current, err := l.hourRecords(ctx, hourlyKey(workflowID, now))
	if err != nil {
		return nil, err
	}

	previous, err := l.hourRecords(ctx, hourlyKey(workflowID, now.Add(-time.Hour)))
	if err != nil {
		return nil, err
	}

	records := append(previous, current...)

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (l *Limiter) hourRecords(ctx context.Context, key string) ([]models.ActionRecord, error) {
	members, err := l.store.SortedSetMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read hourly actions: %w", err)
	}

	records := make([]models.ActionRecord, 0, len(members))

	for _, member := range members {
		var record models.ActionRecord
		if err := json.Unmarshal([]byte(member), &record); err != nil {
			// Skip malformed history entries rather than failing the check.
			l.logger.WarnContext(ctx, "Skipping unparsable action record", "member", member)

			continue
		}

		records = append(records, record)
	}

	return records, nil
}

// drawDelay picks the required inter-action gap for this check, uniform
// over [MinDelaySeconds, MaxDelaySeconds].
func (l *Limiter) drawDelay(limits models.RateLimitConfig) time.Duration {
	minDelay := time.Duration(limits.MinDelaySeconds) * time.Second
	maxDelay := time.Duration(limits.MaxDelaySeconds) * time.Second

	if maxDelay <= minDelay {
		return minDelay
	}

	return minDelay + time.Duration(l.random()*float64(maxDelay-minDelay))
}
