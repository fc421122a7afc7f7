package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// statsReporter periodically logs per-workflow action counts so operators
// can see how close each workflow runs to its limits.
type statsReporter struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	limiter     *ratelimit.Limiter
	cron        *cron.Cron
}

func newStatsReporter(logger *slog.Logger, persist persistence.Persistence, limiter *ratelimit.Limiter) *statsReporter {
	return &statsReporter{
		logger:      logger.With("module", "stats_reporter"),
		persistence: persist,
		limiter:     limiter,
		cron:        cron.New(),
	}
}

func (r *statsReporter) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc("@hourly", func() {
		r.report(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()

	return nil
}

func (r *statsReporter) Stop() {
	<-r.cron.Stop().Done()
}

func (r *statsReporter) report(ctx context.Context) {
	workflows, err := r.persistence.WorkflowRepository().Workflows(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list workflows for stats report", "error", err)

		return
	}

	for _, workflow := range workflows {
		if !workflow.IsExecutable() {
			continue
		}

		stats, err := r.limiter.Stats(ctx, workflow.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to read action stats",
				"workflow_id", workflow.ID, "error", err)

			continue
		}

		limits := workflow.Limits()

		r.logger.InfoContext(ctx, "Workflow action stats",
			"workflow_id", workflow.ID,
			"hourly_total", stats.Hourly.Total,
			"hourly_limit", limits.MaxActionsPerHour,
			"daily_total", stats.Daily.Total,
			"daily_limit", limits.MaxActionsPerDay,
		)
	}
}
