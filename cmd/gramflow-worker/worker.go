package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/gramflow/gramflow/pkg/engine"
	"github.com/gramflow/gramflow/pkg/eventbus"
	"github.com/gramflow/gramflow/pkg/events"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/registry"
)

// WorkerManager subscribes to inbound trigger events and runs every
// matching active workflow through the engine.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	engine      *engine.Engine
}

func NewWorkerManager(
	id string,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	reg *registry.Registry,
	tracer trace.Tracer,
) *WorkerManager {
	workerLogger := logger.With("module", "gramflow-worker", "worker_id", id)

	return &WorkerManager{
		id:          id,
		logger:      workerLogger,
		persistence: persist,
		registry:    reg,
		eventBus:    eventBus,
		engine: engine.NewEngine(persist, reg,
			engine.WithLogger(workerLogger),
			engine.WithEventBus(eventBus),
			engine.WithTracer(tracer),
		),
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.TriggerCommentReceivedEvent, w.handleCommentReceived)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.TriggerDMReceivedEvent, w.handleDMReceived)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down worker...")
	case <-ctx.Done():
	}

	return nil
}

func (w *WorkerManager) handleCommentReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.TriggerCommentReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerCommentReceived")

		return nil
	}

	trigger := models.NewCommentTrigger(received.Comment)

	return w.dispatch(ctx, received.AccountID, trigger)
}

func (w *WorkerManager) handleDMReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.TriggerDMReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerDMReceived")

		return nil
	}

	trigger := models.NewDMTrigger(received.DM)

	return w.dispatch(ctx, received.AccountID, trigger)
}

// dispatch runs every executable workflow that listens for this trigger
// kind on the event's account. Execution failures are recorded by the
// engine, not redelivered: a nil return acks the message either way.
func (w *WorkerManager) dispatch(ctx context.Context, accountID string, trigger *models.TriggerEvent) error {
	workflows, err := w.persistence.WorkflowRepository().Workflows(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to list workflows", "error", err)

		return err
	}

	for _, workflow := range workflows {
		if !workflow.IsExecutable() || !workflow.HasTriggerFor(trigger.Kind) {
			continue
		}

		if accountID != "" && workflow.Credentials.AccountID != accountID {
			continue
		}

		logger := w.logger.With("workflow_id", workflow.ID, "trigger_kind", trigger.Kind)
		logger.InfoContext(ctx, "Dispatching trigger event to workflow")

		result := w.engine.Run(ctx, workflow, trigger)
		if result.Error != nil {
			logger.ErrorContext(ctx, "Workflow execution failed",
				"execution_id", result.ExecutionID, "error", result.Error)

			continue
		}

		logger.InfoContext(ctx, "Workflow execution finished", "execution_id", result.ExecutionID)
	}

	return nil
}
