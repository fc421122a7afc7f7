// Package engine drives workflow executions: it compiles the graph into
// phases, fans nodes of a phase out concurrently, records every state
// transition and aggregates node outputs for later phases.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gramflow/gramflow/pkg/eventbus"
	"github.com/gramflow/gramflow/pkg/events"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/otelhelper"
	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/plan"
	"github.com/gramflow/gramflow/pkg/registry"
)

const defaultNodeTimeout = 30 * time.Second

// ErrExecutionCancelled reports that an operator cancelled the execution
// between phases.
var ErrExecutionCancelled = errors.New("execution cancelled")

// Result is the outcome of one engine run.
type Result struct {
	Success     bool
	ExecutionID string
	Error       error
}

// Engine runs workflows. Phases execute strictly in order; nodes within a
// phase run concurrently and their outputs are merged into the shared
// context only after the whole phase settled.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer
	nodeTimeout time.Duration
	now         func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("module", "engine") }
}

// WithEventBus makes the engine publish execution lifecycle events.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(e *Engine) { e.eventBus = bus }
}

// WithTracer sets the tracer for execution and node spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithNodeTimeout bounds a single node's execution. A node that exceeds
// the bound is treated as failed; it cannot block its phase indefinitely.
func WithNodeTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.nodeTimeout = timeout }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine on top of the given persistence and node
// registry.
func NewEngine(persist persistence.Persistence, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		persistence: persist,
		registry:    reg,
		logger:      slog.Default().With("module", "engine"),
		tracer:      noop.NewTracerProvider().Tracer("engine"),
		nodeTimeout: defaultNodeTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes the workflow against one trigger event. Structural graph
// errors surface in the Result before any state is persisted; from the
// first phase on, every node start and settlement is recorded.
func (e *Engine) Run(ctx context.Context, workflow *models.Workflow, trigger *models.TriggerEvent) *Result {
	if trigger == nil {
		return &Result{Error: errors.New("no trigger event supplied")}
	}

	if err := trigger.Validate(); err != nil {
		return &Result{Error: fmt.Errorf("invalid trigger event: %w", err)}
	}

	execPlan, err := plan.Compile(workflow.Nodes, workflow.Edges)
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to compile workflow graph: %w", err)}
	}

	startedAt := e.now()

	execution := &models.WorkflowExecution{
		ID:          newExecutionID(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionStatusRunning,
		TriggerKind: trigger.Kind,
		TriggerData: trigger.Data(),
		StartedAt:   startedAt,
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.TriggerKindKey, string(trigger.Kind)),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)
	logger.InfoContext(ctx, "Starting workflow execution",
		"trigger_kind", trigger.Kind, "phases", len(execPlan.Phases), "nodes", execPlan.NodeCount())

	e.saveExecution(ctx, execution)
	e.publish(ctx, workflow.ID, events.WorkflowExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionStartedEvent, workflow.ID),
		ExecutionID: execution.ID,
		TriggerKind: trigger.Kind,
	})

	execCtx := models.ExecutionContext{
		ID:          execution.ID,
		WorkflowID:  workflow.ID,
		Trigger:     trigger,
		NodeOutputs: make(map[string]map[string]any),
		RateLimits:  workflow.Limits(),
		Credentials: workflow.Credentials,
		Variables:   make(map[string]any),
		Metadata:    make(map[string]any),
	}

	for _, phase := range execPlan.Phases {
		if err := e.checkCancelled(ctx, execution.ID); err != nil {
			e.skipFrom(ctx, execution.ID, execPlan, phase.Index)

			if errors.Is(err, ErrExecutionCancelled) {
				logger.InfoContext(ctx, "Execution cancelled, skipping remaining phases",
					"phase", phase.Index)

				return &Result{ExecutionID: execution.ID, Error: err}
			}

			e.finalizeExecution(ctx, execution, models.ExecutionStatusFailed, err)
			otelhelper.SetError(span, err)

			return &Result{ExecutionID: execution.ID, Error: err}
		}

		if phaseErr := e.runPhase(ctx, logger, phase, &execCtx); phaseErr != nil {
			e.skipFrom(ctx, execution.ID, execPlan, phase.Index+1)
			e.finalizeExecution(ctx, execution, models.ExecutionStatusFailed, phaseErr)
			e.publish(ctx, workflow.ID, events.WorkflowExecutionFailed{
				BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionFailedEvent, workflow.ID),
				ExecutionID: execution.ID,
				Error:       phaseErr.Error(),
				Duration:    e.now().Sub(startedAt),
			})
			otelhelper.SetError(span, phaseErr)
			logger.ErrorContext(ctx, "Workflow execution failed",
				"phase", phase.Index, "error", phaseErr)

			return &Result{ExecutionID: execution.ID, Error: phaseErr}
		}
	}

	e.finalizeExecution(ctx, execution, models.ExecutionStatusSuccess, nil)
	e.publish(ctx, workflow.ID, events.WorkflowExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, workflow.ID),
		ExecutionID: execution.ID,
		Duration:    e.now().Sub(startedAt),
	})
	logger.InfoContext(ctx, "Workflow execution completed",
		"duration", e.now().Sub(startedAt))

	return &Result{Success: true, ExecutionID: execution.ID}
}

type nodeResult struct {
	node    *models.Node
	record  *models.NodeExecution
	outputs map[string]any
	err     error
}

// runPhase starts every node of the phase together and waits for all of
// them to settle. Outputs of successful nodes are merged into the shared
// context after the fan-in barrier; sibling successes are kept even when
// the phase fails.
func (e *Engine) runPhase(ctx context.Context, logger *slog.Logger, phase plan.Phase, execCtx *models.ExecutionContext) error {
	logger.InfoContext(ctx, "Starting phase", "phase", phase.Index, "nodes", len(phase.Nodes))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []nodeResult
	)

	for _, node := range phase.Nodes {
		record := &models.NodeExecution{
			ID:          newRecordID(),
			ExecutionID: execCtx.ID,
			NodeID:      node.ID,
			NodeKind:    node.Kind,
			Status:      models.NodeStatusRunning,
			StartedAt:   e.now(),
			Inputs:      node.Config,
		}

		if !node.Enabled {
			record.Status = models.NodeStatusSkipped
			record.CompletedAt = ptr(e.now())
			e.saveNodeExecution(ctx, record)
			logger.InfoContext(ctx, "Node is disabled, skipping", "node_id", node.ID)

			continue
		}

		e.saveNodeExecution(ctx, record)

		wg.Add(1)

		go func(node *models.Node, record *models.NodeExecution) {
			defer wg.Done()

			outputs, err := e.runNode(ctx, node, *execCtx, phase.Index)

			mu.Lock()
			results = append(results, nodeResult{node: node, record: record, outputs: outputs, err: err})
			mu.Unlock()
		}(node, record)
	}

	wg.Wait()

	var phaseErr error

	for _, result := range results {
		record := result.record
		record.CompletedAt = ptr(e.now())

		if result.err != nil {
			record.Status = models.NodeStatusFailed
			record.ErrorMessage = result.err.Error()
			e.saveNodeExecution(ctx, record)

			if phaseErr == nil {
				phaseErr = fmt.Errorf("node %s failed: %w", result.node.ID, result.err)
			}

			continue
		}

		record.Status = models.NodeStatusSuccess
		record.Outputs = result.outputs
		e.saveNodeExecution(ctx, record)

		execCtx.NodeOutputs[result.node.ID] = result.outputs
	}

	return phaseErr
}

// runNode instantiates and executes one node under the engine's timeout.
// A node that outruns the bound fails; its eventual return is discarded.
func (e *Engine) runNode(ctx context.Context, node *models.Node, execCtx models.ExecutionContext, phaseIndex int) (map[string]any, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "node.execute",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
		attribute.Int(otelhelper.PhaseIndexKey, phaseIndex),
	)
	defer span.End()

	instance, err := e.registry.CreateNode(ctx, *node)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	nodeCtx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
	defer cancel()

	type settled struct {
		outputs map[string]any
		err     error
	}

	done := make(chan settled, 1)

	go func() {
		outputs, execErr := instance.Execute(nodeCtx, execCtx)
		done <- settled{outputs: outputs, err: execErr}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			otelhelper.SetError(span, result.err)
		}

		return result.outputs, result.err
	case <-nodeCtx.Done():
		err := fmt.Errorf("node %s timed out after %s", node.ID, e.nodeTimeout)
		otelhelper.SetError(span, err)

		return nil, err
	}
}

// checkCancelled re-reads the execution between phases: an operator marks
// it cancelled through the API, the engine honors it cooperatively.
// In-flight nodes are never interrupted, only future phases.
func (e *Engine) checkCancelled(ctx context.Context, executionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("execution context done: %w", err)
	}

	current, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
	if err != nil {
		// Persistence is observability, not a transaction boundary: an
		// unreadable record does not stop the run.
		e.logger.WarnContext(ctx, "Failed to re-read execution for cancellation check",
			"execution_id", executionID, "error", err)

		return nil
	}

	if current.Status == models.ExecutionStatusCancelled {
		return ErrExecutionCancelled
	}

	return nil
}

// skipFrom records SKIPPED for every node of the phases at or after
// fromIndex that has not started yet.
func (e *Engine) skipFrom(ctx context.Context, executionID string, execPlan *plan.ExecutionPlan, fromIndex int) {
	for _, phase := range execPlan.Phases {
		if phase.Index < fromIndex {
			continue
		}

		for _, node := range phase.Nodes {
			now := e.now()
			e.saveNodeExecution(ctx, &models.NodeExecution{
				ID:          newRecordID(),
				ExecutionID: executionID,
				NodeID:      node.ID,
				NodeKind:    node.Kind,
				Status:      models.NodeStatusSkipped,
				StartedAt:   now,
				CompletedAt: &now,
			})
		}
	}
}

func (e *Engine) finalizeExecution(ctx context.Context, execution *models.WorkflowExecution, status models.ExecutionStatus, cause error) {
	execution.Status = status
	execution.CompletedAt = ptr(e.now())

	if cause != nil {
		execution.ErrorMessage = cause.Error()
	}

	e.saveExecution(ctx, execution)
}

// saveExecution persists fire-and-forget: the engine never rolls an
// execution back because observability storage hiccuped.
func (e *Engine) saveExecution(ctx context.Context, execution *models.WorkflowExecution) {
	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist execution",
			"execution_id", execution.ID, "error", err)
	}
}

func (e *Engine) saveNodeExecution(ctx context.Context, record *models.NodeExecution) {
	if err := e.persistence.ExecutionRepository().SaveNodeExecution(ctx, record); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist node execution",
			"execution_id", record.ExecutionID, "node_id", record.NodeID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func newExecutionID() string {
	return "exec-" + uuid.New().String()[:8]
}

func newRecordID() string {
	return "nrec-" + uuid.New().String()[:8]
}

func ptr[T any](v T) *T {
	return &v
}
