package engine_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramflow/gramflow/pkg/engine"
	"github.com/gramflow/gramflow/pkg/eventbus"
	"github.com/gramflow/gramflow/pkg/events"
	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/plan"
	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/ratelimit/memory"
	"github.com/gramflow/gramflow/pkg/registry"
)

// memPersistence is a minimal in-memory persistence for engine tests.
type memPersistence struct {
	mu              sync.Mutex
	executions      map[string]*models.WorkflowExecution
	nodeExecutions  []*models.NodeExecution
	onSaveExecution func(*models.WorkflowExecution)
}

func newMemPersistence() *memPersistence {
	return &memPersistence{executions: make(map[string]*models.WorkflowExecution)}
}

func (p *memPersistence) WorkflowRepository() persistence.WorkflowRepository { return nil }

func (p *memPersistence) ExecutionRepository() persistence.ExecutionRepository { return p }

func (p *memPersistence) HealthCheck(context.Context) error { return nil }

func (p *memPersistence) Close(context.Context) error { return nil }

func (p *memPersistence) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clone := *execution
	if p.onSaveExecution != nil {
		p.onSaveExecution(&clone)
	}

	p.executions[clone.ID] = &clone

	return nil
}

func (p *memPersistence) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	execution, ok := p.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	clone := *execution

	return &clone, nil
}

func (p *memPersistence) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []*models.WorkflowExecution

	for _, execution := range p.executions {
		if execution.WorkflowID == workflowID {
			clone := *execution
			result = append(result, &clone)
		}
	}

	return result, nil
}

func (p *memPersistence) SaveNodeExecution(_ context.Context, record *models.NodeExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clone := *record

	for i, existing := range p.nodeExecutions {
		if existing.ID == clone.ID {
			p.nodeExecutions[i] = &clone

			return nil
		}
	}

	p.nodeExecutions = append(p.nodeExecutions, &clone)

	return nil
}

func (p *memPersistence) NodeExecutions(_ context.Context, executionID string) ([]*models.NodeExecution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []*models.NodeExecution

	for _, record := range p.nodeExecutions {
		if record.ExecutionID == executionID {
			clone := *record
			result = append(result, &clone)
		}
	}

	return result, nil
}

func (p *memPersistence) recordsByStatus(executionID string, status models.NodeStatus) []*models.NodeExecution {
	records, _ := p.NodeExecutions(context.Background(), executionID)

	var result []*models.NodeExecution

	for _, record := range records {
		if record.Status == status {
			result = append(result, record)
		}
	}

	return result
}

// recordingBus captures published events without a transport.
type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	return nil
}

func (b *recordingBus) Handle(events.EventType, eventbus.EventHandler) error { return nil }

func (b *recordingBus) Subscribe(context.Context) error { return nil }

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) GenerateID() string { return "test" }

func (b *recordingBus) types() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []events.EventType
	for _, event := range b.events {
		result = append(result, event.GetType())
	}

	return result
}

func newTestRegistry(client instagram.Client) *registry.Registry {
	r := registry.NewRegistry(slog.Default())
	r.RegisterDefaults(ratelimit.NewLimiter(memory.NewStore()), client)

	return r
}

func commentTrigger(text string) *models.TriggerEvent {
	return models.NewCommentTrigger(models.CommentEvent{
		ID:       "c-1",
		Text:     text,
		PostID:   "p-1",
		UserID:   "u-1",
		Username: "ada",
	})
}

func activeWorkflow(nodes []*models.Node, edges []*models.Edge) *models.Workflow {
	return &models.Workflow{
		ID:          "wf-1",
		Name:        "price responder",
		Status:      models.WorkflowStatusActive,
		Nodes:       nodes,
		Edges:       edges,
		Credentials: models.Credentials{AccountID: "acct-1", AccessToken: "tok"},
	}
}

func TestTrivialTriggerWorkflow(t *testing.T) {
	persist := newMemPersistence()
	eng := engine.NewEngine(persist, newTestRegistry(instagram.NewFake()))

	workflow := activeWorkflow([]*models.Node{
		{ID: "a", Kind: models.NodeKindCommentTrigger, Enabled: true, Config: map[string]any{}},
	}, nil)

	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	require.NotEmpty(t, result.ExecutionID)

	execution, err := persist.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.NotNil(t, execution.CompletedAt)

	records, err := persist.NodeExecutions(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.NodeStatusSuccess, records[0].Status)
	assert.Equal(t, "a", records[0].NodeID)
}

func TestCommentReplyFlow(t *testing.T) {
	persist := newMemPersistence()
	client := instagram.NewFake()
	bus := &recordingBus{}
	eng := engine.NewEngine(persist, newTestRegistry(client), engine.WithEventBus(bus))

	workflow := activeWorkflow([]*models.Node{
		{ID: "a", Kind: models.NodeKindCommentTrigger, Enabled: true, Config: map[string]any{
			"include_keywords": []any{"price"},
		}},
		{ID: "b", Kind: models.NodeKindReply, Enabled: true, Config: map[string]any{
			"public_replies": []any{"Check your DM!"},
			"dm_message":     "Here is our price list",
		}},
	}, []*models.Edge{
		{Source: "a", Target: "b"},
	})

	result := eng.Run(context.Background(), workflow, commentTrigger("what's the price?"))

	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	// The reply and the follow-up DM both went out.
	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "ReplyToComment", calls[0].Method)
	assert.Equal(t, "SendDirectMessage", calls[1].Method)

	records, err := persist.NodeExecutions(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, record := range records {
		assert.Equal(t, models.NodeStatusSuccess, record.Status)
	}

	assert.Equal(t, []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.WorkflowExecutionCompletedEvent,
	}, bus.types())
}

func TestTriggerMismatchFailsExecution(t *testing.T) {
	persist := newMemPersistence()
	client := instagram.NewFake()
	eng := engine.NewEngine(persist, newTestRegistry(client))

	workflow := activeWorkflow([]*models.Node{
		{ID: "a", Kind: models.NodeKindCommentTrigger, Enabled: true, Config: map[string]any{
			"include_keywords": []any{"sale"},
		}},
		{ID: "b", Kind: models.NodeKindReply, Enabled: true, Config: map[string]any{
			"public_replies": []any{"hi"},
		}},
	}, []*models.Edge{
		{Source: "a", Target: "b"},
	})

	result := eng.Run(context.Background(), workflow, commentTrigger("no relevant content"))

	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "did not match")

	execution, err := persist.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.NotEmpty(t, execution.ErrorMessage)

	// The downstream action never started and never reached the client.
	assert.Empty(t, client.Calls())
	skipped := persist.recordsByStatus(result.ExecutionID, models.NodeStatusSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "b", skipped[0].NodeID)
}

func TestGraphErrorPersistsNothing(t *testing.T) {
	persist := newMemPersistence()
	eng := engine.NewEngine(persist, newTestRegistry(instagram.NewFake()))

	workflow := activeWorkflow([]*models.Node{
		{ID: "a", Kind: models.NodeKindCommentTrigger, Enabled: true},
		{ID: "b", Kind: models.NodeKindReply, Enabled: true},
	}, []*models.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "a"},
	})

	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.Error(t, result.Error)
	assert.True(t, plan.IsGraphError(result.Error))
	assert.Empty(t, result.ExecutionID)
	assert.Empty(t, persist.executions)
	assert.Empty(t, persist.nodeExecutions)
}

func TestSiblingSuccessKeptOnPhaseFailure(t *testing.T) {
	persist := newMemPersistence()
	eng := engine.NewEngine(persist, newTestRegistry(instagram.NewFake()))

	// Two independent entry points share phase 0; the comment event
	// matches one and mismatches the other.
	workflow := activeWorkflow([]*models.Node{
		{ID: "comment", Kind: models.NodeKindCommentTrigger, Enabled: true, Config: map[string]any{}},
		{ID: "dm", Kind: models.NodeKindDMTrigger, Enabled: true, Config: map[string]any{}},
	}, nil)

	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.Error(t, result.Error)

	successes := persist.recordsByStatus(result.ExecutionID, models.NodeStatusSuccess)
	failures := persist.recordsByStatus(result.ExecutionID, models.NodeStatusFailed)
	require.Len(t, successes, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, "comment", successes[0].NodeID)
	assert.Equal(t, "dm", failures[0].NodeID)
}

func TestDisabledNodeIsSkipped(t *testing.T) {
	persist := newMemPersistence()
	client := instagram.NewFake()
	eng := engine.NewEngine(persist, newTestRegistry(client))

	workflow := activeWorkflow([]*models.Node{
		{ID: "a", Kind: models.NodeKindCommentTrigger, Enabled: true, Config: map[string]any{}},
		{ID: "b", Kind: models.NodeKindReply, Enabled: false, Config: map[string]any{
			"public_replies": []any{"hi"},
		}},
	}, []*models.Edge{
		{Source: "a", Target: "b"},
	})

	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Empty(t, client.Calls())

	skipped := persist.recordsByStatus(result.ExecutionID, models.NodeStatusSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "b", skipped[0].NodeID)
}

func TestNodeTimeoutFailsNode(t *testing.T) {
	persist := newMemPersistence()
	eng := engine.NewEngine(persist, newTestRegistry(instagram.NewFake()),
		engine.WithNodeTimeout(50*time.Millisecond))

	workflow := activeWorkflow([]*models.Node{
		{ID: "d", Kind: models.NodeKindDelay, Enabled: true, Config: map[string]any{
			"seconds": 10,
		}},
	}, nil)

	start := time.Now()
	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCancelledExecutionSkipsPhases(t *testing.T) {
	persist := newMemPersistence()
	client := instagram.NewFake()

	// Simulate an operator cancelling right after the run is recorded.
	persist.onSaveExecution = func(execution *models.WorkflowExecution) {
		if execution.Status == models.ExecutionStatusRunning {
			execution.Status = models.ExecutionStatusCancelled
		}
	}

	eng := engine.NewEngine(persist, newTestRegistry(client))

	workflow := activeWorkflow([]*models.Node{
		{ID: "a", Kind: models.NodeKindCommentTrigger, Enabled: true, Config: map[string]any{}},
	}, nil)

	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.ErrorIs(t, result.Error, engine.ErrExecutionCancelled)
	assert.False(t, result.Success)
	assert.Empty(t, client.Calls())

	skipped := persist.recordsByStatus(result.ExecutionID, models.NodeStatusSkipped)
	require.Len(t, skipped, 1)
}

func TestRateLimitDenialIsANodeFailureWithReason(t *testing.T) {
	persist := newMemPersistence()
	eng := engine.NewEngine(persist, newTestRegistry(instagram.NewFake()))

	limits := models.DefaultRateLimits()
	limits.CommentRepliesEnabled = false

	workflow := activeWorkflow([]*models.Node{
		{ID: "b", Kind: models.NodeKindReply, Enabled: true, Config: map[string]any{
			"public_replies": []any{"hi"},
		}},
	}, nil)
	workflow.RateLimits = &limits

	result := eng.Run(context.Background(), workflow, commentTrigger("hello"))

	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "disabled for this workflow")

	failures := persist.recordsByStatus(result.ExecutionID, models.NodeStatusFailed)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ErrorMessage, "disabled for this workflow")
}
