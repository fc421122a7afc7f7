// Package events defines the event types exchanged between the ingestion
// consumer, the worker and observers of execution lifecycle.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/gramflow/gramflow/pkg/models"
)

// EventType discriminates event payloads on the wire.
type EventType string

// Topic is the bus topic every event travels on.
const Topic = "gramflow.events"

// Message metadata keys.
const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	// Inbound social events, published by the ingestion consumer.
	TriggerCommentReceivedEvent EventType = "trigger.comment.received"
	TriggerDMReceivedEvent      EventType = "trigger.dm.received"

	// Execution lifecycle events, published by the worker.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
)

// BaseEvent carries the fields common to every event.
type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	AccountID  string         `json:"account_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope for an event.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// TriggerCommentReceived announces an inbound comment. WorkflowID is
// empty: the worker matches the event against active workflows itself.
type TriggerCommentReceived struct {
	BaseEvent

	Comment models.CommentEvent `json:"comment"`
}

func (e TriggerCommentReceived) GetType() EventType {
	return TriggerCommentReceivedEvent
}

// TriggerDMReceived announces an inbound direct message.
type TriggerDMReceived struct {
	BaseEvent

	DM models.DMEvent `json:"dm"`
}

func (e TriggerDMReceived) GetType() EventType {
	return TriggerDMReceivedEvent
}

// WorkflowExecutionStarted announces that the engine began a run.
type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	TriggerKind models.TriggerKind `json:"trigger_kind"`
}

func (e WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

// WorkflowExecutionCompleted announces a successful run.
type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

// WorkflowExecutionFailed announces a failed run with the engine's error.
type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}
