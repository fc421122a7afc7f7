package models

import "time"

// ExecutionStatus defines the lifecycle states of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuccess   ExecutionStatus = "success"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal statuses are
// written exactly once; the record is immutable afterwards.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// WorkflowExecution is one run of a workflow against one trigger event.
type WorkflowExecution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	Status       ExecutionStatus `json:"status"`
	TriggerKind  TriggerKind     `json:"trigger_kind"`
	TriggerData  map[string]any  `json:"trigger_data,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NodeExecution is the persisted record of a single node's run within an
// execution. Created when the node starts, finalized once when it ends,
// never mutated afterwards.
type NodeExecution struct {
	ID           string         `json:"id"`
	ExecutionID  string         `json:"execution_id"`
	NodeID       string         `json:"node_id"`
	NodeKind     NodeKind       `json:"node_kind"`
	Status       NodeStatus     `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}
