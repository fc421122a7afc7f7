// Package models defines the core domain models for node-based automation workflows.
package models

// NodeKind identifies the behavior of a workflow node.
type NodeKind string

const (
	NodeKindCommentTrigger NodeKind = "trigger:comment"
	NodeKindDMTrigger      NodeKind = "trigger:dm"
	NodeKindReply          NodeKind = "action:reply"
	NodeKindSendMessage    NodeKind = "action:send_message"
	NodeKindDelay          NodeKind = "delay"
)

// IsTrigger reports whether the kind is a trigger validation node.
func (k NodeKind) IsTrigger() bool {
	return k == NodeKindCommentTrigger || k == NodeKindDMTrigger
}

// IsAction reports whether the kind performs an outbound social action.
func (k NodeKind) IsAction() bool {
	return k == NodeKindReply || k == NodeKindSendMessage
}

// Node is a single step in a workflow graph. Nodes are immutable once an
// execution starts; the graph is re-read from the workflow on every run.
type Node struct {
	ID      string         `json:"id"      validate:"required"`
	Kind    NodeKind       `json:"kind"    validate:"required"`
	Name    string         `json:"name"`
	Config  map[string]any `json:"config"`
	Enabled bool           `json:"enabled"`
}

// Edge is a directed dependency between two nodes: Target runs only after
// Source has completed.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// NodeStatus defines the possible states of a persisted node execution record.
type NodeStatus string

const (
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
	NodeStatusSkipped NodeStatus = "skipped"
)
