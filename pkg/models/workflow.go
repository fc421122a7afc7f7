package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, not executable
	WorkflowStatusActive WorkflowStatus = "active" // Executable
	WorkflowStatusPaused WorkflowStatus = "paused" // Kept, not executable
)

// Credentials identifies the Instagram account a workflow acts as. The
// token is supplied by the account-integration collaborator and passed
// through to every outbound call.
type Credentials struct {
	AccountID   string `json:"account_id"   validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
}

// Workflow is a user-authored automation: a directed graph of trigger
// filters and outbound actions, plus the rate limits that gate the actions.
type Workflow struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required,min=3"`
	Description string           `json:"description"`
	Status      WorkflowStatus   `json:"status"      validate:"required"`
	Nodes       []*Node          `json:"nodes"`
	Edges       []*Edge          `json:"edges"`
	RateLimits  *RateLimitConfig `json:"rate_limits,omitempty"`
	Credentials Credentials      `json:"credentials"`
	Owner       string           `json:"owner"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
}

// IsExecutable reports whether trigger events may start executions of this
// workflow.
func (w *Workflow) IsExecutable() bool {
	return w.Status == WorkflowStatusActive && w.DeletedAt == nil
}

// Limits returns the workflow's rate-limit configuration, falling back to
// the platform defaults when none is set.
func (w *Workflow) Limits() RateLimitConfig {
	if w.RateLimits != nil {
		return *w.RateLimits
	}

	return DefaultRateLimits()
}

// HasTriggerFor reports whether the workflow contains an enabled trigger
// node for the given trigger kind.
func (w *Workflow) HasTriggerFor(kind TriggerKind) bool {
	want := NodeKindCommentTrigger
	if kind == TriggerKindDM {
		want = NodeKindDMTrigger
	}

	for _, node := range w.Nodes {
		if node.Kind == want && node.Enabled {
			return true
		}
	}

	return false
}
