// Package web provides the HTTP handlers and request types for the
// workflow management API.
package web

import "github.com/gramflow/gramflow/pkg/models"

// CreateWorkflowRequest is the request body for creating a workflow.
// Workflows are created as drafts unless a status is given.
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	Status      models.WorkflowStatus   `json:"status,omitempty"      validate:"omitempty,oneof=draft active paused"`
	Nodes       []*models.Node          `json:"nodes"`
	Edges       []*models.Edge          `json:"edges"`
	RateLimits  *models.RateLimitConfig `json:"rate_limits,omitempty"`
	Credentials models.Credentials      `json:"credentials" validate:"required"`
	Owner       string                  `json:"owner"       validate:"required"`
}

// UpdateWorkflowRequest is the request body for updating a workflow. All
// fields are optional to support partial updates; nodes and edges are
// replaced wholesale when present.
type UpdateWorkflowRequest struct {
	Name        *string                 `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                 `json:"description,omitempty"`
	Status      *models.WorkflowStatus  `json:"status,omitempty"      validate:"omitempty,oneof=draft active paused"`
	Nodes       []*models.Node          `json:"nodes,omitempty"`
	Edges       []*models.Edge          `json:"edges,omitempty"`
	RateLimits  *models.RateLimitConfig `json:"rate_limits,omitempty"`
}

// NodeKindResponse describes one registered node kind.
type NodeKindResponse struct {
	Kind        models.NodeKind `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`
}

// ExecutionResponse is an execution together with its node records.
type ExecutionResponse struct {
	Execution *models.WorkflowExecution `json:"execution"`
	Nodes     []*models.NodeExecution   `json:"nodes"`
}
