// Package persistence provides the storage abstraction for workflows,
// executions and per-node execution records.
package persistence

import (
	"context"

	"github.com/gramflow/gramflow/pkg/models"
)

// Persistence is the storage entry point handed to the engine and the
// API. Implementations: file (development, tests) and postgresql.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores workflow executions and their per-node
// records. Save calls upsert by ID: the engine writes each record once
// when the unit starts and once when it settles.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)

	SaveNodeExecution(ctx context.Context, record *models.NodeExecution) error
	NodeExecutions(ctx context.Context, executionID string) ([]*models.NodeExecution, error)
}
