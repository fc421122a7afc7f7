package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/persistence"
)

// ExecutionRepository handles execution and node-record database
// operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// SaveExecution creates or replaces an execution row.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, trigger_kind,
			trigger_data, started_at, completed_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.TriggerKind,
		triggerDataJSON,
		execution.StartedAt,
		execution.CompletedAt,
		nullableString(execution.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

// ExecutionByID returns an execution by its ID.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , trigger_kind
		  , trigger_data
		  , started_at
		  , completed_at
		  , error_message
		FROM executions
		WHERE id = $1
	`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ExecutionsByWorkflow lists a workflow's executions, newest first.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , trigger_kind
		  , trigger_data
		  , started_at
		  , completed_at
		  , error_message
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// SaveNodeExecution creates or replaces a node execution record.
func (r *ExecutionRepository) SaveNodeExecution(ctx context.Context, record *models.NodeExecution) error {
	inputsJSON, err := json.Marshal(record.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %w", err)
	}

	outputsJSON, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	query := `
		INSERT INTO node_executions (id, execution_id, node_id, node_kind,
			status, started_at, completed_at, inputs, outputs, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			outputs = EXCLUDED.outputs,
			error_message = EXCLUDED.error_message
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.ExecutionID,
		record.NodeID,
		record.NodeKind,
		record.Status,
		record.StartedAt,
		record.CompletedAt,
		inputsJSON,
		outputsJSON,
		nullableString(record.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to save node execution %s: %w", record.ID, err)
	}

	return nil
}

// NodeExecutions lists an execution's node records in start order.
func (r *ExecutionRepository) NodeExecutions(ctx context.Context, executionID string) ([]*models.NodeExecution, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , node_id
		  , node_kind
		  , status
		  , started_at
		  , completed_at
		  , inputs
		  , outputs
		  , error_message
		FROM node_executions
		WHERE execution_id = $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.NodeExecution, 0)

	for rows.Next() {
		var (
			record       models.NodeExecution
			completedAt  sql.NullTime
			inputsJSON   []byte
			outputsJSON  []byte
			errorMessage sql.NullString
		)

		err := rows.Scan(
			&record.ID,
			&record.ExecutionID,
			&record.NodeID,
			&record.NodeKind,
			&record.Status,
			&record.StartedAt,
			&completedAt,
			&inputsJSON,
			&outputsJSON,
			&errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}

		if completedAt.Valid {
			record.CompletedAt = &completedAt.Time
		}

		record.ErrorMessage = errorMessage.String

		if err := json.Unmarshal(inputsJSON, &record.Inputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inputs: %w", err)
		}

		if err := json.Unmarshal(outputsJSON, &record.Outputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating node executions: %w", err)
	}

	return records, nil
}

func (r *ExecutionRepository) scanExecution(scanner rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution       models.WorkflowExecution
		triggerDataJSON []byte
		completedAt     sql.NullTime
		errorMessage    sql.NullString
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.TriggerKind,
		&triggerDataJSON,
		&execution.StartedAt,
		&completedAt,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	execution.ErrorMessage = errorMessage.String

	if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	return &execution, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
