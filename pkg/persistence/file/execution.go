package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/persistence"
)

// ExecutionRepository stores executions under <root>/executions and node
// records under <root>/node_executions/<execution-id>.
type ExecutionRepository struct {
	mu   sync.RWMutex
	root string
}

// NewExecutionRepository creates an execution repository rooted at root.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) executionsDir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) nodeDir(executionID string) string {
	return filepath.Join(er.root, "node_executions", executionID)
}

// SaveExecution writes the execution document, creating or replacing it.
func (er *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	if err := validateID(execution.ID); err != nil {
		return err
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	return writeJSON(er.executionsDir(), execution.ID, execution)
}

// ExecutionByID loads one execution.
func (er *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	er.mu.RLock()
	defer er.mu.RUnlock()

	var execution models.WorkflowExecution
	if err := readJSON(er.executionsDir(), id, &execution); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, err
	}

	return &execution, nil
}

// ExecutionsByWorkflow lists a workflow's executions, newest first.
func (er *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	entries, err := fs.Glob(os.DirFS(er.executionsDir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, entry := range entries {
		var execution models.WorkflowExecution
		if err := readJSON(er.executionsDir(), entry[:len(entry)-len(".json")], &execution); err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, &execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

// SaveNodeExecution writes one node record, creating or replacing it.
func (er *ExecutionRepository) SaveNodeExecution(_ context.Context, record *models.NodeExecution) error {
	if err := validateID(record.ID); err != nil {
		return err
	}

	if err := validateID(record.ExecutionID); err != nil {
		return err
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	return writeJSON(er.nodeDir(record.ExecutionID), record.ID, record)
}

// NodeExecutions lists an execution's node records in start order.
func (er *ExecutionRepository) NodeExecutions(_ context.Context, executionID string) ([]*models.NodeExecution, error) {
	if err := validateID(executionID); err != nil {
		return nil, err
	}

	er.mu.RLock()
	defer er.mu.RUnlock()

	entries, err := fs.Glob(os.DirFS(er.nodeDir(executionID)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list node execution files: %w", err)
	}

	records := make([]*models.NodeExecution, 0, len(entries))

	for _, entry := range entries {
		var record models.NodeExecution
		if err := readJSON(er.nodeDir(executionID), entry[:len(entry)-len(".json")], &record); err != nil {
			return nil, err
		}

		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	return records, nil
}

func writeJSON(dir, id string, value any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return nil
}

func readJSON(dir, id string, value any) error {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to decode %s: %w", id, err)
	}

	return nil
}
