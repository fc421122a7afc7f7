// Package file provides file-based persistence: one JSON document per
// entity. It backs development setups and tests; production runs on
// postgresql.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gramflow/gramflow/pkg/persistence"
)

// Compile-time interface check.
var _ persistence.Persistence = (*Persistence)(nil)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a file persistence rooted at the given
// directory. Accepts a plain path or a file:// URL.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	if err := os.MkdirAll(cleanRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persistence root %s: %w", cleanRoot, err)
	}

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}, nil
}

// WorkflowRepository returns the workflow repository.
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// ExecutionRepository returns the execution repository.
func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

// HealthCheck verifies the root directory still exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

// Close is a no-op for file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// validateID rejects IDs that could escape the storage root.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("id contains invalid characters")
	}

	return nil
}
