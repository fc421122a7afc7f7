package persistence

import "errors"

// Sentinel errors shared by every persistence implementation.
var (
	// ErrWorkflowNotFound indicates no workflow exists for the given ID.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates no execution exists for the given ID.
	ErrExecutionNotFound = errors.New("execution not found")
)

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
