package plan

import (
	"errors"
	"fmt"
)

// Structural graph errors, detected before any node runs.
var (
	ErrEmptyGraph   = errors.New("workflow graph has no nodes")
	ErrNoEntryPoint = errors.New("workflow graph has no entry point")
	ErrCycle        = errors.New("workflow graph contains a cycle")
	ErrDanglingEdge = errors.New("workflow graph edge references an unknown node")
)

// GraphError wraps one of the sentinel errors above with graph-specific
// detail (such as the node IDs involved).
type GraphError struct {
	Err    error
	Detail string
}

func (e *GraphError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// IsGraphError reports whether err is a structural graph error.
func IsGraphError(err error) bool {
	var graphErr *GraphError

	return errors.As(err, &graphErr)
}
