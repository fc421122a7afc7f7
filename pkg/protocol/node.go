// Package protocol defines the contracts between the execution engine and
// the node implementations it runs.
package protocol

import (
	"context"

	"github.com/gramflow/gramflow/pkg/models"
)

// Node is a single executable step of a workflow. Implementations must be
// safe for concurrent Execute calls: the engine runs every node of a phase
// in parallel.
type Node interface {
	// ID returns the node's identifier within its workflow.
	ID() string

	// Kind returns the node type identifier.
	Kind() models.NodeKind

	// Execute runs the node against the execution context and returns its
	// output map. The engine merges outputs into the context after the
	// whole phase finished, so implementations read upstream outputs via
	// execCtx.OutputOf and never mutate execCtx themselves.
	Execute(ctx context.Context, execCtx models.ExecutionContext) (map[string]any, error)
}

// NodeFactory creates node instances and describes the node type.
type NodeFactory interface {
	// Create builds a node instance with the given per-workflow
	// configuration. The configuration has already been validated against
	// Schema by the registry.
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// Kind returns the node type identifier this factory produces.
	Kind() models.NodeKind

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for this node type's configuration.
	Schema() map[string]any
}
