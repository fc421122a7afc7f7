package delay

import (
	"context"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

// Compile-time interface check.
var _ protocol.NodeFactory = (*Factory)(nil)

// Factory creates delay node instances.
type Factory struct{}

// NewFactory creates the delay node factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a new delay node instance.
func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config)
}

// Kind returns the node kind this factory produces.
func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindDelay
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Delay"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Pauses this branch of the workflow for a configured number of seconds"
}

// Schema returns the JSON schema for delay node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"seconds": map[string]any{
				"type":        "number",
				"description": "How long to pause before continuing, in seconds",
				"minimum":     0,
				"examples":    []any{5, 30, 120},
			},
		},
		"required": []string{"seconds"},
	}
}
