package dmtrigger

import (
	"context"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

// Compile-time interface check.
var _ protocol.NodeFactory = (*Factory)(nil)

// Factory creates DM trigger node instances.
type Factory struct{}

// NewFactory creates the DM trigger node factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a new DM trigger node instance.
func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config)
}

// Kind returns the node kind this factory produces.
func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindDMTrigger
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "DM Trigger"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Starts the workflow when a direct message arrives, optionally filtered by keywords"
}

// Schema returns the JSON schema for DM trigger configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"include_keywords": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Case-insensitive substrings; at least one must appear in the message text.",
			},
		},
	}
}
