package commenttrigger

import (
	"context"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

// Compile-time interface check.
var _ protocol.NodeFactory = (*Factory)(nil)

// Factory creates comment trigger node instances.
type Factory struct{}

// NewFactory creates the comment trigger node factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create creates a new comment trigger node instance.
func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config)
}

// Kind returns the node kind this factory produces.
func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindCommentTrigger
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Comment Trigger"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Starts the workflow when a comment arrives that matches the configured post and keyword filters"
}

// Schema returns the JSON schema for comment trigger configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"post_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Posts this trigger listens on. Omit to match comments on any post; an empty list matches nothing.",
			},
			"include_keywords": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Case-insensitive substrings; at least one must appear in the comment text.",
				"examples":    []any{[]string{"price", "cost"}},
			},
			"exclude_keywords": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Case-insensitive substrings; any match rejects the comment.",
				"examples":    []any{[]string{"spam"}},
			},
		},
	}
}
