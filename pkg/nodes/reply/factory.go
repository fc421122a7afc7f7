package reply

import (
	"context"

	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// Compile-time interface check.
var _ protocol.NodeFactory = (*Factory)(nil)

// Factory creates reply node instances bound to the runtime limiter and
// social client.
type Factory struct {
	limiter *ratelimit.Limiter
	client  instagram.Client
}

// NewFactory creates the reply node factory.
func NewFactory(limiter *ratelimit.Limiter, client instagram.Client) *Factory {
	return &Factory{limiter: limiter, client: client}
}

// Create creates a new reply node instance.
func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config, f.limiter, f.client)
}

// Kind returns the node kind this factory produces.
func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindReply
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Comment Reply"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Posts a public reply under the triggering comment and optionally follows up with a direct message"
}

// Schema returns the JSON schema for reply node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"public_replies": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"description": "Reply templates; one is chosen uniformly at random per invocation.",
				"examples":    []any{[]string{"Check your DM!", "Sent you a message"}},
			},
			"dm_message": map[string]any{
				"type":        "string",
				"description": "Optional direct message sent to the comment author after the reply.",
			},
			"dm_delay_min_seconds": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Lower bound of the randomized gap between the reply and the DM.",
			},
			"dm_delay_max_seconds": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Upper bound of the randomized gap between the reply and the DM.",
			},
		},
		"required": []string{"public_replies"},
	}
}
