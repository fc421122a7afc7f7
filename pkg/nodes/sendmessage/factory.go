package sendmessage

import (
	"context"

	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// Compile-time interface check.
var _ protocol.NodeFactory = (*Factory)(nil)

// Factory creates send-message node instances bound to the runtime
// limiter and social client.
type Factory struct {
	limiter *ratelimit.Limiter
	client  instagram.Client
}

// NewFactory creates the send-message node factory.
func NewFactory(limiter *ratelimit.Limiter, client instagram.Client) *Factory {
	return &Factory{limiter: limiter, client: client}
}

// Create creates a new send-message node instance.
func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config, f.limiter, f.client)
}

// Kind returns the node kind this factory produces.
func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindSendMessage
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Send Message"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Sends a direct message to the user behind the triggering event"
}

// Schema returns the JSON schema for send-message node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"messages": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"description": "Message templates; one is chosen uniformly at random per invocation.",
			},
		},
		"required": []string{"messages"},
	}
}
