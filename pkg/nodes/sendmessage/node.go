// Package sendmessage implements the direct-message action: a
// rate-limited DM to whoever produced the triggering event.
package sendmessage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// Node sends one direct message per execution. The limiter is consulted
// first and the action recorded after, whether or not the social call
// succeeded.
type Node struct {
	id      string
	limiter *ratelimit.Limiter
	client  instagram.Client
	logger  *slog.Logger

	messages    []string
	randomIndex func(n int) int
}

// Option configures the Node, for tests.
type Option func(*Node)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) { n.logger = logger.With("module", "sendmessage_node") }
}

// WithRandomIndex overrides the uniform template picker.
func WithRandomIndex(randomIndex func(n int) int) Option {
	return func(n *Node) { n.randomIndex = randomIndex }
}

// NewNode creates a send-message node from its configuration.
func NewNode(id string, config map[string]any, limiter *ratelimit.Limiter, client instagram.Client, opts ...Option) (*Node, error) {
	node := &Node{
		id:          id,
		limiter:     limiter,
		client:      client,
		logger:      slog.Default().With("module", "sendmessage_node"),
		randomIndex: rand.IntN,
	}

	messages, err := asStringSlice(config["messages"])
	if err != nil {
		return nil, fmt.Errorf("invalid 'messages': %w", err)
	}

	if len(messages) == 0 {
		return nil, errors.New("'messages' must contain at least one template")
	}

	node.messages = messages

	for _, opt := range opts {
		opt(node)
	}

	return node, nil
}

// ID returns the node ID.
func (n *Node) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *Node) Kind() models.NodeKind {
	return models.NodeKindSendMessage
}

// Execute sends the DM to the trigger's recipient: the comment author
// for comment events, the sender for DM events. The message template is
// chosen uniformly at random per invocation.
func (n *Node) Execute(ctx context.Context, execCtx models.ExecutionContext) (map[string]any, error) {
	if execCtx.Trigger == nil {
		return nil, errors.New("execution context carries no trigger event")
	}

	recipientID := execCtx.Trigger.RecipientID()
	if recipientID == "" {
		return nil, errors.New("trigger event has no recipient to message")
	}

	decision, err := n.limiter.CanPerformAction(ctx, execCtx.WorkflowID, models.ActionTypeDMSend, execCtx.RateLimits)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	if !decision.Allowed {
		return nil, &ratelimit.DeniedError{Reason: decision.Reason, RetryAfter: decision.WaitTime}
	}

	text := n.messages[n.randomIndex(len(n.messages))]

	messageID, callErr := n.client.SendDirectMessage(ctx, execCtx.Credentials, recipientID, text)

	recordErr := n.limiter.RecordAction(ctx, execCtx.WorkflowID, models.ActionTypeDMSend, map[string]string{
		"recipient_id": recipientID,
	})
	if recordErr != nil {
		n.logger.ErrorContext(ctx, "Failed to record direct message",
			"workflow_id", execCtx.WorkflowID, "error", recordErr)
	}

	if callErr != nil {
		return nil, callErr
	}

	return map[string]any{
		"dm_message_id": messageID,
		"message_text":  text,
		"recipient_id":  recipientID,
	}, nil
}

func asStringSlice(raw any) ([]string, error) {
	switch values := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(values), nil
	case []any:
		result := make([]string, 0, len(values))

		for _, value := range values {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", value)
			}

			result = append(result, s)
		}

		return result, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", raw)
	}
}
