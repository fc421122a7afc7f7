// Package reply implements the comment-reply action: a rate-limited
// public reply under the triggering comment, optionally followed by a
// direct message to the comment's author after a randomized gap.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/gramflow/gramflow/pkg/instagram"
	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

// Node posts a public reply and an optional follow-up DM. Every outbound
// call is gated by the rate limiter first and recorded with it after,
// whether or not the social call itself succeeded, so the counters
// reflect permitted attempts.
type Node struct {
	id      string
	limiter *ratelimit.Limiter
	client  instagram.Client
	logger  *slog.Logger

	publicReplies []string
	dmMessage     string
	dmDelayMin    float64
	dmDelayMax    float64

	randomIndex func(n int) int
	randomFloat func() float64
}

// Option configures the Node, for tests.
type Option func(*Node)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) { n.logger = logger.With("module", "reply_node") }
}

// WithRandomIndex overrides the uniform template picker.
func WithRandomIndex(randomIndex func(n int) int) Option {
	return func(n *Node) { n.randomIndex = randomIndex }
}

// WithRandomFloat overrides the uniform [0,1) source for the comment-to-DM
// gap draw.
func WithRandomFloat(randomFloat func() float64) Option {
	return func(n *Node) { n.randomFloat = randomFloat }
}

// NewNode creates a reply node from its configuration.
func NewNode(id string, config map[string]any, limiter *ratelimit.Limiter, client instagram.Client, opts ...Option) (*Node, error) {
	node := &Node{
		id:          id,
		limiter:     limiter,
		client:      client,
		logger:      slog.Default().With("module", "reply_node"),
		randomIndex: rand.IntN,
		randomFloat: rand.Float64,
	}

	replies, err := asStringSlice(config["public_replies"])
	if err != nil {
		return nil, fmt.Errorf("invalid 'public_replies': %w", err)
	}

	if len(replies) == 0 {
		return nil, errors.New("'public_replies' must contain at least one template")
	}

	node.publicReplies = replies

	if message, ok := config["dm_message"].(string); ok {
		node.dmMessage = message
	}

	if value, ok := asFloat(config["dm_delay_min_seconds"]); ok {
		node.dmDelayMin = value
	}

	if value, ok := asFloat(config["dm_delay_max_seconds"]); ok {
		node.dmDelayMax = value
	}

	if node.dmDelayMax < node.dmDelayMin {
		return nil, fmt.Errorf("'dm_delay_max_seconds' (%v) is below 'dm_delay_min_seconds' (%v)",
			node.dmDelayMax, node.dmDelayMin)
	}

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
	return models.NodeKindReply
}

// Execute posts the public reply, then the optional DM. The reply
// template is chosen uniformly at random per invocation, not round-robin,
// so outbound content does not fall into a detectable pattern.
func (n *Node) Execute(ctx context.Context, execCtx models.ExecutionContext) (map[string]any, error) {
	if execCtx.Trigger == nil || execCtx.Trigger.Kind != models.TriggerKindComment || execCtx.Trigger.Comment == nil {
		return nil, errors.New("reply action requires a comment trigger event")
	}

	comment := execCtx.Trigger.Comment
	text := n.publicReplies[n.randomIndex(len(n.publicReplies))]

	replyID, err := n.performReply(ctx, execCtx, comment, text)
	if err != nil {
		return nil, err
	}

	outputs := map[string]any{
		"reply_id":   replyID,
		"reply_text": text,
	}

	if n.dmMessage == "" {
		return outputs, nil
	}

	if err := n.waitCommentToDMGap(ctx); err != nil {
		return nil, err
	}

	messageID, err := n.performDM(ctx, execCtx, comment.UserID)
	if err != nil {
		return nil, err
	}

	outputs["dm_message_id"] = messageID

	return outputs, nil
}

func (n *Node) performReply(ctx context.Context, execCtx models.ExecutionContext, comment *models.CommentEvent, text string) (string, error) {
	decision, err := n.limiter.CanPerformAction(ctx, execCtx.WorkflowID, models.ActionTypeCommentReply, execCtx.RateLimits)
	if err != nil {
		return "", fmt.Errorf("rate limit check failed: %w", err)
	}

	if !decision.Allowed {
		return "", &ratelimit.DeniedError{Reason: decision.Reason, RetryAfter: decision.WaitTime}
	}

	replyID, callErr := n.client.ReplyToComment(ctx, execCtx.Credentials, comment.ID, text)

	recordErr := n.limiter.RecordAction(ctx, execCtx.WorkflowID, models.ActionTypeCommentReply, map[string]string{
		"comment_id": comment.ID,
		"post_id":    comment.PostID,
	})
	if recordErr != nil {
		n.logger.ErrorContext(ctx, "Failed to record comment reply",
			"workflow_id", execCtx.WorkflowID, "error", recordErr)
	}

	if callErr != nil {
		return "", callErr
	}

	return replyID, nil
}

func (n *Node) performDM(ctx context.Context, execCtx models.ExecutionContext, recipientID string) (string, error) {
	decision, err := n.limiter.CanPerformAction(ctx, execCtx.WorkflowID, models.ActionTypeDMSend, execCtx.RateLimits)
	if err != nil {
		return "", fmt.Errorf("rate limit check failed: %w", err)
	}

	if !decision.Allowed {
		return "", &ratelimit.DeniedError{Reason: decision.Reason, RetryAfter: decision.WaitTime}
	}

	messageID, callErr := n.client.SendDirectMessage(ctx, execCtx.Credentials, recipientID, n.dmMessage)

	recordErr := n.limiter.RecordAction(ctx, execCtx.WorkflowID, models.ActionTypeDMSend, map[string]string{
		"recipient_id": recipientID,
	})
	if recordErr != nil {
		n.logger.ErrorContext(ctx, "Failed to record direct message",
			"workflow_id", execCtx.WorkflowID, "error", recordErr)
	}

	if callErr != nil {
		return "", callErr
	}

	return messageID, nil
}

// waitCommentToDMGap sleeps a uniform draw from the configured range so
// the follow-up DM does not land a fixed interval after the reply.
func (n *Node) waitCommentToDMGap(ctx context.Context) error {
	gap := time.Duration(n.dmDelayMin * float64(time.Second))
	if spread := n.dmDelayMax - n.dmDelayMin; spread > 0 {
		gap += time.Duration(n.randomFloat() * spread * float64(time.Second))
	}

	if gap <= 0 {
		return nil
	}

	timer := time.NewTimer(gap)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("comment-to-dm gap interrupted: %w", ctx.Err())
	}
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

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
