// Package commenttrigger validates incoming comment events against a
// node's configured post and keyword filters. It performs no I/O: a
// mismatch stops the execution gracefully before any action runs.
package commenttrigger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

// Node checks a comment event against post and keyword filters.
type Node struct {
	id string

	// postFilterSet distinguishes "no post filter configured" (match any
	// post) from "configured but empty" (match nothing).
	postFilterSet   bool
	postIDs         []string
	includeKeywords []string
	excludeKeywords []string
}

// NewNode creates a comment trigger node from its configuration.
func NewNode(id string, config map[string]any) (*Node, error) {
	node := &Node{id: id}

	if raw, ok := config["post_ids"]; ok {
		node.postFilterSet = true

		postIDs, err := asStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid 'post_ids': %w", err)
		}

		node.postIDs = postIDs
	}

	if raw, ok := config["include_keywords"]; ok {
		keywords, err := asStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid 'include_keywords': %w", err)
		}

		node.includeKeywords = keywords
	}

	if raw, ok := config["exclude_keywords"]; ok {
		keywords, err := asStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid 'exclude_keywords': %w", err)
		}

		node.excludeKeywords = keywords
	}

	return node, nil
}

// ID returns the node ID.
func (n *Node) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *Node) Kind() models.NodeKind {
	return models.NodeKindCommentTrigger
}

// Execute validates the trigger event. Matches yield the comment's fields
// as outputs for downstream action nodes; mismatches return a
// TriggerMismatchError describing the failed filter.
func (n *Node) Execute(_ context.Context, execCtx models.ExecutionContext) (map[string]any, error) {
	if execCtx.Trigger == nil {
		return nil, errors.New("execution context carries no trigger event")
	}

	comment := execCtx.Trigger.Comment
	if execCtx.Trigger.Kind != models.TriggerKindComment || comment == nil {
		return nil, &protocol.TriggerMismatchError{
			NodeID: n.id,
			Reason: "trigger event is not a comment",
		}
	}

	if n.postFilterSet {
		// An explicitly configured empty list means the author selected
		// no posts, which matches nothing.
		if len(n.postIDs) == 0 {
			return nil, &protocol.TriggerMismatchError{
				NodeID: n.id,
				Reason: "post filter configured with no posts selected",
			}
		}

		if !slices.Contains(n.postIDs, comment.PostID) {
			return nil, &protocol.TriggerMismatchError{
				NodeID: n.id,
				Reason: fmt.Sprintf("comment on post %s is not in the configured post filter", comment.PostID),
			}
		}
	}

	text := strings.ToLower(comment.Text)

	if len(n.includeKeywords) > 0 && !containsAny(text, n.includeKeywords) {
		return nil, &protocol.TriggerMismatchError{
			NodeID: n.id,
			Reason: "comment text matches none of the include keywords",
		}
	}

	for _, keyword := range n.excludeKeywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			return nil, &protocol.TriggerMismatchError{
				NodeID: n.id,
				Reason: fmt.Sprintf("comment text matches exclude keyword %q", keyword),
			}
		}
	}

	return map[string]any{
		"comment_id": comment.ID,
		"post_id":    comment.PostID,
		"user_id":    comment.UserID,
		"username":   comment.Username,
		"text":       comment.Text,
	}, nil
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

func asStringSlice(raw any) ([]string, error) {
	switch values := raw.(type) {
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
