// Package dmtrigger validates that an execution was started by a direct
// message. Optional keyword filters mirror the comment trigger's.
package dmtrigger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/protocol"
)

// Node checks a direct-message event against optional keyword filters.
type Node struct {
	id              string
	includeKeywords []string
}

// NewNode creates a DM trigger node from its configuration.
func NewNode(id string, config map[string]any) (*Node, error) {
	node := &Node{id: id}

	if raw, ok := config["include_keywords"]; ok {
		keywords, err := asStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid 'include_keywords': %w", err)
		}

		node.includeKeywords = keywords
	}

	return node, nil
}

// ID returns the node ID.
func (n *Node) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *Node) Kind() models.NodeKind {
	return models.NodeKindDMTrigger
}

// Execute validates the trigger event and surfaces the message's fields
// as outputs.
func (n *Node) Execute(_ context.Context, execCtx models.ExecutionContext) (map[string]any, error) {
	if execCtx.Trigger == nil {
		return nil, errors.New("execution context carries no trigger event")
	}

	dm := execCtx.Trigger.DM
	if execCtx.Trigger.Kind != models.TriggerKindDM || dm == nil {
		return nil, &protocol.TriggerMismatchError{
			NodeID: n.id,
			Reason: "trigger event is not a direct message",
		}
	}

	if len(n.includeKeywords) > 0 {
		text := strings.ToLower(dm.Text)

		matched := false

		for _, keyword := range n.includeKeywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				matched = true

				break
			}
		}

		if !matched {
			return nil, &protocol.TriggerMismatchError{
				NodeID: n.id,
				Reason: "message text matches none of the include keywords",
			}
		}
	}

	return map[string]any{
		"message_id": dm.ID,
		"sender_id":  dm.SenderID,
		"text":       dm.Text,
	}, nil
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
