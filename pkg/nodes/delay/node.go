// Package delay provides a node that pauses its own branch for a
// configured duration. Only the delaying node waits; phase siblings keep
// running.
package delay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gramflow/gramflow/pkg/models"
)

// Node suspends for a fixed duration, then returns.
type Node struct {
	id      string
	seconds float64
}

// NewNode creates a delay node from its configuration.
func NewNode(id string, config map[string]any) (*Node, error) {
	seconds, ok := asFloat(config["seconds"])
	if !ok {
		return nil, errors.New("missing required field 'seconds'")
	}

	if seconds < 0 {
		return nil, fmt.Errorf("'seconds' must not be negative, got %v", seconds)
	}

	return &Node{id: id, seconds: seconds}, nil
}

// ID returns the node ID.
func (n *Node) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *Node) Kind() models.NodeKind {
	return models.NodeKindDelay
}

// Execute waits the configured duration or until the context is done,
// whichever comes first.
func (n *Node) Execute(ctx context.Context, _ models.ExecutionContext) (map[string]any, error) {
	duration := time.Duration(n.seconds * float64(time.Second))

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, fmt.Errorf("delay interrupted: %w", ctx.Err())
	}

	return map[string]any{"delayed_seconds": n.seconds}, nil
}

// asFloat accepts the numeric types JSON decoding can hand us.
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
