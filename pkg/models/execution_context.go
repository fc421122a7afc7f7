package models

// ExecutionContext is the shared state a node handler executes against.
// Trigger and NodeOutputs are read-only for handlers: outputs produced by
// a phase are merged in by the engine only after the whole phase has
// settled, so a node never observes a sibling's output.
type ExecutionContext struct {
	ID          string                    `json:"id"`
	WorkflowID  string                    `json:"workflow_id"`
	Trigger     *TriggerEvent             `json:"trigger"`
	NodeOutputs map[string]map[string]any `json:"node_outputs,omitempty"`
	RateLimits  RateLimitConfig           `json:"rate_limits"`
	Credentials Credentials               `json:"credentials"`
	Variables   map[string]any            `json:"variables,omitempty"`
	Metadata    map[string]any            `json:"metadata,omitempty"`
}

// OutputOf returns the output map of an upstream node, or nil when the
// node has not produced one.
func (ec *ExecutionContext) OutputOf(nodeID string) map[string]any {
	if ec.NodeOutputs == nil {
		return nil
	}

	return ec.NodeOutputs[nodeID]
}
