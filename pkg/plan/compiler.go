package plan

import "github.com/gramflow/gramflow/pkg/models"

// Compile derives an execution plan from a node/edge graph.
//
// Phase 0 holds every node with no incoming edge; each following phase
// holds the nodes whose dependencies were all satisfied by earlier phases.
// Multiple entry points are legal and share phase 0. Compile is a pure
// function and deterministic: given the same node and edge order it
// produces the same plan, with intra-phase order following input order.
func Compile(nodes []*models.Node, edges []*models.Edge) (*ExecutionPlan, error) {
	if len(nodes) == 0 {
		return nil, &GraphError{Err: ErrEmptyGraph}
	}

	known := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		known[node.ID] = true
	}

	inDegree := make(map[string]int, len(nodes))
	successors := make(map[string][]string, len(nodes))

	for _, edge := range edges {
		if !known[edge.Source] || !known[edge.Target] {
			return nil, &GraphError{
				Err:    ErrDanglingEdge,
				Detail: edge.Source + " -> " + edge.Target,
			}
		}

		inDegree[edge.Target]++
		successors[edge.Source] = append(successors[edge.Source], edge.Target)
	}

	byID := make(map[string]*models.Node, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	var current []*models.Node
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			current = append(current, node)
		}
	}

	if len(current) == 0 {
		return nil, &GraphError{Err: ErrNoEntryPoint}
	}

	placed := 0
	execPlan := &ExecutionPlan{}

	for len(current) > 0 {
		execPlan.Phases = append(execPlan.Phases, Phase{
			Index: len(execPlan.Phases),
			Nodes: current,
		})
		placed += len(current)

		var next []*models.Node

		for _, node := range current {
			for _, successorID := range successors[node.ID] {
				inDegree[successorID]--
				if inDegree[successorID] == 0 {
					next = append(next, byID[successorID])
				}
			}
		}

		current = next
	}

	if placed != len(nodes) {
		return nil, &GraphError{
			Err:    ErrCycle,
			Detail: unplacedIDs(nodes, inDegree),
		}
	}

	return execPlan, nil
}

// unplacedIDs lists the nodes still holding a positive in-degree after the
// layering stalled; a cycle exists among them.
func unplacedIDs(nodes []*models.Node, inDegree map[string]int) string {
	detail := ""

	for _, node := range nodes {
		if inDegree[node.ID] > 0 {
			if detail != "" {
				detail += ", "
			}

			detail += node.ID
		}
	}

	return detail
}
