// Package plan compiles workflow graphs into phased execution plans.
//
// A plan is an ordered sequence of phases. Every edge (source, target)
// satisfies phase(source) < phase(target), and nodes within one phase have
// no dependency between them in either direction, so the engine may run
// them concurrently.
package plan

import "github.com/gramflow/gramflow/pkg/models"

// Phase is a set of mutually independent nodes that run together.
type Phase struct {
	Index int
	Nodes []*models.Node
}

// ExecutionPlan is the ordered sequence of phases derived from a workflow
// graph.
type ExecutionPlan struct {
	Phases []Phase
}

// NodeCount returns the total number of nodes across all phases.
func (p *ExecutionPlan) NodeCount() int {
	count := 0
	for _, phase := range p.Phases {
		count += len(phase.Nodes)
	}

	return count
}
