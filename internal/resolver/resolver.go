// Package resolver implements the Dependency Resolver (C3): cycle
// detection, topological sorting, and level-grouped execution planning
// over a Plan's step graph. It is a pure function of the plan's step set —
// no I/O and no mutation of the plan; callers such as the planner store the
// computed order on the plan themselves.
//
// Grounded on original_source/backend/agents/framework/dependency_resolver.py:
// the same graph/reverse_graph adjacency, the same DFS cycle extraction,
// and the same Kahn's-algorithm level grouping, translated into Go's
// error-return idiom instead of raised exceptions.
package resolver

import (
	"fmt"
	"sort"

	"veritas.app/relay/internal/domain"
)

// DetectCycles runs a DFS over the plan's forward graph, returning every
// cycle found. A back-edge (an already on-stack neighbour) yields one
// cycle, extracted by slicing the current DFS path from the neighbour to
// the current node — identical to the Python original's path-slicing.
func DetectCycles(plan *domain.Plan) [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	ids := sortedIDs(plan)

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, neighbor := range plan.Graph[node] {
			if !visited[neighbor] {
				if dfs(neighbor) {
					return true
				}
			} else if onStack[neighbor] {
				start := indexOf(path, neighbor)
				cycle := append(append([]string{}, path[start:]...), neighbor)
				cycles = append(cycles, cycle)
				return true
			}
		}

		path = path[:len(path)-1]
		onStack[node] = false
		return false
	}

	for _, id := range ids {
		if !visited[id] {
			dfs(id)
		}
	}

	return cycles
}

// TopologicalSort returns a single linear extension of the plan's steps
// via Kahn's algorithm. It fails with ErrCyclicDependency if DetectCycles
// finds a cycle, or ErrDeadlockDetected if the algorithm cannot place
// every step despite none remaining in a detected cycle — the two are
// informationally equivalent but kept distinct for diagnostics, per spec.
func TopologicalSort(plan *domain.Plan) ([]string, error) {
	if cycles := DetectCycles(plan); len(cycles) > 0 {
		return nil, &domain.PlanError{
			Err:    domain.ErrCyclicDependency,
			Detail: fmt.Sprintf("circular dependency detected: %s", joinArrow(cycles[0])),
			Cycle:  cycles[0],
		}
	}

	inDegree := make(map[string]int, len(plan.Steps))
	for id, deps := range plan.ReverseGraph {
		inDegree[id] = len(deps)
	}

	var queue []string
	for _, id := range sortedIDs(plan) {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(plan.Steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, dependent := range plan.Graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(plan.Steps) {
		return nil, &domain.PlanError{
			Err:    domain.ErrDeadlockDetected,
			Detail: fmt.Sprintf("topological sort failed: %d/%d steps processed", len(sorted), len(plan.Steps)),
		}
	}

	return sorted, nil
}

// ExecutionOrder groups the plan's steps into levels: a level is the set
// of steps whose predecessors all lie in strictly earlier levels. Level 0
// holds every step with no dependencies; level k+1 holds every step whose
// unresolved in-degree reaches zero once every step in levels 0..k is
// marked processed. Tie-break within a level is by step id ascending, for
// determinism — callers must not otherwise rely on intra-level order.
func ExecutionOrder(plan *domain.Plan) ([][]string, error) {
	inDegree := make(map[string]int, len(plan.Steps))
	for id, deps := range plan.ReverseGraph {
		inDegree[id] = len(deps)
	}

	var levels [][]string
	processed := make(map[string]bool, len(plan.Steps))

	for len(processed) < len(plan.Steps) {
		var ready []string
		for _, id := range sortedIDs(plan) {
			if inDegree[id] == 0 && !processed[id] {
				ready = append(ready, id)
			}
		}

		if len(ready) == 0 {
			remaining := make([]string, 0)
			for id := range plan.Steps {
				if !processed[id] {
					remaining = append(remaining, id)
				}
			}
			sort.Strings(remaining)
			return nil, &domain.PlanError{
				Err:    domain.ErrDeadlockDetected,
				Detail: fmt.Sprintf("deadlock detected, remaining steps: %v", remaining),
			}
		}

		levels = append(levels, ready)
		for _, id := range ready {
			processed[id] = true
			for _, dependent := range plan.Graph[id] {
				inDegree[dependent]--
			}
		}
	}

	return levels, nil
}

// StepDependencies returns the direct predecessors of id.
func StepDependencies(plan *domain.Plan, id string) []string {
	return plan.ReverseGraph[id]
}

// StepDependents returns the steps that directly depend on id.
func StepDependents(plan *domain.Plan, id string) []string {
	return plan.Graph[id]
}

func sortedIDs(plan *domain.Plan) []string {
	ids := make([]string, 0, len(plan.Steps))
	for id := range plan.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func indexOf(path []string, target string) int {
	for i, v := range path {
		if v == target {
			return i
		}
	}
	return -1
}

func joinArrow(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}
