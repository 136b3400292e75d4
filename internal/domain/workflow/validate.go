package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrNameRequired       = errors.New("workflow name is required")
	ErrNoSteps            = errors.New("at least one step is required")
	ErrDuplicateStepID    = errors.New("duplicate step_id")
	ErrStepMissingID      = errors.New("step_id is required")
	ErrStepMissingName    = errors.New("step name is required")
	ErrStepMissingCap     = errors.New("step capability is required")
	ErrDAGCycle           = errors.New("step dependencies contain a cycle")
	ErrDAGDanglingRef     = errors.New("step dependency references unknown step_id")
	ErrDuplicateStepName  = errors.New("duplicate step name")
	ErrMissingParameter   = errors.New("missing required parameter")
	ErrUnknownPlaceholder = errors.New("unresolvable parameter placeholder")
)

// Validate checks the workflow's steps for structural correctness: unique
// ids and names, required fields, and an acyclic dependency graph.
func Validate(steps []Step) error {
	if len(steps) == 0 {
		return ErrNoSteps
	}

	index := make(map[string]int, len(steps))
	names := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingID)
		}
		if s.Name == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingName)
		}
		if s.Capability == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingCap)
		}
		if _, dup := index[s.ID]; dup {
			return fmt.Errorf("step %d (%s): %w", i, s.ID, ErrDuplicateStepID)
		}
		if names[s.Name] {
			return fmt.Errorf("step %d (%s): %w", i, s.Name, ErrDuplicateStepName)
		}
		index[s.ID] = i
		names[s.Name] = true
	}

	return validateDAG(steps, index)
}

// validateDAG checks that step dependencies form a valid DAG using Kahn's
// algorithm, keyed by step_id.
func validateDAG(steps []Step, index map[string]int) error {
	n := len(steps)
	inDegree := make([]int, n)
	adj := make([][]int, n)

	for i, s := range steps {
		for _, dep := range s.DependsOn {
			idx, ok := index[dep]
			if !ok {
				return fmt.Errorf("step %s depends on %q: %w", s.ID, dep, ErrDAGDanglingRef)
			}
			if idx == i {
				return fmt.Errorf("step %s depends on itself: %w", s.ID, ErrDAGCycle)
			}
			adj[idx] = append(adj[idx], i)
			inDegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, neighbor := range adj[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if visited != n {
		return ErrDAGCycle
	}
	return nil
}
