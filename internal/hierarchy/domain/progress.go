package domain

import "github.com/google/uuid"

// ComputeProgress returns a node's progress. Tasks report their stored
// progress; containers report the weighted sum of their children, so an
// empty container is 0 and unallocated weight counts as not done.
func ComputeProgress(t *Tree, id uuid.UUID) (float64, error) {
	all, err := ComputeAll(t, id)
	if err != nil {
		return 0, err
	}
	return all[id], nil
}

// ComputeAll computes progress for every node under from in a single
// iterative post-order pass.
func ComputeAll(t *Tree, from uuid.UUID) (map[uuid.UUID]float64, error) {
	start, err := t.Node(from)
	if err != nil {
		return nil, err
	}

	type frame struct {
		node     *Node
		expanded bool
	}
	result := make(map[uuid.UUID]float64)
	stack := []frame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := top.node
		if n.IsTask() {
			result[n.id] = n.progress
			stack = stack[:len(stack)-1]
			continue
		}
		if !top.expanded {
			top.expanded = true
			for _, childID := range n.childIDs {
				stack = append(stack, frame{node: t.nodes[childID]})
			}
			continue
		}
		var sum float64
		for _, childID := range n.childIDs {
			sum += t.nodes[childID].weight / FullAllocation * result[childID]
		}
		result[n.id] = sum
		stack = stack[:len(stack)-1]
	}
	return result, nil
}
