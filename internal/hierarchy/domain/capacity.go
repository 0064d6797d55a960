package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// AllocationState describes how much of a parent's budget its children use.
type AllocationState string

const (
	AllocationEmpty   AllocationState = "empty"
	AllocationPartial AllocationState = "partially_allocated"
	AllocationFull    AllocationState = "fully_allocated"
)

// Capacity is a point-in-time view of a parent's budget.
type Capacity struct {
	ParentID  uuid.UUID
	Allocated float64
	Remaining float64
	State     AllocationState
	// Violation is set when the children are allocated above 100.
	Violation *CapacityViolation
}

// CapacityTracker answers remaining-capacity questions about a tree without
// mutating it.
type CapacityTracker struct {
	tree *Tree
}

// NewCapacityTracker creates a tracker over t.
func NewCapacityTracker(t *Tree) *CapacityTracker {
	return &CapacityTracker{tree: t}
}

// RemainingFor returns the weight still available under parentID. Tasks
// cannot parent anything and fail with ErrInvalidParent.
func (c *CapacityTracker) RemainingFor(parentID uuid.UUID) (float64, error) {
	children, err := c.childrenOf(parentID)
	if err != nil {
		return 0, err
	}
	return RemainingCapacity(children)
}

// State returns the decomposition state of parentID.
func (c *CapacityTracker) State(parentID uuid.UUID) (AllocationState, error) {
	capacity, err := c.Describe(parentID)
	if err != nil {
		return "", err
	}
	return capacity.State, nil
}

// Describe returns the full capacity view of parentID. Over-allocation is
// reported through Violation, not as an error.
func (c *CapacityTracker) Describe(parentID uuid.UUID) (Capacity, error) {
	children, err := c.childrenOf(parentID)
	if err != nil {
		return Capacity{}, err
	}
	remaining, diag := RemainingCapacity(children)
	capacity := Capacity{
		ParentID:  parentID,
		Allocated: allocated(children),
		Remaining: remaining,
	}
	if v, ok := diag.(*CapacityViolation); ok {
		capacity.Violation = v
	}
	switch {
	case len(children) == 0:
		capacity.State = AllocationEmpty
	case remaining == 0:
		capacity.State = AllocationFull
	default:
		capacity.State = AllocationPartial
	}
	return capacity, nil
}

// CanAccept reports whether a child of weight would fit under parentID.
func (c *CapacityTracker) CanAccept(parentID uuid.UUID, weight float64) error {
	children, err := c.childrenOf(parentID)
	if err != nil {
		return err
	}
	_, err = ValidateInsertion(children, weight)
	return err
}

func (c *CapacityTracker) childrenOf(parentID uuid.UUID) ([]*Node, error) {
	parent, err := c.tree.Node(parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsTask() {
		return nil, fmt.Errorf("task %s has no capacity: %w", parentID, ErrInvalidParent)
	}
	return c.tree.children(parent), nil
}
