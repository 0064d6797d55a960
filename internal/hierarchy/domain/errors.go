package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded indicates an insertion would push the sibling weight sum above 100.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrCapacityViolation reports a parent whose children already exceed 100.
	ErrCapacityViolation = errors.New("capacity violation")

	// ErrInvalidWeight indicates a weight that is not a positive finite number.
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrInvalidGrade indicates a completion grade outside [0,5].
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrNodeNotFound indicates the referenced node does not exist in the tree.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidProgress indicates a progress value outside [0,100].
	ErrInvalidProgress = errors.New("invalid progress")

	// ErrInvalidParent indicates the parent/child kinds cannot be combined.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrDuplicateNode indicates a node id is already present in the tree.
	ErrDuplicateNode = errors.New("node already exists")

	// ErrRootRemoval indicates an attempt to detach the milestone root.
	ErrRootRemoval = errors.New("cannot remove the root milestone")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition indicates a status transition that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidPriority indicates an unknown priority value.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrEmptyTitle indicates the title cannot be empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrMissingKPILink indicates an assignee without a linked KPI.
	ErrMissingKPILink = errors.New("every assignee needs at least one linked KPI")

	// ErrInvalidContributionSplit indicates an assignee's KPI contribution weights do not sum to 100.
	ErrInvalidContributionSplit = errors.New("kpi contribution weights must sum to 100")

	// ErrAssigneeNotFound indicates the user is not assigned to the task.
	ErrAssigneeNotFound = errors.New("assignee not found")

	// ErrNotSubmitted indicates a review of a completion that was never submitted.
	ErrNotSubmitted = errors.New("completion has not been submitted")

	// ErrConcurrentUpdate indicates the hierarchy changed since it was loaded.
	ErrConcurrentUpdate = errors.New("hierarchy was modified concurrently")

	// ErrNotATask indicates a task-only operation on a container node.
	ErrNotATask = errors.New("node is not a task")
)

// CapacityError describes a rejected insertion.
type CapacityError struct {
	Requested float64
	Remaining float64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: requested %.2f, remaining %.2f", e.Requested, e.Remaining)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// CapacityViolation is a read-time diagnostic for a parent whose children
// are allocated above 100.
type CapacityViolation struct {
	Allocated float64
}

func (e *CapacityViolation) Error() string {
	return fmt.Sprintf("capacity violation: children allocate %.2f of 100", e.Allocated)
}

func (e *CapacityViolation) Unwrap() error { return ErrCapacityViolation }
