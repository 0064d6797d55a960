package domain

import "math"

// FullAllocation is the budget every parent splits among its children.
const FullAllocation = 100.0

// weightTolerance absorbs float rounding in sums such as 33.33+33.33+33.34.
const weightTolerance = 1e-6

// validateWeight rejects weights that are not positive finite numbers. The
// upper bound is the parent's remaining capacity, checked on insertion.
func validateWeight(weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return ErrInvalidWeight
	}
	return nil
}

func allocated(children []*Node) float64 {
	var sum float64
	for _, c := range children {
		sum += c.weight
	}
	return sum
}

// ValidateInsertion checks that a child of newWeight fits next to the
// existing children and returns the capacity remaining before insertion.
func ValidateInsertion(existing []*Node, newWeight float64) (float64, error) {
	remaining, _ := RemainingCapacity(existing)
	if err := validateWeight(newWeight); err != nil {
		return remaining, err
	}
	// A full parent accepts nothing, not even weights below the tolerance.
	if remaining == 0 || newWeight > remaining+weightTolerance {
		return remaining, &CapacityError{Requested: newWeight, Remaining: remaining}
	}
	return remaining, nil
}

// RemainingCapacity returns 100 minus the children's weights, floored at 0.
// An over-allocated parent yields 0 and a *CapacityViolation diagnostic.
func RemainingCapacity(children []*Node) (float64, error) {
	sum := allocated(children)
	if sum > FullAllocation+weightTolerance {
		return 0, &CapacityViolation{Allocated: sum}
	}
	remaining := FullAllocation - sum
	if remaining < weightTolerance {
		return 0, nil
	}
	return remaining, nil
}
