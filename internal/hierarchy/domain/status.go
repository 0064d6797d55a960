package domain

// Status represents the lifecycle status of a hierarchy node.
type Status string

const (
	// StatusNotStarted indicates no work has been reported yet.
	StatusNotStarted Status = "not_started"
	// StatusInProgress indicates work is under way.
	StatusInProgress Status = "in_progress"
	// StatusPendingApproval indicates a task created by a non-supervisor awaits approval.
	StatusPendingApproval Status = "pending_approval"
	// StatusPendingCompletionApproval indicates a completion was submitted for review.
	StatusPendingCompletionApproval Status = "pending_completion_approval"
	// StatusCompleted indicates the node is done.
	StatusCompleted Status = "completed"
	// StatusOnHold indicates the node is paused.
	StatusOnHold Status = "on_hold"
	// StatusRejected indicates a supervisor rejected the task.
	StatusRejected Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusNotStarted:                {StatusInProgress, StatusOnHold, StatusPendingCompletionApproval},
	StatusPendingApproval:           {StatusNotStarted, StatusRejected},
	StatusInProgress:                {StatusPendingCompletionApproval, StatusOnHold},
	StatusPendingCompletionApproval: {StatusCompleted, StatusInProgress},
	StatusOnHold:                    {StatusNotStarted, StatusInProgress},
	StatusRejected:                  {StatusPendingApproval},
	StatusCompleted:                 nil,
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal returns true if no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo returns true if transitioning to the given status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ImpliedProgress returns the progress a status pins a task to, if any.
func (s Status) ImpliedProgress() (float64, bool) {
	switch s {
	case StatusCompleted:
		return FullAllocation, true
	case StatusNotStarted, StatusPendingApproval:
		return 0, true
	default:
		return 0, false
	}
}

// ParseStatus parses a string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// ParsePriority parses a string into a Priority. Empty defaults to medium.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if !p.IsValid() {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// CompletionStatus tracks one assignee's completion of a task.
type CompletionStatus string

const (
	CompletionPending   CompletionStatus = "pending"
	CompletionSubmitted CompletionStatus = "submitted"
	CompletionApproved  CompletionStatus = "approved"
	CompletionRejected  CompletionStatus = "rejected"
)

// IsValid returns true if the completion status is a known value.
func (c CompletionStatus) IsValid() bool {
	switch c {
	case CompletionPending, CompletionSubmitted, CompletionApproved, CompletionRejected:
		return true
	default:
		return false
	}
}
