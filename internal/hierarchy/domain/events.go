package domain

import (
	sharedDomain "github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "Milestone"

	RoutingKeyMilestoneCreated     = "hierarchy.milestone.created"
	RoutingKeyMilestoneDeleted     = "hierarchy.milestone.deleted"
	RoutingKeyNodeAdded            = "hierarchy.node.added"
	RoutingKeyNodeRemoved          = "hierarchy.node.removed"
	RoutingKeyStatusChanged        = "hierarchy.task.status_changed"
	RoutingKeyTaskSubmitted        = "hierarchy.task.submitted"
	RoutingKeyTaskReviewed         = "hierarchy.task.reviewed"
	RoutingKeyContributionRecorded = "hierarchy.kpi.contribution_recorded"
)

// RoutingKeys lists every event this context emits.
var RoutingKeys = []string{
	RoutingKeyMilestoneCreated,
	RoutingKeyMilestoneDeleted,
	RoutingKeyNodeAdded,
	RoutingKeyNodeRemoved,
	RoutingKeyStatusChanged,
	RoutingKeyTaskSubmitted,
	RoutingKeyTaskReviewed,
	RoutingKeyContributionRecorded,
}

// MilestoneCreated is emitted when a new hierarchy root is created.
type MilestoneCreated struct {
	sharedDomain.BaseEvent
	ProjectID uuid.UUID `json:"project_id"`
	Title     string    `json:"title"`
}

// NewMilestoneCreated creates a MilestoneCreated event.
func NewMilestoneCreated(root *Node) *MilestoneCreated {
	return &MilestoneCreated{
		BaseEvent: sharedDomain.NewBaseEvent(root.id, AggregateType, RoutingKeyMilestoneCreated),
		ProjectID: root.projectID,
		Title:     root.title,
	}
}

// MilestoneDeleted is emitted when a whole hierarchy is deleted.
type MilestoneDeleted struct {
	sharedDomain.BaseEvent
	NodeCount int `json:"node_count"`
}

// NewMilestoneDeleted creates a MilestoneDeleted event.
func NewMilestoneDeleted(milestoneID uuid.UUID, nodeCount int) *MilestoneDeleted {
	return &MilestoneDeleted{
		BaseEvent: sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyMilestoneDeleted),
		NodeCount: nodeCount,
	}
}

// NodeAdded is emitted when a sub-milestone or task is inserted.
type NodeAdded struct {
	sharedDomain.BaseEvent
	NodeID   uuid.UUID `json:"node_id"`
	ParentID uuid.UUID `json:"parent_id"`
	Kind     Kind      `json:"kind"`
	Title    string    `json:"title"`
	Weight   float64   `json:"weight"`
}

// NewNodeAdded creates a NodeAdded event.
func NewNodeAdded(milestoneID uuid.UUID, n *Node) *NodeAdded {
	return &NodeAdded{
		BaseEvent: sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyNodeAdded),
		NodeID:    n.id,
		ParentID:  n.parentID,
		Kind:      n.kind,
		Title:     n.title,
		Weight:    n.weight,
	}
}

// NodeRemoved is emitted when a subtree is deleted.
type NodeRemoved struct {
	sharedDomain.BaseEvent
	ParentID   uuid.UUID   `json:"parent_id"`
	RemovedIDs []uuid.UUID `json:"removed_ids"`
}

// NewNodeRemoved creates a NodeRemoved event.
func NewNodeRemoved(milestoneID, parentID uuid.UUID, removed []uuid.UUID) *NodeRemoved {
	return &NodeRemoved{
		BaseEvent:  sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyNodeRemoved),
		ParentID:   parentID,
		RemovedIDs: removed,
	}
}

// StatusChanged is emitted when a node changes status.
type StatusChanged struct {
	sharedDomain.BaseEvent
	NodeID uuid.UUID `json:"node_id"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
}

// NewTaskStatusChanged creates a StatusChanged event.
func NewTaskStatusChanged(milestoneID, nodeID uuid.UUID, from, to Status) *StatusChanged {
	return &StatusChanged{
		BaseEvent: sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyStatusChanged),
		NodeID:    nodeID,
		From:      from,
		To:        to,
	}
}

// TaskSubmitted is emitted when an assignee reports completion.
type TaskSubmitted struct {
	sharedDomain.BaseEvent
	TaskID uuid.UUID `json:"task_id"`
	UserID uuid.UUID `json:"user_id"`
}

// NewTaskSubmitted creates a TaskSubmitted event.
func NewTaskSubmitted(milestoneID, taskID, userID uuid.UUID) *TaskSubmitted {
	return &TaskSubmitted{
		BaseEvent: sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyTaskSubmitted),
		TaskID:    taskID,
		UserID:    userID,
	}
}

// TaskReviewed is emitted when a supervisor approves or rejects a submission.
type TaskReviewed struct {
	sharedDomain.BaseEvent
	TaskID     uuid.UUID `json:"task_id"`
	UserID     uuid.UUID `json:"user_id"`
	Approved   bool      `json:"approved"`
	Grade      *float64  `json:"grade,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	TaskStatus Status    `json:"task_status"`
}

// NewTaskReviewed creates a TaskReviewed event.
func NewTaskReviewed(milestoneID, taskID, userID uuid.UUID, approved bool, grade *float64, status Status) *TaskReviewed {
	return &TaskReviewed{
		BaseEvent:  sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyTaskReviewed),
		TaskID:     taskID,
		UserID:     userID,
		Approved:   approved,
		Grade:      grade,
		TaskStatus: status,
	}
}

// KPIContributionRecorded carries an achievement delta for the KPI tracker.
type KPIContributionRecorded struct {
	sharedDomain.BaseEvent
	Contribution
}

// NewKPIContributionRecorded creates a KPIContributionRecorded event.
func NewKPIContributionRecorded(milestoneID uuid.UUID, c Contribution) *KPIContributionRecorded {
	return &KPIContributionRecorded{
		BaseEvent:    sharedDomain.NewBaseEvent(milestoneID, AggregateType, RoutingKeyContributionRecorded),
		Contribution: c,
	}
}
