package application

import (
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

// KPILinkView is a KPI link as rendered to clients.
type KPILinkView struct {
	UserID             uuid.UUID `json:"userId"`
	KPIDocID           string    `json:"kpiDocId"`
	KPIIndex           int       `json:"kpiIndex"`
	ContributionWeight float64   `json:"contributionWeight"`
}

// AssigneeView is one assignee of a task.
type AssigneeView struct {
	UserID      uuid.UUID  `json:"userId"`
	Status      string     `json:"completionStatus"`
	Grade       *float64   `json:"grade,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Documents   []string   `json:"documents,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	Comment     string     `json:"reviewComment,omitempty"`
}

// NodeView is a node with its computed progress and, for containers, its
// children split by kind.
type NodeView struct {
	ID            uuid.UUID      `json:"id"`
	ParentID      *uuid.UUID     `json:"parentId,omitempty"`
	Kind          domain.Kind    `json:"kind"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Weight        float64        `json:"weight"`
	Progress      float64        `json:"progress"`
	Status        domain.Status  `json:"status"`
	Priority      string         `json:"priority,omitempty"`
	DueDate       *time.Time     `json:"dueDate,omitempty"`
	SupervisorID  *uuid.UUID     `json:"supervisorId,omitempty"`
	CreatedBy     uuid.UUID      `json:"createdBy"`
	Notes         string         `json:"notes,omitempty"`
	TaskCount     int            `json:"taskCount"`
	Remaining     *float64       `json:"remainingCapacity,omitempty"`
	Violation     string         `json:"capacityViolation,omitempty"`
	Assignees     []AssigneeView `json:"assignees,omitempty"`
	LinkedKPIs    []KPILinkView  `json:"linkedKPIs,omitempty"`
	SubMilestones []NodeView     `json:"subMilestones,omitempty"`
	Tasks         []NodeView     `json:"tasks,omitempty"`
}

// HierarchyView is a whole milestone tree as served by the read side.
type HierarchyView struct {
	NodeView
	ProjectID uuid.UUID `json:"projectId"`
	Version   int       `json:"version"`
}

// MilestoneSummary is one row of a project's milestone list.
type MilestoneSummary struct {
	ID        uuid.UUID     `json:"id"`
	ProjectID uuid.UUID     `json:"projectId"`
	Title     string        `json:"title"`
	Progress  float64       `json:"progress"`
	Status    domain.Status `json:"status"`
	TaskCount int           `json:"taskCount"`
	Remaining float64       `json:"remainingCapacity"`
	DueDate   *time.Time    `json:"dueDate,omitempty"`
}

// CapacityView is the budget of one parent node.
type CapacityView struct {
	NodeID    uuid.UUID              `json:"nodeId"`
	Allocated float64                `json:"allocated"`
	Remaining float64                `json:"remaining"`
	State     domain.AllocationState `json:"state"`
	Violation string                 `json:"violation,omitempty"`
}

// ContributionView is one ledger entry.
type ContributionView struct {
	ID                 uuid.UUID `json:"id"`
	MilestoneID        uuid.UUID `json:"milestoneId"`
	TaskID             uuid.UUID `json:"taskId"`
	UserID             uuid.UUID `json:"userId"`
	KPIDocID           string    `json:"kpiDocId"`
	KPIIndex           int       `json:"kpiIndex"`
	TaskWeight         float64   `json:"taskWeight"`
	ContributionWeight float64   `json:"contributionWeight"`
	Grade              float64   `json:"grade"`
	Delta              float64   `json:"delta"`
	RecordedAt         time.Time `json:"recordedAt"`
}

// BuildHierarchyView renders a tree with progress computed in one pass.
func BuildHierarchyView(t *domain.Tree) (*HierarchyView, error) {
	progress, err := domain.ComputeAll(t, t.RootID())
	if err != nil {
		return nil, err
	}
	tracker := domain.NewCapacityTracker(t)
	root, err := buildNodeView(t, t.Root(), progress, tracker)
	if err != nil {
		return nil, err
	}
	return &HierarchyView{NodeView: root, ProjectID: t.Root().ProjectID(), Version: t.Version()}, nil
}

func buildNodeView(t *domain.Tree, n *domain.Node, progress map[uuid.UUID]float64, tracker *domain.CapacityTracker) (NodeView, error) {
	v := NewNodeView(n, progress[n.ID()])
	if n.IsTask() {
		return v, nil
	}
	v.TaskCount = t.TaskCount(n.ID())
	capacity, err := tracker.Describe(n.ID())
	if err != nil {
		return NodeView{}, err
	}
	v.Remaining = &capacity.Remaining
	if capacity.Violation != nil {
		v.Violation = capacity.Violation.Error()
	}

	children, err := t.Children(n.ID())
	if err != nil {
		return NodeView{}, err
	}
	for _, c := range children {
		cv, err := buildNodeView(t, c, progress, tracker)
		if err != nil {
			return NodeView{}, err
		}
		if c.IsTask() {
			v.Tasks = append(v.Tasks, cv)
		} else {
			v.SubMilestones = append(v.SubMilestones, cv)
		}
	}
	return v, nil
}

// NewNodeView renders a single node without its children.
func NewNodeView(n *domain.Node, progress float64) NodeView {
	v := NodeView{
		ID:          n.ID(),
		Kind:        n.Kind(),
		Title:       n.Title(),
		Description: n.Description(),
		Weight:      n.Weight(),
		Progress:    progress,
		Status:      n.Status(),
		Priority:    string(n.Priority()),
		DueDate:     n.DueDate(),
		CreatedBy:   n.CreatedBy(),
		Notes:       n.Notes(),
	}
	if !n.IsRoot() {
		parent := n.ParentID()
		v.ParentID = &parent
	}
	if s := n.SupervisorID(); s != uuid.Nil {
		v.SupervisorID = &s
	}
	if n.IsTask() {
		v.TaskCount = 1
	}
	for _, a := range n.Assignees() {
		v.Assignees = append(v.Assignees, AssigneeView{
			UserID:      a.UserID,
			Status:      string(a.Status),
			Grade:       a.Grade,
			Notes:       a.Notes,
			Documents:   a.Documents,
			SubmittedAt: a.SubmittedAt,
			ReviewedAt:  a.ReviewedAt,
			Comment:     a.ReviewComment,
		})
	}
	for _, l := range n.KPILinks() {
		v.LinkedKPIs = append(v.LinkedKPIs, KPILinkView{
			UserID:             l.UserID,
			KPIDocID:           l.KPIDocID,
			KPIIndex:           l.KPIIndex,
			ContributionWeight: l.ContributionWeight,
		})
	}
	return v
}

// NewCapacityView renders a domain capacity.
func NewCapacityView(c domain.Capacity) CapacityView {
	v := CapacityView{
		NodeID:    c.ParentID,
		Allocated: c.Allocated,
		Remaining: c.Remaining,
		State:     c.State,
	}
	if c.Violation != nil {
		v.Violation = c.Violation.Error()
	}
	return v
}

// NewContributionView renders a ledger entry.
func NewContributionView(rc domain.RecordedContribution) ContributionView {
	return ContributionView{
		ID:                 rc.ID,
		MilestoneID:        rc.MilestoneID,
		TaskID:             rc.TaskID,
		UserID:             rc.UserID,
		KPIDocID:           rc.KPIDocID,
		KPIIndex:           rc.KPIIndex,
		TaskWeight:         rc.TaskWeight,
		ContributionWeight: rc.ContributionWeight,
		Grade:              rc.Grade,
		Delta:              rc.Delta,
		RecordedAt:         rc.RecordedAt,
	}
}
