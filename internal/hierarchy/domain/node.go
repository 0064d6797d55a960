package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the three node variants of a hierarchy.
type Kind string

const (
	KindMilestone    Kind = "milestone"
	KindSubMilestone Kind = "sub_milestone"
	KindTask         Kind = "task"
)

// IsValid returns true if the kind is a known value.
func (k Kind) IsValid() bool {
	return k == KindMilestone || k == KindSubMilestone || k == KindTask
}

// CanParent reports whether a node of kind k may own a child of kind child.
func (k Kind) CanParent(child Kind) bool {
	if k == KindTask {
		return false
	}
	return child == KindSubMilestone || child == KindTask
}

// KPILink connects a node to one KPI of one user.
type KPILink struct {
	UserID             uuid.UUID
	KPIDocID           string
	KPIIndex           int
	ContributionWeight float64
}

// Assignee is a user working on a task together with their completion state.
type Assignee struct {
	UserID      uuid.UUID
	Status      CompletionStatus
	Grade       *float64
	Notes       string
	Documents   []string
	SubmittedAt *time.Time
	ReviewedAt  *time.Time
	// ReviewComment is the supervisor's note on the latest review.
	ReviewComment string
}

// Node is a milestone, sub-milestone or task. Parent and child links are ids
// into the owning Tree.
type Node struct {
	id           uuid.UUID
	kind         Kind
	parentID     uuid.UUID
	childIDs     []uuid.UUID
	projectID    uuid.UUID
	title        string
	description  string
	weight       float64
	progress     float64
	status       Status
	priority     Priority
	dueDate      *time.Time
	supervisorID uuid.UUID
	createdBy    uuid.UUID
	notes        string
	assignees    []Assignee
	kpiLinks     []KPILink
	createdAt    time.Time
	updatedAt    time.Time
}

func newNode(kind Kind, title string, weight float64, createdBy uuid.UUID) (*Node, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if err := validateWeight(weight); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Node{
		id:        uuid.New(),
		kind:      kind,
		title:     title,
		weight:    weight,
		status:    StatusNotStarted,
		createdBy: createdBy,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// NewMilestone creates a root milestone. A milestone always weighs 100.
func NewMilestone(projectID uuid.UUID, title string, createdBy uuid.UUID) (*Node, error) {
	n, err := newNode(KindMilestone, title, FullAllocation, createdBy)
	if err != nil {
		return nil, err
	}
	n.projectID = projectID
	return n, nil
}

// NewSubMilestone creates a sub-milestone carrying weight percent of its parent.
func NewSubMilestone(title string, weight float64, createdBy uuid.UUID) (*Node, error) {
	return newNode(KindSubMilestone, title, weight, createdBy)
}

// NewTask creates a leaf task carrying weight percent of its parent.
func NewTask(title string, weight float64, createdBy uuid.UUID) (*Node, error) {
	n, err := newNode(KindTask, title, weight, createdBy)
	if err != nil {
		return nil, err
	}
	n.priority = PriorityMedium
	return n, nil
}

// Getters
func (n *Node) ID() uuid.UUID           { return n.id }
func (n *Node) Kind() Kind              { return n.kind }
func (n *Node) ParentID() uuid.UUID     { return n.parentID }
func (n *Node) ProjectID() uuid.UUID    { return n.projectID }
func (n *Node) Title() string           { return n.title }
func (n *Node) Description() string     { return n.description }
func (n *Node) Weight() float64         { return n.weight }
func (n *Node) Progress() float64       { return n.progress }
func (n *Node) Status() Status          { return n.status }
func (n *Node) Priority() Priority      { return n.priority }
func (n *Node) DueDate() *time.Time     { return n.dueDate }
func (n *Node) SupervisorID() uuid.UUID { return n.supervisorID }
func (n *Node) CreatedBy() uuid.UUID    { return n.createdBy }
func (n *Node) Notes() string           { return n.notes }
func (n *Node) CreatedAt() time.Time    { return n.createdAt }
func (n *Node) UpdatedAt() time.Time    { return n.updatedAt }
func (n *Node) IsTask() bool            { return n.kind == KindTask }
func (n *Node) IsRoot() bool            { return n.parentID == uuid.Nil }

// ChildIDs returns the ordered child ids.
func (n *Node) ChildIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), n.childIDs...)
}

// Assignees returns a copy of the task's assignees.
func (n *Node) Assignees() []Assignee {
	return append([]Assignee(nil), n.assignees...)
}

// Assignee returns the assignee entry for a user.
func (n *Node) Assignee(userID uuid.UUID) (Assignee, bool) {
	if i := n.assigneeIndex(userID); i >= 0 {
		return n.assignees[i], true
	}
	return Assignee{}, false
}

// KPILinks returns a copy of all KPI links in insertion order.
func (n *Node) KPILinks() []KPILink {
	return append([]KPILink(nil), n.kpiLinks...)
}

// KPILinksFor returns the links belonging to one user.
func (n *Node) KPILinksFor(userID uuid.UUID) []KPILink {
	var links []KPILink
	for _, l := range n.kpiLinks {
		if l.UserID == userID {
			links = append(links, l)
		}
	}
	return links
}

// KPILinksByUser groups KPI links by user.
func (n *Node) KPILinksByUser() map[uuid.UUID][]KPILink {
	return groupLinks(n.kpiLinks)
}

// SetTitle updates the title.
func (n *Node) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	n.title = title
	n.touch()
	return nil
}

// SetDescription updates the description.
func (n *Node) SetDescription(description string) {
	n.description = description
	n.touch()
}

// SetNotes updates free-form task notes.
func (n *Node) SetNotes(notes string) {
	n.notes = notes
	n.touch()
}

// SetDueDate updates the due date. Nil clears it.
func (n *Node) SetDueDate(dueDate *time.Time) {
	n.dueDate = dueDate
	n.touch()
}

// SetSupervisor assigns the supervisor responsible for reviewing the node.
func (n *Node) SetSupervisor(userID uuid.UUID) {
	n.supervisorID = userID
	n.touch()
}

// SetPriority updates the task priority.
func (n *Node) SetPriority(p Priority) error {
	if !p.IsValid() {
		return ErrInvalidPriority
	}
	n.priority = p
	n.touch()
	return nil
}

// SetProgress sets a task's progress directly. Starting work moves a
// not-started task into progress.
func (n *Node) SetProgress(progress float64) error {
	if !n.IsTask() {
		return ErrNotATask
	}
	if math.IsNaN(progress) || progress < 0 || progress > FullAllocation {
		return ErrInvalidProgress
	}
	n.progress = progress
	if progress > 0 && n.status == StatusNotStarted {
		n.status = StatusInProgress
	}
	n.touch()
	return nil
}

// TransitionTo moves the node to a new status. Statuses that pin progress
// (completed, not started) overwrite a task's stored progress.
func (n *Node) TransitionTo(target Status) error {
	if !target.IsValid() {
		return ErrInvalidStatus
	}
	if !n.status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	n.status = target
	if p, ok := target.ImpliedProgress(); ok && n.IsTask() {
		n.progress = p
	}
	n.touch()
	return nil
}

// RequireApproval holds a new task until a supervisor approves it.
func (n *Node) RequireApproval() error {
	if !n.IsTask() {
		return ErrNotATask
	}
	if n.status != StatusNotStarted || n.progress > 0 {
		return ErrInvalidTransition
	}
	n.status = StatusPendingApproval
	n.touch()
	return nil
}

// AssignTo replaces the task's assignees. Every user needs at least one
// KPI link and each user's contribution weights must sum to 100.
func (n *Node) AssignTo(userIDs []uuid.UUID, links []KPILink) error {
	if !n.IsTask() {
		return ErrNotATask
	}
	byUser := groupLinks(links)
	seen := make(map[uuid.UUID]bool, len(userIDs))
	assignees := make([]Assignee, 0, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if len(byUser[id]) == 0 {
			return ErrMissingKPILink
		}
		assignees = append(assignees, Assignee{UserID: id, Status: CompletionPending})
	}
	for userID := range byUser {
		if !seen[userID] {
			return ErrAssigneeNotFound
		}
	}
	if err := ValidateKPISplit(links); err != nil {
		return err
	}
	n.assignees = assignees
	n.kpiLinks = append([]KPILink(nil), links...)
	n.touch()
	return nil
}

// LinkKPIs attaches KPI links to a sub-milestone or milestone, typically the
// supervisor's own KPIs.
func (n *Node) LinkKPIs(links []KPILink) error {
	if n.IsTask() {
		return ErrInvalidParent
	}
	if err := ValidateKPISplit(links); err != nil {
		return err
	}
	n.kpiLinks = append([]KPILink(nil), links...)
	n.touch()
	return nil
}

// SubmitCompletion records an assignee's completion report and moves the
// task into completion review.
func (n *Node) SubmitCompletion(userID uuid.UUID, notes string, documents []string, at time.Time) error {
	if !n.IsTask() {
		return ErrNotATask
	}
	i := n.assigneeIndex(userID)
	if i < 0 {
		return ErrAssigneeNotFound
	}
	a := &n.assignees[i]
	if a.Status != CompletionPending && a.Status != CompletionRejected {
		return ErrInvalidTransition
	}
	if n.status != StatusPendingCompletionApproval {
		if !n.status.CanTransitionTo(StatusPendingCompletionApproval) {
			return ErrInvalidTransition
		}
		n.status = StatusPendingCompletionApproval
	}
	a.Status = CompletionSubmitted
	a.ReviewComment = ""
	a.Notes = notes
	a.Documents = append([]string(nil), documents...)
	a.Grade = nil
	a.SubmittedAt = &at
	n.touch()
	return nil
}

// ReviewCompletion approves or rejects one assignee's submission. Approval
// requires a grade in half-point steps within [0,5]. The task completes
// once every assignee is approved.
func (n *Node) ReviewCompletion(userID uuid.UUID, approve bool, grade float64, at time.Time) error {
	if !n.IsTask() {
		return ErrNotATask
	}
	i := n.assigneeIndex(userID)
	if i < 0 {
		return ErrAssigneeNotFound
	}
	a := &n.assignees[i]
	if a.Status != CompletionSubmitted {
		return ErrNotSubmitted
	}
	if approve {
		if err := ValidateReviewGrade(grade); err != nil {
			return err
		}
		g := grade
		a.Status = CompletionApproved
		a.Grade = &g
	} else {
		a.Status = CompletionRejected
		a.Grade = nil
	}
	a.ReviewedAt = &at

	approved, submitted := 0, 0
	for _, as := range n.assignees {
		switch as.Status {
		case CompletionApproved:
			approved++
		case CompletionSubmitted:
			submitted++
		}
	}
	switch {
	case approved == len(n.assignees):
		n.status = StatusCompleted
		n.progress = FullAllocation
	case submitted > 0:
		n.status = StatusPendingCompletionApproval
	default:
		n.status = StatusInProgress
	}
	if n.status != StatusCompleted {
		share := float64(approved) / float64(len(n.assignees)) * FullAllocation
		n.progress = math.Max(n.progress, share)
	}
	n.touch()
	return nil
}

func (n *Node) commentReview(userID uuid.UUID, comment string) {
	if i := n.assigneeIndex(userID); i >= 0 {
		n.assignees[i].ReviewComment = comment
	}
}

func (n *Node) assigneeIndex(userID uuid.UUID) int {
	for i, a := range n.assignees {
		if a.UserID == userID {
			return i
		}
	}
	return -1
}

func (n *Node) touch() {
	n.updatedAt = time.Now().UTC()
}

func groupLinks(links []KPILink) map[uuid.UUID][]KPILink {
	byUser := make(map[uuid.UUID][]KPILink)
	for _, l := range links {
		byUser[l.UserID] = append(byUser[l.UserID], l)
	}
	return byUser
}

// NodeSnapshot is the persisted form of a node.
type NodeSnapshot struct {
	ID           uuid.UUID
	Kind         Kind
	ParentID     uuid.UUID
	Position     int
	ProjectID    uuid.UUID
	Title        string
	Description  string
	Weight       float64
	Progress     float64
	Status       Status
	Priority     Priority
	DueDate      *time.Time
	SupervisorID uuid.UUID
	CreatedBy    uuid.UUID
	Notes        string
	Assignees    []Assignee
	KPILinks     []KPILink
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot returns the persisted form of the node. Position is filled in by
// the owning tree.
func (n *Node) Snapshot() NodeSnapshot {
	return NodeSnapshot{
		ID:           n.id,
		Kind:         n.kind,
		ParentID:     n.parentID,
		ProjectID:    n.projectID,
		Title:        n.title,
		Description:  n.description,
		Weight:       n.weight,
		Progress:     n.progress,
		Status:       n.status,
		Priority:     n.priority,
		DueDate:      n.dueDate,
		SupervisorID: n.supervisorID,
		CreatedBy:    n.createdBy,
		Notes:        n.notes,
		Assignees:    n.Assignees(),
		KPILinks:     n.KPILinks(),
		CreatedAt:    n.createdAt,
		UpdatedAt:    n.updatedAt,
	}
}

// RehydrateNode recreates a detached node from persisted state. Children are
// attached by RehydrateTree.
func RehydrateNode(s NodeSnapshot) *Node {
	return &Node{
		id:           s.ID,
		kind:         s.Kind,
		parentID:     s.ParentID,
		projectID:    s.ProjectID,
		title:        s.Title,
		description:  s.Description,
		weight:       s.Weight,
		progress:     s.Progress,
		status:       s.Status,
		priority:     s.Priority,
		dueDate:      s.DueDate,
		supervisorID: s.SupervisorID,
		createdBy:    s.CreatedBy,
		notes:        s.Notes,
		assignees:    append([]Assignee(nil), s.Assignees...),
		kpiLinks:     append([]KPILink(nil), s.KPILinks...),
		createdAt:    s.CreatedAt,
		updatedAt:    s.UpdatedAt,
	}
}
