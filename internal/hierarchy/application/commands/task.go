package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// AddTaskCommand adds a task directly under a milestone, or under a
// sub-milestone when ParentID is set. MilestoneID may be left empty when
// ParentID is given. ProjectID, when set, must match the milestone's.
type AddTaskCommand struct {
	Session     sharedApplication.Session
	ProjectID   uuid.UUID
	MilestoneID uuid.UUID
	ParentID    uuid.UUID
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	Weight      float64
	AssignedTo  []uuid.UUID
	LinkedKPIs  []domain.KPILink
	Notes       string
}

// AddTaskResult contains the inserted task and whether it awaits approval.
type AddTaskResult struct {
	NodeResult
	Status domain.Status
}

// AddTaskHandler handles the AddTaskCommand.
type AddTaskHandler struct {
	deps Deps
	kpis application.KPIDirectory
}

// NewAddTaskHandler creates a new AddTaskHandler.
func NewAddTaskHandler(deps Deps, kpis application.KPIDirectory) *AddTaskHandler {
	return &AddTaskHandler{deps: deps, kpis: kpis}
}

// Handle executes the AddTaskCommand. Tasks created by employees wait in
// PendingApproval until a supervisor decides on them.
func (h *AddTaskHandler) Handle(ctx context.Context, cmd AddTaskCommand) (*AddTaskResult, error) {
	if err := cmd.Session.Validate(); err != nil {
		return nil, err
	}
	if cmd.MilestoneID == uuid.Nil && cmd.ParentID == uuid.Nil {
		return nil, fmt.Errorf("%w: milestone or parent id is required", application.ErrValidation)
	}
	if err := application.VerifyKPILinks(ctx, h.kpis, cmd.LinkedKPIs); err != nil {
		return nil, err
	}

	task, err := h.newTask(cmd)
	if err != nil {
		return nil, err
	}

	result := &AddTaskResult{NodeResult: NodeResult{NodeID: task.ID()}, Status: task.Status()}
	insert := func(_ context.Context, tree *domain.Tree) error {
		if cmd.ProjectID != uuid.Nil && cmd.ProjectID != tree.Root().ProjectID() {
			return fmt.Errorf("%w: milestone %s does not belong to project %s", application.ErrValidation, tree.RootID(), cmd.ProjectID)
		}
		parentID := cmd.ParentID
		if parentID == uuid.Nil {
			parentID = tree.RootID()
		}
		if err := tree.InsertChild(parentID, task); err != nil {
			h.deps.countRejection(err, domain.KindTask)
			return err
		}
		remaining, err := domain.NewCapacityTracker(tree).RemainingFor(parentID)
		result.Remaining = remaining
		return ignoreViolation(err)
	}

	var tree *domain.Tree
	if cmd.MilestoneID != uuid.Nil {
		tree, err = h.deps.onMilestone(ctx, cmd.Session, cmd.MilestoneID, insert)
	} else {
		tree, err = h.deps.onNode(ctx, cmd.Session, cmd.ParentID, insert)
	}
	if err != nil {
		return nil, err
	}

	result.MilestoneID = tree.RootID()
	h.deps.count(observability.MetricNodesAdded, 1, observability.T("kind", string(domain.KindTask)))
	return result, nil
}

func (h *AddTaskHandler) newTask(cmd AddTaskCommand) (*domain.Node, error) {
	task, err := domain.NewTask(cmd.Title, cmd.Weight, cmd.Session.UserID)
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(cmd.Priority)
	if err != nil {
		return nil, err
	}
	if err := task.SetPriority(priority); err != nil {
		return nil, err
	}
	task.SetDescription(cmd.Description)
	task.SetDueDate(cmd.DueDate)
	task.SetNotes(cmd.Notes)
	if len(cmd.AssignedTo) > 0 || len(cmd.LinkedKPIs) > 0 {
		if err := task.AssignTo(cmd.AssignedTo, cmd.LinkedKPIs); err != nil {
			return nil, err
		}
	}
	if !cmd.Session.IsSupervisor() {
		if err := task.RequireApproval(); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// DecideApprovalCommand approves or rejects a task waiting in
// PendingApproval.
type DecideApprovalCommand struct {
	Session sharedApplication.Session
	TaskID  uuid.UUID
	Approve bool
}

// DecideApprovalHandler handles the DecideApprovalCommand.
type DecideApprovalHandler struct {
	deps Deps
}

// NewDecideApprovalHandler creates a new DecideApprovalHandler.
func NewDecideApprovalHandler(deps Deps) *DecideApprovalHandler {
	return &DecideApprovalHandler{deps: deps}
}

// Handle moves the task to NotStarted on approval and to Rejected otherwise.
func (h *DecideApprovalHandler) Handle(ctx context.Context, cmd DecideApprovalCommand) (domain.Status, error) {
	if err := cmd.Session.RequireSupervisor(); err != nil {
		return "", err
	}
	target := domain.StatusRejected
	if cmd.Approve {
		target = domain.StatusNotStarted
	}
	_, err := h.deps.onNode(ctx, cmd.Session, cmd.TaskID, func(_ context.Context, tree *domain.Tree) error {
		task, err := requireTask(tree, cmd.TaskID)
		if err != nil {
			return err
		}
		if task.Status() != domain.StatusPendingApproval {
			return fmt.Errorf("%w: task is %s, not awaiting approval", domain.ErrInvalidTransition, task.Status())
		}
		return tree.TransitionStatus(cmd.TaskID, target)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// UpdateStatusCommand moves a node to a new status.
type UpdateStatusCommand struct {
	Session sharedApplication.Session
	NodeID  uuid.UUID
	Status  string
}

// UpdateStatusHandler handles the UpdateStatusCommand.
type UpdateStatusHandler struct {
	deps Deps
}

// NewUpdateStatusHandler creates a new UpdateStatusHandler.
func NewUpdateStatusHandler(deps Deps) *UpdateStatusHandler {
	return &UpdateStatusHandler{deps: deps}
}

// Handle executes the UpdateStatusCommand. Leaving PendingApproval and
// moving into Rejected or Completed are supervisor decisions.
func (h *UpdateStatusHandler) Handle(ctx context.Context, cmd UpdateStatusCommand) error {
	target, err := domain.ParseStatus(cmd.Status)
	if err != nil {
		return err
	}
	_, err = h.deps.onNode(ctx, cmd.Session, cmd.NodeID, func(_ context.Context, tree *domain.Tree) error {
		n, err := tree.Node(cmd.NodeID)
		if err != nil {
			return err
		}
		if needsSupervisor(n.Status(), target) {
			if err := cmd.Session.RequireSupervisor(); err != nil {
				return err
			}
		}
		if err := tree.TransitionStatus(cmd.NodeID, target); err != nil {
			return err
		}
		if target == domain.StatusCompleted && n.IsTask() {
			h.deps.count(observability.MetricTasksCompleted, 1)
		}
		return nil
	})
	return err
}

func needsSupervisor(from, to domain.Status) bool {
	switch {
	case from == domain.StatusPendingApproval:
		return true
	case to == domain.StatusRejected, to == domain.StatusCompleted:
		return true
	default:
		return false
	}
}

// UpdateProgressCommand sets a task's progress.
type UpdateProgressCommand struct {
	Session  sharedApplication.Session
	TaskID   uuid.UUID
	Progress float64
}

// UpdateProgressHandler handles the UpdateProgressCommand.
type UpdateProgressHandler struct {
	deps Deps
}

// NewUpdateProgressHandler creates a new UpdateProgressHandler.
func NewUpdateProgressHandler(deps Deps) *UpdateProgressHandler {
	return &UpdateProgressHandler{deps: deps}
}

// Handle executes the UpdateProgressCommand and returns the milestone's
// recomputed progress. Only tasks in active work accept progress.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (float64, error) {
	var milestoneProgress float64
	_, err := h.deps.onNode(ctx, cmd.Session, cmd.TaskID, func(_ context.Context, tree *domain.Tree) error {
		task, err := requireTask(tree, cmd.TaskID)
		if err != nil {
			return err
		}
		switch task.Status() {
		case domain.StatusPendingApproval, domain.StatusRejected, domain.StatusCompleted:
			return fmt.Errorf("%w: progress cannot change while %s", domain.ErrInvalidTransition, task.Status())
		}
		if err := tree.SetProgress(cmd.TaskID, cmd.Progress); err != nil {
			return err
		}
		milestoneProgress, err = domain.ComputeProgress(tree, tree.RootID())
		return err
	})
	if err != nil {
		return 0, err
	}
	return milestoneProgress, nil
}
