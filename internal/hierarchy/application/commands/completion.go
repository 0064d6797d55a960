package commands

import (
	"context"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// SubmitCompletionCommand is an assignee's completion report. The caller
// submits for themselves.
type SubmitCompletionCommand struct {
	Session   sharedApplication.Session
	TaskID    uuid.UUID
	Notes     string
	Documents []string
}

// SubmitCompletionHandler handles the SubmitCompletionCommand.
type SubmitCompletionHandler struct {
	deps Deps
}

// NewSubmitCompletionHandler creates a new SubmitCompletionHandler.
func NewSubmitCompletionHandler(deps Deps) *SubmitCompletionHandler {
	return &SubmitCompletionHandler{deps: deps}
}

// Handle executes the SubmitCompletionCommand.
func (h *SubmitCompletionHandler) Handle(ctx context.Context, cmd SubmitCompletionCommand) error {
	_, err := h.deps.onNode(ctx, cmd.Session, cmd.TaskID, func(_ context.Context, tree *domain.Tree) error {
		if _, err := requireTask(tree, cmd.TaskID); err != nil {
			return err
		}
		return tree.SubmitCompletion(cmd.TaskID, cmd.Session.UserID, cmd.Notes, cmd.Documents)
	})
	return err
}

// ReviewCompletionCommand is a supervisor's verdict on one assignee's
// submission.
type ReviewCompletionCommand struct {
	Session  sharedApplication.Session
	TaskID   uuid.UUID
	UserID   uuid.UUID
	Approve  bool
	Grade    float64
	Comments string
}

// ReviewCompletionResult reports the task's status after the review and the
// contributions an approval recorded.
type ReviewCompletionResult struct {
	Status        domain.Status
	Contributions []domain.Contribution
}

// ReviewCompletionHandler handles the ReviewCompletionCommand.
type ReviewCompletionHandler struct {
	deps          Deps
	contributions domain.ContributionRepository
}

// NewReviewCompletionHandler creates a new ReviewCompletionHandler.
func NewReviewCompletionHandler(deps Deps, contributions domain.ContributionRepository) *ReviewCompletionHandler {
	return &ReviewCompletionHandler{deps: deps, contributions: contributions}
}

// Handle executes the ReviewCompletionCommand. Contributions are written to
// the ledger in the same transaction as the review.
func (h *ReviewCompletionHandler) Handle(ctx context.Context, cmd ReviewCompletionCommand) (*ReviewCompletionResult, error) {
	if err := cmd.Session.RequireSupervisor(); err != nil {
		return nil, err
	}
	result := &ReviewCompletionResult{}
	_, err := h.deps.onNode(ctx, cmd.Session, cmd.TaskID, func(txCtx context.Context, tree *domain.Tree) error {
		task, err := requireTask(tree, cmd.TaskID)
		if err != nil {
			return err
		}
		contributions, err := tree.ReviewCompletion(cmd.TaskID, cmd.UserID, cmd.Approve, cmd.Grade, cmd.Comments)
		if err != nil {
			return err
		}
		result.Status = task.Status()
		result.Contributions = contributions
		if len(contributions) == 0 {
			return nil
		}
		return h.contributions.Record(txCtx, tree.RootID(), contributions)
	})
	if err != nil {
		return nil, err
	}

	h.deps.count(observability.MetricContributionsRecorded, len(result.Contributions))
	if result.Status == domain.StatusCompleted {
		h.deps.count(observability.MetricTasksCompleted, 1)
	}
	return result, nil
}
