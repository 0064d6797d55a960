package queries

import (
	"context"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

// ListMilestonesQuery lists a project's milestones.
type ListMilestonesQuery struct {
	ProjectID uuid.UUID
}

// ListMilestonesHandler handles the ListMilestonesQuery.
type ListMilestonesHandler struct {
	repo domain.Repository
}

// NewListMilestonesHandler creates a new ListMilestonesHandler.
func NewListMilestonesHandler(repo domain.Repository) *ListMilestonesHandler {
	return &ListMilestonesHandler{repo: repo}
}

// Handle returns one summary per milestone with its computed progress.
func (h *ListMilestonesHandler) Handle(ctx context.Context, q ListMilestonesQuery) ([]application.MilestoneSummary, error) {
	trees, err := h.repo.ListByProject(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}

	summaries := make([]application.MilestoneSummary, 0, len(trees))
	for _, tree := range trees {
		progress, err := domain.ComputeProgress(tree, tree.RootID())
		if err != nil {
			return nil, err
		}
		remaining, err := domain.NewCapacityTracker(tree).RemainingFor(tree.RootID())
		if err != nil && !isViolation(err) {
			return nil, err
		}
		root := tree.Root()
		summaries = append(summaries, application.MilestoneSummary{
			ID:        root.ID(),
			ProjectID: root.ProjectID(),
			Title:     root.Title(),
			Progress:  progress,
			Status:    root.Status(),
			TaskCount: tree.TaskCount(root.ID()),
			Remaining: remaining,
			DueDate:   root.DueDate(),
		})
	}
	return summaries, nil
}

// ListTasksQuery flattens the tasks under a node. From defaults to the
// milestone root.
type ListTasksQuery struct {
	MilestoneID uuid.UUID
	From        uuid.UUID
}

// ListTasksHandler handles the ListTasksQuery.
type ListTasksHandler struct {
	repo domain.Repository
}

// NewListTasksHandler creates a new ListTasksHandler.
func NewListTasksHandler(repo domain.Repository) *ListTasksHandler {
	return &ListTasksHandler{repo: repo}
}

// Handle returns the tasks in depth-first order.
func (h *ListTasksHandler) Handle(ctx context.Context, q ListTasksQuery) ([]application.NodeView, error) {
	tree, err := h.repo.FindByID(ctx, q.MilestoneID)
	if err != nil {
		return nil, err
	}
	from := q.From
	if from == uuid.Nil {
		from = tree.RootID()
	}
	if !tree.Contains(from) {
		return nil, domain.ErrNodeNotFound
	}

	tasks := []application.NodeView{}
	for task := range tree.FlattenTasks(from) {
		tasks = append(tasks, application.NewNodeView(task, task.Progress()))
	}
	return tasks, nil
}
