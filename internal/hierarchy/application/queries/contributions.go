package queries

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

// ListContributionsQuery selects ledger entries by task or by user. Exactly
// one of the ids must be set.
type ListContributionsQuery struct {
	TaskID uuid.UUID
	UserID uuid.UUID
}

// ListContributionsHandler handles the ListContributionsQuery.
type ListContributionsHandler struct {
	repo domain.ContributionRepository
}

// NewListContributionsHandler creates a new ListContributionsHandler.
func NewListContributionsHandler(repo domain.ContributionRepository) *ListContributionsHandler {
	return &ListContributionsHandler{repo: repo}
}

// Handle executes the ListContributionsQuery.
func (h *ListContributionsHandler) Handle(ctx context.Context, q ListContributionsQuery) ([]application.ContributionView, error) {
	var (
		recorded []domain.RecordedContribution
		err      error
	)
	switch {
	case q.TaskID != uuid.Nil && q.UserID == uuid.Nil:
		recorded, err = h.repo.ListByTask(ctx, q.TaskID)
	case q.UserID != uuid.Nil && q.TaskID == uuid.Nil:
		recorded, err = h.repo.ListByUser(ctx, q.UserID)
	default:
		return nil, fmt.Errorf("%w: exactly one of task id and user id is required", application.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	views := make([]application.ContributionView, 0, len(recorded))
	for _, rc := range recorded {
		views = append(views, application.NewContributionView(rc))
	}
	return views, nil
}

// ContributionPreview is the delta a grade would earn, without recording it.
type ContributionPreview struct {
	TaskWeight         float64 `json:"taskWeight"`
	Grade              float64 `json:"grade"`
	ContributionWeight float64 `json:"contributionWeight"`
	Delta              float64 `json:"delta"`
}

// PreviewContribution computes (grade/5) * taskWeight * (contributionWeight/100).
func PreviewContribution(taskWeight, grade, contributionWeight float64) (ContributionPreview, error) {
	delta, err := domain.ComputeContribution(taskWeight, grade, contributionWeight)
	if err != nil {
		return ContributionPreview{}, err
	}
	return ContributionPreview{
		TaskWeight:         taskWeight,
		Grade:              grade,
		ContributionWeight: contributionWeight,
		Delta:              delta,
	}, nil
}
