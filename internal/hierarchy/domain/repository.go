package domain

import (
	"context"
	"time"

	sharedDomain "github.com/felixgeelhaar/keel/internal/shared/domain"
	"github.com/google/uuid"
)

// Repository persists milestone hierarchies as whole aggregates. FindByID
// and Delete take the milestone id.
type Repository interface {
	sharedDomain.Repository[*Tree]
	// FindByNodeID loads the hierarchy that contains nodeID.
	FindByNodeID(ctx context.Context, nodeID uuid.UUID) (*Tree, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Tree, error)
}

// RecordedContribution is a contribution persisted in the ledger.
type RecordedContribution struct {
	ID          uuid.UUID
	MilestoneID uuid.UUID
	Contribution
	RecordedAt time.Time
}

// ContributionRepository stores the KPI contribution ledger.
type ContributionRepository interface {
	Record(ctx context.Context, milestoneID uuid.UUID, contributions []Contribution) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]RecordedContribution, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]RecordedContribution, error)
}
