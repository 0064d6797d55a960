package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLContributionRepository stores the KPI contribution ledger. Entries are
// append-only.
type SQLContributionRepository struct {
	conn database.Connection
}

// NewSQLContributionRepository creates a contribution ledger repository.
func NewSQLContributionRepository(conn database.Connection) *SQLContributionRepository {
	return &SQLContributionRepository{conn: conn}
}

const contributionColumns = `id, milestone_id, task_id, user_id, kpi_doc_id, kpi_index,
	task_weight, contribution_weight, grade, delta, recorded_at`

// Record appends contributions earned by one review.
func (r *SQLContributionRepository) Record(ctx context.Context, milestoneID uuid.UUID, contributions []domain.Contribution) error {
	ex := database.ExecutorFromContext(ctx, r.conn)
	now := r.conn.Driver().TimeArg(time.Now())
	for _, c := range contributions {
		_, err := ex.Exec(ctx, `INSERT INTO kpi_contributions (`+contributionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New(), milestoneID, c.TaskID, c.UserID, c.KPIDocID, c.KPIIndex,
			c.TaskWeight, c.ContributionWeight, c.Grade, c.Delta, now)
		if err != nil {
			return fmt.Errorf("record contribution to %s/%d: %w", c.KPIDocID, c.KPIIndex, err)
		}
	}
	return nil
}

// ListByTask returns the ledger entries of a task, oldest first.
func (r *SQLContributionRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]domain.RecordedContribution, error) {
	return r.list(ctx, `SELECT `+contributionColumns+` FROM kpi_contributions
		WHERE task_id = ? ORDER BY recorded_at, kpi_doc_id, kpi_index`, taskID)
}

// ListByUser returns every contribution a user has earned, oldest first.
func (r *SQLContributionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RecordedContribution, error) {
	return r.list(ctx, `SELECT `+contributionColumns+` FROM kpi_contributions
		WHERE user_id = ? ORDER BY recorded_at, kpi_doc_id, kpi_index`, userID)
}

func (r *SQLContributionRepository) list(ctx context.Context, query string, arg any) ([]domain.RecordedContribution, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var out []domain.RecordedContribution
	for rows.Next() {
		var (
			rc       domain.RecordedContribution
			recorded database.Timestamp
		)
		if err := rows.Scan(&rc.ID, &rc.MilestoneID, &rc.TaskID, &rc.UserID, &rc.KPIDocID, &rc.KPIIndex,
			&rc.TaskWeight, &rc.ContributionWeight, &rc.Grade, &rc.Delta, &recorded); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		rc.RecordedAt = recorded.Time
		out = append(out, rc)
	}
	return out, rows.Err()
}
