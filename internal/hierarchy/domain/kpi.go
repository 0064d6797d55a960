package domain

import (
	"math"

	"github.com/google/uuid"
)

// MaxGrade is the top of the completion grade scale.
const MaxGrade = 5.0

// Contribution is the achievement delta a graded task adds to one KPI, in
// percentage points.
type Contribution struct {
	TaskID             uuid.UUID `json:"task_id"`
	UserID             uuid.UUID `json:"user_id"`
	KPIDocID           string    `json:"kpi_doc_id"`
	KPIIndex           int       `json:"kpi_index"`
	TaskWeight         float64   `json:"task_weight"`
	ContributionWeight float64   `json:"contribution_weight"`
	Grade              float64   `json:"grade"`
	Delta              float64   `json:"delta"`
}

// ValidateGrade checks that a grade lies in [0,5].
func ValidateGrade(grade float64) error {
	if math.IsNaN(grade) || grade < 0 || grade > MaxGrade {
		return ErrInvalidGrade
	}
	return nil
}

// ValidateReviewGrade additionally requires half-point steps, the
// granularity supervisors grade in.
func ValidateReviewGrade(grade float64) error {
	if err := ValidateGrade(grade); err != nil {
		return err
	}
	if math.Mod(grade*2, 1) != 0 {
		return ErrInvalidGrade
	}
	return nil
}

// ComputeContribution returns (grade/5) * taskWeight * (kpiContributionWeight/100).
// Weights are not renormalised.
func ComputeContribution(taskWeight, grade, kpiContributionWeight float64) (float64, error) {
	if err := ValidateGrade(grade); err != nil {
		return 0, err
	}
	return (grade / MaxGrade) * taskWeight * (kpiContributionWeight / FullAllocation), nil
}

// ValidateKPISplit checks that each user's contribution weights are positive
// and sum to 100.
func ValidateKPISplit(links []KPILink) error {
	sums := make(map[uuid.UUID]float64)
	for _, l := range links {
		if l.KPIDocID == "" || l.KPIIndex < 0 {
			return ErrMissingKPILink
		}
		if err := validateWeight(l.ContributionWeight); err != nil {
			return ErrInvalidContributionSplit
		}
		sums[l.UserID] += l.ContributionWeight
	}
	for _, sum := range sums {
		if math.Abs(sum-FullAllocation) > weightTolerance {
			return ErrInvalidContributionSplit
		}
	}
	return nil
}

// ContributionsFor maps a user's grade on a task onto each KPI the user
// linked to it.
func ContributionsFor(task *Node, userID uuid.UUID, grade float64) ([]Contribution, error) {
	if !task.IsTask() {
		return nil, ErrNotATask
	}
	links := task.KPILinksFor(userID)
	if len(links) == 0 {
		return nil, ErrMissingKPILink
	}
	out := make([]Contribution, 0, len(links))
	for _, l := range links {
		delta, err := ComputeContribution(task.weight, grade, l.ContributionWeight)
		if err != nil {
			return nil, err
		}
		out = append(out, Contribution{
			TaskID:             task.id,
			UserID:             userID,
			KPIDocID:           l.KPIDocID,
			KPIIndex:           l.KPIIndex,
			TaskWeight:         task.weight,
			ContributionWeight: l.ContributionWeight,
			Grade:              grade,
			Delta:              delta,
		})
	}
	return out, nil
}
