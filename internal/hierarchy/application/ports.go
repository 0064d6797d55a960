// Package application holds the hierarchy use cases: the ports they depend
// on, the read models they return and the plan format.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
)

var (
	// ErrKPINotApproved indicates a KPI link to a KPI the user has not been
	// approved to link.
	ErrKPINotApproved = errors.New("kpi is not approved for linking")

	// ErrValidation marks malformed input that never reached the domain.
	ErrValidation = errors.New("validation failed")
)

// KPIReference is a KPI owned by the external KPI tracker.
type KPIReference struct {
	KPIDocID    string  `json:"kpiDocId" yaml:"kpiDocId"`
	KPIIndex    int     `json:"kpiIndex" yaml:"kpiIndex"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Progress    float64 `json:"progress" yaml:"progress"`
}

// KPIDirectory lists the KPIs a user may link work to.
type KPIDirectory interface {
	ApprovedForLinking(ctx context.Context, userID uuid.UUID) ([]KPIReference, error)
}

// HierarchyCache caches rendered hierarchy views by milestone id. A miss is
// (nil, false, nil).
type HierarchyCache interface {
	Get(ctx context.Context, milestoneID uuid.UUID) (*HierarchyView, bool, error)
	Set(ctx context.Context, view *HierarchyView) error
	Invalidate(ctx context.Context, milestoneID uuid.UUID) error
}

// VerifyKPILinks checks every link against its user's approved KPIs. A nil
// directory skips verification. Directory errors are returned as is.
func VerifyKPILinks(ctx context.Context, dir KPIDirectory, links []domain.KPILink) error {
	if dir == nil || len(links) == 0 {
		return nil
	}
	approved := make(map[uuid.UUID]map[kpiKey]bool)
	for _, l := range links {
		set, ok := approved[l.UserID]
		if !ok {
			refs, err := dir.ApprovedForLinking(ctx, l.UserID)
			if err != nil {
				return err
			}
			set = make(map[kpiKey]bool, len(refs))
			for _, ref := range refs {
				set[kpiKey{ref.KPIDocID, ref.KPIIndex}] = true
			}
			approved[l.UserID] = set
		}
		if !set[kpiKey{l.KPIDocID, l.KPIIndex}] {
			return fmt.Errorf("%w: %s/%d for user %s", ErrKPINotApproved, l.KPIDocID, l.KPIIndex, l.UserID)
		}
	}
	return nil
}

type kpiKey struct {
	docID string
	index int
}
