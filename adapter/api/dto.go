package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// maxBodyBytes bounds JSON and plan uploads.
const maxBodyBytes = 1 << 20

// KPILinkRequest links an assignee's share of a task to one of their KPIs.
type KPILinkRequest struct {
	UserID             string  `json:"userId" validate:"required,uuid"`
	KPIDocID           string  `json:"kpiDocId" validate:"required"`
	KPIIndex           int     `json:"kpiIndex" validate:"gte=0"`
	ContributionWeight float64 `json:"contributionWeight" validate:"gt=0,lte=100"`
}

// CreateMilestoneRequest is the body of POST /milestones.
type CreateMilestoneRequest struct {
	ProjectID    string           `json:"projectId" validate:"required,uuid"`
	Title        string           `json:"title" validate:"required,max=200"`
	Description  string           `json:"description" validate:"max=4000"`
	DueDate      *time.Time       `json:"dueDate"`
	SupervisorID string           `json:"supervisorId" validate:"omitempty,uuid"`
	LinkedKPIs   []KPILinkRequest `json:"linkedKPIs" validate:"dive"`
}

// AddSubMilestoneRequest is the body of POST /milestones/{id}/sub-milestones.
type AddSubMilestoneRequest struct {
	Title                string           `json:"title" validate:"required,max=200"`
	Description          string           `json:"description" validate:"max=4000"`
	Weight               float64          `json:"weight" validate:"gt=0"`
	DueDate              *time.Time       `json:"dueDate"`
	AssignedSupervisor   string           `json:"assignedSupervisor" validate:"omitempty,uuid"`
	ParentSubMilestoneID string           `json:"parentSubMilestoneId" validate:"omitempty,uuid"`
	LinkedKPIs           []KPILinkRequest `json:"linkedKPIs" validate:"dive"`
}

// AddTaskRequest is the body of both task creation endpoints. SubMilestoneID
// is only read by /action-items/sub-milestone-task.
type AddTaskRequest struct {
	ProjectID      string           `json:"projectId" validate:"omitempty,uuid"`
	MilestoneID    string           `json:"milestoneId" validate:"omitempty,uuid"`
	SubMilestoneID string           `json:"subMilestoneId" validate:"omitempty,uuid"`
	Title          string           `json:"title" validate:"required,max=200"`
	Description    string           `json:"description" validate:"max=4000"`
	Priority       string           `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	DueDate        *time.Time       `json:"dueDate"`
	TaskWeight     float64          `json:"taskWeight" validate:"gt=0"`
	AssignedTo     []string         `json:"assignedTo" validate:"dive,uuid"`
	LinkedKPIs     []KPILinkRequest `json:"linkedKPIs" validate:"dive"`
	Notes          string           `json:"notes" validate:"max=4000"`
}

// ApprovalRequest is a supervisor's decision on a pending task.
type ApprovalRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// StatusRequest moves a node to a new status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ProgressRequest reports a task's progress.
type ProgressRequest struct {
	Progress *float64 `json:"progress" validate:"required,gte=0,lte=100"`
}

// SubmitRequest is an assignee's completion report.
type SubmitRequest struct {
	Notes     string   `json:"notes" validate:"max=4000"`
	Documents []string `json:"documents" validate:"dive,required"`
}

// ReviewRequest is a supervisor's verdict on one assignee.
type ReviewRequest struct {
	UserID   string   `json:"userId" validate:"required,uuid"`
	Approve  *bool    `json:"approve" validate:"required"`
	Grade    *float64 `json:"grade" validate:"omitempty,gte=0,lte=5"`
	Comments string   `json:"comments" validate:"max=4000"`
}

// PreviewRequest is the body of POST /contributions/preview.
type PreviewRequest struct {
	TaskWeight         float64 `json:"taskWeight"`
	Grade              float64 `json:"grade"`
	ContributionWeight float64 `json:"contributionWeight"`
}

// decode reads a JSON body into dst and validates its tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return validate.Struct(dst)
}

// parseUUID parses an id that validation already accepted or that is
// optional. Empty is uuid.Nil.
func parseUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func parseUUIDs(ss []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		out = append(out, parseUUID(s))
	}
	return out
}

func toKPILinks(reqs []KPILinkRequest) []domain.KPILink {
	if len(reqs) == 0 {
		return nil
	}
	links := make([]domain.KPILink, 0, len(reqs))
	for _, l := range reqs {
		links = append(links, domain.KPILink{
			UserID:             parseUUID(l.UserID),
			KPIDocID:           l.KPIDocID,
			KPIIndex:           l.KPIIndex,
			ContributionWeight: l.ContributionWeight,
		})
	}
	return links
}

// describeValidation renders validator errors as one line per field.
func describeValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", e.Namespace(), e.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
