package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/hierarchy/infrastructure/kpidirectory"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/go-playground/validator/v10"
)

// APIError is the body of every error response.
type APIError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Remaining *float64 `json:"remaining,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{errBadIdentity, http.StatusBadRequest, "invalid_identity"},
	{application.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{sharedApplication.ErrIdentityRequired, http.StatusUnauthorized, "identity_required"},
	{sharedApplication.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNodeNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{domain.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrNotSubmitted, http.StatusConflict, "not_submitted"},
	{domain.ErrDuplicateNode, http.StatusConflict, "duplicate_node"},
	{domain.ErrInvalidWeight, http.StatusBadRequest, "invalid_weight"},
	{domain.ErrInvalidGrade, http.StatusBadRequest, "invalid_grade"},
	{domain.ErrInvalidProgress, http.StatusBadRequest, "invalid_progress"},
	{domain.ErrInvalidParent, http.StatusBadRequest, "invalid_parent"},
	{domain.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{domain.ErrInvalidPriority, http.StatusBadRequest, "invalid_priority"},
	{domain.ErrEmptyTitle, http.StatusBadRequest, "empty_title"},
	{domain.ErrMissingKPILink, http.StatusBadRequest, "missing_kpi_link"},
	{domain.ErrInvalidContributionSplit, http.StatusBadRequest, "invalid_contribution_split"},
	{domain.ErrAssigneeNotFound, http.StatusBadRequest, "assignee_not_found"},
	{domain.ErrNotATask, http.StatusBadRequest, "not_a_task"},
	{domain.ErrRootRemoval, http.StatusBadRequest, "root_removal"},
	{application.ErrKPINotApproved, http.StatusBadRequest, "kpi_not_approved"},
	{kpidirectory.ErrUnavailable, http.StatusServiceUnavailable, "kpi_directory_unavailable"},
}

// errBadRequest marks malformed bodies and parameters.
var errBadRequest = errors.New("bad request")

// mapError translates an application error into a status and body.
// Unknown errors become a 500 without their message.
func mapError(err error) (int, APIError) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, APIError{Code: "validation_failed", Message: describeValidation(verrs)}
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		body := APIError{Code: m.code, Message: err.Error()}
		var ce *domain.CapacityError
		if errors.As(err, &ce) {
			remaining := ce.Remaining
			body.Remaining = &remaining
		}
		return m.status, body
	}
	return http.StatusInternalServerError, APIError{Code: "internal_error", Message: "internal server error"}
}

// writeError maps err and writes the error body. Server errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	body.RequestID = observability.RequestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			observability.RequestIDKey, body.RequestID,
			observability.ErrorKey, err,
		)
	}
	writeJSON(w, status, errorResponse{Error: body})
}
