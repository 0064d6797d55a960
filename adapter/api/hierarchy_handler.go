package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/felixgeelhaar/keel/internal/app"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HierarchyHandler serves the milestone, sub-milestone and action item
// endpoints.
type HierarchyHandler struct {
	createMilestone  *commands.CreateMilestoneHandler
	deleteMilestone  *commands.DeleteMilestoneHandler
	addSubMilestone  *commands.AddSubMilestoneHandler
	addTask          *commands.AddTaskHandler
	decideApproval   *commands.DecideApprovalHandler
	updateStatus     *commands.UpdateStatusHandler
	updateProgress   *commands.UpdateProgressHandler
	submitCompletion *commands.SubmitCompletionHandler
	reviewCompletion *commands.ReviewCompletionHandler
	removeNode       *commands.RemoveNodeHandler
	importPlan       *commands.ImportPlanHandler

	getHierarchy      *queries.GetHierarchyHandler
	listMilestones    *queries.ListMilestonesHandler
	listTasks         *queries.ListTasksHandler
	getCapacity       *queries.GetCapacityHandler
	listContributions *queries.ListContributionsHandler
	exportPlan        *queries.ExportPlanHandler
	approvedKPIs      *queries.ApprovedKPIsHandler
}

// NewHierarchyHandler wires the handler from a container.
func NewHierarchyHandler(c *app.Container) *HierarchyHandler {
	return &HierarchyHandler{
		createMilestone:   c.CreateMilestone,
		deleteMilestone:   c.DeleteMilestone,
		addSubMilestone:   c.AddSubMilestone,
		addTask:           c.AddTask,
		decideApproval:    c.DecideApproval,
		updateStatus:      c.UpdateStatus,
		updateProgress:    c.UpdateProgress,
		submitCompletion:  c.SubmitCompletion,
		reviewCompletion:  c.ReviewCompletion,
		removeNode:        c.RemoveNode,
		importPlan:        c.ImportPlan,
		getHierarchy:      c.GetHierarchy,
		listMilestones:    c.ListMilestones,
		listTasks:         c.ListTasks,
		getCapacity:       c.GetCapacity,
		listContributions: c.ListContributions,
		exportPlan:        c.ExportPlan,
		approvedKPIs:      c.ApprovedKPIs,
	}
}

// nodeResponse is returned by every insert.
type nodeResponse struct {
	ID                uuid.UUID     `json:"id"`
	MilestoneID       uuid.UUID     `json:"milestoneId"`
	RemainingCapacity float64       `json:"remainingCapacity"`
	Status            domain.Status `json:"status,omitempty"`
}

type contributionResponse struct {
	UserID             uuid.UUID `json:"userId"`
	KPIDocID           string    `json:"kpiDocId"`
	KPIIndex           int       `json:"kpiIndex"`
	TaskWeight         float64   `json:"taskWeight"`
	ContributionWeight float64   `json:"contributionWeight"`
	Grade              float64   `json:"grade"`
	Delta              float64   `json:"delta"`
}

type reviewResponse struct {
	Status        domain.Status          `json:"status"`
	Contributions []contributionResponse `json:"contributions"`
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a valid id", errBadRequest, raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a valid id", errBadRequest, name, raw)
	}
	return id, nil
}

// CreateMilestone handles POST /milestones.
func (h *HierarchyHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	var req CreateMilestoneRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.createMilestone.Handle(r.Context(), commands.CreateMilestoneCommand{
		Session:      sessionFrom(r),
		ProjectID:    parseUUID(req.ProjectID),
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		SupervisorID: parseUUID(req.SupervisorID),
		LinkedKPIs:   toKPILinks(req.LinkedKPIs),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nodeResponse{ID: res.MilestoneID, MilestoneID: res.MilestoneID, RemainingCapacity: domain.FullAllocation})
}

// ImportPlan handles POST /milestones/import. The body is a YAML plan.
func (h *HierarchyHandler) ImportPlan(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	res, err := h.importPlan.Handle(r.Context(), commands.ImportPlanCommand{Session: sessionFrom(r), Data: data})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.View)
}

// ListMilestones handles GET /projects/{id}/milestones.
func (h *HierarchyHandler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.listMilestones.Handle(r.Context(), queries.ListMilestonesQuery{ProjectID: projectID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []application.MilestoneSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetHierarchy handles GET /milestones/{id}/hierarchy.
func (h *HierarchyHandler) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.getHierarchy.Handle(r.Context(), queries.GetHierarchyQuery{MilestoneID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListTasks handles GET /milestones/{id}/tasks?from=<node id>.
func (h *HierarchyHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := queryID(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := h.listTasks.Handle(r.Context(), queries.ListTasksQuery{MilestoneID: id, From: from})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []application.NodeView{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ExportPlan handles GET /milestones/{id}/plan.
func (h *HierarchyHandler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := h.exportPlan.Handle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AddSubMilestone handles POST /milestones/{id}/sub-milestones.
func (h *HierarchyHandler) AddSubMilestone(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AddSubMilestoneRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.addSubMilestone.Handle(r.Context(), commands.AddSubMilestoneCommand{
		Session:      sessionFrom(r),
		MilestoneID:  milestoneID,
		ParentID:     parseUUID(req.ParentSubMilestoneID),
		Title:        req.Title,
		Description:  req.Description,
		Weight:       req.Weight,
		DueDate:      req.DueDate,
		SupervisorID: parseUUID(req.AssignedSupervisor),
		LinkedKPIs:   toKPILinks(req.LinkedKPIs),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nodeResponse{ID: res.NodeID, MilestoneID: res.MilestoneID, RemainingCapacity: res.Remaining})
}

// DeleteMilestone handles DELETE /milestones/{id}.
func (h *HierarchyHandler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.deleteMilestone.Handle(r.Context(), commands.DeleteMilestoneCommand{Session: sessionFrom(r), MilestoneID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// RemoveSubMilestone handles DELETE /sub-milestones/{id}.
func (h *HierarchyHandler) RemoveSubMilestone(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, domain.KindSubMilestone)
}

// RemoveTask handles DELETE /action-items/{id}.
func (h *HierarchyHandler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, domain.KindTask)
}

func (h *HierarchyHandler) remove(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.removeNode.Handle(r.Context(), commands.RemoveNodeCommand{Session: sessionFrom(r), NodeID: id, Kind: kind})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"milestoneId": res.MilestoneID,
		"removed":     res.Removed,
	})
}

// GetCapacity handles GET /nodes/{id}/capacity.
func (h *HierarchyHandler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.getCapacity.Handle(r.Context(), queries.GetCapacityQuery{NodeID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddMilestoneTask handles POST /action-items/milestone/task. The task
// goes directly under milestoneId.
func (h *HierarchyHandler) AddMilestoneTask(w http.ResponseWriter, r *http.Request) {
	var req AddTaskRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.MilestoneID == "" {
		writeError(w, r, fmt.Errorf("%w: milestoneId is required", application.ErrValidation))
		return
	}
	h.addTaskTo(w, r, req, uuid.Nil)
}

// AddSubMilestoneTask handles POST /action-items/sub-milestone-task.
func (h *HierarchyHandler) AddSubMilestoneTask(w http.ResponseWriter, r *http.Request) {
	var req AddTaskRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SubMilestoneID == "" {
		writeError(w, r, fmt.Errorf("%w: subMilestoneId is required", application.ErrValidation))
		return
	}
	h.addTaskTo(w, r, req, parseUUID(req.SubMilestoneID))
}

func (h *HierarchyHandler) addTaskTo(w http.ResponseWriter, r *http.Request, req AddTaskRequest, parentID uuid.UUID) {
	res, err := h.addTask.Handle(r.Context(), commands.AddTaskCommand{
		Session:     sessionFrom(r),
		ProjectID:   parseUUID(req.ProjectID),
		MilestoneID: parseUUID(req.MilestoneID),
		ParentID:    parentID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Weight:      req.TaskWeight,
		AssignedTo:  parseUUIDs(req.AssignedTo),
		LinkedKPIs:  toKPILinks(req.LinkedKPIs),
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nodeResponse{
		ID:                res.NodeID,
		MilestoneID:       res.MilestoneID,
		RemainingCapacity: res.Remaining,
		Status:            res.Status,
	})
}

// DecideApproval handles POST /action-items/{id}/approval.
func (h *HierarchyHandler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ApprovalRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := h.decideApproval.Handle(r.Context(), commands.DecideApprovalCommand{
		Session: sessionFrom(r),
		TaskID:  id,
		Approve: *req.Approve,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Status{"status": status})
}

// UpdateStatus handles PATCH /action-items/{id}/status.
func (h *HierarchyHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.updateStatus.Handle(r.Context(), commands.UpdateStatusCommand{
		Session: sessionFrom(r),
		NodeID:  id,
		Status:  req.Status,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// UpdateProgress handles PATCH /action-items/{id}/progress. The response
// carries the milestone's recomputed progress.
func (h *HierarchyHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ProgressRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	milestoneProgress, err := h.updateProgress.Handle(r.Context(), commands.UpdateProgressCommand{
		Session:  sessionFrom(r),
		TaskID:   id,
		Progress: *req.Progress,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"progress":          *req.Progress,
		"milestoneProgress": milestoneProgress,
	})
}

// SubmitCompletion handles POST /action-items/{id}/submit.
func (h *HierarchyHandler) SubmitCompletion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req SubmitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.submitCompletion.Handle(r.Context(), commands.SubmitCompletionCommand{
		Session:   sessionFrom(r),
		TaskID:    id,
		Notes:     req.Notes,
		Documents: req.Documents,
	}); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReviewCompletion handles POST /action-items/{id}/review. An approval
// must carry a grade.
func (h *HierarchyHandler) ReviewCompletion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ReviewRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var grade float64
	if req.Grade != nil {
		grade = *req.Grade
	} else if *req.Approve {
		writeError(w, r, fmt.Errorf("%w: grade is required to approve", application.ErrValidation))
		return
	}
	res, err := h.reviewCompletion.Handle(r.Context(), commands.ReviewCompletionCommand{
		Session:  sessionFrom(r),
		TaskID:   id,
		UserID:   parseUUID(req.UserID),
		Approve:  *req.Approve,
		Grade:    grade,
		Comments: req.Comments,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := reviewResponse{Status: res.Status, Contributions: make([]contributionResponse, 0, len(res.Contributions))}
	for _, c := range res.Contributions {
		out.Contributions = append(out.Contributions, contributionResponse{
			UserID:             c.UserID,
			KPIDocID:           c.KPIDocID,
			KPIIndex:           c.KPIIndex,
			TaskWeight:         c.TaskWeight,
			ContributionWeight: c.ContributionWeight,
			Grade:              c.Grade,
			Delta:              c.Delta,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListContributions handles GET /action-items/{id}/contributions.
func (h *HierarchyHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeContributions(w, r, queries.ListContributionsQuery{TaskID: id})
}

// ListUserContributions handles GET /users/{id}/contributions.
func (h *HierarchyHandler) ListUserContributions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeContributions(w, r, queries.ListContributionsQuery{UserID: id})
}

func (h *HierarchyHandler) writeContributions(w http.ResponseWriter, r *http.Request, q queries.ListContributionsQuery) {
	list, err := h.listContributions.Handle(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []application.ContributionView{}
	}
	writeJSON(w, http.StatusOK, list)
}

// PreviewContribution handles POST /contributions/preview. Nothing is
// recorded.
func (h *HierarchyHandler) PreviewContribution(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	preview, err := queries.PreviewContribution(req.TaskWeight, req.Grade, req.ContributionWeight)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ApprovedKPIs handles GET /kpis/approved-for-linking. It lists the
// caller's KPIs unless userId names someone else.
func (h *HierarchyHandler) ApprovedKPIs(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if userID == uuid.Nil {
		s := sessionFrom(r)
		if err := s.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
		userID = s.UserID
	}
	kpis, err := h.approvedKPIs.Handle(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if kpis == nil {
		kpis = []application.KPIReference{}
	}
	writeJSON(w, http.StatusOK, kpis)
}
