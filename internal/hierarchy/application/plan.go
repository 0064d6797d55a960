package application

import (
	"bytes"
	"fmt"
	"time"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Plan is a whole milestone tree in its YAML exchange format.
type Plan struct {
	ProjectID uuid.UUID `yaml:"projectId"`
	Milestone PlanNode  `yaml:"milestone"`
}

// PlanNode is one node of a plan. Weight is ignored on the milestone.
type PlanNode struct {
	Title         string        `yaml:"title"`
	Description   string        `yaml:"description,omitempty"`
	Weight        float64       `yaml:"weight,omitempty"`
	DueDate       *time.Time    `yaml:"dueDate,omitempty"`
	Supervisor    *uuid.UUID    `yaml:"supervisor,omitempty"`
	Priority      string        `yaml:"priority,omitempty"`
	Notes         string        `yaml:"notes,omitempty"`
	Assignees     []uuid.UUID   `yaml:"assignees,omitempty"`
	KPIs          []PlanKPILink `yaml:"kpis,omitempty"`
	SubMilestones []PlanNode    `yaml:"subMilestones,omitempty"`
	Tasks         []PlanNode    `yaml:"tasks,omitempty"`
}

// PlanKPILink is a KPI link in a plan.
type PlanKPILink struct {
	User   uuid.UUID `yaml:"user"`
	DocID  string    `yaml:"docId"`
	Index  int       `yaml:"index"`
	Weight float64   `yaml:"weight"`
}

// ParsePlan decodes a YAML plan. Unknown fields are rejected.
func ParsePlan(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: parse plan: %v", ErrValidation, err)
	}
	if p.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: parse plan: projectId is required", ErrValidation)
	}
	return &p, nil
}

// Marshal encodes the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LinkedKPIs returns the node's KPI links in domain form.
func (n PlanNode) LinkedKPIs() []domain.KPILink {
	links := make([]domain.KPILink, 0, len(n.KPIs))
	for _, k := range n.KPIs {
		links = append(links, domain.KPILink{
			UserID:             k.User,
			KPIDocID:           k.DocID,
			KPIIndex:           k.Index,
			ContributionWeight: k.Weight,
		})
	}
	return links
}

// AllKPILinks returns the KPI links of every node in the plan.
func (p *Plan) AllKPILinks() []domain.KPILink {
	var links []domain.KPILink
	stack := []PlanNode{p.Milestone}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		links = append(links, n.LinkedKPIs()...)
		stack = append(stack, n.SubMilestones...)
		stack = append(stack, n.Tasks...)
	}
	return links
}

// BuildTree creates a new tree from the plan. Every insertion goes through
// the same capacity and kind checks as interactive edits, so an invalid
// plan fails at the first offending node.
func (p *Plan) BuildTree(createdBy uuid.UUID) (*domain.Tree, error) {
	root, err := domain.NewMilestone(p.ProjectID, p.Milestone.Title, createdBy)
	if err != nil {
		return nil, fmt.Errorf("milestone: %w", err)
	}
	if err := applyPlanFields(root, p.Milestone); err != nil {
		return nil, fmt.Errorf("milestone: %w", err)
	}
	tree, err := domain.NewTree(root)
	if err != nil {
		return nil, err
	}
	if err := insertPlanChildren(tree, root.ID(), p.Milestone, createdBy, p.Milestone.Title); err != nil {
		return nil, err
	}
	return tree, nil
}

func insertPlanChildren(tree *domain.Tree, parentID uuid.UUID, pn PlanNode, createdBy uuid.UUID, path string) error {
	for _, sn := range pn.SubMilestones {
		at := path + "/" + sn.Title
		n, err := domain.NewSubMilestone(sn.Title, sn.Weight, createdBy)
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if err := applyPlanFields(n, sn); err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if err := tree.InsertChild(parentID, n); err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if err := insertPlanChildren(tree, n.ID(), sn, createdBy, at); err != nil {
			return err
		}
	}
	for _, tn := range pn.Tasks {
		at := path + "/" + tn.Title
		if len(tn.SubMilestones) > 0 || len(tn.Tasks) > 0 {
			return fmt.Errorf("%s: %w", at, domain.ErrInvalidParent)
		}
		n, err := domain.NewTask(tn.Title, tn.Weight, createdBy)
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if err := applyPlanFields(n, tn); err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if err := tree.InsertChild(parentID, n); err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
	}
	return nil
}

func applyPlanFields(n *domain.Node, pn PlanNode) error {
	n.SetDescription(pn.Description)
	n.SetDueDate(pn.DueDate)
	if pn.Supervisor != nil {
		n.SetSupervisor(*pn.Supervisor)
	}
	if !n.IsTask() {
		if len(pn.KPIs) > 0 {
			return n.LinkKPIs(pn.LinkedKPIs())
		}
		return nil
	}
	n.SetNotes(pn.Notes)
	prio, err := domain.ParsePriority(pn.Priority)
	if err != nil {
		return err
	}
	if err := n.SetPriority(prio); err != nil {
		return err
	}
	if len(pn.Assignees) > 0 || len(pn.KPIs) > 0 {
		return n.AssignTo(pn.Assignees, pn.LinkedKPIs())
	}
	return nil
}

// ExportPlan renders a tree as a plan. Within a parent, sub-milestones are
// listed before tasks.
func ExportPlan(t *domain.Tree) *Plan {
	return &Plan{ProjectID: t.Root().ProjectID(), Milestone: exportPlanNode(t, t.Root())}
}

func exportPlanNode(t *domain.Tree, n *domain.Node) PlanNode {
	pn := PlanNode{
		Title:       n.Title(),
		Description: n.Description(),
		DueDate:     n.DueDate(),
		Notes:       n.Notes(),
	}
	if !n.IsRoot() {
		pn.Weight = n.Weight()
	}
	if s := n.SupervisorID(); s != uuid.Nil {
		pn.Supervisor = &s
	}
	if n.IsTask() {
		pn.Priority = string(n.Priority())
		for _, a := range n.Assignees() {
			pn.Assignees = append(pn.Assignees, a.UserID)
		}
	}
	for _, l := range n.KPILinks() {
		pn.KPIs = append(pn.KPIs, PlanKPILink{User: l.UserID, DocID: l.KPIDocID, Index: l.KPIIndex, Weight: l.ContributionWeight})
	}
	children, _ := t.Children(n.ID())
	for _, c := range children {
		if c.IsTask() {
			pn.Tasks = append(pn.Tasks, exportPlanNode(t, c))
		} else {
			pn.SubMilestones = append(pn.SubMilestones, exportPlanNode(t, c))
		}
	}
	return pn
}
