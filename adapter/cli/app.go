package cli

import (
	"errors"

	"github.com/felixgeelhaar/keel/internal/app"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/pkg/observability"
)

// ErrNotInitialized is returned by commands run without a database.
var ErrNotInitialized = errors.New("application not initialized - database connection required")

// App holds the CLI application dependencies.
type App struct {
	// Milestone Command Handlers
	CreateMilestoneHandler *commands.CreateMilestoneHandler
	DeleteMilestoneHandler *commands.DeleteMilestoneHandler
	AddSubMilestoneHandler *commands.AddSubMilestoneHandler
	RemoveNodeHandler      *commands.RemoveNodeHandler
	ImportPlanHandler      *commands.ImportPlanHandler

	// Task Command Handlers
	AddTaskHandler          *commands.AddTaskHandler
	DecideApprovalHandler   *commands.DecideApprovalHandler
	UpdateStatusHandler     *commands.UpdateStatusHandler
	UpdateProgressHandler   *commands.UpdateProgressHandler
	SubmitCompletionHandler *commands.SubmitCompletionHandler
	ReviewCompletionHandler *commands.ReviewCompletionHandler

	// Query Handlers
	GetHierarchyHandler      *queries.GetHierarchyHandler
	ListMilestonesHandler    *queries.ListMilestonesHandler
	ListTasksHandler         *queries.ListTasksHandler
	GetCapacityHandler       *queries.GetCapacityHandler
	ListContributionsHandler *queries.ListContributionsHandler
	ExportPlanHandler        *queries.ExportPlanHandler
	ApprovedKPIsHandler      *queries.ApprovedKPIsHandler

	Health *observability.HealthRegistry

	// Session is the configured caller (KEEL_USER_ID / KEEL_USER_ROLE).
	Session sharedApplication.Session

	container *app.Container
}

// NewApp creates a CLI application backed by the container.
func NewApp(c *app.Container, session sharedApplication.Session) *App {
	return &App{
		CreateMilestoneHandler:   c.CreateMilestone,
		DeleteMilestoneHandler:   c.DeleteMilestone,
		AddSubMilestoneHandler:   c.AddSubMilestone,
		RemoveNodeHandler:        c.RemoveNode,
		ImportPlanHandler:        c.ImportPlan,
		AddTaskHandler:           c.AddTask,
		DecideApprovalHandler:    c.DecideApproval,
		UpdateStatusHandler:      c.UpdateStatus,
		UpdateProgressHandler:    c.UpdateProgress,
		SubmitCompletionHandler:  c.SubmitCompletion,
		ReviewCompletionHandler:  c.ReviewCompletion,
		GetHierarchyHandler:      c.GetHierarchy,
		ListMilestonesHandler:    c.ListMilestones,
		ListTasksHandler:         c.ListTasks,
		GetCapacityHandler:       c.GetCapacity,
		ListContributionsHandler: c.ListContributions,
		ExportPlanHandler:        c.ExportPlan,
		ApprovedKPIsHandler:      c.ApprovedKPIs,
		Health:                   c.Health,
		Session:                  session,
		container:                c,
	}
}

// Container returns the backing container, or nil for a bare App.
func (a *App) Container() *app.Container {
	return a.container
}

// SetSession replaces the caller identity.
func (a *App) SetSession(s sharedApplication.Session) {
	a.Session = s
}

// cliApp is the global CLI application instance.
var cliApp *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	cliApp = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return cliApp
}

// RequireApp returns the global App or ErrNotInitialized.
func RequireApp() (*App, error) {
	if cliApp == nil || cliApp.container == nil {
		return nil, ErrNotInitialized
	}
	return cliApp, nil
}
