package mcp

import (
	"context"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/mcp-go"
	"github.com/google/uuid"
)

type contributionPreviewInput struct {
	TaskWeight         float64 `json:"task_weight" jsonschema:"required"`
	Grade              float64 `json:"grade" jsonschema:"required"`
	ContributionWeight float64 `json:"contribution_weight" jsonschema:"required"`
}

type contributionListInput struct {
	TaskID string `json:"task_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type userIDInput struct {
	UserID string `json:"user_id,omitempty"`
}

func registerContributionTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("contribution.preview").
		Description("Compute grade/5 x task weight x contribution weight/100 without recording it").
		Handler(func(ctx context.Context, input contributionPreviewInput) (queries.ContributionPreview, error) {
			return queries.PreviewContribution(input.TaskWeight, input.Grade, input.ContributionWeight)
		})

	srv.Tool("contribution.list").
		Description("List recorded KPI contributions for a task or a user").
		Handler(func(ctx context.Context, input contributionListInput) ([]application.ContributionView, error) {
			if err := requireApp(app, "contribution listing"); err != nil {
				return nil, err
			}
			taskID, err := parseOptionalUUID(input.TaskID)
			if err != nil {
				return nil, err
			}
			userID, err := parseOptionalUUID(input.UserID)
			if err != nil {
				return nil, err
			}
			return app.ListContributionsHandler.Handle(ctx, queries.ListContributionsQuery{TaskID: taskID, UserID: userID})
		})

	srv.Tool("kpi.approved").
		Description("List the KPIs a user may link work to; defaults to the configured user").
		Handler(func(ctx context.Context, input userIDInput) ([]application.KPIReference, error) {
			if err := requireApp(app, "KPI lookup"); err != nil {
				return nil, err
			}
			userID, err := parseOptionalUUID(input.UserID)
			if err != nil {
				return nil, err
			}
			if userID == uuid.Nil {
				userID = app.Session.UserID
			}
			return app.ApprovedKPIsHandler.Handle(ctx, userID)
		})

	return nil
}
