package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources registers MCP resources for the configured caller.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("keel://session").
		Name("Session").
		Description("The user and role MCP calls act as").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil {
				return nil, fmt.Errorf("app not initialized")
			}
			return jsonResource(uri, map[string]string{
				"user_id": app.Session.UserID.String(),
				"role":    string(app.Session.Role),
			})
		})

	srv.Resource("keel://health").
		Name("Health").
		Description("Database, cache and KPI directory health").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Health == nil {
				return nil, fmt.Errorf("app not initialized")
			}
			return jsonResource(uri, app.Health.GetOverallHealth(ctx))
		})

	srv.Resource("keel://kpis/approved").
		Name("Approved KPIs").
		Description("KPIs the configured user may link milestones and tasks to").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if err := requireApp(app, "KPI lookup"); err != nil {
				return nil, err
			}
			kpis, err := app.ApprovedKPIsHandler.Handle(ctx, app.Session.UserID)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, kpis)
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
