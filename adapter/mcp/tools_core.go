package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/felixgeelhaar/mcp-go"
)

func registerCoreTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("cli.health").
		Description("Check database, cache and KPI directory health").
		Handler(func(ctx context.Context, input struct{}) (*observability.OverallHealth, error) {
			if app == nil || app.Health == nil {
				return nil, errors.New("app not initialized")
			}
			health := app.Health.GetOverallHealth(ctx)
			return &health, nil
		})

	srv.Tool("cli.version").
		Description("Get CLI version information").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"version":   cli.Version,
				"commit":    cli.Commit,
				"buildDate": cli.BuildDate,
			}, nil
		})

	srv.Tool("cli.whoami").
		Description("Show the configured user and role").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"user_id": app.Session.UserID.String(),
				"role":    string(app.Session.Role),
			}, nil
		})

	return nil
}
