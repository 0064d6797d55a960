package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/keel/internal/app"
	mcpinternal "github.com/felixgeelhaar/keel/internal/mcp"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start an MCP server over HTTP. Tool calls act as KEEL_USER_ID with
KEEL_USER_ROLE; set MCP_AUTH_TOKEN to require a bearer token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := observability.LoggerFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, "")

		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		cliApp, err := mcpinternal.NewCLIApp(container)
		if err != nil {
			return err
		}
		err = mcpinternal.Serve(ctx, cfg, cliApp, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
