package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/adapter/cli/contribution"
	"github.com/felixgeelhaar/keel/adapter/cli/mcp"
	"github.com/felixgeelhaar/keel/adapter/cli/milestone"
	"github.com/felixgeelhaar/keel/adapter/cli/task"
	"github.com/felixgeelhaar/keel/internal/app"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		// In development without .env, use defaults
		logger.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}
	logger = observability.LoggerFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// Commands that need storage report cli.ErrNotInitialized.
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		session, err := container.Session()
		if err != nil {
			logger.Error("invalid KEEL_USER_ID or KEEL_USER_ROLE", "error", err)
			os.Exit(1)
		}
		cli.SetApp(cli.NewApp(container, session))
	}

	cli.AddCommand(milestone.Cmd)
	cli.AddCommand(milestone.SubCmd)
	cli.AddCommand(task.Cmd)
	cli.AddCommand(contribution.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.ExecuteContext(ctx)
}
