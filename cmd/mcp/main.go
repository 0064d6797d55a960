package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/keel/internal/app"
	mcpinternal "github.com/felixgeelhaar/keel/internal/mcp"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.LoggerFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, "")

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	cliApp, err := mcpinternal.NewCLIApp(container)
	if err != nil {
		logger.Error("invalid KEEL_USER_ID or KEEL_USER_ROLE", "error", err)
		os.Exit(1)
	}

	if err := mcpinternal.Serve(ctx, cfg, cliApp, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
