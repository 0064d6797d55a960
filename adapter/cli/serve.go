package cli

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/keel/adapter/api"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API and, unless OUTBOX_PROCESSOR_ENABLED=false, the
outbox processor that publishes hierarchy events.

Callers identify themselves with the X-User-ID and X-User-Role headers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		c := app.Container()
		ctx := cmd.Context()

		if c.Config.OutboxProcessorEnabled && c.OutboxProcessor != nil {
			if err := c.OutboxProcessor.Start(ctx); err != nil {
				return fmt.Errorf("failed to start outbox processor: %w", err)
			}
			defer c.OutboxProcessor.Stop()
		}

		cfg := api.DefaultServerConfig()
		cfg.Addr = c.Config.HTTPAddr
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		srv := api.NewServer(cfg, api.NewHierarchyHandler(c), c.Health, c.Metrics, c.Logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Config.HTTPShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
