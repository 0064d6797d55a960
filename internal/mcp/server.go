package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/keel/adapter/cli"
	mcplocal "github.com/felixgeelhaar/keel/adapter/mcp"
	"github.com/felixgeelhaar/keel/pkg/config"
	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"
)

// NewServer builds the keel MCP server with every tool, resource and prompt
// registered against cliApp.
func NewServer(cliApp *cli.App) (*mcpgo.Server, error) {
	if cliApp == nil {
		return nil, errors.New("mcp: cli app is required")
	}
	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:         "keel-mcp",
		Version:      cli.Version,
		Capabilities: mcpgo.Capabilities{Tools: true, Resources: true, Prompts: true},
	})

	deps := mcplocal.ToolDependencies{App: cliApp}
	for _, register := range []func(*mcpgo.Server, mcplocal.ToolDependencies) error{
		mcplocal.RegisterCLITools,
		mcplocal.RegisterResources,
		mcplocal.RegisterPrompts,
	} {
		if err := register(srv, deps); err != nil {
			return nil, err
		}
	}
	return srv, nil
}

// Serve listens on cfg.MCPAddr until ctx is canceled. With MCP_AUTH_TOKEN
// set, every request must carry it as a bearer token.
func Serve(ctx context.Context, cfg *config.Config, cliApp *cli.App, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("mcp: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv, err := NewServer(cliApp)
	if err != nil {
		return err
	}

	logger.Info("mcp server listening",
		"addr", cfg.MCPAddr,
		"user_id", cliApp.Session.UserID,
		"role", cliApp.Session.Role,
		"auth", cfg.MCPAuthToken != "",
	)
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil, mcpgo.WithMiddleware(middlewareStack(cfg.MCPAuthToken, logger)...))
}

func middlewareStack(token string, logger *slog.Logger) []middleware.Middleware {
	log := slogAdapter{logger}
	stack := middleware.DefaultStack(log)
	if token == "" {
		logger.Warn("MCP_AUTH_TOKEN is empty; the mcp endpoint is unauthenticated")
		return stack
	}
	auth := middleware.BearerTokenAuthenticator(middleware.StaticTokens(map[string]*middleware.Identity{
		token: {ID: "keel", Name: "keel"},
	}))
	return append([]middleware.Middleware{middleware.Auth(auth, middleware.WithAuthLogger(log))}, stack...)
}

// slogAdapter satisfies the mcp-go middleware logger.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Debug(msg string, fields ...middleware.Field) { a.l.Debug(msg, args(fields)...) }
func (a slogAdapter) Info(msg string, fields ...middleware.Field)  { a.l.Info(msg, args(fields)...) }
func (a slogAdapter) Warn(msg string, fields ...middleware.Field)  { a.l.Warn(msg, args(fields)...) }
func (a slogAdapter) Error(msg string, fields ...middleware.Field) { a.l.Error(msg, args(fields)...) }

func args(fields []middleware.Field) []any {
	out := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
