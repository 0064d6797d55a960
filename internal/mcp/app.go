package mcp

import (
	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/keel/internal/app"
)

// NewCLIApp creates a CLI application backed by the container, acting as the
// configured user.
func NewCLIApp(container *app.Container) (*cli.App, error) {
	session, err := container.Session()
	if err != nil {
		return nil, err
	}
	return cli.NewApp(container, session), nil
}
