package mcp

import (
	"io"
	"log/slog"
	"testing"

	"github.com/felixgeelhaar/keel/adapter/cli"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	srv, err := NewServer(&cli.App{})
	require.NoError(t, err)

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()
	tools, err := tc.ListTools()
	require.NoError(t, err)
	assert.NotEmpty(t, tools)
}

func TestMiddlewareStack(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	open := middlewareStack("", logger)
	guarded := middlewareStack("s3cret", logger)
	assert.Len(t, guarded, len(open)+1)
}
