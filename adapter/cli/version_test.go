package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "keel dev (commit none, built unknown)\n", buf.String())

	buf.Reset()
	cmd = newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--short"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", buf.String())
}
