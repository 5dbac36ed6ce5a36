package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateCmd_ReportsSkippedInputs(t *testing.T) {
	src := `{
  inputs.local.url = "path:/srv/flake";
  inputs.pinned.url = "github:o/r/a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2";
  outputs = _: { };
}
`
	path := writeFlake(t, src)

	out, err := executeCmd(t, "update", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, out, "local: skipped (not hosted on a known forge)")
	assert.Contains(t, out, "pinned: skipped (pinned to a revision)")
	assert.Equal(t, src, readFlake(t, path))
}
