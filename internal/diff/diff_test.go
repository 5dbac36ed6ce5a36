package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnified_Identical(t *testing.T) {
	out, err := Unified("flake.nix", "same\n", "same\n")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnified_Changed(t *testing.T) {
	before := "{\n  inputs.a.url = \"github:o/a/v1\";\n}\n"
	after := "{\n  inputs.a.url = \"github:o/a/v2\";\n}\n"

	out, err := Unified("flake.nix", before, after)
	require.NoError(t, err)
	assert.Contains(t, out, "--- flake.nix")
	assert.Contains(t, out, "+++ flake.nix")
	assert.Contains(t, out, `-  inputs.a.url = "github:o/a/v1";`)
	assert.Contains(t, out, `+  inputs.a.url = "github:o/a/v2";`)
}
