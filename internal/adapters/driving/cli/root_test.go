package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliFlake = `{
  description = "cli fixture";

  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-24.11";
  inputs.utils.url = "github:numtide/flake-utils";

  outputs = _: { };
}
`

const cliLock = `{
  "nodes": {
    "root": {"inputs": {"nixpkgs": "nixpkgs", "utils": "utils"}},
    "nixpkgs": {"locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
                "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d"}},
    "utils": {"locked": {"type": "github", "owner": "numtide", "repo": "flake-utils",
              "rev": "c1dfcf08411b08f6b8615f7d8971a2bfa81d5e8a"}}
  },
  "root": "root",
  "version": 7
}`

// writeFlake creates a throwaway flake project and points the cache
// and config directories at it so tests never touch the real ones.
func writeFlake(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "xdg-cache"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-config"))
	path := filepath.Join(dir, "flake.nix")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func writeLock(t *testing.T, flakePath, lock string) {
	t.Helper()
	path := filepath.Join(filepath.Dir(flakePath), "flake.lock")
	require.NoError(t, os.WriteFile(path, []byte(lock), 0o644))
}

func readFlake(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// executeCmd runs the root command with fresh flag state and returns
// the combined output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags clears the package level flag state commands share, flag
// values would otherwise leak between test cases.
func resetFlags() {
	flakePath, showDiff, noLock, verbose = "", false, false, false
	addNoFlake, addOverwrite, addFollows = false, false, nil
	followApply, followWalk = false, ""
	updateInit = false
	listFormat = "simple"
}

func TestRootCmd_DiscoversManifestUpward(t *testing.T) {
	path := writeFlake(t, cliFlake)
	sub := filepath.Join(filepath.Dir(path), "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	out, err := executeCmd(t, "list", "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, out, "nixpkgs")
	assert.Contains(t, out, "utils")
}

func TestRootCmd_MissingManifest(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := executeCmd(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flake.nix")
}

func TestRootCmd_FlakeFlagAcceptsDirectory(t *testing.T) {
	path := writeFlake(t, cliFlake)

	out, err := executeCmd(t, "list", "--flake", filepath.Dir(path))
	require.NoError(t, err)
	assert.Contains(t, out, "nixpkgs")
}

func TestRootCmd_DiffModeLeavesFileUntouched(t *testing.T) {
	path := writeFlake(t, cliFlake)

	out, err := executeCmd(t, "remove", "utils", "--flake", path, "--diff")
	require.NoError(t, err)
	assert.Contains(t, out, `-  inputs.utils.url = "github:numtide/flake-utils";`)
	assert.Equal(t, cliFlake, readFlake(t, path))
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	out, err := executeCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "flake-edit")
	assert.Contains(t, out, version)
}
