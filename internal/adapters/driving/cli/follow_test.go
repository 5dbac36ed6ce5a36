package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const followCliFlake = `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-unstable";
  inputs.home-manager.url = "github:nix-community/home-manager";
  outputs = _: { };
}
`

const followCliLock = `{
  "nodes": {
    "root": {"inputs": {"nixpkgs": "nixpkgs", "home-manager": "home-manager"}},
    "nixpkgs": {
      "locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
                 "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d"}
    },
    "nixpkgs_2": {
      "locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
                 "rev": "0000000000000000000000000000000000000000"}
    },
    "home-manager": {
      "inputs": {"nixpkgs": "nixpkgs_2"},
      "locked": {"type": "github", "owner": "nix-community", "repo": "home-manager",
                 "rev": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"}
    }
  },
  "root": "root",
  "version": 7
}`

func TestFollowCmd_DryRunPrintsPlan(t *testing.T) {
	path := writeFlake(t, followCliFlake)
	writeLock(t, path, followCliLock)

	out, err := executeCmd(t, "follow", "--flake", path)
	require.NoError(t, err)
	assert.Contains(t, out, `+ home-manager.inputs.nixpkgs.follows = "nixpkgs"`)
	assert.Equal(t, followCliFlake, readFlake(t, path))
}

func TestFollowCmd_ApplyWritesBindings(t *testing.T) {
	path := writeFlake(t, followCliFlake)
	writeLock(t, path, followCliLock)

	_, err := executeCmd(t, "follow", "--apply", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.home-manager.inputs.nixpkgs.follows = "nixpkgs";`)
}

func TestFollowCmd_WithoutLockFile(t *testing.T) {
	path := writeFlake(t, followCliFlake)

	_, err := executeCmd(t, "follow", "--flake", path)
	require.Error(t, err)
}

func TestFollowCmd_WalkReconcilesEveryFlake(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "xdg-cache"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg-config"))
	for _, project := range []string{"one", "two"} {
		dir := filepath.Join(root, project)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, "flake.nix"), []byte(followCliFlake), 0o644))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, "flake.lock"), []byte(followCliLock), 0o644))
	}

	out, err := executeCmd(t, "follow", "--walk", root, "--apply", "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, "one", "flake.nix"))
	assert.Contains(t, out, filepath.Join(root, "two", "flake.nix"))
	// every unit carries its own identifier
	assert.Regexp(t, `\[[0-9a-f]{8}\] `, out)
	for _, project := range []string{"one", "two"} {
		text := readFlake(t, filepath.Join(root, project, "flake.nix"))
		assert.Contains(t, text, `inputs.home-manager.inputs.nixpkgs.follows = "nixpkgs";`)
	}
}

func TestFollowCmd_WalkWithoutFlakes(t *testing.T) {
	_, err := executeCmd(t, "follow", "--walk", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no flake.nix found")
}

func TestFollowAddCmd_WritesBinding(t *testing.T) {
	path := writeFlake(t, followCliFlake)

	_, err := executeCmd(t, "follow", "add", "home-manager", "nixpkgs", "nixpkgs",
		"--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.home-manager.inputs.nixpkgs.follows = "nixpkgs";`)
}

func TestFollowRemoveCmd_DeletesBinding(t *testing.T) {
	path := writeFlake(t, followCliFlake)

	_, err := executeCmd(t, "follow", "add", "home-manager", "nixpkgs", "nixpkgs",
		"--flake", path, "--no-lock")
	require.NoError(t, err)
	_, err = executeCmd(t, "follow", "remove", "home-manager", "nixpkgs",
		"--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Equal(t, followCliFlake, readFlake(t, path))
}
