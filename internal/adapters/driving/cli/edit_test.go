package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

func TestAddCmd_WritesInput(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "add", "home-manager",
		"github:nix-community/home-manager", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.home-manager.url = "github:nix-community/home-manager";`)
}

func TestAddCmd_InfersID(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "add", "github:danth/stylix", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path), `inputs.stylix.url = "github:danth/stylix";`)
}

func TestAddCmd_NoFlakeAndFollows(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "add", "hooks", "github:cachix/git-hooks.nix",
		"--no-flake", "--follows", "nixpkgs=nixpkgs", "--flake", path, "--no-lock")
	require.NoError(t, err)

	text := readFlake(t, path)
	assert.Contains(t, text, `inputs.hooks.flake = false;`)
	assert.Contains(t, text, `inputs.hooks.inputs.nixpkgs.follows = "nixpkgs";`)
}

func TestAddCmd_OverwriteReplacesDeclaration(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "add", "nixpkgs", "github:NixOS/nixpkgs/nixos-25.05",
		"--flake", path, "--no-lock")
	assert.ErrorIs(t, err, domain.ErrDuplicateInput)

	_, err = executeCmd(t, "add", "nixpkgs", "github:NixOS/nixpkgs/nixos-25.05",
		"--overwrite", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-25.05";`)
}

func TestAddCmd_MalformedFollows(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "add", "hooks", "github:cachix/git-hooks.nix",
		"--follows", "nixpkgs", "--flake", path, "--no-lock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected from=to")
}

func TestRemoveCmd_RemovesInput(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "remove", "utils", "--flake", path, "--no-lock")
	require.NoError(t, err)

	text := readFlake(t, path)
	assert.NotContains(t, text, "flake-utils")
	assert.Contains(t, text, "nixpkgs")
}

func TestRemoveCmd_UnknownInput(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "remove", "ghost", "--flake", path, "--no-lock")
	assert.ErrorIs(t, err, domain.ErrInputNotFound)
	assert.Equal(t, cliFlake, readFlake(t, path))
}

func TestChangeCmd_ReplacesURL(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "change", "nixpkgs",
		"github:NixOS/nixpkgs/nixos-unstable", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-unstable";`)
}

func TestPinCmd_UsesLockedRevision(t *testing.T) {
	path := writeFlake(t, cliFlake)
	writeLock(t, path, cliLock)

	_, err := executeCmd(t, "pin", "nixpkgs", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.nixpkgs.url = "github:NixOS/nixpkgs/9957cd48326fe8dbd52fdc50dd2502307f188b0d";`)
}

func TestPinCmd_ExplicitRef(t *testing.T) {
	path := writeFlake(t, cliFlake)

	_, err := executeCmd(t, "pin", "nixpkgs", "nixos-23.11", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Contains(t, readFlake(t, path),
		`inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-23.11";`)
}

func TestPinCmd_WithoutLockFile(t *testing.T) {
	src := `{
  inputs.dep.url = "git+https://example.org/dep";
  outputs = _: { };
}
`
	path := writeFlake(t, src)

	_, err := executeCmd(t, "pin", "dep", "--flake", path, "--no-lock")
	assert.ErrorIs(t, err, domain.ErrNoLockFile)
	assert.Equal(t, src, readFlake(t, path))
}

func TestUnpinCmd_RestoresOriginalText(t *testing.T) {
	path := writeFlake(t, cliFlake)
	writeLock(t, path, cliLock)

	_, err := executeCmd(t, "pin", "nixpkgs", "--flake", path, "--no-lock")
	require.NoError(t, err)
	_, err = executeCmd(t, "unpin", "nixpkgs", "--flake", path, "--no-lock")
	require.NoError(t, err)
	assert.Equal(t, cliFlake, readFlake(t, path))
}
