package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockFixture = `{
  "nodes": {
    "root": {
      "inputs": {
        "nixpkgs": "nixpkgs",
        "home-manager": "home-manager"
      }
    },
    "nixpkgs": {
      "locked": {
        "type": "github",
        "owner": "NixOS",
        "repo": "nixpkgs",
        "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d",
        "lastModified": 1710951922
      },
      "original": {
        "type": "github",
        "owner": "NixOS",
        "repo": "nixpkgs",
        "ref": "nixos-unstable"
      }
    },
    "home-manager": {
      "inputs": {
        "nixpkgs": ["nixpkgs"]
      },
      "locked": {
        "type": "github",
        "owner": "nix-community",
        "repo": "home-manager",
        "rev": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"
      }
    }
  },
  "root": "root",
  "version": 7
}`

func TestParseLock_Valid(t *testing.T) {
	g, err := ParseLock([]byte(lockFixture))
	require.NoError(t, err)
	assert.Equal(t, 7, g.Version)
	assert.Equal(t, []string{"home-manager", "nixpkgs"}, g.TopLevel())
}

func TestParseLock_Malformed(t *testing.T) {
	_, err := ParseLock([]byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedLock)

	_, err = ParseLock([]byte(`{"nodes": {}, "version": 7}`))
	assert.ErrorIs(t, err, ErrMalformedLock)

	_, err = ParseLock([]byte(`{"nodes": {}, "root": "root", "version": 7}`))
	assert.ErrorIs(t, err, ErrMalformedLock)
}

func TestParseLock_DanglingEdge(t *testing.T) {
	_, err := ParseLock([]byte(`{
      "nodes": {
        "root": {"inputs": {"nixpkgs": "missing"}}
      },
      "root": "root",
      "version": 7
    }`))
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestLockGraph_RevByID(t *testing.T) {
	g, err := ParseLock([]byte(lockFixture))
	require.NoError(t, err)

	rev, err := g.RevByID("nixpkgs")
	require.NoError(t, err)
	assert.Equal(t, "9957cd48326fe8dbd52fdc50dd2502307f188b0d", rev)

	_, err = g.RevByID("missing")
	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestLockGraph_ResolveEdge_FollowsMarker(t *testing.T) {
	g, err := ParseLock([]byte(lockFixture))
	require.NoError(t, err)

	edge := g.Nodes["home-manager"].Inputs["nixpkgs"]
	require.True(t, edge.IsFollows())

	name, err := g.ResolveEdge(edge)
	require.NoError(t, err)
	assert.Equal(t, "nixpkgs", name)
}

func TestLockGraph_ResolveEdge_Dangling(t *testing.T) {
	g, err := ParseLock([]byte(lockFixture))
	require.NoError(t, err)

	_, err = g.ResolveEdge(LockEdge{Node: "ghost"})
	assert.ErrorIs(t, err, ErrDanglingReference)

	_, err = g.ResolveEdge(LockEdge{Follows: []string{"nixpkgs", "ghost"}})
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestLockGraph_ResolveEdge_Cycle(t *testing.T) {
	cyclic := `{
      "nodes": {
        "root": {"inputs": {"a": "a", "b": "b"}},
        "a": {"inputs": {"dep": ["b", "dep"]}},
        "b": {"inputs": {"dep": ["a", "dep"]}}
      },
      "root": "root",
      "version": 7
    }`
	g, err := ParseLock([]byte(cyclic))
	require.NoError(t, err)

	_, err = g.ResolveEdge(LockEdge{Follows: []string{"a", "dep"}})
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestLockGraph_NestedInputs(t *testing.T) {
	g, err := ParseLock([]byte(lockFixture))
	require.NoError(t, err)

	nested, err := g.NestedInputs("home-manager")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nixpkgs": "nixpkgs"}, nested)

	nested, err = g.NestedInputs("nixpkgs")
	require.NoError(t, err)
	assert.Empty(t, nested)
}

func TestLockNode_LockedRef(t *testing.T) {
	g, err := ParseLock([]byte(lockFixture))
	require.NoError(t, err)

	ref := g.Nodes["nixpkgs"].LockedRef()
	require.NotNil(t, ref)
	assert.Equal(t, KindForge, ref.Kind)
	assert.Equal(t, "9957cd48326fe8dbd52fdc50dd2502307f188b0d", ref.Params.Rev)
}
