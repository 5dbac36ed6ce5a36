package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "refs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	refs := []string{"nixos-24.05", "nixos-24.11", "nixos-unstable"}
	require.NoError(t, s.Store("github.com", "NixOS", "nixpkgs", refs))

	got, ok, err := s.Refs("github.com", "NixOS", "nixpkgs", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, refs, got)
}

func TestStore_MissReturnsFalse(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Refs("github.com", "ghost", "repo", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ExpiredEntry(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Store("github.com", "NixOS", "nixpkgs", []string{"main"}))
	_, ok, err := s.Refs("github.com", "NixOS", "nixpkgs", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Pairs(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RememberPair("nixpkgs", "github:NixOS/nixpkgs/nixos-24.11"))
	require.NoError(t, s.RememberPair("utils", "github:numtide/flake-utils"))
	// repeats do not duplicate
	require.NoError(t, s.RememberPair("utils", "github:numtide/flake-utils"))

	pairs, err := s.Pairs()
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Contains(t, pairs, Pair{ID: "nixpkgs", URI: "github:NixOS/nixpkgs/nixos-24.11"})
	assert.Contains(t, pairs, Pair{ID: "utils", URI: "github:numtide/flake-utils"})
}

func TestStore_Overwrite(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Store("github.com", "o", "r", []string{"v1"}))
	require.NoError(t, s.Store("github.com", "o", "r", []string{"v1", "v2"}))

	got, ok, err := s.Refs("github.com", "o", "r", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"v1", "v2"}, got)
}
