package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/manifest"
)

func newUpdateEditor(t *testing.T, src string, forge *fakeForge) *Editor {
	t.Helper()
	doc, err := manifest.Parse(src)
	require.NoError(t, err)
	ed, err := NewEditor(doc, nil, domain.DefaultConfig(), forge, nil)
	require.NoError(t, err)
	return ed
}

func TestEditor_Update_Channel(t *testing.T) {
	src := `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-24.05";
  outputs = _: { };
}
`
	forge := &fakeForge{branches: []string{
		"master", "nixos-23.11", "nixos-24.05", "nixos-24.11", "nixos-unstable",
	}}
	ed := newUpdateEditor(t, src, forge)

	results, text, err := ed.Update(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "nixos-24.05", results[0].From)
	assert.Equal(t, "nixos-24.11", results[0].To)
	assert.True(t, results[0].Changed())
	assert.Contains(t, text, `"github:NixOS/nixpkgs/nixos-24.11"`)
}

func TestEditor_Update_SemverTag(t *testing.T) {
	src := `{
  inputs.crane.url = "github:ipetkov/crane/v0.16.3";
  outputs = _: { };
}
`
	forge := &fakeForge{tags: []string{
		"v0.15.0", "v0.16.3", "v0.17.1", "v0.18.0-rc1",
	}}
	ed := newUpdateEditor(t, src, forge)

	results, text, err := ed.Update(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v0.17.1", results[0].To)
	assert.Contains(t, text, `"github:ipetkov/crane/v0.17.1"`)
}

func TestEditor_Update_SkipsUnsuitableInputs(t *testing.T) {
	src := `{
  inputs.rolling.url = "github:NixOS/nixpkgs/nixos-unstable";
  inputs.pinned.url = "github:o/r/a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2";
  inputs.floating.url = "github:o/floating";
  inputs.local.url = "path:/srv/flake";
  outputs = _: { };
}
`
	ed := newUpdateEditor(t, src, &fakeForge{})

	results, text, err := ed.Update(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.False(t, r.Changed(), r.ID)
		assert.NotEmpty(t, r.Reason, r.ID)
	}
	// nothing moved, the manifest is untouched
	assert.Contains(t, text, "nixos-unstable")
}

func TestEditor_Update_SelectedIDs(t *testing.T) {
	src := `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-24.05";
  inputs.stable.url = "github:NixOS/nixpkgs/nixos-23.11";
  outputs = _: { };
}
`
	forge := &fakeForge{branches: []string{"nixos-23.11", "nixos-24.05", "nixos-24.11"}}
	ed := newUpdateEditor(t, src, forge)

	results, text, err := ed.Update(context.Background(), []string{"stable"}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "stable", results[0].ID)
	assert.Contains(t, text, `inputs.stable.url = "github:NixOS/nixpkgs/nixos-24.11";`)
	assert.Contains(t, text, `inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-24.05";`)
}

func TestEditor_Update_NoNewerVersion(t *testing.T) {
	src := `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-24.11";
  outputs = _: { };
}
`
	forge := &fakeForge{branches: []string{"nixos-24.05", "nixos-24.11"}}
	ed := newUpdateEditor(t, src, forge)

	results, _, err := ed.Update(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed())
	assert.Equal(t, "no newer version", results[0].Reason)
}

func TestEditor_Update_InitPicksFirstTag(t *testing.T) {
	src := `{
  inputs.crane.url = "github:ipetkov/crane";
  outputs = _: { };
}
`
	forge := &fakeForge{tags: []string{"v0.16.3", "v0.17.1", "v0.18.0-rc1"}}
	ed := newUpdateEditor(t, src, forge)

	results, text, err := ed.Update(context.Background(), nil, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "", results[0].From)
	assert.Equal(t, "v0.17.1", results[0].To)
	assert.Contains(t, text, `"github:ipetkov/crane/v0.17.1"`)
}

func TestEditor_Update_InitWithoutTags(t *testing.T) {
	src := `{
  inputs.utils.url = "github:numtide/flake-utils";
  outputs = _: { };
}
`
	ed := newUpdateEditor(t, src, &fakeForge{})

	results, text, err := ed.Update(context.Background(), nil, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed())
	assert.Equal(t, "no release tags", results[0].Reason)
	assert.Contains(t, text, `"github:numtide/flake-utils"`)
}

func TestEditor_Update_UnknownID(t *testing.T) {
	ed := newUpdateEditor(t, testFlake, &fakeForge{})

	_, _, err := ed.Update(context.Background(), []string{"ghost"}, false)
	assert.ErrorIs(t, err, domain.ErrInputNotFound)
}
