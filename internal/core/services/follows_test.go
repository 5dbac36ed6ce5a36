package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/manifest"
)

const followsFlake = `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-unstable";
  inputs.home-manager.url = "github:nix-community/home-manager";
  inputs.stylix.url = "github:danth/stylix";
  outputs = _: { };
}
`

// home-manager and stylix both pull in their own nixpkgs copies.
const followsLock = `{
  "nodes": {
    "root": {
      "inputs": {"nixpkgs": "nixpkgs", "home-manager": "home-manager", "stylix": "stylix"}
    },
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
    },
    "stylix": {
      "inputs": {"nixpkgs": "nixpkgs_2", "home-manager": ["home-manager"]},
      "locked": {"type": "github", "owner": "danth", "repo": "stylix",
                 "rev": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}
    }
  },
  "root": "root",
  "version": 7
}`

func TestEditor_ReconcileFollows_PlansAdditions(t *testing.T) {
	ed := newTestEditor(t, followsFlake, followsLock)

	plan, _, err := ed.ReconcileFollows(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []domain.FollowChange{
		{InputID: "home-manager", Follow: domain.Follow{From: "nixpkgs", To: "nixpkgs"}},
		{InputID: "stylix", Follow: domain.Follow{From: "home-manager", To: "home-manager"}},
		{InputID: "stylix", Follow: domain.Follow{From: "nixpkgs", To: "nixpkgs"}},
	}, plan.Additions)
	assert.Empty(t, plan.Removals)
}

func TestEditor_ReconcileFollows_ApplyThenIdempotent(t *testing.T) {
	ed := newTestEditor(t, followsFlake, followsLock)
	ctx := context.Background()

	plan, text, err := ed.ReconcileFollows(ctx, true)
	require.NoError(t, err)
	assert.Len(t, plan.Additions, 3)
	assert.Contains(t, text, `inputs.home-manager.inputs.nixpkgs.follows = "nixpkgs";`)
	assert.Contains(t, text, `inputs.stylix.inputs.nixpkgs.follows = "nixpkgs";`)
	assert.Contains(t, text, `inputs.stylix.inputs.home-manager.follows = "home-manager";`)

	again, _, err := ed.ReconcileFollows(ctx, true)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestEditor_ReconcileFollows_RemovesStale(t *testing.T) {
	src := `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-unstable";
  inputs.home-manager.url = "github:nix-community/home-manager";
  inputs.home-manager.inputs.gone.follows = "nixpkgs";
  outputs = _: { };
}
`
	lock := `{
      "nodes": {
        "root": {"inputs": {"nixpkgs": "nixpkgs", "home-manager": "home-manager"}},
        "nixpkgs": {"locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
          "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d"}},
        "home-manager": {
          "inputs": {"nixpkgs": ["nixpkgs"]},
          "locked": {"type": "github", "owner": "nix-community", "repo": "home-manager",
            "rev": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"}
        }
      },
      "root": "root",
      "version": 7
    }`
	ed := newTestEditor(t, src, lock)

	plan, text, err := ed.ReconcileFollows(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []domain.FollowChange{
		{InputID: "home-manager", Follow: domain.Follow{From: "gone", To: "nixpkgs"}},
	}, plan.Removals)
	assert.NotContains(t, text, "gone")
	// the live binding nix already knows about gets declared
	assert.Contains(t, text, `inputs.home-manager.inputs.nixpkgs.follows = "nixpkgs";`)
}

func TestEditor_ReconcileFollows_HonorsIgnoreList(t *testing.T) {
	doc, err := manifest.Parse(followsFlake)
	require.NoError(t, err)
	lock, err := domain.ParseLock([]byte(followsLock))
	require.NoError(t, err)
	cfg := domain.DefaultConfig()
	cfg.Ignore = []string{"stylix"}
	ed, err := NewEditor(doc, lock, cfg, nil, nil)
	require.NoError(t, err)

	plan, _, err := ed.ReconcileFollows(context.Background(), false)
	require.NoError(t, err)
	for _, a := range plan.Additions {
		assert.NotEqual(t, "stylix", a.InputID)
	}
	assert.Len(t, plan.Additions, 1)
}

func TestEditor_ReconcileFollows_HonorsEdgeIgnoreEntry(t *testing.T) {
	doc, err := manifest.Parse(followsFlake)
	require.NoError(t, err)
	lock, err := domain.ParseLock([]byte(followsLock))
	require.NoError(t, err)
	cfg := domain.DefaultConfig()
	cfg.Ignore = []string{"home-manager.nixpkgs"}
	ed, err := NewEditor(doc, lock, cfg, nil, nil)
	require.NoError(t, err)

	plan, _, err := ed.ReconcileFollows(context.Background(), false)
	require.NoError(t, err)
	// only home-manager's edge is pinned down, stylix still reconciles
	assert.Equal(t, []domain.FollowChange{
		{InputID: "stylix", Follow: domain.Follow{From: "home-manager", To: "home-manager"}},
		{InputID: "stylix", Follow: domain.Follow{From: "nixpkgs", To: "nixpkgs"}},
	}, plan.Additions)
}

func TestEditor_ReconcileFollows_NameMatchChecksUpstream(t *testing.T) {
	// the nested input shares its name with a top-level input but is
	// locked to a different upstream, so no binding may be planned
	src := `{
  inputs.nixpkgs.url = "github:NixOS/nixpkgs/nixos-unstable";
  inputs.home-manager.url = "github:nix-community/home-manager";
  outputs = _: { };
}
`
	lock := `{
      "nodes": {
        "root": {"inputs": {"nixpkgs": "nixpkgs", "home-manager": "home-manager"}},
        "nixpkgs": {"locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
          "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d"}},
        "nixpkgs_2": {"locked": {"type": "gitlab", "owner": "someone", "repo": "nixpkgs",
          "rev": "0000000000000000000000000000000000000000"}},
        "home-manager": {
          "inputs": {"nixpkgs": "nixpkgs_2"},
          "locked": {"type": "github", "owner": "nix-community", "repo": "home-manager",
            "rev": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"}
        }
      },
      "root": "root",
      "version": 7
    }`
	ed := newTestEditor(t, src, lock)

	plan, _, err := ed.ReconcileFollows(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, plan.Additions)
}

func TestEditor_ReconcileFollows_Aliases(t *testing.T) {
	src := `{
  inputs.pkgs.url = "github:someone/patched-nixpkgs";
  inputs.home-manager.url = "github:nix-community/home-manager";
  outputs = _: { };
}
`
	lock := `{
      "nodes": {
        "root": {"inputs": {"pkgs": "pkgs", "home-manager": "home-manager"}},
        "pkgs": {"locked": {"type": "github", "owner": "someone", "repo": "patched-nixpkgs",
          "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d"}},
        "nixpkgs": {"locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
          "rev": "0000000000000000000000000000000000000000"}},
        "home-manager": {
          "inputs": {"nixpkgs": "nixpkgs"},
          "locked": {"type": "github", "owner": "nix-community", "repo": "home-manager",
            "rev": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"}
        }
      },
      "root": "root",
      "version": 7
    }`
	doc, err := manifest.Parse(src)
	require.NoError(t, err)
	graph, err := domain.ParseLock([]byte(lock))
	require.NoError(t, err)
	cfg := domain.DefaultConfig()
	cfg.Aliases = map[string][]string{"pkgs": {"nixpkgs"}}
	ed, err := NewEditor(doc, graph, cfg, nil, nil)
	require.NoError(t, err)

	plan, _, err := ed.ReconcileFollows(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []domain.FollowChange{
		{InputID: "home-manager", Follow: domain.Follow{From: "nixpkgs", To: "pkgs"}},
	}, plan.Additions)
}

func TestEditor_ReconcileFollows_WithoutLock(t *testing.T) {
	ed := newTestEditor(t, followsFlake, "")

	_, _, err := ed.ReconcileFollows(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrNoLockFile)
}

func TestEditor_ReconcileFollows_MatchesByLockedIdentity(t *testing.T) {
	// the nested input is named differently but locks the same upstream
	src := `{
  inputs.stable.url = "github:NixOS/nixpkgs/nixos-24.05";
  inputs.home-manager.url = "github:nix-community/home-manager";
  outputs = _: { };
}
`
	lock := `{
      "nodes": {
        "root": {"inputs": {"stable": "stable", "home-manager": "home-manager"}},
        "stable": {"locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
          "rev": "9957cd48326fe8dbd52fdc50dd2502307f188b0d"}},
        "nixpkgs": {"locked": {"type": "github", "owner": "NixOS", "repo": "nixpkgs",
          "rev": "0000000000000000000000000000000000000000"}},
        "home-manager": {
          "inputs": {"nixpkgs": "nixpkgs"},
          "locked": {"type": "github", "owner": "nix-community", "repo": "home-manager",
            "rev": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"}
        }
      },
      "root": "root",
      "version": 7
    }`
	ed := newTestEditor(t, src, lock)

	plan, _, err := ed.ReconcileFollows(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []domain.FollowChange{
		{InputID: "home-manager", Follow: domain.Follow{From: "nixpkgs", To: "stable"}},
	}, plan.Additions)
}

func TestEditor_DropCyclicAdditions(t *testing.T) {
	// a and b already redirect through each other; any new binding
	// routed into that loop must be dropped from the plan.
	lock := `{
      "nodes": {
        "root": {"inputs": {"a": "a", "b": "b", "c": "c"}},
        "a": {"inputs": {"x": ["b", "x"]}},
        "b": {"inputs": {"x": ["a", "x"]}},
        "c": {"inputs": {"x": "a"}}
      },
      "root": "root",
      "version": 7
    }`
	src := `{
  inputs.a.url = "github:o/a";
  inputs.b.url = "github:o/b";
  inputs.c.url = "github:o/c";
}
`
	ed := newTestEditor(t, src, lock)

	plan := &domain.FollowsPlan{
		Additions: []domain.FollowChange{
			{InputID: "c", Follow: domain.Follow{From: "x", To: "a/x"}},
			{InputID: "c", Follow: domain.Follow{From: "y", To: "b"}},
		},
	}
	inputs, err := ed.doc.Inputs()
	require.NoError(t, err)
	ed.dropCyclicAdditions(plan, inputs)

	assert.Equal(t, []domain.FollowChange{
		{InputID: "c", Follow: domain.Follow{From: "y", To: "b"}},
	}, plan.Additions)
}
