package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/logger"
)

// updateWorkers caps concurrent forge queries.
const updateWorkers = 4

// Update moves forge inputs tracking a release channel or a semver tag
// to the newest available version. Inputs pinned to a bare revision
// and non-forge inputs are reported as skipped, as are inputs on the
// default branch unless init puts them on their latest release tag.
// Forge queries for the candidate inputs run concurrently, edits are
// applied sequentially.
func (e *Editor) Update(ctx context.Context, ids []string, init bool) ([]domain.UpdateResult, string, error) {
	if e.forge == nil {
		return nil, "", fmt.Errorf("updating requires a forge client")
	}
	inputs, err := e.doc.Inputs()
	if err != nil {
		return nil, "", err
	}
	targets, results, err := e.updateTargets(inputs, ids, init)
	if err != nil {
		return nil, "", err
	}

	resolved := e.resolveVersions(ctx, targets)
	for _, r := range resolved {
		results = append(results, r.result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	for _, r := range resolved {
		if !r.result.Changed() {
			continue
		}
		r.ref.SetRefOrRev(r.result.To)
		if err := e.doc.SetURL(r.result.ID, r.ref); err != nil {
			return nil, "", err
		}
	}
	return results, e.doc.Text(), nil
}

// updateTarget is one input worth querying the forge about.
type updateTarget struct {
	id  string
	ref *domain.SourceRef
}

type resolvedUpdate struct {
	result domain.UpdateResult
	ref    *domain.SourceRef
}

// updateTargets filters inputs down to the ones the resolver can act
// on, pre-filling skip results for the rest.
func (e *Editor) updateTargets(inputs []domain.Input, ids []string, init bool) ([]updateTarget, []domain.UpdateResult, error) {
	selected := inputs
	if len(ids) > 0 {
		selected = selected[:0:0]
		for _, id := range ids {
			resolved, err := e.resolveID(id)
			if err != nil {
				return nil, nil, err
			}
			for _, in := range inputs {
				if in.ID == resolved {
					selected = append(selected, in)
				}
			}
		}
	}

	var targets []updateTarget
	var results []domain.UpdateResult
	skip := func(id, reason string) {
		results = append(results, domain.UpdateResult{ID: id, Reason: reason})
	}
	for _, in := range selected {
		switch {
		case in.Ref == nil:
			skip(in.ID, "no url")
		case in.Ref.Kind != domain.KindForge:
			skip(in.ID, "not hosted on a known forge")
		case in.Ref.Rev() != "":
			skip(in.ID, "pinned to a revision")
		case in.Ref.Ref() == "" && !init:
			skip(in.ID, "tracks the default branch")
		case e.cfg.IsChannel(in.Ref.Ref()) && e.cfg.ChannelVersion(in.Ref.Ref()) == "":
			skip(in.ID, "tracks a rolling channel")
		default:
			ref := *in.Ref
			targets = append(targets, updateTarget{id: in.ID, ref: &ref})
		}
	}
	return targets, results, nil
}

// resolveVersions fans the forge queries out over a small worker pool.
// Every unit gets a correlation id so interleaved verbose output stays
// attributable.
func (e *Editor) resolveVersions(ctx context.Context, targets []updateTarget) []resolvedUpdate {
	work := make(chan updateTarget)
	out := make(chan resolvedUpdate, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < updateWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				unit := uuid.NewString()[:8]
				logger.Debug("[%s] resolving %q (%s)", unit, t.id, t.ref.Ref())
				out <- e.resolveVersion(ctx, t, unit)
			}
		}()
	}
	for _, t := range targets {
		work <- t
	}
	close(work)
	wg.Wait()
	close(out)

	var resolved []resolvedUpdate
	for r := range out {
		resolved = append(resolved, r)
	}
	return resolved
}

func (e *Editor) resolveVersion(ctx context.Context, t updateTarget, unit string) resolvedUpdate {
	current := t.ref.Ref()
	result := domain.UpdateResult{ID: t.id, From: current, To: current}

	var next string
	var err error
	if e.cfg.IsChannel(current) {
		next, err = e.latestChannel(ctx, t.ref, current)
	} else {
		next, err = e.latestTag(ctx, t.ref, current)
	}
	switch {
	case err != nil:
		logger.Warn("[%s] %q: %v", unit, t.id, err)
		result.Reason = err.Error()
	case next == "" && current == "":
		result.Reason = "no release tags"
	case next == "":
		result.Reason = "no newer version"
	default:
		logger.Info("[%s] %s: %s -> %s", unit, t.id, current, next)
		result.To = next
	}
	return resolvedUpdate{result: result, ref: t.ref}
}

// latestChannel finds the newest branch sharing the current channel's
// prefix, compared by their YY.MM pair.
func (e *Editor) latestChannel(ctx context.Context, ref *domain.SourceRef, current string) (string, error) {
	branches, err := e.forge.Branches(ctx, ref.Owner, ref.Repo)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimSuffix(current, e.cfg.ChannelVersion(current))
	best := current
	for _, b := range branches {
		if !strings.HasPrefix(b, prefix) || !e.cfg.IsChannel(b) {
			continue
		}
		if channelNewer(e.cfg.ChannelVersion(b), e.cfg.ChannelVersion(best)) {
			best = b
		}
	}
	if best == current {
		return "", nil
	}
	return best, nil
}

func channelNewer(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a > b // YY.MM strings compare correctly within a century
}

// latestTag finds the highest stable semver tag above the current one.
// An empty current means any stable tag qualifies, which is how inputs
// on the default branch get an initial version.
func (e *Editor) latestTag(ctx context.Context, ref *domain.SourceRef, current string) (string, error) {
	var best *semver.Version
	if current != "" {
		cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
		if err != nil {
			return "", fmt.Errorf("%q is neither a channel nor a version tag", current)
		}
		best = cur
	}
	tags, err := e.forge.Tags(ctx, ref.Owner, ref.Repo)
	if err != nil {
		return "", err
	}
	bestTag := ""
	for _, tag := range tags {
		v, err := semver.NewVersion(strings.TrimPrefix(tag, "v"))
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestTag = tag
		}
	}
	return bestTag, nil
}
