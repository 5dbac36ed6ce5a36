package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/logger"
)

// ReconcileFollows compares the nested dependencies recorded in the
// lock graph with the follows bindings declared in the manifest and
// plans the difference: bindings to add so nested dependencies track
// the manifest's top-level inputs, and stale bindings to drop. With
// apply set the plan is also written into the manifest.
func (e *Editor) ReconcileFollows(ctx context.Context, apply bool) (*domain.FollowsPlan, string, error) {
	if e.lock == nil {
		return nil, "", fmt.Errorf("%w: follows reconciliation needs flake.lock", domain.ErrNoLockFile)
	}
	inputs, err := e.doc.Inputs()
	if err != nil {
		return nil, "", err
	}

	top := map[string]bool{}
	for _, in := range inputs {
		top[in.ID] = true
	}

	plan := &domain.FollowsPlan{}
	for _, in := range inputs {
		if e.cfg.Ignored(in.ID) {
			logger.Debug("follows: ignoring %q", in.ID)
			continue
		}
		node := e.lockNodeOf(in.ID)
		if node == nil {
			logger.Debug("follows: %q not locked yet, skipping", in.ID)
			continue
		}

		desired := map[string]string{}
		for nested := range node.Inputs {
			if e.cfg.IgnoredEdge(in.ID, nested) {
				continue
			}
			to := e.followTarget(node, nested, top)
			if to == "" || to == in.ID {
				continue
			}
			desired[nested] = to
		}

		existing := map[string]string{}
		for _, f := range in.Follows {
			existing[f.From] = f.To
		}

		for from, to := range desired {
			if existing[from] != to {
				plan.Additions = append(plan.Additions, domain.FollowChange{
					InputID: in.ID,
					Follow:  domain.Follow{From: from, To: to},
				})
			}
		}
		for from, to := range existing {
			if _, live := node.Inputs[from]; !live {
				plan.Removals = append(plan.Removals, domain.FollowChange{
					InputID: in.ID,
					Follow:  domain.Follow{From: from, To: to},
				})
				continue
			}
			if _, wanted := desired[from]; wanted {
				continue
			}
			target, _, _ := strings.Cut(to, "/")
			if !top[target] {
				plan.Removals = append(plan.Removals, domain.FollowChange{
					InputID: in.ID,
					Follow:  domain.Follow{From: from, To: to},
				})
			}
		}
	}

	e.dropCyclicAdditions(plan, inputs)
	plan.Sort()

	if !apply || plan.Empty() {
		return plan, e.doc.Text(), nil
	}

	for _, r := range plan.Removals {
		if err := e.doc.RemoveFollow(r.InputID, r.Follow.From); err != nil {
			return nil, "", err
		}
	}
	for _, a := range plan.Additions {
		if err := e.doc.AddFollow(a.InputID, a.Follow.From, a.Follow.To); err != nil {
			return nil, "", err
		}
	}
	return plan, e.doc.Text(), nil
}

// lockNodeOf resolves a top-level input to its lock node.
func (e *Editor) lockNodeOf(id string) *domain.LockNode {
	edge, ok := e.lock.Nodes[e.lock.Root].Inputs[id]
	if !ok {
		return nil
	}
	name, err := e.lock.ResolveEdge(edge)
	if err != nil {
		logger.Warn("follows: %v", err)
		return nil
	}
	return e.lock.Nodes[name]
}

// followTarget maps a nested input name to the top-level input it
// should follow. A plain name match must also agree on the locked
// upstream when both identities are known; the alias table is explicit
// configuration and exempt from that check. Failing both, a top-level
// input locked to the same upstream under a different id wins.
// Multi-hop chains collapse here because lock edges are chased to
// their final node before comparison.
func (e *Editor) followTarget(parent *domain.LockNode, nested string, top map[string]bool) string {
	var nestedRef *domain.SourceRef
	if edge, ok := parent.Inputs[nested]; ok {
		if name, err := e.lock.ResolveEdge(edge); err == nil {
			nestedRef = e.lock.Nodes[name].LockedRef()
		}
	}

	if top[nested] && e.compatibleUpstream(nested, nestedRef) {
		return nested
	}
	for id := range top {
		if id != nested && e.cfg.SameLogicalInput(id, nested) {
			return id
		}
	}

	if nestedRef == nil {
		return ""
	}
	var ids []string
	for id := range top {
		node := e.lockNodeOf(id)
		if node == nil || node.LockedRef() == nil {
			continue
		}
		if node.LockedRef().SameUpstream(nestedRef) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

// compatibleUpstream reports whether the top-level input id may serve
// as follows target for a nested input locked to nestedRef. An
// unknown identity on either side is accepted.
func (e *Editor) compatibleUpstream(id string, nestedRef *domain.SourceRef) bool {
	if nestedRef == nil {
		return true
	}
	node := e.lockNodeOf(id)
	if node == nil || node.LockedRef() == nil {
		return true
	}
	return node.LockedRef().SameUpstream(nestedRef)
}

// checkFollowCycle simulates one planned binding on the lock graph and
// rejects it when its marker chain would no longer terminate. Without
// a lock graph the binding is accepted as is.
func (e *Editor) checkFollowCycle(inputID, from, to string) error {
	if e.lock == nil {
		return nil
	}
	inputs, err := e.doc.Inputs()
	if err != nil {
		return err
	}
	plan := &domain.FollowsPlan{Additions: []domain.FollowChange{{
		InputID: inputID,
		Follow:  domain.Follow{From: from, To: to},
	}}}
	sim := e.simulatedGraph(plan, inputs)
	name, err := e.lock.ResolveEdge(e.lock.Nodes[e.lock.Root].Inputs[inputID])
	if err != nil {
		return nil
	}
	if _, err := sim.ResolveEdge(sim.Nodes[name].Inputs[from]); errors.Is(err, domain.ErrCycleDetected) {
		return fmt.Errorf("%w: %s.%s -> %s", domain.ErrCycleDetected, inputID, from, to)
	}
	return nil
}

// dropCyclicAdditions simulates the planned bindings on a copy of the
// lock graph and drops any addition whose marker chain would no longer
// terminate.
func (e *Editor) dropCyclicAdditions(plan *domain.FollowsPlan, inputs []domain.Input) {
	sim := e.simulatedGraph(plan, inputs)
	kept := plan.Additions[:0]
	for _, a := range plan.Additions {
		name, err := e.lock.ResolveEdge(e.lock.Nodes[e.lock.Root].Inputs[a.InputID])
		if err != nil {
			continue
		}
		edge := sim.Nodes[name].Inputs[a.Follow.From]
		if _, err := sim.ResolveEdge(edge); err != nil {
			if errors.Is(err, domain.ErrCycleDetected) {
				logger.Warn("follows: skipping %s.%s -> %s: %v",
					a.InputID, a.Follow.From, a.Follow.To, err)
				continue
			}
		}
		kept = append(kept, a)
	}
	plan.Additions = kept
}

// simulatedGraph clones the lock graph and applies the plan's bindings
// as follows markers.
func (e *Editor) simulatedGraph(plan *domain.FollowsPlan, inputs []domain.Input) *domain.LockGraph {
	sim := &domain.LockGraph{
		Nodes:   map[string]*domain.LockNode{},
		Root:    e.lock.Root,
		Version: e.lock.Version,
	}
	for name, node := range e.lock.Nodes {
		clone := *node
		clone.Inputs = map[string]domain.LockEdge{}
		for k, v := range node.Inputs {
			clone.Inputs[k] = v
		}
		sim.Nodes[name] = &clone
	}
	place := func(inputID, from, to string) {
		name, err := e.lock.ResolveEdge(e.lock.Nodes[e.lock.Root].Inputs[inputID])
		if err != nil {
			return
		}
		sim.Nodes[name].Inputs[from] = domain.LockEdge{Follows: strings.Split(to, "/")}
	}
	for _, in := range inputs {
		for _, f := range in.Follows {
			place(in.ID, f.From, f.To)
		}
	}
	for _, a := range plan.Additions {
		place(a.InputID, a.Follow.From, a.Follow.To)
	}
	return sim
}
