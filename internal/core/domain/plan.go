package domain

import "sort"

// FollowChange is one planned edit to a follows binding: the owning
// top-level input plus the binding itself.
type FollowChange struct {
	InputID string
	Follow  Follow
}

// FollowsPlan is the outcome of reconciling the manifest against the
// lock graph: bindings to add and bindings to remove. An empty plan
// means the manifest already matches the desired wiring.
type FollowsPlan struct {
	Additions []FollowChange
	Removals  []FollowChange
}

// Empty reports whether the plan changes nothing.
func (p *FollowsPlan) Empty() bool {
	return len(p.Additions) == 0 && len(p.Removals) == 0
}

// Sort orders both halves of the plan by input id then source id, so
// plans compare and render deterministically.
func (p *FollowsPlan) Sort() {
	less := func(s []FollowChange) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].InputID != s[j].InputID {
				return s[i].InputID < s[j].InputID
			}
			return s[i].Follow.From < s[j].Follow.From
		}
	}
	sort.Slice(p.Additions, less(p.Additions))
	sort.Slice(p.Removals, less(p.Removals))
}
