package domain

import "sort"

// Follow is a single "inputs.<id>.inputs.<from>.follows = <to>" binding:
// the nested input From of the owning input is redirected to the
// top-level input To.
type Follow struct {
	From string
	To   string
}

// Input is one flake input as assembled from the manifest: its id, the
// reference it tracks and any follows bindings declared beneath it.
type Input struct {
	ID      string
	Ref     *SourceRef
	Flake   *bool // inputs.<id>.flake, nil when unset
	Follows []Follow
}

// HasFollow reports whether the input already redirects from.
func (in *Input) HasFollow(from string) bool {
	for _, f := range in.Follows {
		if f.From == from {
			return true
		}
	}
	return false
}

// FollowTarget returns the redirect target for from, or "".
func (in *Input) FollowTarget(from string) string {
	for _, f := range in.Follows {
		if f.From == from {
			return f.To
		}
	}
	return ""
}

// SortedFollows returns the follows bindings ordered by source id.
func (in *Input) SortedFollows() []Follow {
	out := make([]Follow, len(in.Follows))
	copy(out, in.Follows)
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// SortInputs orders inputs by id for stable listing output.
func SortInputs(inputs []Input) {
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].ID < inputs[j].ID })
}
