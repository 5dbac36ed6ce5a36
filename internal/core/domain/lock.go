package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LockEdge is one entry in a lock node's inputs table. A plain string
// names another node directly; an array is a follows marker, a path
// from the root node that must be chased to find the real target.
type LockEdge struct {
	Node    string
	Follows []string
}

// IsFollows reports whether the edge is a follows marker.
func (e *LockEdge) IsFollows() bool { return e.Follows != nil }

func (e *LockEdge) UnmarshalJSON(data []byte) error {
	var node string
	if err := json.Unmarshal(data, &node); err == nil {
		e.Node = node
		return nil
	}
	var path []string
	if err := json.Unmarshal(data, &path); err != nil {
		return fmt.Errorf("%w: input edge is neither string nor path: %s",
			ErrMalformedLock, data)
	}
	if path == nil {
		path = []string{}
	}
	e.Follows = path
	return nil
}

func (e LockEdge) MarshalJSON() ([]byte, error) {
	if e.IsFollows() {
		return json.Marshal(e.Follows)
	}
	return json.Marshal(e.Node)
}

// LockedSource is the pinned origin recorded for a lock node.
type LockedSource struct {
	Type         string `json:"type,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Repo         string `json:"repo,omitempty"`
	URL          string `json:"url,omitempty"`
	Path         string `json:"path,omitempty"`
	ID           string `json:"id,omitempty"`
	Ref          string `json:"ref,omitempty"`
	Rev          string `json:"rev,omitempty"`
	NarHash      string `json:"narHash,omitempty"`
	LastModified int64  `json:"lastModified,omitempty"`
}

// LockNode is one vertex of the lock graph.
type LockNode struct {
	Inputs   map[string]LockEdge `json:"inputs,omitempty"`
	Locked   *LockedSource       `json:"locked,omitempty"`
	Original *LockedSource       `json:"original,omitempty"`
	Flake    *bool               `json:"flake,omitempty"`
}

// LockGraph is the parsed flake.lock file.
type LockGraph struct {
	Nodes   map[string]*LockNode `json:"nodes"`
	Root    string               `json:"root"`
	Version int                  `json:"version"`
}

// ParseLock decodes a flake.lock document and validates its shape:
// the root node must exist and every direct child edge must name a
// present node. Follows markers are only validated when resolved,
// their validity depends on edges that may themselves be markers.
func ParseLock(data []byte) (*LockGraph, error) {
	var g LockGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLock, err)
	}
	if g.Root == "" {
		return nil, fmt.Errorf("%w: missing root node name", ErrMalformedLock)
	}
	if _, ok := g.Nodes[g.Root]; !ok {
		return nil, fmt.Errorf("%w: root node %q not present", ErrMalformedLock, g.Root)
	}
	for name, node := range g.Nodes {
		for child, edge := range node.Inputs {
			if edge.IsFollows() {
				continue
			}
			if _, ok := g.Nodes[edge.Node]; !ok {
				return nil, fmt.Errorf("%w: %q input %q names missing node %q",
					ErrDanglingReference, name, child, edge.Node)
			}
		}
	}
	return &g, nil
}

// rootNode is never nil after ParseLock.
func (g *LockGraph) rootNode() *LockNode { return g.Nodes[g.Root] }

// ResolveEdge returns the name of the node an edge ultimately points
// to, chasing follows markers. The visit guard rejects cyclic marker
// chains rather than looping.
func (g *LockGraph) ResolveEdge(edge LockEdge) (string, error) {
	return g.resolveEdge(edge, map[string]bool{})
}

func (g *LockGraph) resolveEdge(edge LockEdge, seen map[string]bool) (string, error) {
	if !edge.IsFollows() {
		if _, ok := g.Nodes[edge.Node]; !ok {
			return "", fmt.Errorf("%w: lock node %q", ErrDanglingReference, edge.Node)
		}
		return edge.Node, nil
	}
	current := g.Root
	for _, step := range edge.Follows {
		node := g.Nodes[current]
		if node == nil {
			return "", fmt.Errorf("%w: lock node %q", ErrDanglingReference, current)
		}
		next, ok := node.Inputs[step]
		if !ok {
			return "", fmt.Errorf("%w: %q has no input %q", ErrDanglingReference, current, step)
		}
		if next.IsFollows() {
			key := current + "\x00" + step
			if seen[key] {
				return "", fmt.Errorf("%w: follows chain through %q/%q", ErrCycleDetected, current, step)
			}
			seen[key] = true
			resolved, err := g.resolveEdge(next, seen)
			if err != nil {
				return "", err
			}
			current = resolved
			continue
		}
		if _, ok := g.Nodes[next.Node]; !ok {
			return "", fmt.Errorf("%w: lock node %q", ErrDanglingReference, next.Node)
		}
		current = next.Node
	}
	return current, nil
}

// TopLevel returns the ids of the root node's inputs, sorted.
func (g *LockGraph) TopLevel() []string {
	ids := make([]string, 0, len(g.rootNode().Inputs))
	for id := range g.rootNode().Inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RevByID returns the locked revision of a top-level input.
func (g *LockGraph) RevByID(id string) (string, error) {
	edge, ok := g.rootNode().Inputs[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInputNotFound, id)
	}
	name, err := g.ResolveEdge(edge)
	if err != nil {
		return "", err
	}
	node := g.Nodes[name]
	if node.Locked == nil || node.Locked.Rev == "" {
		return "", fmt.Errorf("%w: %q has no locked revision", ErrMalformedLock, id)
	}
	return node.Locked.Rev, nil
}

// NestedInputs lists the inputs declared beneath a top-level input,
// each with the name of the node its edge resolves to. Follows markers
// are chased so the result reflects effective wiring.
func (g *LockGraph) NestedInputs(id string) (map[string]string, error) {
	edge, ok := g.rootNode().Inputs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInputNotFound, id)
	}
	name, err := g.ResolveEdge(edge)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for nested, nestedEdge := range g.Nodes[name].Inputs {
		target, err := g.ResolveEdge(nestedEdge)
		if err != nil {
			return nil, err
		}
		out[nested] = target
	}
	return out, nil
}

// LockedRef reconstructs a SourceRef from a node's locked origin.
func (n *LockNode) LockedRef() *SourceRef {
	src := n.Locked
	if src == nil {
		src = n.Original
	}
	if src == nil {
		return nil
	}
	ref := &SourceRef{}
	switch src.Type {
	case "github", "gitlab", "sourcehut", "gitea", "forgejo":
		ref.Kind = KindForge
		ref.Forge = src.Type
		ref.Owner = src.Owner
		ref.Repo = src.Repo
	case "git":
		ref.Kind = KindGit
		ref.URL = src.URL
	case "hg", "mercurial":
		ref.Kind = KindMercurial
		ref.URL = src.URL
	case "tarball", "file":
		ref.Kind = KindTarball
		ref.URL = src.URL
	case "path":
		ref.Kind = KindPath
		ref.Path = src.Path
	case "indirect":
		ref.Kind = KindIndirect
		ref.ID = src.ID
	default:
		return nil
	}
	ref.Params.Ref = src.Ref
	ref.Params.Rev = src.Rev
	return ref
}
