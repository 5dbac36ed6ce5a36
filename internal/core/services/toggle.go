package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/logger"
	"github.com/a-kenji/flake-edit/internal/manifest"
)

// commentedGroup is an inactive alternative: a url statement behind a
// line comment plus any contiguous same-id follows lines kept with it.
type commentedGroup struct {
	lines []int
	uri   string
}

// toggleCandidate groups the statements of one input: at most one
// active locator, its follows lines, and any commented alternatives.
type toggleCandidate struct {
	id            string
	active        int // locator line index, -1 when fully commented
	activeFollows []int
	commented     []commentedGroup
}

// activeGroup is the locator line plus its follows lines, nil when the
// input has no active locator.
func (c *toggleCandidate) activeGroup() []int {
	if c.active < 0 {
		return nil
	}
	return append([]int{c.active}, c.activeFollows...)
}

// Toggle flips an input between its active and commented url
// statements. An input with exactly one side present is simply
// commented or uncommented; with both present the two are swapped,
// which switches between pinned version alternatives kept as comments.
func (e *Editor) Toggle(ctx context.Context, id string) (string, error) {
	return e.toggle(ctx, id, "")
}

// ToggleToVersion activates the commented alternative whose url
// matches version, bypassing the interactive choice.
func (e *Editor) ToggleToVersion(ctx context.Context, id, version string) (string, error) {
	return e.toggle(ctx, id, version)
}

func (e *Editor) toggle(ctx context.Context, id, version string) (string, error) {
	lines := strings.Split(e.doc.Text(), "\n")
	cands, order := e.toggleCandidates(lines)

	if id == "" {
		id2, err := e.pickToggleTarget(cands, order)
		if err != nil {
			return "", err
		}
		id = id2
	}

	cand, ok := cands[id]
	if !ok {
		if e.doc.HasInput(id) {
			return "", fmt.Errorf("%w: %q", domain.ErrNoToggleableVersions, id)
		}
		return "", fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	}

	switch {
	case cand.active >= 0 && len(cand.commented) == 0:
		commentLines(lines, cand.activeGroup())

	case cand.active < 0 && len(cand.commented) > 0:
		chosen, err := e.pickAlternative(ctx, cand, version)
		if err != nil {
			return "", err
		}
		uncommentLines(lines, chosen.lines)

	case cand.active >= 0 && len(cand.commented) > 0:
		chosen, err := e.pickAlternative(ctx, cand, version)
		if err != nil {
			return "", err
		}
		commentLines(lines, cand.activeGroup())
		uncommentLines(lines, chosen.lines)

	default:
		return "", fmt.Errorf("%w: %q", domain.ErrNoToggleableVersions, id)
	}

	text := strings.Join(lines, "\n")
	doc, err := manifest.Parse(text)
	if err != nil {
		return "", fmt.Errorf("toggle would corrupt the manifest: %w", err)
	}
	e.doc = doc
	logger.Info("toggled %q", id)
	return text, nil
}

// pickToggleTarget auto-detects which input to toggle: exactly one
// input carrying both an active locator and commented alternatives
// qualifies, several candidates fail with the list of their ids.
func (e *Editor) pickToggleTarget(cands map[string]*toggleCandidate, order []string) (string, error) {
	var toggleable []string
	for _, id := range order {
		c := cands[id]
		if c.active >= 0 && len(c.commented) > 0 {
			toggleable = append(toggleable, id)
		}
	}
	switch len(toggleable) {
	case 0:
		return "", domain.ErrNoToggleableInputs
	case 1:
		return toggleable[0], nil
	}
	return "", &domain.AmbiguousError{
		Err:          domain.ErrMultipleToggleableInputs,
		Alternatives: toggleable,
	}
}

// pickAlternative selects which commented group to activate. A
// non-empty version selects by url match, otherwise a single
// alternative wins outright and several go to the injected prompter,
// which decides whether to ask or to refuse.
func (e *Editor) pickAlternative(ctx context.Context, cand *toggleCandidate, version string) (commentedGroup, error) {
	if version != "" {
		for _, c := range cand.commented {
			if c.uri == version || strings.Contains(c.uri, version) {
				return c, nil
			}
		}
		return commentedGroup{}, fmt.Errorf("%w: no alternative of %q matches %q",
			domain.ErrNoToggleableVersions, cand.id, version)
	}
	if len(cand.commented) == 1 {
		return cand.commented[0], nil
	}
	options := make([]string, len(cand.commented))
	for i, c := range cand.commented {
		options[i] = c.uri
	}
	if e.prompt == nil {
		return commentedGroup{}, &domain.AmbiguousError{
			Err:          domain.ErrSelectionRequired,
			ID:           cand.id,
			Alternatives: options,
		}
	}
	chosen, err := e.prompt.Select(ctx, "Activate which version?", options)
	if err != nil {
		return commentedGroup{}, err
	}
	for _, c := range cand.commented {
		if c.uri == chosen {
			return c, nil
		}
	}
	return commentedGroup{}, fmt.Errorf("%w: %q", domain.ErrNoToggleableVersions, chosen)
}

// toggleCandidates classifies the manifest's statements into version
// groups. The active locator and its follows lines come from the
// parsed document, commented alternatives from a text scan attributed
// to their input by statement path or enclosing block; commented
// follows lines directly below a commented url join its group.
func (e *Editor) toggleCandidates(lines []string) (map[string]*toggleCandidate, []string) {
	cands := map[string]*toggleCandidate{}
	var order []string
	get := func(id string) *toggleCandidate {
		if c, ok := cands[id]; ok {
			return c
		}
		c := &toggleCandidate{id: id, active: -1}
		cands[id] = c
		order = append(order, id)
		return c
	}

	text := e.doc.Text()
	for _, n := range e.doc.All("inputs") {
		if n.Kind != manifest.NodeString {
			continue
		}
		switch {
		case len(n.Path) == 3 && n.Path[2] == "url":
			get(n.Path[1]).active = lineIndexOf(text, n.Span.Start)
		case len(n.Path) == 5 && n.Path[2] == "inputs" && n.Path[4] == "follows":
			c := get(n.Path[1])
			c.activeFollows = append(c.activeFollows, lineIndexOf(text, n.Span.Start))
		}
	}

	offset := 0
	openID := ""
	openIdx := -1
	lastLine := -2
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			openIdx = -1
			offset += len(line) + 1
			continue
		}
		stmt := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if id, uri, ok := parseURLStatement(stmt); ok {
			if id == "" {
				id = e.enclosingInput(offset)
			}
			if id != "" {
				c := get(id)
				c.commented = append(c.commented, commentedGroup{lines: []int{i}, uri: uri})
				openID = id
				openIdx = len(c.commented) - 1
				lastLine = i
			}
		} else if fid, ok := parseFollowsStatement(stmt); ok {
			if fid == "" {
				fid = e.enclosingInput(offset)
			}
			if openIdx >= 0 && fid == openID && i == lastLine+1 {
				g := &cands[openID].commented[openIdx]
				g.lines = append(g.lines, i)
				lastLine = i
			}
		}
		offset += len(line) + 1
	}
	sort.Strings(order)
	return cands, order
}

// enclosingInput names the input whose block contains the offset.
func (e *Editor) enclosingInput(offset int) string {
	for _, n := range e.doc.All("inputs") {
		if len(n.Path) == 2 && n.Kind == manifest.NodeAttrset &&
			n.ValueSpan.Start <= offset && offset < n.ValueSpan.End {
			return n.Path[1]
		}
	}
	return ""
}

// parseURLStatement recognizes the three spellings of a url binding:
// "inputs.<id>.url", "<id>.url" and a bare "url" inside a block. The
// returned id is empty for the bare form.
func parseURLStatement(s string) (id, uri string, ok bool) {
	left, right, found := strings.Cut(s, "=")
	if !found {
		return "", "", false
	}
	right = strings.TrimSpace(right)
	if !strings.HasPrefix(right, `"`) || !strings.HasSuffix(right, `";`) {
		return "", "", false
	}
	uri = right[1 : len(right)-2]

	segs := strings.Split(strings.TrimSpace(left), ".")
	switch {
	case len(segs) == 1 && segs[0] == "url":
		return "", uri, true
	case len(segs) == 2 && segs[1] == "url":
		return segs[0], uri, true
	case len(segs) == 3 && segs[0] == "inputs" && segs[2] == "url":
		return segs[1], uri, true
	}
	return "", "", false
}

// parseFollowsStatement recognizes the three spellings of a follows
// binding: "inputs.<id>.inputs.<from>.follows", "<id>.inputs.<from>.
// follows" and "inputs.<from>.follows" inside a block. The returned id
// is empty for the block form.
func parseFollowsStatement(s string) (id string, ok bool) {
	left, right, found := strings.Cut(s, "=")
	if !found {
		return "", false
	}
	right = strings.TrimSpace(right)
	if !strings.HasPrefix(right, `"`) || !strings.HasSuffix(right, `";`) {
		return "", false
	}

	segs := strings.Split(strings.TrimSpace(left), ".")
	switch {
	case len(segs) == 3 && segs[0] == "inputs" && segs[2] == "follows":
		return "", true
	case len(segs) == 4 && segs[1] == "inputs" && segs[3] == "follows":
		return segs[0], true
	case len(segs) == 5 && segs[0] == "inputs" && segs[2] == "inputs" && segs[4] == "follows":
		return segs[1], true
	}
	return "", false
}

func lineIndexOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n")
}

func commentLines(lines []string, idxs []int) {
	for _, i := range idxs {
		commentLine(lines, i)
	}
}

func uncommentLines(lines []string, idxs []int) {
	for _, i := range idxs {
		uncommentLine(lines, i)
	}
}

func commentLine(lines []string, i int) {
	indent := lines[i][:len(lines[i])-len(strings.TrimLeft(lines[i], " \t"))]
	lines[i] = indent + "# " + strings.TrimLeft(lines[i], " \t")
}

func uncommentLine(lines []string, i int) {
	indent := lines[i][:len(lines[i])-len(strings.TrimLeft(lines[i], " \t"))]
	rest := strings.TrimLeft(lines[i], " \t")
	rest = strings.TrimPrefix(rest, "#")
	rest = strings.TrimPrefix(rest, " ")
	lines[i] = indent + rest
}
