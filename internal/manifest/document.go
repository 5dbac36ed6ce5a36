package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

// Document is a parsed flake.nix held together with its source text.
// Edits splice the text and either shift the recorded spans or
// re-parse, so bytes outside the edited statements never change.
type Document struct {
	src      string
	roots    []*Node
	flat     []*Node
	rootSpan Span
}

// Parse builds a Document from flake.nix source.
func Parse(src string) (*Document, error) {
	d := &Document{src: src}
	if err := d.reparse(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) reparse() error {
	roots, span, err := parse(d.src)
	if err != nil {
		return err
	}
	d.roots = roots
	d.rootSpan = span
	d.flat = d.flat[:0]
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			d.flat = append(d.flat, n)
			walk(n.Children)
		}
	}
	walk(roots)
	return nil
}

// Text returns the current manifest source.
func (d *Document) Text() string { return d.src }

// Find returns the binding with exactly the given path. With duplicate
// declarations the later one wins, matching Nix attribute merging.
func (d *Document) Find(path ...string) *Node {
	var found *Node
	for _, n := range d.flat {
		if n.PathIs(path...) {
			found = n
		}
	}
	return found
}

// All returns every binding whose path starts with the given prefix,
// in source order.
func (d *Document) All(prefix ...string) []*Node {
	var out []*Node
	for _, n := range d.flat {
		if n.PathUnder(prefix...) {
			out = append(out, n)
		}
	}
	return out
}

// Inputs assembles the declared flake inputs from every style the
// manifest may mix: dotted statements, nested blocks and anything in
// between. Later declarations of the same attribute win.
func (d *Document) Inputs() ([]domain.Input, error) {
	byID := map[string]*domain.Input{}
	var order []string
	get := func(id string) *domain.Input {
		if in, ok := byID[id]; ok {
			return in
		}
		in := &domain.Input{ID: id}
		byID[id] = in
		order = append(order, id)
		return in
	}

	for _, n := range d.flat {
		if len(n.Path) < 2 || n.Path[0] != "inputs" {
			continue
		}
		id := n.Path[1]
		rest := n.Path[2:]
		switch {
		case len(rest) == 0 && n.Kind == NodeAttrset:
			get(id)
		case len(rest) == 1 && rest[0] == "url" && n.Kind == NodeString:
			ref, err := domain.ParseRef(n.Value)
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", id, err)
			}
			get(id).Ref = ref
		case len(rest) == 1 && rest[0] == "flake" && n.Kind == NodeBool:
			v := n.Value == "true"
			get(id).Flake = &v
		case len(rest) == 3 && rest[0] == "inputs" && rest[2] == "follows" && n.Kind == NodeString:
			in := get(id)
			replaced := false
			for i, f := range in.Follows {
				if f.From == rest[1] {
					in.Follows[i].To = n.Value
					replaced = true
				}
			}
			if !replaced {
				in.Follows = append(in.Follows, domain.Follow{From: rest[1], To: n.Value})
			}
		}
	}

	out := make([]domain.Input, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// HasInput reports whether any binding declares the input id.
func (d *Document) HasInput(id string) bool {
	return len(d.All("inputs", id)) > 0
}

// splice replaces src[start:end) with text and shifts every recorded
// span past the edit so node pointers stay valid.
func (d *Document) splice(start, end int, text string) {
	d.src = d.src[:start] + text + d.src[end:]
	delta := len(text) - (end - start)
	if delta == 0 {
		return
	}
	shift := func(s *Span) {
		if s.Start >= end {
			s.Start += delta
		}
		if s.End >= end {
			s.End += delta
		}
	}
	for _, n := range d.flat {
		shift(&n.Span)
		shift(&n.ValueSpan)
	}
	shift(&d.rootSpan)
}

// ReplaceString swaps the value of a string binding in place.
func (d *Document) ReplaceString(n *Node, value string) error {
	if n.Kind != NodeString {
		return fmt.Errorf("%w: %s is not a string binding",
			domain.ErrMalformedManifest, strings.Join(n.Path, "."))
	}
	d.splice(n.ValueSpan.Start, n.ValueSpan.End, quote(value))
	n.Value = value
	return nil
}

// DeleteNodes removes whole statements. Overlapping selections are
// reduced to their outermost nodes first, then the surviving spans are
// spliced out back to front together with their own line whitespace.
func (d *Document) DeleteNodes(nodes []*Node) error {
	outer := outermost(nodes)
	sort.Slice(outer, func(i, j int) bool { return outer[i].Span.Start > outer[j].Span.Start })
	for _, n := range outer {
		start, end := d.expandToLine(n.Span)
		d.src = d.src[:start] + d.src[end:]
	}
	return d.reparse()
}

// expandToLine widens a statement span to swallow leading indentation
// and the trailing remainder of its line, comment included, when the
// statement is alone on that line.
func (d *Document) expandToLine(s Span) (int, int) {
	start, end := s.Start, s.End
	ls := start
	for ls > 0 && (d.src[ls-1] == ' ' || d.src[ls-1] == '\t') {
		ls--
	}
	le := end
	for le < len(d.src) && (d.src[le] == ' ' || d.src[le] == '\t') {
		le++
	}
	if le < len(d.src) && d.src[le] == '#' {
		for le < len(d.src) && d.src[le] != '\n' {
			le++
		}
	}
	soleLine := (ls == 0 || d.src[ls-1] == '\n') &&
		(le >= len(d.src) || d.src[le] == '\n')
	if !soleLine {
		return start, end
	}
	if le < len(d.src) {
		le++
	}
	return ls, le
}

func outermost(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		top := n
		for p := n.parent; p != nil; p = p.parent {
			if containsNode(nodes, p) {
				top = p
			}
		}
		if !containsNode(out, top) {
			out = append(out, top)
		}
	}
	return out
}

func containsNode(nodes []*Node, n *Node) bool {
	for _, c := range nodes {
		if c == n {
			return true
		}
	}
	return false
}

// InsertStatements places new statements into an attrset value, before
// its closing brace, indented like its existing children.
func (d *Document) InsertStatements(container *Node, stmts []string) error {
	if container.Kind != NodeAttrset {
		return fmt.Errorf("%w: %s is not an attribute set",
			domain.ErrMalformedManifest, strings.Join(container.Path, "."))
	}
	indent := d.childIndent(container)
	var b strings.Builder
	closing := container.ValueSpan.End - 1
	lineStart := d.lineStartOf(closing)
	// keep the closing brace on its own line
	onOwnLine := strings.TrimSpace(d.src[lineStart:closing]) == ""
	if !onOwnLine {
		b.WriteByte('\n')
	}
	for _, s := range stmts {
		b.WriteString(indent)
		b.WriteString(s)
		b.WriteByte('\n')
	}
	insertAt := closing
	if onOwnLine {
		insertAt = lineStart
	} else {
		b.WriteString(d.indentOf(container.Span.Start))
	}
	d.src = d.src[:insertAt] + b.String() + d.src[insertAt:]
	return d.reparse()
}

// InsertTopLevel places new statements after an existing top-level
// binding, or right after the opening brace when anchor is nil.
func (d *Document) InsertTopLevel(anchor *Node, stmts []string) error {
	var at int
	var indent string
	if anchor != nil {
		at = d.endOfLine(anchor.Span.End)
		indent = d.indentOf(anchor.Span.Start)
	} else {
		at = d.endOfLine(d.rootSpan.Start + 1)
		indent = "  "
	}
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(indent)
		b.WriteString(s)
		b.WriteByte('\n')
	}
	d.src = d.src[:at] + b.String() + d.src[at:]
	return d.reparse()
}

func (d *Document) lineStartOf(pos int) int {
	for pos > 0 && d.src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// InsertBefore places new statements on the lines above an existing
// statement, indented like it.
func (d *Document) InsertBefore(n *Node, stmts []string) error {
	at := d.lineStartOf(n.Span.Start)
	indent := d.indentOf(n.Span.Start)
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(indent)
		b.WriteString(s)
		b.WriteByte('\n')
	}
	d.src = d.src[:at] + b.String() + d.src[at:]
	return d.reparse()
}

// endOfLine returns the offset just past the newline ending the line
// containing pos.
func (d *Document) endOfLine(pos int) int {
	for pos < len(d.src) && d.src[pos] != '\n' {
		pos++
	}
	if pos < len(d.src) {
		pos++
	}
	return pos
}

// indentOf returns the leading whitespace of the line containing pos.
func (d *Document) indentOf(pos int) string {
	ls := d.lineStartOf(pos)
	le := ls
	for le < len(d.src) && (d.src[le] == ' ' || d.src[le] == '\t') {
		le++
	}
	return d.src[ls:le]
}

func (d *Document) childIndent(container *Node) string {
	if len(container.Children) > 0 {
		return d.indentOf(container.Children[len(container.Children)-1].Span.Start)
	}
	return d.indentOf(container.Span.Start) + "  "
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
