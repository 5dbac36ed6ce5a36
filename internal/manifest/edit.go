package manifest

import (
	"fmt"
	"strings"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

// StyleOf reports how an existing input is declared. Inputs written as
// blocks count as nested, loose statements count as dotted.
func (d *Document) StyleOf(id string) (domain.InputStyle, bool) {
	nodes := d.All("inputs", id)
	if len(nodes) == 0 {
		return "", false
	}
	for _, n := range nodes {
		if n.PathIs("inputs", id) && n.Kind == NodeAttrset {
			return domain.StyleNested, true
		}
	}
	return domain.StyleDotted, true
}

// DominantStyle picks the layout for new inputs from what the manifest
// already does, falling back to the configured default when the file
// declares nothing either way.
func (d *Document) DominantStyle(fallback domain.InputStyle) domain.InputStyle {
	nested, dotted := 0, 0
	for _, n := range d.flat {
		if len(n.Path) == 2 && n.Path[0] == "inputs" && n.Kind == NodeAttrset {
			nested++
		}
		if len(n.Path) > 2 && n.Path[0] == "inputs" && n.parent == nil {
			dotted++
		}
	}
	switch {
	case nested > dotted:
		return domain.StyleNested
	case dotted > nested:
		return domain.StyleDotted
	default:
		return fallback
	}
}

// AddInput declares a new input. The layout follows the manifest's
// dominant style unless style forces one; ordering decides whether the
// input goes after the existing ones or into alphabetical position.
func (d *Document) AddInput(in domain.Input, style domain.InputStyle,
	ordering domain.InputOrdering) error {
	if d.HasInput(in.ID) {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateInput, in.ID)
	}
	if in.Ref == nil {
		return fmt.Errorf("%w: input %q has no reference", domain.ErrMalformedManifest, in.ID)
	}

	container := d.Find("inputs")
	if container != nil && container.Kind != NodeAttrset {
		container = nil
	}

	if container != nil {
		var stmts []string
		if style == domain.StyleNested {
			stmts = nestedBlock(in)
		} else {
			stmts = dottedStatements("", in)
		}
		if ordering == domain.OrderAlphabetical {
			if succ := successorIn(container.Children, in.ID); succ != nil {
				return d.InsertBefore(succ, stmts)
			}
		}
		return d.InsertStatements(container, stmts)
	}

	var stmts []string
	if style == domain.StyleNested {
		stmts = append([]string{"inputs." + in.ID + " = {"}, indentLines(nestedBody(in))...)
		stmts = append(stmts, "};")
	} else {
		stmts = dottedStatements("inputs.", in)
	}
	if ordering == domain.OrderAlphabetical {
		if succ := successorIn(d.topLevelInputs(), in.ID); succ != nil {
			return d.InsertBefore(succ, stmts)
		}
	}
	anchor := d.lastTopLevelInput()
	if anchor == nil {
		anchor = d.Find("description")
	}
	return d.InsertTopLevel(anchor, stmts)
}

// successorIn returns the first node in text order declaring an input
// id greater than id, the insertion point for alphabetical placement.
func successorIn(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if len(n.Path) >= 2 && n.Path[0] == "inputs" && n.Path[1] > id {
			return n
		}
	}
	return nil
}

func (d *Document) topLevelInputs() []*Node {
	var nodes []*Node
	for _, n := range d.flat {
		if n.parent == nil && len(n.Path) > 0 && n.Path[0] == "inputs" {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (d *Document) lastTopLevelInput() *Node {
	nodes := d.topLevelInputs()
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// nestedBlock renders "<id> = { ... };" lines for use inside an inputs
// container.
func nestedBlock(in domain.Input) []string {
	stmts := append([]string{in.ID + " = {"}, indentLines(nestedBody(in))...)
	return append(stmts, "};")
}

func nestedBody(in domain.Input) []string {
	stmts := []string{"url = " + quote(in.Ref.String()) + ";"}
	if in.Flake != nil && !*in.Flake {
		stmts = append(stmts, "flake = false;")
	}
	for _, f := range in.SortedFollows() {
		stmts = append(stmts, "inputs."+f.From+".follows = "+quote(f.To)+";")
	}
	return stmts
}

// dottedStatements renders "<prefix><id>.url = ...;" lines. The prefix
// is "inputs." at top level and empty inside an inputs container.
func dottedStatements(prefix string, in domain.Input) []string {
	base := prefix + in.ID
	stmts := []string{base + ".url = " + quote(in.Ref.String()) + ";"}
	if in.Flake != nil && !*in.Flake {
		stmts = append(stmts, base+".flake = false;")
	}
	for _, f := range in.SortedFollows() {
		stmts = append(stmts, base+".inputs."+f.From+".follows = "+quote(f.To)+";")
	}
	return stmts
}

func indentLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "  " + l
	}
	return out
}

// RemoveInput deletes every statement declaring the input, cascading
// into follows bindings in other inputs that point at it. The returned
// list names the inputs a cascaded binding was removed from.
func (d *Document) RemoveInput(id string) ([]string, error) {
	own := d.All("inputs", id)
	if len(own) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	}
	doomed := append([]*Node{}, own...)
	var cascaded []string
	for _, n := range d.flat {
		if len(n.Path) == 5 && n.Path[0] == "inputs" && n.Path[1] != id &&
			n.Path[2] == "inputs" && n.Path[4] == "follows" &&
			n.Kind == NodeString && n.Value == id {
			doomed = append(doomed, d.followStatement(n))
			cascaded = append(cascaded, n.Path[1])
		}
	}
	return cascaded, d.DeleteNodes(doomed)
}

// RemoveInputStatements deletes the input's own statements while
// leaving follows bindings in other inputs alone, the overwrite half
// of replacing a declaration.
func (d *Document) RemoveInputStatements(id string) error {
	own := d.All("inputs", id)
	if len(own) == 0 {
		return fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	}
	return d.DeleteNodes(own)
}

// followStatement widens a follows leaf to the statement worth
// deleting: when the leaf is the only content of a wrapping "<from> =
// { follows = ...; }" block, the block goes too.
func (d *Document) followStatement(n *Node) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if len(p.Children) != 1 {
			break
		}
		if len(p.Path) < 3 || p.Path[len(p.Path)-2] != "inputs" {
			break
		}
		n = p
	}
	return n
}

// SetURL updates the reference of an existing input, or declares the
// url statement when the input exists without one.
func (d *Document) SetURL(id string, ref *domain.SourceRef) error {
	if n := d.Find("inputs", id, "url"); n != nil {
		return d.ReplaceString(n, ref.String())
	}
	if block := d.Find("inputs", id); block != nil && block.Kind == NodeAttrset {
		return d.InsertStatements(block, []string{"url = " + quote(ref.String()) + ";"})
	}
	if !d.HasInput(id) {
		return fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	}
	return d.appendToInput(id, "inputs."+id+".url = "+quote(ref.String())+";")
}

// SetFlake sets inputs.<id>.flake.
func (d *Document) SetFlake(id string, flake bool) error {
	lit := "false"
	if flake {
		lit = "true"
	}
	if n := d.Find("inputs", id, "flake"); n != nil {
		d.splice(n.ValueSpan.Start, n.ValueSpan.End, lit)
		n.Value = lit
		return nil
	}
	if block := d.Find("inputs", id); block != nil && block.Kind == NodeAttrset {
		return d.InsertStatements(block, []string{"flake = " + lit + ";"})
	}
	if !d.HasInput(id) {
		return fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	}
	return d.appendToInput(id, "inputs."+id+".flake = "+lit+";")
}

// AddFollow declares or updates "inputs.<id>.inputs.<from>.follows".
func (d *Document) AddFollow(id, from, to string) error {
	if n := d.Find("inputs", id, "inputs", from, "follows"); n != nil {
		return d.ReplaceString(n, to)
	}
	if !d.HasInput(id) {
		return fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	}
	if block := d.Find("inputs", id); block != nil && block.Kind == NodeAttrset {
		return d.InsertStatements(block, []string{
			"inputs." + from + ".follows = " + quote(to) + ";",
		})
	}
	return d.appendToInput(id, "inputs."+id+".inputs."+from+".follows = "+quote(to)+";")
}

// RemoveFollow deletes "inputs.<id>.inputs.<from>.follows".
func (d *Document) RemoveFollow(id, from string) error {
	n := d.Find("inputs", id, "inputs", from, "follows")
	if n == nil {
		if !d.HasInput(id) {
			return fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
		}
		return fmt.Errorf("%w: %q has no follows for %q", domain.ErrInputNotFound, id, from)
	}
	return d.DeleteNodes([]*Node{d.followStatement(n)})
}

// appendToInput adds a dotted statement next to the input's last
// existing statement. The statement is given in top-level form and is
// rebased when the input actually lives inside an inputs container.
func (d *Document) appendToInput(id, stmt string) error {
	nodes := d.All("inputs", id)
	anchor := nodes[len(nodes)-1]
	for anchor.parent != nil {
		anchor = anchor.parent
	}
	if anchor.PathIs("inputs") && anchor.Kind == NodeAttrset {
		return d.InsertStatements(anchor, []string{strings.TrimPrefix(stmt, "inputs.")})
	}
	return d.InsertTopLevel(anchor, []string{stmt})
}
