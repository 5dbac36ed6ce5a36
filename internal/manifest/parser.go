package manifest

import (
	"fmt"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

// NodeKind classifies the value side of a binding.
type NodeKind int

const (
	// NodeString is a quoted string literal.
	NodeString NodeKind = iota
	// NodeBool is a bare true or false literal.
	NodeBool
	// NodeAttrset is a structurally parsed { ... } value.
	NodeAttrset
	// NodeOpaque is any expression this tool passes through verbatim.
	NodeOpaque
)

// Node is one binding of the manifest: its full dotted path from the
// document root, the byte span of the whole statement including the
// terminating semicolon, and the span of just the value expression.
// Attrset nodes additionally carry their child bindings.
type Node struct {
	Path      []string
	Kind      NodeKind
	Value     string // decoded literal for NodeString and NodeBool
	Span      Span
	ValueSpan Span
	Children  []*Node

	parent *Node
}

// PathIs reports whether the node's path equals the given segments.
func (n *Node) PathIs(segments ...string) bool {
	if len(n.Path) != len(segments) {
		return false
	}
	for i, s := range segments {
		if n.Path[i] != s {
			return false
		}
	}
	return true
}

// PathUnder reports whether the node's path starts with the segments.
func (n *Node) PathUnder(segments ...string) bool {
	if len(n.Path) < len(segments) {
		return false
	}
	for i, s := range segments {
		if n.Path[i] != s {
			return false
		}
	}
	return true
}

type parser struct {
	sc     *scanner
	peeked *token
}

func (p *parser) peek() (token, error) {
	if p.peeked == nil {
		tok, err := p.sc.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = &tok
	}
	return *p.peeked, nil
}

func (p *parser) next() (token, error) {
	if p.peeked != nil {
		tok := *p.peeked
		p.peeked = nil
		return tok, nil
	}
	return p.sc.next()
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok, err := p.next()
	if err != nil {
		return token{}, err
	}
	if tok.kind != kind {
		return token{}, fmt.Errorf("%w: offset %d: expected %s",
			domain.ErrMalformedManifest, tok.span.Start, what)
	}
	return tok, nil
}

// parse reads a whole flake.nix: a single top-level attribute set.
// It returns the root bindings and the span of the enclosing braces.
func parse(src string) ([]*Node, Span, error) {
	p := &parser{sc: newScanner(src)}
	open, err := p.expect(tokLBrace, "{ at start of flake")
	if err != nil {
		return nil, Span{}, err
	}
	var nodes []*Node
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, Span{}, err
		}
		if tok.kind == tokRBrace {
			if _, err := p.next(); err != nil {
				return nil, Span{}, err
			}
			if eof, err := p.next(); err != nil {
				return nil, Span{}, err
			} else if eof.kind != tokEOF {
				return nil, Span{}, fmt.Errorf("%w: trailing content after closing brace",
					domain.ErrMalformedManifest)
			}
			return nodes, Span{open.span.Start, tok.span.End}, nil
		}
		if tok.kind == tokEOF {
			return nil, Span{}, fmt.Errorf("%w: unexpected end of file", domain.ErrMalformedManifest)
		}
		node, err := p.parseBinding(nil, nil)
		if err != nil {
			return nil, Span{}, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
}

// parseBinding reads one "attrpath = value;" statement. Bindings whose
// path reaches into the inputs subtree get their attrset values parsed
// structurally; everything else is consumed opaquely so arbitrary Nix
// in outputs and friends cannot break the edit model.
func (p *parser) parseBinding(prefix []string, parent *Node) (*Node, error) {
	first, err := p.next()
	if err != nil {
		return nil, err
	}
	if first.kind == tokIdent && first.text == "inherit" {
		return nil, p.skipToSemi()
	}
	path := append(append([]string{}, prefix...), "")
	if err := attrName(first, &path[len(path)-1]); err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.kind != tokDot {
			break
		}
		if _, err := p.next(); err != nil {
			return nil, err
		}
		seg, err := p.next()
		if err != nil {
			return nil, err
		}
		path = append(path, "")
		if err := attrName(seg, &path[len(path)-1]); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokEq, "= after attribute path"); err != nil {
		return nil, err
	}

	node := &Node{Path: path, parent: parent, Span: Span{Start: first.span.Start}}

	val, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case val.kind == tokString:
		if _, err := p.next(); err != nil {
			return nil, err
		}
		node.Kind = NodeString
		node.Value = val.text
		node.ValueSpan = val.span
		semi, err := p.expect(tokSemi, "; after string value")
		if err != nil {
			return nil, err
		}
		node.Span.End = semi.span.End
		return node, nil

	case val.kind == tokLBrace && len(path) > 0 && path[0] == "inputs":
		if err := p.parseAttrsetValue(node); err != nil {
			return nil, err
		}
		return node, nil

	default:
		end, err := p.skipExpr()
		if err != nil {
			return nil, err
		}
		node.Kind = NodeOpaque
		node.ValueSpan = Span{val.span.Start, end.valueEnd}
		node.Span.End = end.semiEnd
		if val.kind == tokIdent && (val.text == "true" || val.text == "false") &&
			node.ValueSpan == val.span {
			node.Kind = NodeBool
			node.Value = val.text
		}
		return node, nil
	}
}

func (p *parser) parseAttrsetValue(node *Node) error {
	open, err := p.expect(tokLBrace, "{")
	if err != nil {
		return err
	}
	node.Kind = NodeAttrset
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		switch tok.kind {
		case tokRBrace:
			if _, err := p.next(); err != nil {
				return err
			}
			node.ValueSpan = Span{open.span.Start, tok.span.End}
			semi, err := p.expect(tokSemi, "; after attribute set")
			if err != nil {
				return err
			}
			node.Span.End = semi.span.End
			return nil
		case tokEOF:
			return fmt.Errorf("%w: unterminated attribute set at offset %d",
				domain.ErrMalformedManifest, open.span.Start)
		default:
			child, err := p.parseBinding(node.Path, node)
			if err != nil {
				return err
			}
			if child != nil {
				node.Children = append(node.Children, child)
			}
		}
	}
}

type exprEnd struct {
	valueEnd int
	semiEnd  int
}

// skipExpr consumes a value expression of any shape up to the
// terminating semicolon at bracket depth zero.
func (p *parser) skipExpr() (exprEnd, error) {
	depth := 0
	last := 0
	for {
		tok, err := p.next()
		if err != nil {
			return exprEnd{}, err
		}
		switch tok.kind {
		case tokLBrace, tokLParen, tokLBrack:
			depth++
		case tokRBrace, tokRParen, tokRBrack:
			depth--
			if depth < 0 {
				return exprEnd{}, fmt.Errorf("%w: unbalanced bracket at offset %d",
					domain.ErrMalformedManifest, tok.span.Start)
			}
		case tokSemi:
			if depth == 0 {
				return exprEnd{valueEnd: last, semiEnd: tok.span.End}, nil
			}
		case tokEOF:
			return exprEnd{}, fmt.Errorf("%w: unterminated expression", domain.ErrMalformedManifest)
		}
		last = tok.span.End
	}
}

func (p *parser) skipToSemi() error {
	_, err := p.skipExpr()
	return err
}

func attrName(tok token, out *string) error {
	switch tok.kind {
	case tokIdent, tokString:
		*out = tok.text
		return nil
	}
	return fmt.Errorf("%w: offset %d: expected attribute name", domain.ErrMalformedManifest,
		tok.span.Start)
}
