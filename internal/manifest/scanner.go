package manifest

import (
	"fmt"
	"strings"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

// Span is a half-open byte range into the manifest source.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokSemi
	tokEq
	tokDot
	tokIdent
	tokString
	tokOther
)

type token struct {
	kind tokenKind
	span Span
	// text is the decoded payload for strings and the literal text
	// for identifiers.
	text string
}

// scanner tokenizes Nix source just deeply enough to recover the
// binding structure of an attribute set. Comments and whitespace are
// skipped; anything it does not understand becomes an opaque token so
// unrelated expressions pass through untouched.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

func (s *scanner) errf(format string, args ...any) error {
	return fmt.Errorf("%w: offset %d: %s", domain.ErrMalformedManifest, s.pos,
		fmt.Sprintf(format, args...))
}

func (s *scanner) next() (token, error) {
	if err := s.skipTrivia(); err != nil {
		return token{}, err
	}
	start := s.pos
	if s.pos >= len(s.src) {
		return token{kind: tokEOF, span: Span{start, start}}, nil
	}
	c := s.src[s.pos]
	switch c {
	case '{':
		s.pos++
		return token{kind: tokLBrace, span: Span{start, s.pos}}, nil
	case '}':
		s.pos++
		return token{kind: tokRBrace, span: Span{start, s.pos}}, nil
	case '(':
		s.pos++
		return token{kind: tokLParen, span: Span{start, s.pos}}, nil
	case ')':
		s.pos++
		return token{kind: tokRParen, span: Span{start, s.pos}}, nil
	case '[':
		s.pos++
		return token{kind: tokLBrack, span: Span{start, s.pos}}, nil
	case ']':
		s.pos++
		return token{kind: tokRBrack, span: Span{start, s.pos}}, nil
	case ';':
		s.pos++
		return token{kind: tokSemi, span: Span{start, s.pos}}, nil
	case '=':
		// Distinguish "=" from "==".
		if s.pos+1 < len(s.src) && s.src[s.pos+1] == '=' {
			s.pos += 2
			return token{kind: tokOther, span: Span{start, s.pos}}, nil
		}
		s.pos++
		return token{kind: tokEq, span: Span{start, s.pos}}, nil
	case '.':
		s.pos++
		return token{kind: tokDot, span: Span{start, s.pos}}, nil
	case '"':
		return s.scanString()
	case '\'':
		if s.pos+1 < len(s.src) && s.src[s.pos+1] == '\'' {
			return s.scanIndentString()
		}
	}
	if isIdentStart(c) {
		for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
			s.pos++
		}
		return token{kind: tokIdent, span: Span{start, s.pos}, text: s.src[start:s.pos]}, nil
	}
	s.pos++
	return token{kind: tokOther, span: Span{start, s.pos}}, nil
}

func (s *scanner) skipTrivia() error {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '#':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				return s.errf("unterminated block comment")
			}
			s.pos += 2 + end + 2
		default:
			return nil
		}
	}
	return nil
}

func (s *scanner) scanString() (token, error) {
	start := s.pos
	s.pos++ // opening quote
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '"':
			s.pos++
			return token{kind: tokString, span: Span{start, s.pos}, text: b.String()}, nil
		case '\\':
			if s.pos+1 >= len(s.src) {
				return token{}, s.errf("unterminated string escape")
			}
			s.pos++
			switch s.src[s.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s.src[s.pos])
			}
			s.pos++
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return token{}, s.errf("unterminated string")
}

// scanIndentString consumes a ''...'' string. The payload is kept raw,
// these never hold flake references this tool edits.
func (s *scanner) scanIndentString() (token, error) {
	start := s.pos
	s.pos += 2
	for s.pos+1 < len(s.src) {
		if s.src[s.pos] == '\'' && s.src[s.pos+1] == '\'' {
			// ''' escapes a quote pair inside the string
			if s.pos+2 < len(s.src) && s.src[s.pos+2] == '\'' {
				s.pos += 3
				continue
			}
			s.pos += 2
			return token{
				kind: tokString,
				span: Span{start, s.pos},
				text: s.src[start+2 : s.pos-2],
			}, nil
		}
		s.pos++
	}
	return token{}, s.errf("unterminated indented string")
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '-' || c == '\''
}
