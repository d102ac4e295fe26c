package constraint

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDateTime
	tokExternal // %resource
	tokVariable // $this
	tokOperator
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLBrace
	tokRBrace
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

// twoCharOperators are matched before single characters.
var twoCharOperators = []string{"<=", ">=", "!=", "!~"}

const singleCharOperators = "=~<>+-*/|&"

// lex splits a FHIRPath expression into tokens.
func lex(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case strings.HasPrefix(expr[i:], "//"):
			for i < len(expr) && expr[i] != '\n' {
				i++
			}

		case strings.HasPrefix(expr[i:], "/*"):
			end := strings.Index(expr[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment at %d", i)
			}
			i += end + 4

		case c == '\'':
			s, n, err := quoted(expr[i:], '\'')
			if err != nil {
				return nil, fmt.Errorf("%w at %d", err, i)
			}
			toks = append(toks, token{tokString, s, i})
			i += n

		case c == '`':
			s, n, err := quoted(expr[i:], '`')
			if err != nil {
				return nil, fmt.Errorf("%w at %d", err, i)
			}
			toks = append(toks, token{tokIdent, s, i})
			i += n

		case c == '%':
			start := i
			i++
			switch {
			case i < len(expr) && (expr[i] == '\'' || expr[i] == '`'):
				s, n, err := quoted(expr[i:], expr[i])
				if err != nil {
					return nil, fmt.Errorf("%w at %d", err, i)
				}
				toks = append(toks, token{tokExternal, s, start})
				i += n
			default:
				n := identLen(expr[i:])
				if n == 0 {
					return nil, fmt.Errorf("expected name after %% at %d", start)
				}
				toks = append(toks, token{tokExternal, expr[i : i+n], start})
				i += n
			}

		case c == '$':
			n := identLen(expr[i+1:])
			if n == 0 {
				return nil, fmt.Errorf("expected name after $ at %d", i)
			}
			toks = append(toks, token{tokVariable, expr[i+1 : i+1+n], i})
			i += 1 + n

		case c == '@':
			start := i
			i++
			for i < len(expr) && strings.IndexByte("0123456789-:.TZ+", expr[i]) >= 0 {
				i++
			}
			toks = append(toks, token{tokDateTime, expr[start:i], start})

		case isDigit(c):
			start := i
			for i < len(expr) && isDigit(expr[i]) {
				i++
			}
			if i+1 < len(expr) && expr[i] == '.' && isDigit(expr[i+1]) {
				i++
				for i < len(expr) && isDigit(expr[i]) {
					i++
				}
			}
			toks = append(toks, token{tokNumber, expr[start:i], start})

		case isIdentStart(c):
			n := identLen(expr[i:])
			toks = append(toks, token{tokIdent, expr[i : i+n], i})
			i += n

		default:
			if tok, ok := punctuation(expr, i); ok {
				toks = append(toks, tok)
				i += len(tok.text)
				continue
			}
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(expr)}), nil
}

func punctuation(expr string, i int) (token, bool) {
	for _, op := range twoCharOperators {
		if strings.HasPrefix(expr[i:], op) {
			return token{tokOperator, op, i}, true
		}
	}
	kinds := map[byte]tokenKind{
		'.': tokDot, ',': tokComma,
		'(': tokLParen, ')': tokRParen,
		'[': tokLBracket, ']': tokRBracket,
		'{': tokLBrace, '}': tokRBrace,
	}
	c := expr[i]
	if k, ok := kinds[c]; ok {
		return token{k, string(c), i}, true
	}
	if strings.IndexByte(singleCharOperators, c) >= 0 {
		return token{tokOperator, string(c), i}, true
	}
	return token{}, false
}

// quoted reads a quoted literal starting at s[0] and returns its unescaped
// content and the number of bytes consumed.
func quoted(s string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated literal")
}

func identLen(s string) int {
	if s == "" || !isIdentStart(s[0]) {
		return 0
	}
	n := 1
	for n < len(s) && (isIdentStart(s[n]) || isDigit(s[n])) {
		n++
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
