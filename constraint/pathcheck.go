package constraint

import (
	"fmt"
	"strings"
	"unicode"

	fm "github.com/gofhir/model"
)

// Types is the slice of a provider the constraint package needs.
type Types interface {
	fm.TypeProvider
	IsSubtypeOf(child, parent string) bool
}

// PathError reports member navigation that cannot succeed on the types
// known to be in focus.
type PathError struct {
	Expression string
	Pos        int
	Types      []string
	Element    string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s has no element %q (at %d in %q)", strings.Join(e.Types, " | "), e.Element, e.Pos, e.Expression)
}

// binaryKeywords are word operators.
var binaryKeywords = map[string]bool{
	"and": true, "or": true, "xor": true, "implies": true,
	"in": true, "contains": true, "div": true, "mod": true,
}

// calendarUnits may follow a number to form a time-valued quantity.
var calendarUnits = map[string]bool{
	"year": true, "years": true, "month": true, "months": true, "week": true, "weeks": true,
	"day": true, "days": true, "hour": true, "hours": true, "minute": true, "minutes": true,
	"second": true, "seconds": true, "millisecond": true, "milliseconds": true,
}

// lambdaFunctions evaluate their argument once per input item, with the item
// as $this.
var lambdaFunctions = map[string]bool{
	"where": true, "select": true, "all": true, "exists": true, "repeat": true,
	"iif": true, "aggregate": true, "any": true,
}

// focusPreserving functions return a subset of their input.
var focusPreserving = map[string]bool{
	"where": true, "first": true, "last": true, "tail": true, "skip": true, "take": true,
	"single": true, "distinct": true, "trace": true, "exclude": true, "intersect": true,
}

// focus is the set of types an expression step may produce. A nil types
// slice means the types are unknown and navigation is not checked.
type focus struct {
	types []string
}

var unknownFocus = focus{}

func knownFocus(types ...string) focus {
	return focus{types: types}
}

func (f focus) known() bool {
	return len(f.types) > 0
}

func (f focus) union(o focus) focus {
	if !f.known() || !o.known() {
		return unknownFocus
	}
	return knownFocus(dedupe(append(append([]string(nil), f.types...), o.types...))...)
}

// CheckPaths parses expr and verifies every member navigation whose input
// types are known, starting from contextType. It returns a *PathError for
// impossible navigation and a plain error for syntax it cannot read.
// Navigation through unknown or abstract types is not checked.
func CheckPaths(expr, contextType string, types Types) error {
	toks, err := lex(expr)
	if err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}
	c := &checker{expr: expr, toks: toks, types: types, root: knownFocus(contextType)}
	if _, err := c.expression(c.root); err != nil {
		return err
	}
	if t := c.peek(); t.kind != tokEOF {
		return fmt.Errorf("syntax error: unexpected %s", t)
	}
	return nil
}

type checker struct {
	expr  string
	toks  []token
	pos   int
	types Types
	root  focus
}

func (c *checker) peek() token {
	return c.toks[c.pos]
}

func (c *checker) peekAt(n int) token {
	if c.pos+n < len(c.toks) {
		return c.toks[c.pos+n]
	}
	return c.toks[len(c.toks)-1]
}

func (c *checker) next() token {
	t := c.toks[c.pos]
	if t.kind != tokEOF {
		c.pos++
	}
	return t
}

func (c *checker) expect(kind tokenKind, what string) error {
	if t := c.next(); t.kind != kind {
		return fmt.Errorf("syntax error: expected %s, found %s", what, t)
	}
	return nil
}

// expression parses a sequence of terms joined by operators. Every term
// starts from input; only the union operator combines term types.
func (c *checker) expression(input focus) (focus, error) {
	f, err := c.unary(input)
	if err != nil {
		return unknownFocus, err
	}
	for {
		t := c.peek()
		switch {
		case t.kind == tokOperator || (t.kind == tokIdent && binaryKeywords[t.text]):
			c.next()
			rhs, err := c.unary(input)
			if err != nil {
				return unknownFocus, err
			}
			if t.text == "|" {
				f = f.union(rhs)
			} else {
				f = unknownFocus
			}

		case t.kind == tokIdent && (t.text == "is" || t.text == "as"):
			c.next()
			name, err := c.typeSpecifier()
			if err != nil {
				return unknownFocus, err
			}
			if t.text == "as" {
				f = knownFocus(name)
			} else {
				f = unknownFocus
			}

		default:
			return f, nil
		}
	}
}

func (c *checker) unary(input focus) (focus, error) {
	if t := c.peek(); t.kind == tokOperator && (t.text == "+" || t.text == "-") {
		c.next()
	}
	return c.term(input)
}

// term parses a primary followed by invocations and indexers.
func (c *checker) term(input focus) (focus, error) {
	f, err := c.primary(input)
	if err != nil {
		return unknownFocus, err
	}
	for {
		switch c.peek().kind {
		case tokDot:
			c.next()
			name := c.next()
			if name.kind != tokIdent {
				return unknownFocus, fmt.Errorf("syntax error: expected name after '.', found %s", name)
			}
			if c.peek().kind == tokLParen {
				f, err = c.function(f, name.text)
			} else {
				f, err = c.member(f, name)
			}
			if err != nil {
				return unknownFocus, err
			}

		case tokLBracket:
			c.next()
			if _, err := c.expression(c.root); err != nil {
				return unknownFocus, err
			}
			if err := c.expect(tokRBracket, "']'"); err != nil {
				return unknownFocus, err
			}

		default:
			return f, nil
		}
	}
}

func (c *checker) primary(input focus) (focus, error) {
	t := c.next()
	switch t.kind {
	case tokLParen:
		f, err := c.expression(input)
		if err != nil {
			return unknownFocus, err
		}
		return f, c.expect(tokRParen, "')'")

	case tokNumber:
		// quantity literals: 5 'mg', 4 days
		if n := c.peek(); n.kind == tokString || (n.kind == tokIdent && calendarUnits[n.text]) {
			c.next()
		}
		return unknownFocus, nil

	case tokString, tokDateTime:
		return unknownFocus, nil

	case tokLBrace:
		return unknownFocus, c.expect(tokRBrace, "'}'")

	case tokExternal:
		switch t.text {
		case "resource", "rootResource", "context":
			return c.root, nil
		}
		return unknownFocus, nil

	case tokVariable:
		if t.text == "this" {
			return input, nil
		}
		return unknownFocus, nil

	case tokIdent:
		if t.text == "true" || t.text == "false" {
			return unknownFocus, nil
		}
		if c.peek().kind == tokLParen {
			return c.function(input, t.text)
		}
		if isTypeName(t.text) {
			return c.typeFilter(input, t.text), nil
		}
		return c.member(input, t)
	}
	return unknownFocus, fmt.Errorf("syntax error: unexpected %s", t)
}

// typeFilter handles a leading type name such as "Patient" in
// "Patient.name": it keeps the focus when the name matches it, switches to
// the named type when it is known, and gives up otherwise.
func (c *checker) typeFilter(input focus, name string) focus {
	name = strings.TrimPrefix(name, "FHIR.")
	for _, t := range input.types {
		if t == name || c.types.IsSubtypeOf(t, name) {
			return input
		}
	}
	if info, err := c.types.TypeReflection(name); err == nil && info != nil {
		return knownFocus(name)
	}
	return unknownFocus
}

// typeSpecifier reads a possibly qualified type name.
func (c *checker) typeSpecifier() (string, error) {
	t := c.next()
	if t.kind != tokIdent {
		return "", fmt.Errorf("syntax error: expected type name, found %s", t)
	}
	name := t.text
	for c.peek().kind == tokDot && c.peekAt(1).kind == tokIdent {
		c.next()
		name += "." + c.next().text
	}
	if strings.HasPrefix(name, "System.") {
		return "", nil
	}
	return strings.TrimPrefix(name, "FHIR."), nil
}

// function parses an argument list and returns the function's result type.
func (c *checker) function(input focus, name string) (focus, error) {
	if err := c.expect(tokLParen, "'('"); err != nil {
		return unknownFocus, err
	}

	switch name {
	case "ofType", "as", "is":
		typ, err := c.typeSpecifier()
		if err != nil {
			return unknownFocus, err
		}
		if err := c.expect(tokRParen, "')'"); err != nil {
			return unknownFocus, err
		}
		if name == "is" || typ == "" {
			return unknownFocus, nil
		}
		return knownFocus(typ), nil
	}

	argInput := unknownFocus
	if lambdaFunctions[name] {
		argInput = input
	}
	var last focus
	if c.peek().kind != tokRParen {
		for {
			f, err := c.expression(argInput)
			if err != nil {
				return unknownFocus, err
			}
			last = f
			if c.peek().kind != tokComma {
				break
			}
			c.next()
		}
	}
	if err := c.expect(tokRParen, "')'"); err != nil {
		return unknownFocus, err
	}

	switch {
	case focusPreserving[name]:
		return input, nil
	case name == "select" || name == "repeat":
		return last, nil
	case name == "extension":
		return knownFocus("Extension"), nil
	}
	return unknownFocus, nil
}

// member navigates to name on every type in f.
func (c *checker) member(f focus, name token) (focus, error) {
	if !f.known() {
		return unknownFocus, nil
	}

	var out []string
	uncertain := false
	for _, typeName := range f.types {
		info, err := c.types.TypeReflection(typeName)
		if err != nil {
			return unknownFocus, fmt.Errorf("resolving %s: %w", typeName, err)
		}
		if info == nil {
			uncertain = true
			continue
		}
		if el, ok := info.Element(name.text); ok {
			if len(el.Types) == 0 {
				uncertain = true
			}
			out = append(out, el.Types...)
			continue
		}
		if _, typ, ok := info.ChoiceVariant(name.text); ok {
			out = append(out, typ)
			continue
		}
		// subtypes of abstract types may declare the element
		if info.Abstract {
			uncertain = true
		}
	}

	if uncertain {
		return unknownFocus, nil
	}
	if len(out) == 0 {
		return unknownFocus, &PathError{Expression: c.expr, Pos: name.pos, Types: f.types, Element: name.text}
	}
	return knownFocus(dedupe(out)...), nil
}

func isTypeName(s string) bool {
	return s != "" && unicode.IsUpper(rune(s[0]))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
