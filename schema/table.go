package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	fm "github.com/gofhir/model"
)

// DefaultMaxDepth bounds base-chain walks. The deepest chain in the core
// specification (e.g. SimpleQuantity -> Quantity -> Element) is far below it.
const DefaultMaxDepth = 32

// Table is a version-fixed set of type definitions.
//
// Tables are filled by a loader and then handed to a provider. Reads and
// writes are synchronised, but providers assume the table no longer changes
// once they are built.
type Table struct {
	version fm.FHIRVersion

	mu          sync.RWMutex
	types       map[string]*fm.TypeReflectionInfo
	urls        map[string]string
	constraints map[string][]fm.ConstraintInfo
}

// NewTable creates an empty table for version.
func NewTable(version fm.FHIRVersion) *Table {
	return &Table{
		version:     version,
		types:       make(map[string]*fm.TypeReflectionInfo),
		urls:        make(map[string]string),
		constraints: make(map[string][]fm.ConstraintInfo),
	}
}

// Version returns the FHIR version of the table.
func (t *Table) Version() fm.FHIRVersion {
	return t.version
}

// Bounded is a read view of a Table with its own base-chain bound. Views
// share the table's types; each keeps its bound to itself.
type Bounded struct {
	t        *Table
	maxDepth int
}

// WithMaxDepth returns a view of t that rejects base chains longer than
// depth. depth <= 0 means DefaultMaxDepth.
func (t *Table) WithMaxDepth(depth int) Bounded {
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	return Bounded{t: t, maxDepth: depth}
}

// MaxDepth returns the view's bound.
func (b Bounded) MaxDepth() int {
	return b.maxDepth
}

// Add stores a declared type, replacing any earlier definition of the same
// name. Element names must be unique within the record.
func (t *Table) Add(info fm.TypeReflectionInfo) error {
	if info.Name == "" {
		return fmt.Errorf("%w: type without name", fm.ErrInvalidSchema)
	}
	if info.BaseType == info.Name {
		return &fm.SchemaError{Type: info.Name, Chain: []string{info.Name}, Reason: "type derives from itself"}
	}
	seen := make(map[string]bool, len(info.Elements))
	for _, e := range info.Elements {
		if e.Name == "" {
			return fmt.Errorf("%w: %s has an element without name", fm.ErrInvalidSchema, info.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: %s declares element %q twice", fm.ErrInvalidSchema, info.Name, e.Name)
		}
		seen[e.Name] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[info.Name] = info.Clone()
	return nil
}

// MustAdd is Add for statically known definitions; it panics on error.
func (t *Table) MustAdd(infos ...fm.TypeReflectionInfo) *Table {
	for _, info := range infos {
		if err := t.Add(info); err != nil {
			panic(err)
		}
	}
	return t
}

// AddURL maps a canonical URL to a type name.
func (t *Table) AddURL(url, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.urls[url] = name
}

// LookupURL returns the type registered for a canonical URL.
func (t *Table) LookupURL(url string) (string, bool) {
	url, _, _ = strings.Cut(url, "|")
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.urls[url]
	return name, ok
}

// AddConstraints attaches invariants to a type.
func (t *Table) AddConstraints(typeName string, cs ...fm.ConstraintInfo) {
	if len(cs) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range cs {
		if c.TypeName == "" {
			c.TypeName = typeName
		}
		t.constraints[typeName] = append(t.constraints[typeName], c)
	}
}

// Has reports whether name is declared.
func (t *Table) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.types[name]
	return ok
}

// Declared returns a copy of the record as declared, without inherited
// elements.
func (t *Table) Declared(name string) (*fm.TypeReflectionInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.types[name]
	return info.Clone(), ok
}

// DeclaredConstraints returns the invariants declared directly on name.
func (t *Table) DeclaredConstraints(name string) []fm.ConstraintInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]fm.ConstraintInfo(nil), t.constraints[name]...)
}

// Names returns all declared type names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of declared types.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.types)
}

// Chain returns name followed by its ancestors, nearest first, under
// DefaultMaxDepth.
func (t *Table) Chain(name string) ([]string, error) {
	return t.WithMaxDepth(DefaultMaxDepth).Chain(name)
}

// Chain returns name followed by its ancestors, nearest first. An unknown
// name yields (nil, nil). A repeated name, a missing base type or a chain
// longer than the depth bound yields a *fm.SchemaError.
func (b Bounded) Chain(name string) ([]string, error) {
	t := b.t
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.types[name]
	if !ok {
		return nil, nil
	}

	chain := []string{name}
	seen := map[string]bool{name: true}
	for info.BaseType != "" {
		base := info.BaseType
		if seen[base] {
			return nil, &fm.SchemaError{Type: name, Chain: append(chain, base), Reason: "cyclic base type"}
		}
		if len(chain) > b.maxDepth {
			return nil, &fm.SchemaError{Type: name, Chain: chain, Reason: fmt.Sprintf("base chain deeper than %d", b.maxDepth)}
		}
		next, ok := t.types[base]
		if !ok {
			return nil, &fm.SchemaError{Type: name, Chain: chain, Reason: fmt.Sprintf("missing base type %s", base)}
		}
		seen[base] = true
		chain = append(chain, base)
		info = next
	}
	return chain, nil
}

// Resolve is Bounded.Resolve under DefaultMaxDepth.
func (t *Table) Resolve(name string) (*fm.TypeReflectionInfo, error) {
	return t.WithMaxDepth(DefaultMaxDepth).Resolve(name)
}

// Resolve returns the effective shape of name: the declared record with the
// elements of every ancestor merged in. Ancestor elements come first in
// declaration order; an element redeclared by a descendant replaces the
// ancestor's in place, and new elements are appended. BaseType, Kind and
// Abstract are those of name itself.
func (b Bounded) Resolve(name string) (*fm.TypeReflectionInfo, error) {
	chain, err := b.Chain(name)
	if err != nil || chain == nil {
		return nil, err
	}
	t := b.t

	t.mu.RLock()
	defer t.mu.RUnlock()

	var merged []fm.ElementInfo
	index := make(map[string]int)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, e := range t.types[chain[i]].Elements {
			if pos, ok := index[e.Name]; ok {
				merged[pos] = e.Clone()
				continue
			}
			index[e.Name] = len(merged)
			merged = append(merged, e.Clone())
		}
	}

	out := t.types[name].Clone()
	out.Elements = merged
	return out, nil
}

// TypeReflection is Resolve under the provider method name, so a Table can
// serve directly where an uncached fm.TypeProvider is enough.
func (t *Table) TypeReflection(name string) (*fm.TypeReflectionInfo, error) {
	return t.Resolve(name)
}

// Constraints is Bounded.Constraints under DefaultMaxDepth.
func (t *Table) Constraints(name string) ([]fm.ConstraintInfo, error) {
	return t.WithMaxDepth(DefaultMaxDepth).Constraints(name)
}

// Constraints returns the invariants of name and its ancestors, ancestors
// first.
func (b Bounded) Constraints(name string) ([]fm.ConstraintInfo, error) {
	chain, err := b.Chain(name)
	if err != nil || chain == nil {
		return nil, err
	}
	t := b.t

	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []fm.ConstraintInfo
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, t.constraints[chain[i]]...)
	}
	return out, nil
}

// IsSubtypeOf is Bounded.IsSubtypeOf under DefaultMaxDepth.
func (t *Table) IsSubtypeOf(child, parent string) bool {
	return t.WithMaxDepth(DefaultMaxDepth).IsSubtypeOf(child, parent)
}

// IsSubtypeOf reports whether child is parent or derives from it. Broken
// chains are followed as far as they go.
func (b Bounded) IsSubtypeOf(child, parent string) bool {
	t := b.t
	if child == parent {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := map[string]bool{child: true}
	info, ok := t.types[child]
	for depth := 0; ok && info.BaseType != "" && depth <= b.maxDepth; depth++ {
		if info.BaseType == parent {
			return true
		}
		if seen[info.BaseType] {
			return false
		}
		seen[info.BaseType] = true
		info, ok = t.types[info.BaseType]
	}
	return false
}
