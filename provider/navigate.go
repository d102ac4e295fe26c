package provider

import (
	"fmt"
	"strings"

	fm "github.com/gofhir/model"
)

// node is a value reached during navigation together with its declared
// type, its instance path and its "_name" sidecar entry, if any.
type node struct {
	value   any
	typ     string
	path    string
	sidecar any
}

// Navigate returns the values at a dotted element path of res, boxed with
// their declared types. The path may start with the resource type. Choice
// elements may be named by their base ("deceased") or by a variant
// ("deceasedBoolean"). Arrays are flattened; missing values are skipped.
//
// Each box carries its instance path ("Patient.name[0].given[1]"). Primitive
// values carry the id and extensions of the matching "_name" entry; a
// primitive present only in its "_name" entry is returned as an empty box.
//
// A path segment that names no element of the current type is an error.
func (p *Provider) Navigate(res *fm.Resource, path string) ([]fm.BoxedValue, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil resource", fm.ErrMalformedInput)
	}
	segments := strings.Split(path, ".")
	if segments[0] == res.ResourceType {
		segments = segments[1:]
	}

	current := []node{{value: res.Data(), typ: res.ResourceType, path: res.ResourceType}}
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("empty segment in path %q", path)
		}
		var next []node
		for _, n := range current {
			children, err := p.step(n, seg)
			if err != nil {
				return nil, fmt.Errorf("navigate %q: %w", path, err)
			}
			next = append(next, children...)
		}
		current = next
	}

	out := make([]fm.BoxedValue, 0, len(current))
	for _, n := range current {
		out = append(out, box(n))
	}
	return out, nil
}

// step resolves one path segment against n.
func (p *Provider) step(n node, seg string) ([]node, error) {
	m, ok := n.value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot navigate into %s value with %q", n.typ, seg)
	}
	typ := n.typ
	if rt, ok := m["resourceType"].(string); ok && rt != "" && p.IsSubtypeOf(rt, typ) {
		typ = rt
	}
	info, err := p.TypeReflection(typ)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("unknown type %q", typ)
	}

	if el, ok := info.Element(seg); ok {
		if !el.Choice {
			return member(m, n.path, el.Name, firstType(el.Types)), nil
		}
		var out []node
		for _, t := range el.Types {
			out = append(out, member(m, n.path, el.VariantName(t), t)...)
		}
		return out, nil
	}
	if el, t, ok := info.ChoiceVariant(seg); ok {
		return member(m, n.path, el.VariantName(t), t), nil
	}
	return nil, fmt.Errorf("type %s has no element %q", typ, seg)
}

// member flattens the JSON member key of m, and its "_key" sidecar, into
// nodes of type typ.
func member(m map[string]any, parent, key, typ string) []node {
	v, sidecar := m[key], m["_"+key]
	path := parent + "." + key

	list, isList := v.([]any)
	sideList, sideIsList := sidecar.([]any)
	if !isList && !sideIsList {
		if v == nil && sidecar == nil {
			return nil
		}
		return []node{{value: v, typ: typ, path: path, sidecar: sidecar}}
	}

	count := max(len(list), len(sideList))
	out := make([]node, 0, count)
	for i := range count {
		var item, side any
		if i < len(list) {
			item = list[i]
		}
		if i < len(sideList) {
			side = sideList[i]
		}
		if item == nil && side == nil {
			continue
		}
		out = append(out, node{value: item, typ: typ, path: fmt.Sprintf("%s[%d]", path, i), sidecar: side})
	}
	return out
}

func firstType(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// box converts n into a BoxedValue, decoding numbers by n's declared type.
func box(n node) fm.BoxedValue {
	b := fm.BoxJSON(n.value, n.typ).WithPath(n.path)
	if ext := fm.ParsePrimitiveExtension(n.sidecar); ext != nil {
		b = b.WithPrimitiveExtension(ext)
	}
	return b
}
