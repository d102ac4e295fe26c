package fhirmodel

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Extension is one entry of a primitive's extension list.
type Extension struct {
	URL string `json:"url" yaml:"url"`

	// Value is the boxed value[x]; empty for extensions that only nest
	// other extensions.
	Value BoxedValue `json:"value" yaml:"value"`

	// Extensions holds nested extensions.
	Extensions []Extension `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// PrimitiveExtension is the content of a primitive's "_name" sidecar: the
// element id and its extensions.
type PrimitiveExtension struct {
	ID         string      `json:"id,omitempty" yaml:"id,omitempty"`
	Extensions []Extension `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// Extension returns the first extension with url.
func (p *PrimitiveExtension) Extension(url string) (Extension, bool) {
	if p == nil {
		return Extension{}, false
	}
	for _, e := range p.Extensions {
		if e.URL == url {
			return e, true
		}
	}
	return Extension{}, false
}

// Clone returns a deep copy.
func (p *PrimitiveExtension) Clone() *PrimitiveExtension {
	if p == nil {
		return nil
	}
	return &PrimitiveExtension{ID: p.ID, Extensions: cloneExtensions(p.Extensions)}
}

func cloneExtensions(es []Extension) []Extension {
	if es == nil {
		return nil
	}
	out := make([]Extension, len(es))
	for i, e := range es {
		out[i] = Extension{URL: e.URL, Value: e.Value.clone(), Extensions: cloneExtensions(e.Extensions)}
	}
	return out
}

// ParsePrimitiveExtension reads a decoded "_name" sidecar entry. It returns
// nil when v is not an object or carries neither an id nor extensions.
func ParsePrimitiveExtension(v any) *PrimitiveExtension {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	pe := &PrimitiveExtension{Extensions: parseExtensions(m["extension"])}
	pe.ID, _ = m["id"].(string)
	if pe.ID == "" && len(pe.Extensions) == 0 {
		return nil
	}
	return pe
}

func parseExtensions(v any) []Extension {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []Extension
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := Extension{Extensions: parseExtensions(m["extension"])}
		e.URL, _ = m["url"].(string)
		for k, val := range m {
			if suffix, ok := strings.CutPrefix(k, "value"); ok && suffix != "" {
				e.Value = BoxJSON(val, extensionValueType(suffix))
				break
			}
		}
		out = append(out, e)
	}
	return out
}

// extensionValueType maps a value[x] suffix to its type name: "String" is
// the primitive "string", "CodeableConcept" stays as is.
func extensionValueType(suffix string) string {
	lower := strings.ToLower(suffix[:1]) + suffix[1:]
	if primitiveTypeNames[lower] {
		return lower
	}
	return suffix
}

var primitiveTypeNames = map[string]bool{
	"base64Binary": true, "boolean": true, "canonical": true, "code": true,
	"date": true, "dateTime": true, "decimal": true, "id": true,
	"instant": true, "integer": true, "integer64": true, "markdown": true,
	"oid": true, "positiveInt": true, "string": true, "time": true,
	"unsignedInt": true, "uri": true, "url": true, "uuid": true,
	"xhtml": true,
}

// BoxJSON boxes a value decoded from JSON with numbers kept as json.Number.
// Numbers become int64 for the integer types and decimal.Decimal for
// decimals; other numbers are kept as their literal text.
func BoxJSON(v any, typeName string) BoxedValue {
	num, ok := v.(json.Number)
	if !ok {
		return Box(v, typeName)
	}
	switch {
	case integerTypes[typeName], typeName == "System.Integer":
		if i, err := num.Int64(); err == nil {
			return Box(i, typeName)
		}
	case typeName == "decimal", typeName == "System.Decimal":
		if d, err := decimal.NewFromString(num.String()); err == nil {
			return Box(d, typeName)
		}
	}
	return Box(num.String(), typeName)
}
