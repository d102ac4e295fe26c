package fhirmodel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// TypeKind classifies a type the way StructureDefinition.kind does.
type TypeKind string

const (
	KindPrimitive TypeKind = "primitive-type"
	KindComplex   TypeKind = "complex-type"
	KindResource  TypeKind = "resource"
	KindLogical   TypeKind = "logical"
)

// TypeReflectionInfo describes the shape of a named type.
//
// Records returned by a provider are fresh copies; callers may modify them
// without affecting later lookups.
type TypeReflectionInfo struct {
	// Namespace is "FHIR" for FHIR types and "System" for FHIRPath system types
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// Name is unique within one FHIR version
	Name string `json:"name" yaml:"name"`

	// BaseType is the name of the parent type; empty at the root of a hierarchy
	BaseType string `json:"baseType,omitempty" yaml:"baseType,omitempty"`

	Kind     TypeKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Abstract bool     `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Elements are ordered. Names are unique within one record.
	Elements []ElementInfo `json:"elements,omitempty" yaml:"elements,omitempty"`
}

// QualifiedName returns Namespace.Name, or Name when no namespace is set.
func (t *TypeReflectionInfo) QualifiedName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Element returns the element with the given name. Choice elements match
// by their base name ("value" for value[x]).
func (t *TypeReflectionInfo) Element(name string) (*ElementInfo, bool) {
	name = strings.TrimSuffix(name, "[x]")
	for i := range t.Elements {
		if t.Elements[i].Name == name {
			return &t.Elements[i], true
		}
	}
	return nil, false
}

// ChoiceVariant matches an instance member name such as "valueQuantity"
// against the choice elements of t and returns the element and the type the
// suffix names. The suffix must name one of the element's allowed types.
func (t *TypeReflectionInfo) ChoiceVariant(key string) (*ElementInfo, string, bool) {
	for i := range t.Elements {
		el := &t.Elements[i]
		if !el.Choice || !strings.HasPrefix(key, el.Name) {
			continue
		}
		suffix := key[len(el.Name):]
		for _, typ := range el.Types {
			if ChoiceSuffix(typ) == suffix {
				return el, typ, true
			}
		}
	}
	return nil, "", false
}

// IsPrimitive reports whether the type is a FHIR primitive.
func (t *TypeReflectionInfo) IsPrimitive() bool {
	return t.Kind == KindPrimitive
}

// IsResource reports whether the type is a resource.
func (t *TypeReflectionInfo) IsResource() bool {
	return t.Kind == KindResource
}

// Clone returns a deep copy.
func (t *TypeReflectionInfo) Clone() *TypeReflectionInfo {
	if t == nil {
		return nil
	}
	c := *t
	if t.Elements != nil {
		c.Elements = make([]ElementInfo, len(t.Elements))
		for i := range t.Elements {
			c.Elements[i] = t.Elements[i].Clone()
		}
	}
	return &c
}

// ElementInfo describes one element of a type.
type ElementInfo struct {
	Name string `json:"name" yaml:"name"`

	// Types lists the allowed type names. More than one entry means the
	// element is polymorphic.
	Types []string `json:"types,omitempty" yaml:"types,omitempty"`

	Min int `json:"min" yaml:"min"`
	Max Max `json:"max" yaml:"max"`

	// Choice is set for value[x] style elements; instances carry the type
	// as a suffix of the element name (valueQuantity).
	Choice bool `json:"choice,omitempty" yaml:"choice,omitempty"`

	IsModifier bool `json:"isModifier,omitempty" yaml:"isModifier,omitempty"`
	IsSummary  bool `json:"isSummary,omitempty" yaml:"isSummary,omitempty"`

	Binding *BindingInfo `json:"binding,omitempty" yaml:"binding,omitempty"`
}

// IsRepeating reports whether more than one occurrence is allowed.
func (e *ElementInfo) IsRepeating() bool {
	return e.Max.IsUnbounded() || e.Max > 1
}

// IsRequired reports whether at least one occurrence is required.
func (e *ElementInfo) IsRequired() bool {
	return e.Min > 0
}

// IsPolymorphic reports whether the element allows more than one type.
func (e *ElementInfo) IsPolymorphic() bool {
	return e.Choice || len(e.Types) > 1
}

// AllowsType reports whether typeName is listed in Types.
func (e *ElementInfo) AllowsType(typeName string) bool {
	for _, t := range e.Types {
		if t == typeName {
			return true
		}
	}
	return false
}

// VariantName returns the instance member name for typeName, e.g.
// "valueQuantity" for value[x] and Quantity.
func (e *ElementInfo) VariantName(typeName string) string {
	return e.Name + ChoiceSuffix(typeName)
}

// ChoiceSuffix returns the member-name suffix used for typeName in a choice
// element: "string" -> "String", "CodeableConcept" -> "CodeableConcept".
// FHIRPath system types use their local name ("System.String" -> "String").
func ChoiceSuffix(typeName string) string {
	if i := strings.LastIndexAny(typeName, "./"); i >= 0 {
		typeName = typeName[i+1:]
	}
	if typeName == "" {
		return ""
	}
	r := []rune(typeName)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Cardinality renders the bounds as "min..max".
func (e *ElementInfo) Cardinality() string {
	return strconv.Itoa(e.Min) + ".." + e.Max.String()
}

// Clone returns a deep copy.
func (e ElementInfo) Clone() ElementInfo {
	if e.Types != nil {
		e.Types = append([]string(nil), e.Types...)
	}
	if e.Binding != nil {
		b := *e.Binding
		e.Binding = &b
	}
	return e
}

// BindingInfo references the value set an element is bound to.
type BindingInfo struct {
	Strength string `json:"strength,omitempty" yaml:"strength,omitempty"`
	ValueSet string `json:"valueSet,omitempty" yaml:"valueSet,omitempty"`
}

// Max is an upper cardinality bound. Unbounded renders as "*".
type Max int

// Unbounded is the "*" upper bound.
const Unbounded Max = -1

// ParseMax parses "*" or a non-negative integer.
func ParseMax(s string) (Max, error) {
	if s == "*" {
		return Unbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid max cardinality %q", s)
	}
	return Max(n), nil
}

// IsUnbounded reports whether m is "*".
func (m Max) IsUnbounded() bool {
	return m < 0
}

// Allows reports whether count occurrences fit under the bound.
func (m Max) Allows(count int) bool {
	return m.IsUnbounded() || count <= int(m)
}

func (m Max) String() string {
	if m.IsUnbounded() {
		return "*"
	}
	return strconv.Itoa(int(m))
}

// MarshalJSON encodes the bound as a string, matching ElementDefinition.max.
func (m Max) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "*", a quoted integer or a bare integer.
func (m *Max) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid max cardinality %s", data)
		}
		s = strconv.Itoa(n)
	}
	v, err := ParseMax(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalYAML encodes the bound as a string.
func (m Max) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML accepts "*" or an integer.
func (m *Max) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseMax(node.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
