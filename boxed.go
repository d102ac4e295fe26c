package fhirmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TypeHierarchy answers subtype questions for BoxedValue type tests.
type TypeHierarchy interface {
	IsSubtypeOf(child, parent string) bool
}

// BoxedValue pairs a value with its declared FHIR type name.
//
// The value is copied on construction and on access, so a BoxedValue never
// shares mutable state with its creator or its readers. A box may also carry
// the instance path it was read from and the primitive's id and extensions;
// neither takes part in Equal.
type BoxedValue struct {
	value    any
	typeName string
	path     string
	ext      *PrimitiveExtension
}

// Box wraps value with typeName. Maps and slices are deep-copied.
func Box(value any, typeName string) BoxedValue {
	return BoxedValue{value: deepCopy(value), typeName: typeName}
}

// NewString boxes a FHIR string.
func NewString(s string) BoxedValue {
	return BoxedValue{value: s, typeName: "string"}
}

// NewBoolean boxes a FHIR boolean.
func NewBoolean(b bool) BoxedValue {
	return BoxedValue{value: b, typeName: "boolean"}
}

// NewInteger boxes a FHIR integer.
func NewInteger(n int64) BoxedValue {
	return BoxedValue{value: n, typeName: "integer"}
}

// NewDecimal boxes a FHIR decimal.
func NewDecimal(d decimal.Decimal) BoxedValue {
	return BoxedValue{value: d, typeName: "decimal"}
}

// Value returns a copy of the wrapped value.
func (b BoxedValue) Value() any {
	return deepCopy(b.value)
}

// TypeName returns the declared type name.
func (b BoxedValue) TypeName() string {
	return b.typeName
}

// Path returns the instance path the value was read from, such as
// "Patient.name[0].given[1]", or "" when unknown.
func (b BoxedValue) Path() string {
	return b.path
}

// WithPath returns a copy of b located at path.
func (b BoxedValue) WithPath(path string) BoxedValue {
	c := b.clone()
	c.path = path
	return c
}

// PrimitiveExtension returns a copy of the primitive's id and extensions,
// or nil when it has none.
func (b BoxedValue) PrimitiveExtension() *PrimitiveExtension {
	return b.ext.Clone()
}

// WithPrimitiveExtension returns a copy of b carrying ext.
func (b BoxedValue) WithPrimitiveExtension(ext *PrimitiveExtension) BoxedValue {
	c := b.clone()
	c.ext = ext.Clone()
	return c
}

func (b BoxedValue) clone() BoxedValue {
	return BoxedValue{value: deepCopy(b.value), typeName: b.typeName, path: b.path, ext: b.ext.Clone()}
}

// IsEmpty reports whether the box holds no value. A primitive that only
// carries extensions is empty.
func (b BoxedValue) IsEmpty() bool {
	return b.value == nil
}

// Is reports whether the declared type is typeName or a subtype of it.
// A nil hierarchy limits the test to exact matches.
func (b BoxedValue) Is(typeName string, h TypeHierarchy) bool {
	typeName = strings.TrimPrefix(typeName, "FHIR.")
	if b.typeName == typeName {
		return true
	}
	return h != nil && h.IsSubtypeOf(b.typeName, typeName)
}

// As re-tags the value with typeName when Is(typeName) holds.
func (b BoxedValue) As(typeName string, h TypeHierarchy) (BoxedValue, bool) {
	if !b.Is(typeName, h) {
		return BoxedValue{}, false
	}
	c := b.clone()
	c.typeName = strings.TrimPrefix(typeName, "FHIR.")
	return c, true
}

// Equal compares declared types and values. Numbers compare by value, so
// decimal 1.0 equals decimal 1.00.
func (b BoxedValue) Equal(o BoxedValue) bool {
	if b.typeName != o.typeName {
		return false
	}
	return valuesEqual(b.value, o.value)
}

func (b BoxedValue) String() string {
	return fmt.Sprintf("%v (%s)", b.value, b.typeName)
}

func valuesEqual(a, b any) bool {
	if da, ok := toDecimal(a); ok {
		db, ok := toDecimal(b)
		return ok && da.Equal(db)
	}
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !valuesEqual(va, vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !valuesEqual(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case *big.Int:
		return decimal.NewFromBigInt(n, 0), true
	}
	return decimal.Decimal{}, false
}

// integerTypes are decoded into int64.
var integerTypes = map[string]bool{
	"integer":     true,
	"positiveInt": true,
	"unsignedInt": true,
	"integer64":   true,
}

type boxedJSON struct {
	Type      string              `json:"type"`
	Value     json.RawMessage     `json:"value,omitempty"`
	Path      string              `json:"path,omitempty"`
	Extension *PrimitiveExtension `json:"primitiveExtension,omitempty"`
}

// MarshalJSON encodes {"type": ..., "value": ...}.
func (b BoxedValue) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if b.value != nil {
		data, err := json.Marshal(b.value)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(boxedJSON{Type: b.typeName, Value: raw, Path: b.path, Extension: b.ext})
}

// UnmarshalJSON restores the Go representation that the constructors use
// for the declared type.
func (b *BoxedValue) UnmarshalJSON(data []byte) error {
	var aux boxedJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.typeName = aux.Type
	b.path = aux.Path
	b.ext = aux.Extension
	b.value = nil
	if len(aux.Value) == 0 || string(aux.Value) == "null" {
		return nil
	}

	switch {
	case aux.Type == "decimal":
		var d decimal.Decimal
		if err := json.Unmarshal(aux.Value, &d); err != nil {
			return fmt.Errorf("decimal value: %w", err)
		}
		b.value = d
	case integerTypes[aux.Type]:
		var n int64
		if err := json.Unmarshal(aux.Value, &n); err != nil {
			return fmt.Errorf("%s value: %w", aux.Type, err)
		}
		b.value = n
	default:
		dec := json.NewDecoder(bytes.NewReader(aux.Value))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		b.value = v
	}
	return nil
}

type boxedYAML struct {
	Type      string              `yaml:"type"`
	Value     any                 `yaml:"value,omitempty"`
	Path      string              `yaml:"path,omitempty"`
	Extension *PrimitiveExtension `yaml:"primitiveExtension,omitempty"`
}

// MarshalYAML encodes decimals as strings to keep their precision.
func (b BoxedValue) MarshalYAML() (any, error) {
	v := b.value
	switch n := v.(type) {
	case decimal.Decimal:
		v = n.String()
	case json.Number:
		v = n.String()
	}
	return boxedYAML{Type: b.typeName, Value: v, Path: b.path, Extension: b.ext}, nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (b *BoxedValue) UnmarshalYAML(node *yaml.Node) error {
	var aux struct {
		Type      string              `yaml:"type"`
		Value     yaml.Node           `yaml:"value"`
		Path      string              `yaml:"path"`
		Extension *PrimitiveExtension `yaml:"primitiveExtension"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	b.typeName = aux.Type
	b.path = aux.Path
	b.ext = aux.Extension
	b.value = nil
	if aux.Value.Kind == 0 {
		return nil
	}

	switch {
	case aux.Type == "decimal":
		d, err := decimal.NewFromString(aux.Value.Value)
		if err != nil {
			return fmt.Errorf("decimal value: %w", err)
		}
		b.value = d
	case integerTypes[aux.Type]:
		n, err := strconv.ParseInt(aux.Value.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s value: %w", aux.Type, err)
		}
		b.value = n
	default:
		var v any
		if err := aux.Value.Decode(&v); err != nil {
			return err
		}
		b.value = v
	}
	return nil
}
