package fhirmodel

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func TestParsePrimitiveExtension(t *testing.T) {
	var sidecar any
	if err := decodeJSON([]byte(`{
		"id": "n1",
		"extension": [
			{"url": "http://example.org/reason", "valueCodeableConcept": {"text": "masked"}},
			{"url": "http://example.org/rank", "valuePositiveInt": 2},
			{"url": "http://example.org/complex", "extension": [{"url": "part", "valueString": "a"}]},
			"junk"
		]
	}`), &sidecar); err != nil {
		t.Fatal(err)
	}

	pe := ParsePrimitiveExtension(sidecar)
	if pe == nil || pe.ID != "n1" || len(pe.Extensions) != 3 {
		t.Fatalf("ParsePrimitiveExtension() = %+v; want id n1 with 3 extensions", pe)
	}

	tests := []struct {
		url      string
		wantType string
		want     BoxedValue
	}{
		{"http://example.org/reason", "CodeableConcept", Box(map[string]any{"text": "masked"}, "CodeableConcept")},
		{"http://example.org/rank", "positiveInt", Box(int64(2), "positiveInt")},
		{"http://example.org/complex", "", BoxedValue{}},
	}
	for _, tt := range tests {
		e, ok := pe.Extension(tt.url)
		if !ok {
			t.Errorf("Extension(%q) not found", tt.url)
			continue
		}
		if e.Value.TypeName() != tt.wantType || !e.Value.Equal(tt.want) {
			t.Errorf("Extension(%q).Value = %v; want %v", tt.url, e.Value, tt.want)
		}
	}
	if e, _ := pe.Extension("http://example.org/complex"); len(e.Extensions) != 1 || !e.Extensions[0].Value.Equal(NewString("a")) {
		t.Errorf("nested extensions = %+v; want one string", e.Extensions)
	}
	if _, ok := pe.Extension("http://example.org/missing"); ok {
		t.Error("Extension(missing) found")
	}
}

func TestParsePrimitiveExtension_Empty(t *testing.T) {
	for _, v := range []any{nil, "x", map[string]any{}, map[string]any{"extension": []any{}}} {
		if got := ParsePrimitiveExtension(v); got != nil {
			t.Errorf("ParsePrimitiveExtension(%v) = %+v; want nil", v, got)
		}
	}
	var pe *PrimitiveExtension
	if _, ok := pe.Extension("x"); ok || pe.Clone() != nil {
		t.Error("nil PrimitiveExtension should have no extensions")
	}
}

func TestBoxJSON(t *testing.T) {
	tests := []struct {
		v        any
		typeName string
		want     any
	}{
		{json.Number("3"), "integer", int64(3)},
		{json.Number("3"), "System.Integer", int64(3)},
		{json.Number("1.50"), "decimal", decimal.RequireFromString("1.50")},
		{json.Number("1.5"), "integer", "1.5"},
		{"text", "string", "text"},
	}
	for _, tt := range tests {
		got := BoxJSON(tt.v, tt.typeName)
		if got.TypeName() != tt.typeName || !valuesEqual(got.Value(), tt.want) {
			t.Errorf("BoxJSON(%v, %s) = %v; want %v", tt.v, tt.typeName, got, tt.want)
		}
	}
}

func TestBoxedValue_PathAndExtension(t *testing.T) {
	ext := &PrimitiveExtension{ID: "g1", Extensions: []Extension{{URL: "http://example.org/x", Value: NewString("a")}}}
	b := NewString("Jane").WithPath("Patient.name[0].given[0]").WithPrimitiveExtension(ext)

	ext.ID = "changed"
	if got := b.PrimitiveExtension(); got.ID != "g1" {
		t.Errorf("PrimitiveExtension().ID = %q; want g1", got.ID)
	}
	b.PrimitiveExtension().Extensions[0].URL = "changed"
	if e, ok := b.PrimitiveExtension().Extension("http://example.org/x"); !ok || !e.Value.Equal(NewString("a")) {
		t.Errorf("extension was modified through a copy: %+v", b.PrimitiveExtension())
	}

	if !b.Equal(NewString("Jane")) {
		t.Error("Equal() should ignore path and extensions")
	}
	as, ok := Box("final", "code").WithPath("Observation.status").As("string", hierarchy{"code": "string"})
	if !ok || as.Path() != "Observation.status" {
		t.Errorf("As() = %v, %v; want path kept", as, ok)
	}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var fromJSON BoxedValue
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", data, err)
	}
	checkPathAndExtension(t, "json", fromJSON)

	out, err := yaml.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var fromYAML BoxedValue
	if err := yaml.Unmarshal(out, &fromYAML); err != nil {
		t.Fatalf("yaml.Unmarshal(%s) error = %v", out, err)
	}
	checkPathAndExtension(t, "yaml", fromYAML)
}

func checkPathAndExtension(t *testing.T, format string, b BoxedValue) {
	t.Helper()
	if b.Path() != "Patient.name[0].given[0]" || !b.Equal(NewString("Jane")) {
		t.Errorf("%s round trip = %v at %q", format, b, b.Path())
	}
	ext := b.PrimitiveExtension()
	if ext == nil || ext.ID != "g1" {
		t.Fatalf("%s round trip extension = %+v; want id g1", format, ext)
	}
	if e, ok := ext.Extension("http://example.org/x"); !ok || !e.Value.Equal(NewString("a")) {
		t.Errorf("%s round trip extension value = %+v", format, e)
	}
}
