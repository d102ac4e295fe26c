package schema_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/internal/testschema"
	"github.com/gofhir/model/schema"
)

func elementNames(info *fm.TypeReflectionInfo) []string {
	names := make([]string, len(info.Elements))
	for i, e := range info.Elements {
		names[i] = e.Name
	}
	return names
}

func TestTable_ResolveMergesAncestorsFirst(t *testing.T) {
	table := testschema.R4()

	info, err := table.Resolve("Patient")
	if err != nil {
		t.Fatalf("Resolve(Patient) error = %v", err)
	}
	if info.BaseType != "DomainResource" || info.Abstract {
		t.Errorf("Resolve(Patient) base/abstract = %q/%v; want DomainResource/false", info.BaseType, info.Abstract)
	}

	want := []string{
		"id", "meta", "implicitRules", "language",
		"contained", "extension", "modifierExtension",
		"identifier", "active", "name", "gender", "birthDate", "deceased",
		"multipleBirth", "contact", "managingOrganization",
	}
	if diff := cmp.Diff(want, elementNames(info)); diff != "" {
		t.Errorf("Resolve(Patient) elements mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_ResolveOverridesInPlace(t *testing.T) {
	table := testschema.R4()
	table.MustAdd(fm.TypeReflectionInfo{
		Name:     "StrictPatient",
		BaseType: "Patient",
		Kind:     fm.KindResource,
		Elements: []fm.ElementInfo{
			testschema.Elem("name", 1, 1, "HumanName"),
			testschema.Elem("nickname", 0, 1, "string"),
		},
	})

	info, err := table.Resolve("StrictPatient")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	base, _ := table.Resolve("Patient")

	names := elementNames(info)
	baseNames := elementNames(base)
	if diff := cmp.Diff(append(baseNames, "nickname"), names); diff != "" {
		t.Errorf("element order mismatch (-want +got):\n%s", diff)
	}

	name, ok := info.Element("name")
	if !ok {
		t.Fatal("Element(name) not found")
	}
	if name.Min != 1 || name.Max != 1 {
		t.Errorf("name cardinality = %s; want 1..1", name.Cardinality())
	}
	if info.BaseType != "Patient" {
		t.Errorf("BaseType = %q; want Patient", info.BaseType)
	}
}

func TestTable_ResolveUnknown(t *testing.T) {
	info, err := testschema.R4().Resolve("NoSuchType")
	if info != nil || err != nil {
		t.Errorf("Resolve(NoSuchType) = %v, %v; want nil, nil", info, err)
	}
}

func TestTable_BrokenChains(t *testing.T) {
	tests := []struct {
		name   string
		types  []fm.TypeReflectionInfo
		lookup string
		reason string
	}{
		{
			name: "two-type cycle",
			types: []fm.TypeReflectionInfo{
				{Name: "A", BaseType: "B"},
				{Name: "B", BaseType: "A"},
			},
			lookup: "A",
			reason: "cyclic base type",
		},
		{
			name: "cycle above the requested type",
			types: []fm.TypeReflectionInfo{
				{Name: "Leaf", BaseType: "A"},
				{Name: "A", BaseType: "B"},
				{Name: "B", BaseType: "C"},
				{Name: "C", BaseType: "A"},
			},
			lookup: "Leaf",
			reason: "cyclic base type",
		},
		{
			name:   "missing base",
			types:  []fm.TypeReflectionInfo{{Name: "Orphan", BaseType: "Ghost"}},
			lookup: "Orphan",
			reason: "missing base type Ghost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := schema.NewTable(fm.R4).MustAdd(tt.types...)

			info, err := table.Resolve(tt.lookup)
			if info != nil {
				t.Errorf("Resolve(%s) info = %v; want nil", tt.lookup, info)
			}
			if !errors.Is(err, fm.ErrInvalidSchema) {
				t.Fatalf("Resolve(%s) error = %v; want ErrInvalidSchema", tt.lookup, err)
			}
			var se *fm.SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not *SchemaError", err)
			}
			if se.Reason != tt.reason {
				t.Errorf("Reason = %q; want %q", se.Reason, tt.reason)
			}
		})
	}
}

func TestTable_DepthBound(t *testing.T) {
	table := schema.NewTable(fm.R4)
	for i := 0; i < 10; i++ {
		table.MustAdd(fm.TypeReflectionInfo{Name: fmt.Sprintf("T%d", i), BaseType: fmt.Sprintf("T%d", i+1)})
	}
	table.MustAdd(fm.TypeReflectionInfo{Name: "T10"})

	if _, err := table.Resolve("T0"); err != nil {
		t.Fatalf("Resolve(T0) with default depth error = %v", err)
	}

	narrow := table.WithMaxDepth(5)
	if got := narrow.MaxDepth(); got != 5 {
		t.Errorf("MaxDepth() = %d; want 5", got)
	}
	if _, err := narrow.Resolve("T0"); !errors.Is(err, fm.ErrInvalidSchema) {
		t.Errorf("Resolve(T0) with depth 5 error = %v; want ErrInvalidSchema", err)
	}
	if _, err := narrow.Constraints("T0"); !errors.Is(err, fm.ErrInvalidSchema) {
		t.Errorf("Constraints(T0) with depth 5 error = %v; want ErrInvalidSchema", err)
	}
	if _, err := narrow.Resolve("T7"); err != nil {
		t.Errorf("Resolve(T7) with depth 5 error = %v; want nil", err)
	}
	if _, err := table.Resolve("T0"); err != nil {
		t.Errorf("table.Resolve(T0) after WithMaxDepth error = %v; want nil", err)
	}
	if got := table.WithMaxDepth(0).MaxDepth(); got != schema.DefaultMaxDepth {
		t.Errorf("WithMaxDepth(0).MaxDepth() = %d; want %d", got, schema.DefaultMaxDepth)
	}
}

func TestTable_AddRejectsInvalidRecords(t *testing.T) {
	table := schema.NewTable(fm.R4)

	tests := []struct {
		name string
		info fm.TypeReflectionInfo
	}{
		{"no name", fm.TypeReflectionInfo{}},
		{"self base", fm.TypeReflectionInfo{Name: "Self", BaseType: "Self"}},
		{"duplicate element", fm.TypeReflectionInfo{Name: "Dup", Elements: []fm.ElementInfo{
			testschema.Elem("a", 0, 1, "string"),
			testschema.Elem("a", 0, 1, "string"),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := table.Add(tt.info); !errors.Is(err, fm.ErrInvalidSchema) {
				t.Errorf("Add() error = %v; want ErrInvalidSchema", err)
			}
		})
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d; want 0", table.Len())
	}
}

func TestTable_DeclaredIsACopy(t *testing.T) {
	table := testschema.R4()
	d, ok := table.Declared("HumanName")
	if !ok {
		t.Fatal("Declared(HumanName) not found")
	}
	d.Elements[0].Name = "mutated"

	again, _ := table.Declared("HumanName")
	if again.Elements[0].Name != "use" {
		t.Errorf("Declared() leaked internal state: first element = %q", again.Elements[0].Name)
	}
}

func TestTable_IsSubtypeOf(t *testing.T) {
	table := testschema.R4()
	table.MustAdd(
		fm.TypeReflectionInfo{Name: "Loop1", BaseType: "Loop2"},
		fm.TypeReflectionInfo{Name: "Loop2", BaseType: "Loop1"},
	)

	tests := []struct {
		child, parent string
		want          bool
	}{
		{"Patient", "Patient", true},
		{"Patient", "DomainResource", true},
		{"Patient", "Resource", true},
		{"Patient", "Observation", false},
		{"Resource", "Patient", false},
		{"Patient.contact", "BackboneElement", true},
		{"Patient.contact", "Element", true},
		{"string", "Element", true},
		{"Unknown", "Resource", false},
		{"Loop1", "Resource", false},
		{"Loop1", "Loop2", true},
	}
	for _, tt := range tests {
		if got := table.IsSubtypeOf(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsSubtypeOf(%s, %s) = %v; want %v", tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestTable_ConstraintsIncludeAncestors(t *testing.T) {
	table := testschema.R4()
	table.AddConstraints("DomainResource", fm.ConstraintInfo{
		ID: "dom-2", Expression: "contained.contained.empty()", Severity: fm.SeverityError, Human: "no nested contained",
	})

	cs, err := table.Constraints("Patient")
	if err != nil {
		t.Fatalf("Constraints(Patient) error = %v", err)
	}
	var ids []string
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"dom-2", "pat-1"}, ids); diff != "" {
		t.Errorf("constraint ids mismatch (-want +got):\n%s", diff)
	}
	if cs[0].TypeName != "DomainResource" || cs[1].TypeName != "Patient" {
		t.Errorf("TypeName = %q, %q; want DomainResource, Patient", cs[0].TypeName, cs[1].TypeName)
	}
}

func TestTable_LookupURL(t *testing.T) {
	table := testschema.R4()
	name, ok := table.LookupURL("http://hl7.org/fhir/StructureDefinition/Patient|4.0.1")
	if !ok || name != "Patient" {
		t.Errorf("LookupURL() = %q, %v; want Patient, true", name, ok)
	}
}
