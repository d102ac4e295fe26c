package loader

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/schema"
)

const elementSD = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/Element",
	"name": "Element", "type": "Element", "kind": "complex-type", "abstract": true,
	"fhirVersion": "%s",
	"snapshot": {"element": [
		{"id": "Element", "path": "Element", "min": 0, "max": "*",
		 "constraint": [{"key": "ele-1", "severity": "error", "human": "All FHIR elements must have a @value or children",
		                 "expression": "hasValue() or (children().count() > id.count())",
		                 "source": "http://hl7.org/fhir/StructureDefinition/Element"}]},
		{"id": "Element.id", "path": "Element.id", "min": 0, "max": "1",
		 "type": [{"code": "http://hl7.org/fhirpath/System.String"}]},
		{"id": "Element.extension", "path": "Element.extension", "min": 0, "max": "*", "type": [{"code": "Extension"}]}
	]}
}`

const booleanSD = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/boolean",
	"name": "boolean", "type": "boolean", "kind": "primitive-type",
	"baseDefinition": "http://hl7.org/fhir/StructureDefinition/Element",
	"snapshot": {"element": [
		{"id": "boolean", "path": "boolean", "min": 0, "max": "*"},
		{"id": "boolean.id", "path": "boolean.id", "min": 0, "max": "1", "type": [{"code": "http://hl7.org/fhirpath/System.String"}]},
		{"id": "boolean.value", "path": "boolean.value", "min": 0, "max": "1", "type": [{"code": "http://hl7.org/fhirpath/System.Boolean"}]}
	]}
}`

const questionnaireSD = `{
	"resourceType": "StructureDefinition",
	"url": "http://hl7.org/fhir/StructureDefinition/Questionnaire",
	"name": "Questionnaire", "type": "Questionnaire", "kind": "resource",
	"baseDefinition": "http://hl7.org/fhir/StructureDefinition/DomainResource",
	"snapshot": {"element": [
		{"id": "Questionnaire", "path": "Questionnaire", "min": 0, "max": "*",
		 "constraint": [
			{"key": "dom-2", "severity": "error", "human": "no nested contained", "expression": "contained.contained.empty()",
			 "source": "http://hl7.org/fhir/StructureDefinition/DomainResource"},
			{"key": "que-2", "severity": "error", "human": "linkIds unique", "expression": "descendants().linkId.isDistinct()",
			 "source": "http://hl7.org/fhir/StructureDefinition/Questionnaire"}
		 ]},
		{"id": "Questionnaire.status", "path": "Questionnaire.status", "min": 1, "max": "1", "isModifier": true, "isSummary": true,
		 "type": [{"code": "code"}], "binding": {"strength": "required", "valueSet": "http://hl7.org/fhir/ValueSet/publication-status|4.0.1"}},
		{"id": "Questionnaire.item", "path": "Questionnaire.item", "min": 0, "max": "*", "type": [{"code": "BackboneElement"}],
		 "constraint": [{"key": "que-1", "severity": "error", "human": "Group items must have nested items",
		                 "expression": "(type='group' implies item.empty().not())",
		                 "source": "http://hl7.org/fhir/StructureDefinition/Questionnaire"}]},
		{"id": "Questionnaire.item.linkId", "path": "Questionnaire.item.linkId", "min": 1, "max": "1", "type": [{"code": "string"}]},
		{"id": "Questionnaire.item.answer[x]", "path": "Questionnaire.item.answer[x]", "min": 0, "max": "1",
		 "type": [{"code": "boolean"}, {"code": "Coding"}]},
		{"id": "Questionnaire.item.item", "path": "Questionnaire.item.item", "min": 0, "max": "*",
		 "contentReference": "#Questionnaire.item"},
		{"id": "Questionnaire.item:group", "path": "Questionnaire.item", "sliceName": "group", "min": 0, "max": "*",
		 "type": [{"code": "BackboneElement"}]},
		{"id": "Questionnaire.item:group.linkId", "path": "Questionnaire.item.linkId", "min": 1, "max": "1", "type": [{"code": "string"}]}
	]}
}`

const profileSD = `{
	"resourceType": "StructureDefinition",
	"url": "http://example.org/StructureDefinition/strict-questionnaire",
	"name": "StrictQuestionnaire", "type": "Questionnaire", "kind": "resource", "derivation": "constraint",
	"baseDefinition": "http://hl7.org/fhir/StructureDefinition/Questionnaire",
	"differential": {"element": [
		{"id": "Questionnaire", "path": "Questionnaire",
		 "constraint": [{"key": "sq-1", "severity": "warning", "human": "title", "expression": "title.exists()"}]},
		{"id": "Questionnaire.status", "path": "Questionnaire.status", "min": 1, "max": "1", "type": [{"code": "code"}]}
	]}
}`

func sd(template, version string) string {
	return strings.Replace(template, "%s", version, 1)
}

func newLoader(v fm.FHIRVersion) *Loader {
	return New(schema.NewTable(v), nil)
}

func TestLoadJSON_BaseDefinitions(t *testing.T) {
	for _, v := range []fm.FHIRVersion{fm.R4, fm.R5} {
		t.Run(string(v), func(t *testing.T) {
			l := newLoader(v)
			for _, data := range []string{sd(elementSD, v.FullVersion()), booleanSD, questionnaireSD} {
				if _, err := l.LoadJSON([]byte(data)); err != nil {
					t.Fatalf("LoadJSON() error = %v", err)
				}
			}
			table := l.Table()

			el, ok := table.Declared("Element")
			if !ok {
				t.Fatal("Element not loaded")
			}
			if !el.Abstract || el.Kind != fm.KindComplex || el.BaseType != "" {
				t.Errorf("Element = %+v", el)
			}
			if got := el.Elements[0].Types; !cmp.Equal(got, []string{"string"}) {
				t.Errorf("Element.id types = %v; want [string]", got)
			}
			if cs := table.DeclaredConstraints("Element"); len(cs) != 1 || cs[0].ID != "ele-1" {
				t.Errorf("Element constraints = %+v", cs)
			}

			b, _ := table.Declared("boolean")
			if len(b.Elements) != 1 || b.Elements[0].Name != "id" {
				t.Errorf("boolean elements = %+v; want only id", b.Elements)
			}

			q, _ := table.Declared("Questionnaire")
			if q.BaseType != "DomainResource" {
				t.Errorf("Questionnaire base = %q", q.BaseType)
			}
			status, _ := q.Element("status")
			if status.Min != 1 || !status.IsModifier || status.Binding == nil || status.Binding.Strength != "required" {
				t.Errorf("status = %+v", status)
			}

			item, ok := table.Declared("Questionnaire.item")
			if !ok {
				t.Fatal("Questionnaire.item not recorded")
			}
			if item.BaseType != "BackboneElement" {
				t.Errorf("item base = %q", item.BaseType)
			}
			var names []string
			for _, e := range item.Elements {
				names = append(names, e.Name)
			}
			if diff := cmp.Diff([]string{"linkId", "answer", "item"}, names); diff != "" {
				t.Errorf("item elements mismatch (-want +got):\n%s", diff)
			}
			answer, _ := item.Element("answer")
			if !answer.Choice || !cmp.Equal(answer.Types, []string{"boolean", "Coding"}) {
				t.Errorf("answer = %+v", answer)
			}
			nested, _ := item.Element("item")
			if !cmp.Equal(nested.Types, []string{"Questionnaire.item"}) || !nested.Max.IsUnbounded() {
				t.Errorf("nested item = %+v", nested)
			}

			var ids []string
			for _, c := range table.DeclaredConstraints("Questionnaire") {
				ids = append(ids, c.ID)
			}
			if diff := cmp.Diff([]string{"que-2"}, ids); diff != "" {
				t.Errorf("Questionnaire constraints mismatch (-want +got):\n%s", diff)
			}
			if cs := table.DeclaredConstraints("Questionnaire.item"); len(cs) != 1 || cs[0].ID != "que-1" {
				t.Errorf("item constraints = %+v", cs)
			}

			if name, ok := table.LookupURL("http://hl7.org/fhir/StructureDefinition/Questionnaire|4.0.1"); !ok || name != "Questionnaire" {
				t.Errorf("LookupURL() = %q, %v", name, ok)
			}
			if l.Count() != 3 {
				t.Errorf("Count() = %d; want 3", l.Count())
			}
		})
	}
}

func TestLoadJSON_Profile(t *testing.T) {
	l := newLoader(fm.R4)
	bundle := `{"resourceType": "Bundle", "entry": [
		{"resource": ` + profileSD + `},
		{"resource": {"resourceType": "ValueSet", "id": "x"}},
		{"resource": ` + questionnaireSD + `}
	]}`
	n, err := l.LoadJSON([]byte(bundle))
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadJSON() = %d; want 2", n)
	}

	p, ok := l.Table().Declared("StrictQuestionnaire")
	if !ok {
		t.Fatal("profile not recorded under its name")
	}
	if p.BaseType != "Questionnaire" {
		t.Errorf("profile base = %q; want Questionnaire", p.BaseType)
	}
	if cs := l.Table().DeclaredConstraints("StrictQuestionnaire"); len(cs) != 1 || cs[0].Severity != fm.SeverityWarning {
		t.Errorf("profile constraints = %+v", cs)
	}
	if _, ok := l.Table().Declared("Questionnaire"); !ok {
		t.Error("base not recorded")
	}
}

func TestLoadJSON_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		target error
	}{
		{"not json", `{`, fm.ErrMalformedInput},
		{"unsupported", `{"resourceType": "Patient"}`, fm.ErrMalformedInput},
		{"version mismatch", sd(elementSD, "4.0.1"), fm.ErrVersionMismatch},
		{"no elements", `{"resourceType": "StructureDefinition", "url": "x", "name": "X", "type": "X"}`, fm.ErrInvalidSchema},
		{"bad max", `{"resourceType": "StructureDefinition", "url": "http://hl7.org/fhir/StructureDefinition/X", "name": "X", "type": "X",
			"snapshot": {"element": [{"path": "X"}, {"path": "X.a", "max": "lots", "type": [{"code": "string"}]}]}}`, fm.ErrInvalidSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(fm.R5).LoadJSON([]byte(tt.data))
			if !errors.Is(err, tt.target) {
				t.Errorf("LoadJSON() error = %v; want %v", err, tt.target)
			}
		})
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"core/StructureDefinition-Element.json":       {Data: []byte(sd(elementSD, "4.0.1"))},
		"core/StructureDefinition-boolean.json":       {Data: []byte(booleanSD)},
		"core/StructureDefinition-Questionnaire.json": {Data: []byte(questionnaireSD)},
		"ig/StructureDefinition-strict.json":          {Data: []byte(profileSD)},
		"ig/ValueSet-x.json":                          {Data: []byte(`{"resourceType": "ValueSet"}`)},
		"ig/broken.json":                              {Data: []byte(`{"resourceType": `)},
		"README.md":                                   {Data: []byte("# definitions")},
	}

	l := newLoader(fm.R4)
	n, err := l.LoadFS(fsys, "")
	if n != 4 {
		t.Errorf("LoadFS() = %d; want 4", n)
	}
	if err == nil || !strings.Contains(err.Error(), "broken.json") {
		t.Errorf("LoadFS() error = %v; want the broken file reported", err)
	}
	for _, name := range []string{"Element", "boolean", "Questionnaire", "Questionnaire.item", "StrictQuestionnaire"} {
		if !l.Table().Has(name) {
			t.Errorf("%s not loaded", name)
		}
	}

	if _, err := newLoader(fm.R4).LoadFS(fsys, "["); err == nil {
		t.Error("LoadFS() with a bad pattern error = nil")
	}
}

func TestLoadR4(t *testing.T) {
	l := newLoader(fm.R4)
	if err := l.LoadR4(r4PatientFixture()); err != nil {
		t.Fatalf("LoadR4() error = %v", err)
	}

	p, ok := l.Table().Declared("Patient")
	if !ok {
		t.Fatal("Patient not loaded")
	}
	var names []string
	for _, e := range p.Elements {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"id", "deceased", "contact"}, names); diff != "" {
		t.Errorf("Patient elements mismatch (-want +got):\n%s", diff)
	}
	deceased, _ := p.Element("deceased")
	if !deceased.Choice || !deceased.IsModifier || !cmp.Equal(deceased.Types, []string{"boolean", "dateTime"}) {
		t.Errorf("deceased = %+v", deceased)
	}

	contact, ok := l.Table().Declared("Patient.contact")
	if !ok {
		t.Fatal("Patient.contact not recorded")
	}
	nested, _ := contact.Element("contact")
	if !cmp.Equal(nested.Types, []string{"Patient.contact"}) {
		t.Errorf("contentReference types = %v", nested.Types)
	}

	var ids []string
	for _, c := range l.Table().DeclaredConstraints("Patient") {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"pat-x"}, ids); diff != "" {
		t.Errorf("constraints mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadR4_Errors(t *testing.T) {
	if err := newLoader(fm.R5).LoadR4(r4PatientFixture()); !errors.Is(err, fm.ErrVersionMismatch) {
		t.Errorf("LoadR4() into R5 table error = %v; want ErrVersionMismatch", err)
	}
	if err := newLoader(fm.R4).LoadR4(nil); err == nil {
		t.Error("LoadR4(nil) error = nil")
	}
}
