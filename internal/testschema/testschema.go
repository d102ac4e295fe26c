// Package testschema builds a small R4 type table for tests. It covers the
// Resource hierarchy, a handful of data types, Patient, Observation and
// Organization, with the same element names and cardinalities as the core
// specification.
package testschema

import (
	fm "github.com/gofhir/model"
	"github.com/gofhir/model/schema"
)

// Elem builds an element. max is fm.Unbounded for "*".
func Elem(name string, minCard int, maxCard fm.Max, types ...string) fm.ElementInfo {
	return fm.ElementInfo{Name: name, Types: types, Min: minCard, Max: maxCard}
}

// Modifier builds a modifier element.
func Modifier(name string, minCard int, maxCard fm.Max, types ...string) fm.ElementInfo {
	e := Elem(name, minCard, maxCard, types...)
	e.IsModifier = true
	return e
}

// Choice builds a value[x] style element.
func Choice(name string, minCard int, maxCard fm.Max, types ...string) fm.ElementInfo {
	e := Elem(name, minCard, maxCard, types...)
	e.Choice = true
	return e
}

// Primitives lists the primitive types included in the table.
var Primitives = []string{
	"boolean", "integer", "decimal", "string", "code", "uri", "id",
	"date", "dateTime", "instant", "canonical", "positiveInt", "unsignedInt", "markdown",
}

// PatientConstraints are attached to Patient.
var PatientConstraints = []fm.ConstraintInfo{
	{
		ID:         "pat-1",
		Expression: "contact.all(name.exists() or organization.exists())",
		Severity:   fm.SeverityError,
		Human:      "SHALL at least contain a contact's details or a reference to an organization",
	},
}

// R4 returns a fresh table.
func R4() *schema.Table {
	t := schema.NewTable(fm.R4)
	u := fm.Unbounded

	for _, p := range Primitives {
		t.MustAdd(fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: p, BaseType: "Element", Kind: fm.KindPrimitive,
		})
	}

	t.MustAdd(
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Element", Kind: fm.KindComplex, Abstract: true,
			Elements: []fm.ElementInfo{
				Elem("id", 0, 1, "string"),
				Elem("extension", 0, u, "Extension"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "BackboneElement", BaseType: "Element", Kind: fm.KindComplex, Abstract: true,
			Elements: []fm.ElementInfo{
				Modifier("modifierExtension", 0, u, "Extension"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Extension", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("url", 1, 1, "uri"),
				Choice("value", 0, 1, "string", "boolean", "integer", "code", "Quantity", "Reference"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Quantity", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("value", 0, 1, "decimal"),
				Elem("unit", 0, 1, "string"),
				Elem("system", 0, 1, "uri"),
				Elem("code", 0, 1, "code"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Coding", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("system", 0, 1, "uri"),
				Elem("code", 0, 1, "code"),
				Elem("display", 0, 1, "string"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "CodeableConcept", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("coding", 0, u, "Coding"),
				Elem("text", 0, 1, "string"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Identifier", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("system", 0, 1, "uri"),
				Elem("value", 0, 1, "string"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "HumanName", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("use", 0, 1, "code"),
				Elem("text", 0, 1, "string"),
				Elem("family", 0, 1, "string"),
				Elem("given", 0, u, "string"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Reference", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("reference", 0, 1, "string"),
				Elem("type", 0, 1, "uri"),
				Elem("display", 0, 1, "string"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Meta", BaseType: "Element", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("versionId", 0, 1, "id"),
				Elem("lastUpdated", 0, 1, "instant"),
				Elem("profile", 0, u, "canonical"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Resource", Kind: fm.KindResource, Abstract: true,
			Elements: []fm.ElementInfo{
				Elem("id", 0, 1, "id"),
				Elem("meta", 0, 1, "Meta"),
				Modifier("implicitRules", 0, 1, "uri"),
				Elem("language", 0, 1, "code"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "DomainResource", BaseType: "Resource", Kind: fm.KindResource, Abstract: true,
			Elements: []fm.ElementInfo{
				Elem("contained", 0, u, "Resource"),
				Elem("extension", 0, u, "Extension"),
				Modifier("modifierExtension", 0, u, "Extension"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Patient", BaseType: "DomainResource", Kind: fm.KindResource,
			Elements: []fm.ElementInfo{
				Elem("identifier", 0, u, "Identifier"),
				Modifier("active", 0, 1, "boolean"),
				Elem("name", 0, u, "HumanName"),
				Elem("gender", 0, 1, "code"),
				Elem("birthDate", 0, 1, "date"),
				func() fm.ElementInfo {
					e := Choice("deceased", 0, 1, "boolean", "dateTime")
					e.IsModifier = true
					return e
				}(),
				Elem("multipleBirth", 0, 1, "integer"),
				Elem("contact", 0, u, "Patient.contact"),
				Elem("managingOrganization", 0, 1, "Reference"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Patient.contact", BaseType: "BackboneElement", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("name", 0, 1, "HumanName"),
				Elem("gender", 0, 1, "code"),
				Elem("organization", 0, 1, "Reference"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Observation", BaseType: "DomainResource", Kind: fm.KindResource,
			Elements: []fm.ElementInfo{
				Modifier("status", 1, 1, "code"),
				Elem("code", 1, 1, "CodeableConcept"),
				Elem("subject", 0, 1, "Reference"),
				Choice("value", 0, 1, "Quantity", "CodeableConcept", "string", "boolean", "integer"),
				Elem("component", 0, u, "Observation.component"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Observation.component", BaseType: "BackboneElement", Kind: fm.KindComplex,
			Elements: []fm.ElementInfo{
				Elem("code", 1, 1, "CodeableConcept"),
				Choice("value", 0, 1, "Quantity", "string", "integer"),
			},
		},
		fm.TypeReflectionInfo{
			Namespace: "FHIR", Name: "Organization", BaseType: "DomainResource", Kind: fm.KindResource,
			Elements: []fm.ElementInfo{
				Elem("active", 0, 1, "boolean"),
				Elem("name", 0, 1, "string"),
			},
		},
	)

	t.AddConstraints("Patient", PatientConstraints...)
	t.AddURL("http://hl7.org/fhir/StructureDefinition/Patient", "Patient")
	t.AddURL("http://hl7.org/fhir/StructureDefinition/Observation", "Observation")
	return t
}
