package loader

import (
	"encoding/json"
	"strings"
)

// Definition is a version-neutral view of a StructureDefinition, holding
// only what reflection needs. It decodes directly from R4, R4B and R5 JSON.
type Definition struct {
	ResourceType   string `json:"resourceType"`
	URL            string `json:"url"`
	Name           string `json:"name"`
	FHIRVersion    string `json:"fhirVersion,omitempty"`
	Kind           string `json:"kind"`
	Abstract       bool   `json:"abstract"`
	Type           string `json:"type"`
	BaseDefinition string `json:"baseDefinition,omitempty"`
	Derivation     string `json:"derivation,omitempty"`

	Snapshot     *ElementList `json:"snapshot,omitempty"`
	Differential *ElementList `json:"differential,omitempty"`
}

// ElementList is the snapshot or differential of a definition.
type ElementList struct {
	Element []ElementDefinition `json:"element"`
}

// ElementDefinition is one entry of an ElementList.
type ElementDefinition struct {
	ID               string       `json:"id,omitempty"`
	Path             string       `json:"path"`
	SliceName        string       `json:"sliceName,omitempty"`
	Min              int          `json:"min"`
	Max              string       `json:"max,omitempty"`
	Type             []TypeRef    `json:"type,omitempty"`
	ContentReference string       `json:"contentReference,omitempty"`
	IsModifier       bool         `json:"isModifier,omitempty"`
	IsSummary        bool         `json:"isSummary,omitempty"`
	Binding          *Binding     `json:"binding,omitempty"`
	Constraint       []Constraint `json:"constraint,omitempty"`
}

// TypeRef is an allowed type of an element.
type TypeRef struct {
	Code          string   `json:"code"`
	Profile       []string `json:"profile,omitempty"`
	TargetProfile []string `json:"targetProfile,omitempty"`
}

// Binding is a terminology binding.
type Binding struct {
	Strength string `json:"strength"`
	ValueSet string `json:"valueSet,omitempty"`
}

// Constraint is an invariant declared on an element.
type Constraint struct {
	Key        string `json:"key"`
	Severity   string `json:"severity"`
	Human      string `json:"human"`
	Expression string `json:"expression,omitempty"`
	Source     string `json:"source,omitempty"`
}

// ParseDefinition decodes a StructureDefinition from JSON.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Elements returns the snapshot, falling back to the differential.
func (d *Definition) Elements() []ElementDefinition {
	if d.Snapshot != nil && len(d.Snapshot.Element) > 0 {
		return d.Snapshot.Element
	}
	if d.Differential != nil {
		return d.Differential.Element
	}
	return nil
}

// IsBaseDefinition reports whether d is the core definition of its type,
// e.g. http://hl7.org/fhir/StructureDefinition/Patient, rather than a
// profile constraining it.
func (d *Definition) IsBaseDefinition() bool {
	if d.Type == "" {
		return false
	}
	if d.URL == coreURLPrefix+d.Type {
		return true
	}
	// logical models and extensions published outside the core namespace
	return d.Derivation != "constraint" && !strings.HasPrefix(d.URL, coreURLPrefix) && d.Name == d.Type
}

const coreURLPrefix = "http://hl7.org/fhir/StructureDefinition/"
