package loader

import (
	"github.com/gofhir/fhir/r4"
)

// FromR4 converts an R4 model into a Definition.
func FromR4(sd *r4.StructureDefinition) *Definition {
	if sd == nil {
		return nil
	}

	d := &Definition{
		ResourceType:   "StructureDefinition",
		URL:            derefString(sd.Url),
		Name:           derefString(sd.Name),
		Type:           derefString(sd.Type),
		Kind:           convertKind(sd.Kind),
		Abstract:       derefBool(sd.Abstract),
		BaseDefinition: derefString(sd.BaseDefinition),
		FHIRVersion:    convertFHIRVersion(sd.FhirVersion),
	}
	if sd.Snapshot != nil {
		d.Snapshot = &ElementList{Element: convertElementDefinitions(sd.Snapshot.Element)}
	}
	if sd.Differential != nil {
		d.Differential = &ElementList{Element: convertElementDefinitions(sd.Differential.Element)}
	}
	return d
}

func convertElementDefinitions(elements []r4.ElementDefinition) []ElementDefinition {
	if len(elements) == 0 {
		return nil
	}
	result := make([]ElementDefinition, 0, len(elements))
	for i := range elements {
		result = append(result, convertElementDefinition(&elements[i]))
	}
	return result
}

func convertElementDefinition(ed *r4.ElementDefinition) ElementDefinition {
	return ElementDefinition{
		ID:               derefString(ed.Id),
		Path:             derefString(ed.Path),
		SliceName:        derefString(ed.SliceName),
		Min:              convertMin(ed.Min),
		Max:              derefString(ed.Max),
		Type:             convertTypes(ed.Type),
		ContentReference: derefString(ed.ContentReference),
		IsModifier:       derefBool(ed.IsModifier),
		IsSummary:        derefBool(ed.IsSummary),
		Binding:          convertBinding(ed.Binding),
		Constraint:       convertConstraints(ed.Constraint),
	}
}

func convertTypes(types []r4.ElementDefinitionType) []TypeRef {
	if len(types) == 0 {
		return nil
	}
	result := make([]TypeRef, 0, len(types))
	for i := range types {
		t := &types[i]
		result = append(result, TypeRef{
			Code:          derefString(t.Code),
			Profile:       t.Profile,
			TargetProfile: t.TargetProfile,
		})
	}
	return result
}

func convertBinding(binding *r4.ElementDefinitionBinding) *Binding {
	if binding == nil {
		return nil
	}
	b := &Binding{ValueSet: derefString(binding.ValueSet)}
	if binding.Strength != nil {
		b.Strength = string(*binding.Strength)
	}
	return b
}

func convertConstraints(constraints []r4.ElementDefinitionConstraint) []Constraint {
	if len(constraints) == 0 {
		return nil
	}
	result := make([]Constraint, 0, len(constraints))
	for i := range constraints {
		con := &constraints[i]
		c := Constraint{
			Key:        derefString(con.Key),
			Human:      derefString(con.Human),
			Expression: derefString(con.Expression),
			Source:     derefString(con.Source),
		}
		if con.Severity != nil {
			c.Severity = string(*con.Severity)
		}
		result = append(result, c)
	}
	return result
}

func convertKind(kind *r4.StructureDefinitionKind) string {
	if kind == nil {
		return ""
	}
	return string(*kind)
}

func convertFHIRVersion(version *r4.FHIRVersion) string {
	if version == nil {
		return ""
	}
	return string(*version)
}

func convertMin(minVal *uint32) int {
	if minVal == nil {
		return 0
	}
	return int(*minVal)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
