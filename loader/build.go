package loader

import (
	"fmt"
	"strings"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/conformance"
)

// records is what one definition contributes to a table.
type records struct {
	name        string
	types       []fm.TypeReflectionInfo
	constraints map[string][]fm.ConstraintInfo
}

// urlLookup maps a canonical URL to a loaded type name.
type urlLookup func(url string) (string, bool)

// build converts d into type records for version.
func (d *Definition) build(version fm.FHIRVersion, lookup urlLookup) (*records, error) {
	if d.FHIRVersion != "" {
		if got, ok := fm.ParseVersion(d.FHIRVersion); ok && got != version {
			return nil, &fm.VersionMismatchError{Want: version, Got: got, Subject: d.URL}
		}
	}

	elements := d.Elements()
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: %s has no elements", fm.ErrInvalidSchema, d.URL)
	}
	root := elements[0].Path
	if root == "" || strings.Contains(root, ".") {
		return nil, fmt.Errorf("%w: %s does not start with its root element", fm.ErrInvalidSchema, d.URL)
	}

	name := d.Type
	if !d.IsBaseDefinition() {
		name = d.Name
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %s has neither type nor name", fm.ErrInvalidSchema, d.URL)
	}

	b := &builder{
		def:         d,
		root:        root,
		name:        name,
		byPath:      make(map[string]int),
		constraints: make(map[string][]fm.ConstraintInfo),
	}
	b.add(root, fm.TypeReflectionInfo{
		Namespace: "FHIR",
		Name:      name,
		BaseType:  baseTypeName(d.BaseDefinition, lookup),
		Kind:      fm.TypeKind(d.Kind),
		Abstract:  d.Abstract,
	})
	b.constrain(name, elements[0].Constraint)

	for i := 1; i < len(elements); i++ {
		if err := b.element(&elements[i]); err != nil {
			return nil, err
		}
	}
	return &records{name: name, types: b.types, constraints: b.constraints}, nil
}

type builder struct {
	def         *Definition
	root        string
	name        string
	types       []fm.TypeReflectionInfo
	byPath      map[string]int
	constraints map[string][]fm.ConstraintInfo
}

func (b *builder) add(path string, info fm.TypeReflectionInfo) {
	b.byPath[path] = len(b.types)
	b.types = append(b.types, info)
}

// typeName maps an element path to the record name used for it.
func (b *builder) typeName(path string) string {
	return b.name + strings.TrimPrefix(path, b.root)
}

func (b *builder) element(ed *ElementDefinition) error {
	// slices and their children refine an element that is already recorded
	if ed.SliceName != "" || strings.Contains(ed.ID, ":") {
		return nil
	}
	if !strings.HasPrefix(ed.Path, b.root+".") {
		return nil
	}
	cut := strings.LastIndexByte(ed.Path, '.')
	parentPath, last := ed.Path[:cut], ed.Path[cut+1:]

	idx, ok := b.byPath[parentPath]
	if !ok {
		// constraints on the inside of a datatype
		return nil
	}
	parent := &b.types[idx]
	if parentPath == b.root && parent.Kind == fm.KindPrimitive && last == "value" {
		return nil
	}

	maxCard := fm.Max(1)
	if ed.Max != "" {
		var err error
		if maxCard, err = fm.ParseMax(ed.Max); err != nil {
			return fmt.Errorf("%w: %s: %v", fm.ErrInvalidSchema, ed.Path, err)
		}
	}
	el := fm.ElementInfo{
		Name:       strings.TrimSuffix(last, "[x]"),
		Choice:     strings.HasSuffix(last, "[x]"),
		Min:        ed.Min,
		Max:        maxCard,
		IsModifier: ed.IsModifier,
		IsSummary:  ed.IsSummary,
	}
	if ed.Binding != nil {
		el.Binding = &fm.BindingInfo{Strength: ed.Binding.Strength, ValueSet: ed.Binding.ValueSet}
	}
	if _, dup := parent.Element(el.Name); dup {
		return nil
	}

	switch {
	case ed.ContentReference != "":
		_, target, _ := strings.Cut(ed.ContentReference, "#")
		el.Types = []string{b.typeName(target)}

	case isBackbone(ed):
		typeName := b.typeName(ed.Path)
		el.Types = []string{typeName}
		b.add(ed.Path, fm.TypeReflectionInfo{
			Namespace: "FHIR",
			Name:      typeName,
			BaseType:  ed.Type[0].Code,
			Kind:      fm.KindComplex,
		})
		b.constrain(typeName, ed.Constraint)
		// b.types may have been reallocated
		parent = &b.types[idx]

	default:
		for _, t := range ed.Type {
			code := conformance.NormalizeSystemType(t.Code)
			if code != "" && !el.AllowsType(code) {
				el.Types = append(el.Types, code)
			}
		}
	}

	parent.Elements = append(parent.Elements, el)
	return nil
}

// constrain attaches the invariants that the definition itself declares;
// inherited ones carry the source of the ancestor and are skipped.
func (b *builder) constrain(typeName string, cs []Constraint) {
	for _, c := range cs {
		if c.Expression == "" || (c.Source != "" && c.Source != b.def.URL) {
			continue
		}
		severity := fm.SeverityWarning
		if c.Severity == "error" {
			severity = fm.SeverityError
		}
		b.constraints[typeName] = append(b.constraints[typeName], fm.ConstraintInfo{
			ID:         c.Key,
			Expression: c.Expression,
			Severity:   severity,
			Human:      c.Human,
			TypeName:   typeName,
			Source:     b.def.URL,
		})
	}
}

func isBackbone(ed *ElementDefinition) bool {
	return len(ed.Type) == 1 && (ed.Type[0].Code == "BackboneElement" || ed.Type[0].Code == "Element")
}

// baseTypeName names the type a definition derives from.
func baseTypeName(url string, lookup urlLookup) string {
	if url == "" {
		return ""
	}
	if lookup != nil {
		if name, ok := lookup(url); ok {
			return name
		}
	}
	url, _, _ = strings.Cut(url, "|")
	return url[strings.LastIndexByte(url, '/')+1:]
}
