package conformance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	fm "github.com/gofhir/model"
)

// DefaultMaxNesting bounds how deep objects may nest inside a resource.
const DefaultMaxNesting = 64

// Types is the slice of a provider the validator needs.
type Types interface {
	fm.TypeProvider
	IsSubtypeOf(child, parent string) bool
}

// Validator performs structural validation.
type Validator struct {
	types      Types
	log        *zap.Logger
	maxNesting int
}

// New creates a Validator over types.
func New(types Types, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{types: types, log: log, maxNesting: DefaultMaxNesting}
}

// Validate walks res against its declared type. The returned error is only
// non-nil when ctx ends before the walk completes; the partial result is
// returned alongside it.
func (v *Validator) Validate(ctx context.Context, res *fm.Resource) (*fm.ConformanceResult, error) {
	result := fm.NewConformanceResult(res.ResourceType)
	w := &walk{v: v, ctx: ctx, result: result}
	w.resource(res.Data(), res.ResourceType)

	v.log.Debug("conformance walk finished",
		zap.String("resourceType", res.ResourceType),
		zap.Int("violations", len(result.Violations)),
	)
	return result, ctx.Err()
}

// walk carries the state of one validation.
type walk struct {
	v      *Validator
	ctx    context.Context
	result *fm.ConformanceResult
	depth  int
}

// resource validates an object carrying resourceType, found at path.
func (w *walk) resource(data map[string]any, path string) {
	rt, _ := data["resourceType"].(string)
	if rt == "" {
		w.result.AddError(path, "resource has no resourceType")
		return
	}

	info, err := w.v.types.TypeReflection(rt)
	switch {
	case err != nil:
		w.result.AddError(path, fmt.Sprintf("cannot resolve type %s: %v", rt, err))
	case info == nil:
		w.result.AddError(path, fmt.Sprintf("unknown resource type %s", rt))
	case !info.IsResource():
		w.result.AddError(path, fmt.Sprintf("%s is not a resource type", rt))
	case info.Abstract:
		w.result.AddError(path, fmt.Sprintf("%s is abstract and cannot be instantiated", rt))
	default:
		w.object(data, info, path, true)
	}
}

// object validates the elements of data against info.
func (w *walk) object(data map[string]any, info *fm.TypeReflectionInfo, path string, isResource bool) {
	if w.ctx.Err() != nil {
		return
	}
	if w.depth >= w.v.maxNesting {
		w.result.AddError(path, fmt.Sprintf("content nested deeper than %d levels", w.v.maxNesting))
		return
	}
	w.depth++
	defer func() { w.depth-- }()

	matched := make(map[string]bool, len(data))
	if isResource {
		matched["resourceType"] = true
	}

	for i := range info.Elements {
		el := &info.Elements[i]
		name := el.Name
		count := 0

		if el.Choice {
			// reported under the variant used, or under name[x] when none or several are
			var present []string
			for _, t := range el.Types {
				key := el.VariantName(NormalizeSystemType(t))
				if n := w.member(data, key, el, t, path, matched); n > 0 {
					count += n
					present = append(present, key)
				}
			}
			name = displayName(el)
			if len(present) == 1 {
				name = present[0]
			}
		} else {
			count = w.member(data, el.Name, el, "", path, matched)
		}

		w.cardinality(el, count, path+"."+name)
		if count > 0 && el.IsModifier {
			w.result.AddInfo(path+"."+name, fmt.Sprintf("modifier element %s is present", name))
		}
	}

	w.unmatched(data, info, path, matched)
}

// member validates data[key] and its primitive sidecar _key, and returns the
// number of occurrences.
func (w *walk) member(data map[string]any, key string, el *fm.ElementInfo, choiceType, path string, matched map[string]bool) int {
	count := 0
	if value, ok := data[key]; ok {
		matched[key] = true
		count = w.values(value, el, choiceType, path+"."+key)
	}

	sidecar := "_" + key
	if value, ok := data[sidecar]; ok {
		matched[sidecar] = true
		n := w.values(value, &sidecarElement, "", path+"."+sidecar)
		if count == 0 {
			count = n
		}
	}
	return count
}

// sidecarElement describes the "_name" objects that carry id and extensions
// for primitive values.
var sidecarElement = fm.ElementInfo{Name: "_", Types: []string{"Element"}, Max: fm.Unbounded}

// values validates one JSON member and returns its occurrence count.
func (w *walk) values(value any, el *fm.ElementInfo, choiceType, path string) int {
	switch t := value.(type) {
	case nil:
		w.result.AddError(path, "null is not a valid value")
		return 0

	case []any:
		if len(t) == 0 {
			w.result.AddError(path, "arrays must not be empty")
			return 0
		}
		if !el.IsRepeating() && len(t) <= int(el.Max) {
			w.result.AddError(path, fmt.Sprintf("element %s does not repeat and must not be an array", displayName(el)))
		}
		n := 0
		for i, item := range t {
			// nulls keep primitive arrays aligned with their _name sidecars
			if item == nil {
				continue
			}
			w.value(item, el, choiceType, fmt.Sprintf("%s[%d]", path, i))
			n++
		}
		return n

	default:
		w.value(value, el, choiceType, path)
		return 1
	}
}

// value checks one value against the element's allowed types and descends
// into it.
func (w *walk) value(value any, el *fm.ElementInfo, choiceType, path string) {
	candidates := el.Types
	if choiceType != "" {
		candidates = []string{choiceType}
	}
	if len(candidates) == 0 {
		return
	}

	for _, t := range candidates {
		t = NormalizeSystemType(t)
		if w.accepts(value, t) {
			w.descend(value, t, path)
			return
		}
	}

	w.result.AddError(path, fmt.Sprintf("expected %s, found %s", strings.Join(candidates, " | "), describe(value)))
}

// accepts reports whether value has the runtime shape of typeName.
func (w *walk) accepts(value any, typeName string) bool {
	if w.isPrimitive(typeName) {
		return jsonKind(value) == primitiveKind(typeName)
	}
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	if rt, ok := m["resourceType"].(string); ok {
		return w.v.types.IsSubtypeOf(rt, typeName)
	}
	info, err := w.v.types.TypeReflection(typeName)
	return err != nil || info == nil || !info.IsResource()
}

func (w *walk) descend(value any, typeName, path string) {
	if w.isPrimitive(typeName) {
		if problem := primitiveProblem(value, typeName); problem != "" {
			w.result.AddError(path, fmt.Sprintf("%s value %s", typeName, problem))
		}
		return
	}

	m := value.(map[string]any)
	if len(m) == 0 {
		w.result.AddError(path, "objects must not be empty")
		return
	}
	if _, ok := m["resourceType"]; ok {
		w.resource(m, path)
		return
	}

	info, err := w.v.types.TypeReflection(typeName)
	switch {
	case err != nil:
		w.result.AddError(path, fmt.Sprintf("cannot resolve type %s: %v", typeName, err))
	case info == nil:
		w.result.AddInfo(path, fmt.Sprintf("no type information for %s; content not validated", typeName))
	default:
		w.object(m, info, path, false)
	}
}

func (w *walk) isPrimitive(typeName string) bool {
	if IsPrimitiveType(typeName) {
		return true
	}
	info, err := w.v.types.TypeReflection(typeName)
	return err == nil && info != nil && info.IsPrimitive()
}

// cardinality reports at most one violation per element, at path.
func (w *walk) cardinality(el *fm.ElementInfo, count int, path string) {
	switch {
	case count < el.Min:
		w.result.AddError(path, fmt.Sprintf("minimum required = %d, but only found %d", el.Min, count))
	case !el.Max.Allows(count):
		w.result.AddError(path, fmt.Sprintf("maximum allowed = %s, but found %d", el.Max, count))
	}
}

// unmatched reports members that correspond to no element.
func (w *walk) unmatched(data map[string]any, info *fm.TypeReflectionInfo, path string, matched map[string]bool) {
	var keys []string
	for k := range data {
		if !matched[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if el := choiceFor(info, strings.TrimPrefix(k, "_")); el != nil {
			suffix := strings.TrimPrefix(strings.TrimPrefix(k, "_"), el.Name)
			w.result.AddError(path+"."+k, fmt.Sprintf("type %s is not allowed for %s; allowed: %s",
				suffix, displayName(el), strings.Join(el.Types, " | ")))
			continue
		}
		w.result.AddError(path+"."+k, fmt.Sprintf("unknown element %s", k))
	}
}

// choiceFor finds the choice element key looks like a variant of.
func choiceFor(info *fm.TypeReflectionInfo, key string) *fm.ElementInfo {
	for i := range info.Elements {
		el := &info.Elements[i]
		if el.Choice && strings.HasPrefix(key, el.Name) && hasUpperAt(key, len(el.Name)) {
			return el
		}
	}
	return nil
}

func displayName(el *fm.ElementInfo) string {
	if el.Choice {
		return el.Name + "[x]"
	}
	return el.Name
}

func describe(value any) string {
	if m, ok := value.(map[string]any); ok {
		if rt, ok := m["resourceType"].(string); ok {
			return rt
		}
	}
	return jsonKind(value)
}
