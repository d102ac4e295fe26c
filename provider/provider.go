package provider

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/cache"
	"github.com/gofhir/model/conformance"
	"github.com/gofhir/model/constraint"
	"github.com/gofhir/model/interchange"
	"github.com/gofhir/model/schema"
)

// Provider is the schema-backed fm.ModelProvider.
type Provider struct {
	version fm.FHIRVersion
	table   *schema.Table
	bounded schema.Bounded
	opts    *fm.Options
	log     *zap.Logger
	metrics *fm.Metrics

	types *cache.LRU[string, *fm.TypeReflectionInfo]
	group singleflight.Group

	validator *conformance.Validator
	engine    *constraint.Engine
}

var (
	_ fm.ModelProvider          = (*Provider)(nil)
	_ fm.AsyncReferenceResolver = (*Provider)(nil)
	_ fm.TypeHierarchy          = (*Provider)(nil)
)

// New creates a provider for version over table. The table must be built
// for the same version and must not change afterwards.
func New(version fm.FHIRVersion, table *schema.Table, opts ...fm.Option) (*Provider, error) {
	if !version.IsValid() {
		return nil, fmt.Errorf("unsupported FHIR version %q", version)
	}
	if table == nil {
		return nil, fmt.Errorf("%w: nil type table", fm.ErrInvalidSchema)
	}
	if table.Version() != version {
		return nil, &fm.VersionMismatchError{Want: version, Got: table.Version(), Subject: "type table"}
	}

	o := fm.DefaultOptions().Apply(opts...)

	p := &Provider{
		version: version,
		table:   table,
		bounded: table.WithMaxDepth(o.MaxBaseDepth),
		opts:    o,
		log:     o.Logger.With(zap.String("fhirVersion", string(version))),
		metrics: fm.NewMetrics(),
		types:   cache.New[string, *fm.TypeReflectionInfo](o.TypeCacheSize),
	}

	eval := o.Evaluator
	if eval == nil {
		eval = constraint.NewFHIRPath(o.ExpressionCacheSize)
	}
	p.validator = conformance.New(p, p.log)
	p.engine = constraint.NewEngine(p, eval,
		constraint.WithConcurrency(o.ConstraintConcurrency),
		constraint.WithTimeout(o.EvaluationTimeout),
		constraint.WithLogger(p.log),
		constraint.WithMetrics(p.metrics),
	)

	p.log.Debug("model provider created",
		zap.Int("types", table.Len()),
		zap.Bool("async", o.EnableAsync),
		zap.Bool("interchange", o.EnableInterchange))
	return p, nil
}

// Version returns the FHIR version the provider was built for.
func (p *Provider) Version() fm.FHIRVersion {
	return p.version
}

// Table returns the underlying type table.
func (p *Provider) Table() *schema.Table {
	return p.table
}

// typeName strips a "FHIR." or version qualifier from name. A qualifier
// naming another version is an error.
func (p *Provider) typeName(name string) (string, error) {
	name = strings.TrimPrefix(name, "FHIR.")
	prefix, rest, ok := strings.Cut(name, ".")
	if !ok {
		return name, nil
	}
	qualifier := fm.FHIRVersion(strings.ToUpper(prefix))
	if !qualifier.IsValid() {
		return name, nil
	}
	if qualifier != p.version {
		return "", &fm.VersionMismatchError{Want: p.version, Got: qualifier, Subject: rest}
	}
	return strings.TrimPrefix(rest, "FHIR."), nil
}

// TypeReflection returns the resolved record for name, with inherited
// elements merged in. Unknown names yield (nil, nil).
func (p *Provider) TypeReflection(name string) (*fm.TypeReflectionInfo, error) {
	name, err := p.typeName(name)
	if err != nil {
		return nil, err
	}
	if info, ok := p.types.Get(name); ok {
		p.metrics.RecordCacheHit()
		p.metrics.RecordTypeLookup(true)
		return info.Clone(), nil
	}

	v, err, _ := p.group.Do(name, func() (any, error) {
		start := time.Now()
		info, err := p.bounded.Resolve(name)
		if err != nil || info == nil {
			return info, err
		}
		p.types.Add(name, info)
		p.metrics.RecordCacheMiss(time.Since(start))
		return info, nil
	})
	if err != nil {
		p.metrics.RecordSchemaFailure()
		p.log.Debug("type resolution failed", zap.String("type", name), zap.Error(err))
		return nil, err
	}
	info, _ := v.(*fm.TypeReflectionInfo)
	p.metrics.RecordTypeLookup(info != nil)
	return info.Clone(), nil
}

// IsSubtypeOf reports whether child is parent or derives from it.
func (p *Provider) IsSubtypeOf(child, parent string) bool {
	child, err := p.typeName(child)
	if err != nil {
		return false
	}
	parent, err = p.typeName(parent)
	if err != nil {
		return false
	}
	return p.bounded.IsSubtypeOf(child, parent)
}

// BaseType returns the direct base of name, "" for roots and unknown types.
func (p *Provider) BaseType(name string) (string, error) {
	info, err := p.TypeReflection(name)
	if err != nil || info == nil {
		return "", err
	}
	return info.BaseType, nil
}

// Properties returns the elements of name, inherited ones first.
func (p *Provider) Properties(name string) ([]fm.ElementInfo, error) {
	info, err := p.TypeReflection(name)
	if err != nil || info == nil {
		return nil, err
	}
	return info.Elements, nil
}

// PropertyType returns the types allowed for property on typeName. The
// property may be a choice base ("value") or a typed variant
// ("valueQuantity"). Unknown properties yield nil.
func (p *Provider) PropertyType(typeName, property string) ([]string, error) {
	info, err := p.TypeReflection(typeName)
	if err != nil || info == nil {
		return nil, err
	}
	if el, ok := info.Element(property); ok {
		return el.Types, nil
	}
	if _, typ, ok := info.ChoiceVariant(property); ok {
		return []string{typ}, nil
	}
	return nil, nil
}

// ChoiceTypes returns the allowed types of a choice element, nil when the
// element is not a choice.
func (p *Provider) ChoiceTypes(typeName, property string) ([]string, error) {
	info, err := p.TypeReflection(typeName)
	if err != nil || info == nil {
		return nil, err
	}
	if el, ok := info.Element(property); ok && el.Choice {
		return el.Types, nil
	}
	return nil, nil
}

// IsPrimitiveType reports whether name is a known primitive type.
func (p *Provider) IsPrimitiveType(name string) bool {
	info, err := p.TypeReflection(name)
	return err == nil && info != nil && info.IsPrimitive()
}

// IsResourceType reports whether name is a known resource type.
func (p *Provider) IsResourceType(name string) bool {
	info, err := p.TypeReflection(name)
	return err == nil && info != nil && info.IsResource()
}

// Constraints returns the invariants of name, inherited ones first.
func (p *Provider) Constraints(name string) ([]fm.ConstraintInfo, error) {
	name, err := p.typeName(name)
	if err != nil {
		return nil, err
	}
	return p.bounded.Constraints(name)
}

// Codec returns an interchange codec. It requires WithInterchange(true).
func (p *Provider) Codec(format interchange.Format) (*interchange.Codec, error) {
	if !p.opts.EnableInterchange {
		return nil, fmt.Errorf("%w: interchange", fm.ErrCapabilityDisabled)
	}
	return interchange.NewCodec(format)
}

// Metrics returns a snapshot of the provider's counters.
func (p *Provider) Metrics() fm.MetricsSnapshot {
	return p.metrics.Snapshot()
}

// ClearCache drops all cached type records.
func (p *Provider) ClearCache() {
	p.types.Purge()
}
