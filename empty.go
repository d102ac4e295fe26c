package fhirmodel

import (
	"context"
	"fmt"
)

// EmptyProvider knows no types. Every lookup is absent, every parseable
// resource conforms, invariants cannot be evaluated and references never
// resolve. It is useful as a placeholder when an evaluator runs without
// schema support.
type EmptyProvider struct {
	version FHIRVersion
}

var _ ModelProvider = (*EmptyProvider)(nil)

// NewEmptyProvider creates an EmptyProvider for v.
func NewEmptyProvider(v FHIRVersion) *EmptyProvider {
	return &EmptyProvider{version: v}
}

// Version returns the version given at construction.
func (p *EmptyProvider) Version() FHIRVersion {
	return p.version
}

// TypeReflection always reports absence.
func (p *EmptyProvider) TypeReflection(string) (*TypeReflectionInfo, error) {
	return nil, nil
}

// ValidateConformance parses the resource and returns an empty result.
func (p *EmptyProvider) ValidateConformance(_ context.Context, resource []byte) (*ConformanceResult, error) {
	res, err := ParseResource(resource)
	if err != nil {
		return nil, err
	}
	return NewConformanceResult(res.ResourceType), nil
}

// EvaluateConstraint reports an evaluation error.
func (p *EmptyProvider) EvaluateConstraint(_ context.Context, c ConstraintInfo, _ *Resource) ConstraintResult {
	return EvaluationFailed(c.ID, fmt.Errorf("no expression evaluator configured"))
}

// ResolveReference never resolves.
func (p *EmptyProvider) ResolveReference(string, ResolutionContext) *ResolvedReference {
	return nil
}

// ResolveReferenceAsync returns a completed future with no result.
func (p *EmptyProvider) ResolveReferenceAsync(context.Context, string, AsyncResolutionContext) (*Future[*ResolvedReference], error) {
	return Completed[*ResolvedReference](nil, nil), nil
}
