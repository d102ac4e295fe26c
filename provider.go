package fhirmodel

import "context"

// --- Small Interfaces ---

// TypeProvider looks up type reflection records.
//
// TypeReflection returns (nil, nil) when the name is unknown for the
// provider's version. It returns an error wrapping ErrInvalidSchema when the
// type's base chain is broken and ErrVersionMismatch when the name is
// qualified with another FHIR version.
type TypeProvider interface {
	TypeReflection(typeName string) (*TypeReflectionInfo, error)
}

// ConformanceValidator validates resources against their declared types.
type ConformanceValidator interface {
	ValidateConformance(ctx context.Context, resource []byte) (*ConformanceResult, error)
}

// ConstraintEvaluator evaluates invariants. Evaluation failures are reported
// in the result, never as an error.
type ConstraintEvaluator interface {
	EvaluateConstraint(ctx context.Context, constraint ConstraintInfo, resource *Resource) ConstraintResult
}

// ReferenceResolver resolves references against a caller-supplied context.
// Unresolved references yield nil.
type ReferenceResolver interface {
	ResolveReference(reference string, rc ResolutionContext) *ResolvedReference
}

// AsyncReferenceResolver resolves references that may need I/O. The future
// yields nil for unresolved references.
type AsyncReferenceResolver interface {
	ResolveReferenceAsync(ctx context.Context, reference string, rc AsyncResolutionContext) (*Future[*ResolvedReference], error)
}

// ModelProvider is the contract between FHIRPath evaluators and a concrete,
// version-fixed schema backend. All methods are safe for concurrent use.
type ModelProvider interface {
	TypeProvider
	ConformanceValidator
	ConstraintEvaluator
	ReferenceResolver

	// Version is fixed for the lifetime of the provider.
	Version() FHIRVersion
}
