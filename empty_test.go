package fhirmodel

import (
	"context"
	"errors"
	"testing"
)

func TestEmptyProvider(t *testing.T) {
	p := NewEmptyProvider(R4B)
	ctx := context.Background()

	if p.Version() != R4B {
		t.Errorf("Version() = %s; want R4B", p.Version())
	}
	if info, err := p.TypeReflection("Patient"); info != nil || err != nil {
		t.Errorf("TypeReflection() = %v, %v; want nil, nil", info, err)
	}

	result, err := p.ValidateConformance(ctx, []byte(`{"resourceType": "Patient", "foo": 1}`))
	if err != nil {
		t.Fatalf("ValidateConformance() error = %v", err)
	}
	if result.Status() != StatusValid || len(result.Violations) != 0 {
		t.Errorf("ValidateConformance() = %s with %d violations", result.Status(), len(result.Violations))
	}
	if _, err := p.ValidateConformance(ctx, []byte(`not json`)); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("ValidateConformance(malformed) error = %v; want ErrMalformedInput", err)
	}

	c := ConstraintInfo{ID: "x", Expression: "true", Severity: SeverityError, Human: "x"}
	if r := p.EvaluateConstraint(ctx, c, nil); r.Outcome != OutcomeError || r.ConstraintID != "x" {
		t.Errorf("EvaluateConstraint() = %+v; want error outcome", r)
	}

	if got := p.ResolveReference("Patient/1", nil); got != nil {
		t.Errorf("ResolveReference() = %v; want nil", got)
	}
	f, err := p.ResolveReferenceAsync(ctx, "Patient/1", nil)
	if err != nil {
		t.Fatalf("ResolveReferenceAsync() error = %v", err)
	}
	if got, err := f.Wait(ctx); got != nil || err != nil {
		t.Errorf("Wait() = %v, %v; want nil, nil", got, err)
	}
}
