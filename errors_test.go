package fhirmodel

import (
	"errors"
	"fmt"
	"testing"
)

func TestSchemaError(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &SchemaError{Type: "A", Chain: []string{"A", "B"}, Reason: "cyclic base type"})

	if !errors.Is(err, ErrInvalidSchema) {
		t.Error("errors.Is(err, ErrInvalidSchema) = false")
	}
	var se *SchemaError
	if !errors.As(err, &se) || se.Type != "A" {
		t.Fatalf("errors.As() = %v", se)
	}
	if got := se.Error(); got != "invalid schema for A: cyclic base type (A -> B)" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&SchemaError{Type: "X", Reason: "missing base type Y"}).Error(); got != "invalid schema for X: missing base type Y" {
		t.Errorf("Error() without chain = %q", got)
	}
}

func TestVersionMismatchError(t *testing.T) {
	err := error(&VersionMismatchError{Want: R4, Got: R5, Subject: "Patient"})

	if !errors.Is(err, ErrVersionMismatch) {
		t.Error("errors.Is(err, ErrVersionMismatch) = false")
	}
	if errors.Is(err, ErrInvalidSchema) {
		t.Error("errors.Is(err, ErrInvalidSchema) = true")
	}
	if got := err.Error(); got != "fhir version mismatch: provider is R4, Patient is R5" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&VersionMismatchError{Want: R4, Got: R4B}).Error(); got != "fhir version mismatch: provider is R4, got R4B" {
		t.Errorf("Error() without subject = %q", got)
	}
}

func TestConstraintResult_Err(t *testing.T) {
	if Satisfied("a").Err() != nil || Violated("a").Err() != nil {
		t.Error("Err() != nil for a completed evaluation")
	}
	r := EvaluationFailed("pat-1", errors.New("bad expression"))
	if !r.IsError() || !errors.Is(r.Err(), ErrEvaluation) {
		t.Errorf("EvaluationFailed().Err() = %v; want ErrEvaluation", r.Err())
	}
	if r.Diagnostic != "bad expression" {
		t.Errorf("Diagnostic = %q", r.Diagnostic)
	}
}

func TestConstraintInfo_Validate(t *testing.T) {
	valid := ConstraintInfo{ID: "pat-1", Expression: "name.exists()", Severity: SeverityError, Human: "needs a name"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ConstraintInfo)
	}{
		{"no id", func(c *ConstraintInfo) { c.ID = " " }},
		{"no expression", func(c *ConstraintInfo) { c.Expression = "" }},
		{"no human", func(c *ConstraintInfo) { c.Human = "" }},
		{"information severity", func(c *ConstraintInfo) { c.Severity = SeverityInformation }},
		{"unknown severity", func(c *ConstraintInfo) { c.Severity = "fatal" }},
	}
	for _, tt := range tests {
		c := valid
		tt.mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: Validate() error = nil", tt.name)
		}
	}
}
