package fhirmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConstraintInfo is a named invariant attached to a type.
type ConstraintInfo struct {
	// ID is the constraint key, e.g. "pat-1"
	ID string `json:"id" yaml:"id"`

	// Expression is a boolean FHIRPath expression
	Expression string `json:"expression" yaml:"expression"`

	Severity Severity `json:"severity" yaml:"severity"`

	// Human is the human-readable description
	Human string `json:"human" yaml:"human"`

	// TypeName is the type the invariant applies to
	TypeName string `json:"typeName,omitempty" yaml:"typeName,omitempty"`

	// Source is the canonical URL of the definition that declared it
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Validate checks that the constraint is complete enough to evaluate.
func (c ConstraintInfo) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("constraint id is empty"))
	}
	if strings.TrimSpace(c.Expression) == "" {
		errs = append(errs, errors.New("constraint expression is empty"))
	}
	if strings.TrimSpace(c.Human) == "" {
		errs = append(errs, errors.New("constraint description is empty"))
	}
	if c.Severity != SeverityError && c.Severity != SeverityWarning {
		errs = append(errs, fmt.Errorf("constraint severity %q is not error or warning", c.Severity))
	}
	return errors.Join(errs...)
}

// Outcome is the result of evaluating one invariant.
type Outcome string

const (
	OutcomeSatisfied Outcome = "satisfied"
	OutcomeViolated  Outcome = "violated"
	OutcomeError     Outcome = "error"
)

// ConstraintResult is the outcome of one invariant against one resource.
type ConstraintResult struct {
	ConstraintID string  `json:"constraintId" yaml:"constraintId"`
	Outcome      Outcome `json:"outcome" yaml:"outcome"`

	// Diagnostic explains an OutcomeError
	Diagnostic string `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

// Satisfied builds a satisfied result.
func Satisfied(id string) ConstraintResult {
	return ConstraintResult{ConstraintID: id, Outcome: OutcomeSatisfied}
}

// Violated builds a violated result.
func Violated(id string) ConstraintResult {
	return ConstraintResult{ConstraintID: id, Outcome: OutcomeViolated}
}

// EvaluationFailed builds an error result from err.
func EvaluationFailed(id string, err error) ConstraintResult {
	return ConstraintResult{ConstraintID: id, Outcome: OutcomeError, Diagnostic: err.Error()}
}

// IsError reports whether evaluation failed.
func (r ConstraintResult) IsError() bool {
	return r.Outcome == OutcomeError
}

// Err returns the diagnostic wrapped in ErrEvaluation, or nil.
func (r ConstraintResult) Err() error {
	if r.Outcome != OutcomeError {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrEvaluation, r.ConstraintID, r.Diagnostic)
}

// ExpressionEvaluator evaluates a boolean FHIRPath expression against a
// resource. A nil error with an empty result must be reported as true.
type ExpressionEvaluator interface {
	EvaluateBoolean(ctx context.Context, expression string, resource *Resource) (bool, error)
}
