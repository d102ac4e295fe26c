package fhirmodel

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by every provider.
var (
	// ErrMalformedInput is returned when a resource cannot be parsed into a
	// navigable structure.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidSchema is returned when a type's base chain is cyclic, too
	// deep, or names a type that does not exist.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrVersionMismatch is returned when a type or resource belongs to a
	// different FHIR version than the provider.
	ErrVersionMismatch = errors.New("fhir version mismatch")

	// ErrEvaluation marks invariant evaluation failures. It is carried in
	// ConstraintResult diagnostics and never returned from provider calls.
	ErrEvaluation = errors.New("evaluation error")

	// ErrCapabilityDisabled is returned when an optional capability was not
	// enabled through Options.
	ErrCapabilityDisabled = errors.New("capability disabled")

	// ErrNotFound is returned by resolution contexts that could not find a
	// reference target. Providers translate it into absence.
	ErrNotFound = errors.New("resource not found")
)

// SchemaError describes a broken inheritance chain.
type SchemaError struct {
	// Type is the type whose reflection was requested
	Type string
	// Chain is the base chain walked before the problem was detected
	Chain []string
	// Reason is a short description ("cycle", "missing base type Foo", ...)
	Reason string
}

func (e *SchemaError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("invalid schema for %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid schema for %s: %s (%s)", e.Type, e.Reason, strings.Join(e.Chain, " -> "))
}

// Unwrap allows errors.Is(err, ErrInvalidSchema).
func (e *SchemaError) Unwrap() error {
	return ErrInvalidSchema
}

// VersionMismatchError reports the two versions involved in a mismatch.
type VersionMismatchError struct {
	Want FHIRVersion
	Got  FHIRVersion
	// Subject names what carried the foreign version (a type name, a URL)
	Subject string
}

func (e *VersionMismatchError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("fhir version mismatch: provider is %s, got %s", e.Want, e.Got)
	}
	return fmt.Sprintf("fhir version mismatch: provider is %s, %s is %s", e.Want, e.Subject, e.Got)
}

// Unwrap allows errors.Is(err, ErrVersionMismatch).
func (e *VersionMismatchError) Unwrap() error {
	return ErrVersionMismatch
}
