// Package constraint evaluates FHIR invariants.
//
// Evaluation happens in two steps. A static check walks the member
// navigation of the expression against the reflection model and rejects
// paths that cannot exist on the context type, which FHIRPath engines would
// otherwise silently evaluate to empty. The expression is then delegated to
// an fm.ExpressionEvaluator, by default the gofhir FHIRPath engine.
//
// Every failure is reported as an fm.ConstraintResult with OutcomeError.
// Batches evaluate each invariant independently.
package constraint
