// Package fhirmodel defines the model-provider layer shared by FHIRPath
// evaluators and FHIR validation tools.
//
// A ModelProvider answers the questions an expression evaluator cannot
// answer on its own: what elements a type has, which type a type derives
// from, whether a resource conforms to its declared type, whether an
// invariant holds, and what a reference points to. Concrete backends are
// fixed to one FHIR version at construction time.
//
// # Quick Start
//
//	import (
//	    fm "github.com/gofhir/model"
//	    "github.com/gofhir/model/loader"
//	    "github.com/gofhir/model/provider"
//	    "github.com/gofhir/model/schema"
//	)
//
//	table := schema.NewTable(fm.R4)
//	if _, err := loader.New(table, nil).LoadFS(os.DirFS("definitions"), "*.json"); err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := provider.New(fm.R4, table, fm.WithAsync(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info, err := p.TypeReflection("Patient")
//	result, err := p.ValidateConformance(ctx, resourceJSON)
//	if result.Status() == fm.StatusInvalid {
//	    for _, v := range result.Errors() {
//	        fmt.Println(v.Path, v.Message)
//	    }
//	}
//
// # Partial Failure As Data
//
// Lookups of unknown types return (nil, nil). Unresolvable references return
// nil. Invariants that cannot be evaluated produce a ConstraintResult with
// OutcomeError. Only structural problems (unparseable input, broken
// inheritance chains, version mismatches) are returned as errors, and they
// only fail the call that hit them.
//
// # Batches And Bundles
//
// Package worker validates many resources in parallel and package stream
// validates Bundle entries as they are read; provider.Provider exposes both
// as ValidateBatch and ValidateBundle.
//
// # Capability Switches
//
// Asynchronous reference resolution and structural interchange are off by
// default and enabled with WithAsync and WithInterchange.
package fhirmodel
