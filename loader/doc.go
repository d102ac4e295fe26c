// Package loader builds a schema.Table from FHIR StructureDefinitions.
//
// R4 definitions can be handed over as github.com/gofhir/fhir/r4 models;
// every version can be loaded from JSON, either a single
// StructureDefinition, a Bundle of them, or a directory tree of files.
//
// Each definition yields one type record named after the type it defines,
// or after the profile name for constraining profiles. Backbone elements
// become their own records named by element path ("Patient.contact").
// Invariants declared on the root element and on backbone elements are
// attached to the corresponding record.
package loader
