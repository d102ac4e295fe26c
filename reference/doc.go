// Package reference provides resolution contexts for FHIR references.
//
// Bundle holds resources in memory and resolves relative, absolute,
// urn:uuid and contained fragment references synchronously. Chain, Func and
// Async compose contexts for the asynchronous resolution path.
package reference
