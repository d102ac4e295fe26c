package fhirmodel

import "strings"

// FHIRVersion represents a FHIR specification version.
type FHIRVersion string

// Supported FHIR versions.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the version string.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported FHIR version.
func (v FHIRVersion) IsValid() bool {
	_, ok := fullVersions[v]
	return ok
}

// FullVersion returns the published version number, e.g. "4.0.1".
// Returns an empty string for unsupported versions.
func (v FHIRVersion) FullVersion() string {
	return fullVersions[v]
}

var fullVersions = map[FHIRVersion]string{
	R4:  "4.0.1",
	R4B: "4.3.0",
	R5:  "5.0.0",
}

// ParseVersion maps a release name ("R4", "r4b") or a version number as it
// appears in StructureDefinition.fhirVersion ("4.0.1", "4.3", "5.0.0-ballot")
// to a FHIRVersion.
func ParseVersion(s string) (FHIRVersion, bool) {
	s = strings.TrimSpace(s)
	if v := FHIRVersion(strings.ToUpper(s)); v.IsValid() {
		return v, true
	}
	switch {
	case strings.HasPrefix(s, "4.0"):
		return R4, true
	case strings.HasPrefix(s, "4.3"), strings.HasPrefix(s, "4.2"):
		return R4B, true
	case strings.HasPrefix(s, "5."):
		return R5, true
	}
	return "", false
}
