package fhirmodel

import (
	"encoding/json"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConformanceStatus summarises a ConformanceResult.
type ConformanceStatus string

const (
	StatusValid   ConformanceStatus = "valid"
	StatusWarning ConformanceStatus = "warning"
	StatusInvalid ConformanceStatus = "invalid"
)

// ConformanceResult is the outcome of validating one resource.
//
// The status is never stored; it is derived from the violations on every
// call to Status, so it cannot disagree with them.
type ConformanceResult struct {
	// ResourceType is the declared type of the validated resource
	ResourceType string `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`

	// Violations are kept in the order they were found
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty"`

	// mu protects concurrent access to Violations
	mu sync.Mutex
}

// NewConformanceResult creates an empty result for resourceType.
func NewConformanceResult(resourceType string) *ConformanceResult {
	return &ConformanceResult{
		ResourceType: resourceType,
		Violations:   make([]Violation, 0, 8),
	}
}

// Status derives the overall status: Invalid if any violation is an error,
// Warning if the most severe one is a warning, Valid otherwise.
func (r *ConformanceResult) Status() ConformanceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	worst := 0
	for _, v := range r.Violations {
		if rank := v.Severity.rank(); rank > worst {
			worst = rank
		}
	}
	switch worst {
	case SeverityError.rank():
		return StatusInvalid
	case SeverityWarning.rank():
		return StatusWarning
	}
	return StatusValid
}

// Add appends a violation.
// This method is thread-safe.
func (r *ConformanceResult) Add(v Violation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Violations = append(r.Violations, v)
}

// AddAll appends several violations.
// This method is thread-safe.
func (r *ConformanceResult) AddAll(vs []Violation) {
	if len(vs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Violations = append(r.Violations, vs...)
}

// AddError is a convenience method to add an error violation.
func (r *ConformanceResult) AddError(path, message string) {
	r.Add(Violation{Severity: SeverityError, Path: path, Message: message})
}

// AddWarning is a convenience method to add a warning violation.
func (r *ConformanceResult) AddWarning(path, message string) {
	r.Add(Violation{Severity: SeverityWarning, Path: path, Message: message})
}

// AddInfo is a convenience method to add an informational violation.
func (r *ConformanceResult) AddInfo(path, message string) {
	r.Add(Violation{Severity: SeverityInformation, Path: path, Message: message})
}

// Errors returns all error violations.
func (r *ConformanceResult) Errors() []Violation {
	return r.filter(SeverityError)
}

// Warnings returns all warning violations.
func (r *ConformanceResult) Warnings() []Violation {
	return r.filter(SeverityWarning)
}

// ErrorCount returns the number of error violations.
func (r *ConformanceResult) ErrorCount() int {
	return len(r.filter(SeverityError))
}

func (r *ConformanceResult) filter(severity Severity) []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}

// Merge appends the violations of other.
func (r *ConformanceResult) Merge(other *ConformanceResult) {
	if other == nil || other == r {
		return
	}
	other.mu.Lock()
	vs := make([]Violation, len(other.Violations))
	copy(vs, other.Violations)
	other.mu.Unlock()

	r.AddAll(vs)
}

// Clone returns an independent copy.
func (r *ConformanceResult) Clone() *ConformanceResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &ConformanceResult{
		ResourceType: r.ResourceType,
		Violations:   make([]Violation, len(r.Violations)),
	}
	copy(c.Violations, r.Violations)
	return c
}

type conformanceResultJSON struct {
	Status       ConformanceStatus `json:"status" yaml:"status"`
	ResourceType string            `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	Violations   []Violation       `json:"violations,omitempty" yaml:"violations,omitempty"`
}

func (r *ConformanceResult) wire() conformanceResultJSON {
	status := r.Status()
	r.mu.Lock()
	defer r.mu.Unlock()
	return conformanceResultJSON{
		Status:       status,
		ResourceType: r.ResourceType,
		Violations:   append([]Violation(nil), r.Violations...),
	}
}

func (r *ConformanceResult) setWire(aux conformanceResultJSON) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResourceType = aux.ResourceType
	r.Violations = aux.Violations
}

// MarshalJSON includes the derived status.
func (r *ConformanceResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// UnmarshalJSON ignores any serialized status; it is re-derived on demand.
func (r *ConformanceResult) UnmarshalJSON(data []byte) error {
	var aux conformanceResultJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.setWire(aux)
	return nil
}

// MarshalYAML includes the derived status.
func (r *ConformanceResult) MarshalYAML() (any, error) {
	return r.wire(), nil
}

// UnmarshalYAML ignores any serialized status.
func (r *ConformanceResult) UnmarshalYAML(node *yaml.Node) error {
	var aux conformanceResultJSON
	if err := node.Decode(&aux); err != nil {
		return err
	}
	r.setWire(aux)
	return nil
}
