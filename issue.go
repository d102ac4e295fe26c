package fhirmodel

import "fmt"

// Severity is the severity of a violation.
// Values match OperationOutcome.issue.severity.
type Severity string

const (
	// SeverityError makes a resource non-conformant.
	SeverityError Severity = "error"
	// SeverityWarning indicates a potential problem that should be reviewed.
	SeverityWarning Severity = "warning"
	// SeverityInformation records context, such as the presence of a modifier element.
	SeverityInformation Severity = "information"
)

// IsValid reports whether s is one of the three known severities.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInformation:
		return true
	}
	return false
}

// rank orders severities so that a higher rank is more severe.
func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInformation:
		return 1
	}
	return 0
}

// Violation is one finding of a conformance check.
type Violation struct {
	Severity Severity `json:"severity" yaml:"severity"`

	// Path locates the offending element, e.g. "Patient.name[0].given"
	Path string `json:"path" yaml:"path"`

	Message string `json:"message" yaml:"message"`

	// ConstraintID is set when the violation comes from an invariant (e.g. "pat-1")
	ConstraintID string `json:"constraintId,omitempty" yaml:"constraintId,omitempty"`
}

// IsError returns true for error severity.
func (v Violation) IsError() bool {
	return v.Severity == SeverityError
}

// IsWarning returns true for warning severity.
func (v Violation) IsWarning() bool {
	return v.Severity == SeverityWarning
}

// String returns a human-readable representation of the violation.
func (v Violation) String() string {
	s := string(v.Severity) + ": " + v.Message
	if v.Path != "" {
		s += " at " + v.Path
	}
	if v.ConstraintID != "" {
		s += " [" + v.ConstraintID + "]"
	}
	return s
}

// ViolationBuilder provides a fluent API for building violations.
type ViolationBuilder struct {
	v Violation
}

// NewViolation creates a new ViolationBuilder.
func NewViolation(severity Severity) *ViolationBuilder {
	return &ViolationBuilder{v: Violation{Severity: severity}}
}

// Error creates an error violation.
func Error() *ViolationBuilder {
	return NewViolation(SeverityError)
}

// Warning creates a warning violation.
func Warning() *ViolationBuilder {
	return NewViolation(SeverityWarning)
}

// Info creates an informational violation.
func Info() *ViolationBuilder {
	return NewViolation(SeverityInformation)
}

// At sets the path.
func (b *ViolationBuilder) At(path string) *ViolationBuilder {
	b.v.Path = path
	return b
}

// Message sets the message.
func (b *ViolationBuilder) Message(msg string) *ViolationBuilder {
	b.v.Message = msg
	return b
}

// Messagef sets a formatted message.
func (b *ViolationBuilder) Messagef(format string, args ...any) *ViolationBuilder {
	b.v.Message = fmt.Sprintf(format, args...)
	return b
}

// Constraint sets the constraint id.
func (b *ViolationBuilder) Constraint(id string) *ViolationBuilder {
	b.v.ConstraintID = id
	return b
}

// Build returns the constructed violation.
func (b *ViolationBuilder) Build() Violation {
	return b.v
}
