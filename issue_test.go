package fhirmodel

import (
	"testing"
)

func TestSeverity_IsValid(t *testing.T) {
	tests := []struct {
		severity Severity
		want     bool
	}{
		{SeverityError, true},
		{SeverityWarning, true},
		{SeverityInformation, true},
		{"fatal", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.severity.IsValid(); got != tt.want {
			t.Errorf("Severity(%q).IsValid() = %v; want %v", tt.severity, got, tt.want)
		}
	}
}

func TestViolation_IsError(t *testing.T) {
	tests := []struct {
		severity Severity
		want     bool
	}{
		{SeverityError, true},
		{SeverityWarning, false},
		{SeverityInformation, false},
	}

	for _, tt := range tests {
		v := Violation{Severity: tt.severity}
		if got := v.IsError(); got != tt.want {
			t.Errorf("Violation{Severity: %s}.IsError() = %v; want %v", tt.severity, got, tt.want)
		}
	}
}

func TestViolation_IsWarning(t *testing.T) {
	tests := []struct {
		severity Severity
		want     bool
	}{
		{SeverityError, false},
		{SeverityWarning, true},
		{SeverityInformation, false},
	}

	for _, tt := range tests {
		v := Violation{Severity: tt.severity}
		if got := v.IsWarning(); got != tt.want {
			t.Errorf("Violation{Severity: %s}.IsWarning() = %v; want %v", tt.severity, got, tt.want)
		}
	}
}

func TestViolation_String(t *testing.T) {
	tests := []struct {
		v    Violation
		want string
	}{
		{
			v:    Violation{Severity: SeverityError, Message: "Invalid value"},
			want: "error: Invalid value",
		},
		{
			v:    Violation{Severity: SeverityWarning, Message: "Consider using code", Path: "Patient.gender"},
			want: "warning: Consider using code at Patient.gender",
		},
		{
			v:    Violation{Severity: SeverityError, Message: "No contact details", Path: "Patient", ConstraintID: "pat-1"},
			want: "error: No contact details at Patient [pat-1]",
		},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Violation.String() = %q; want %q", got, tt.want)
		}
	}
}

func TestViolationBuilders(t *testing.T) {
	tests := []struct {
		name    string
		builder *ViolationBuilder
		want    Severity
	}{
		{"NewViolation", NewViolation(SeverityWarning), SeverityWarning},
		{"Error", Error(), SeverityError},
		{"Warning", Warning(), SeverityWarning},
		{"Info", Info(), SeverityInformation},
	}

	for _, tt := range tests {
		if got := tt.builder.Build().Severity; got != tt.want {
			t.Errorf("%s().Build().Severity = %s; want %s", tt.name, got, tt.want)
		}
	}
}

func TestViolationBuilder_Chaining(t *testing.T) {
	v := Error().
		At("Patient.birthDate").
		Messagef("invalid date %q", "1970-13-01").
		Constraint("dom-3").
		Build()

	want := Violation{
		Severity:     SeverityError,
		Path:         "Patient.birthDate",
		Message:      `invalid date "1970-13-01"`,
		ConstraintID: "dom-3",
	}
	if v != want {
		t.Errorf("Build() = %+v; want %+v", v, want)
	}

	if got := Info().Message("plain").Build().Message; got != "plain" {
		t.Errorf("Message = %q; want %q", got, "plain")
	}
}
