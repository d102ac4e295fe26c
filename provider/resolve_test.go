package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/reference"
)

func mustResource(t *testing.T, data string) *fm.Resource {
	t.Helper()
	res, err := fm.ParseResource([]byte(data))
	if err != nil {
		t.Fatalf("ParseResource() error = %v", err)
	}
	return res
}

func TestResolveReference(t *testing.T) {
	p := newProvider(t)
	patient := mustResource(t, `{"resourceType": "Patient", "id": "p1"}`)
	bundle := reference.NewBundle(patient)

	got := p.ResolveReference("Patient/p1", bundle)
	if got == nil || got.Resource != patient {
		t.Fatalf("ResolveReference(Patient/p1) = %v; want the patient", got)
	}
	if got.Reference.Kind != fm.ReferenceRelative || got.Reference.ID != "p1" {
		t.Errorf("Reference = %+v", got.Reference)
	}

	for _, ref := range []string{"Patient/p2", "not a reference", ""} {
		if got := p.ResolveReference(ref, bundle); got != nil {
			t.Errorf("ResolveReference(%q) = %v; want nil", ref, got)
		}
	}
	if got := p.ResolveReference("Patient/p1", nil); got != nil {
		t.Errorf("ResolveReference with nil context = %v; want nil", got)
	}

	m := p.Metrics()
	if m.ReferencesResolved != 1 || m.ReferencesUnresolved != 4 {
		t.Errorf("references resolved/unresolved = %d/%d; want 1/4", m.ReferencesResolved, m.ReferencesUnresolved)
	}
}

func TestResolveReferenceAsync_Disabled(t *testing.T) {
	p := newProvider(t)
	f, err := p.ResolveReferenceAsync(context.Background(), "Patient/p1", reference.NewChain())
	if f != nil || !errors.Is(err, fm.ErrCapabilityDisabled) {
		t.Errorf("ResolveReferenceAsync() = %v, %v; want nil, ErrCapabilityDisabled", f, err)
	}
}

func TestResolveReferenceAsync(t *testing.T) {
	p := newProvider(t, fm.WithAsync(true))
	patient := mustResource(t, `{"resourceType": "Patient", "id": "p1"}`)
	rc := reference.NewChain(reference.Async(reference.NewBundle(patient)))

	tests := []struct {
		ref  string
		rc   fm.AsyncResolutionContext
		want *fm.Resource
	}{
		{ref: "Patient/p1", rc: rc, want: patient},
		{ref: "Patient/missing", rc: rc},
		{ref: "::bad::", rc: rc},
		{ref: "Patient/p1", rc: nil},
		{
			ref: "Patient/p1",
			rc: reference.Func(func(context.Context, fm.Reference) (*fm.Resource, error) {
				return nil, errors.New("store unavailable")
			}),
		},
	}
	for _, tt := range tests {
		f, err := p.ResolveReferenceAsync(context.Background(), tt.ref, tt.rc)
		if err != nil {
			t.Fatalf("ResolveReferenceAsync(%q) error = %v", tt.ref, err)
		}
		got, err := f.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait(%q) error = %v; want nil", tt.ref, err)
			continue
		}
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("Wait(%q) = %v; want nil", tt.ref, got)
		case tt.want != nil && (got == nil || got.Resource != tt.want):
			t.Errorf("Wait(%q) = %v; want %v", tt.ref, got, tt.want)
		}
	}

	if m := p.Metrics(); m.ReferencesResolved != 1 || m.ReferencesUnresolved != 4 {
		t.Errorf("resolved/unresolved = %d/%d; want 1/4", m.ReferencesResolved, m.ReferencesUnresolved)
	}
}

func TestResolveReferenceAsync_Cancel(t *testing.T) {
	p := newProvider(t, fm.WithAsync(true))
	patient := mustResource(t, `{"resourceType": "Patient", "id": "p1"}`)

	started := make(chan struct{})
	release := make(chan struct{})
	fetched := make(chan struct{})
	rc := reference.Func(func(ctx context.Context, _ fm.Reference) (*fm.Resource, error) {
		defer close(fetched)
		close(started)
		<-release
		// The resolver ignores cancellation and returns a value anyway.
		return patient, nil
	})

	f, err := p.ResolveReferenceAsync(context.Background(), "Patient/p1", rc)
	if err != nil {
		t.Fatal(err)
	}
	<-started
	f.Cancel()
	close(release)
	<-fetched

	got, err := f.Wait(context.Background())
	if got != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() after Cancel = %v, %v; want nil, context.Canceled", got, err)
	}

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("future not done after Cancel")
	}
	deadline := time.Now().Add(time.Second)
	for p.Metrics().ReferencesCancelled == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m := p.Metrics(); m.ReferencesCancelled != 1 || m.ReferencesResolved != 0 {
		t.Errorf("references cancelled/resolved = %d/%d; want 1/0", m.ReferencesCancelled, m.ReferencesResolved)
	}
}

func TestResolveReferenceAsync_ContextTimeout(t *testing.T) {
	p := newProvider(t, fm.WithAsync(true))
	rc := reference.Func(func(ctx context.Context, _ fm.Reference) (*fm.Resource, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f, err := p.ResolveReferenceAsync(ctx, "Patient/p1", rc)
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.Wait(context.Background())
	if got != nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, %v; want nil, context.DeadlineExceeded", got, err)
	}
}
