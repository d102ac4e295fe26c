package fhirmodel

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_TypeLookups(t *testing.T) {
	m := NewMetrics()

	m.RecordTypeLookup(true)
	m.RecordTypeLookup(true)
	m.RecordTypeLookup(false)
	m.RecordSchemaFailure()

	s := m.Snapshot()
	if s.TypeLookups != 3 {
		t.Errorf("TypeLookups = %d; want 3", s.TypeLookups)
	}
	if s.TypeMisses != 1 {
		t.Errorf("TypeMisses = %d; want 1", s.TypeMisses)
	}
	if s.SchemaFailures != 1 {
		t.Errorf("SchemaFailures = %d; want 1", s.SchemaFailures)
	}
}

func TestMetrics_Cache(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss(10 * time.Millisecond)
	m.RecordCacheMiss(30 * time.Millisecond)

	s := m.Snapshot()
	if s.CacheHits != 3 || s.CacheMisses != 2 {
		t.Errorf("hits/misses = %d/%d; want 3/2", s.CacheHits, s.CacheMisses)
	}
	if got := s.CacheHitRate(); got != 0.6 {
		t.Errorf("CacheHitRate() = %v; want 0.6", got)
	}
	if s.AvgResolveTime != 20*time.Millisecond {
		t.Errorf("AvgResolveTime = %v; want 20ms", s.AvgResolveTime)
	}
	if s.MaxResolveTime != 30*time.Millisecond {
		t.Errorf("MaxResolveTime = %v; want 30ms", s.MaxResolveTime)
	}
}

func TestMetrics_CacheHitRate_NoDivByZero(t *testing.T) {
	if got := NewMetrics().Snapshot().CacheHitRate(); got != 0 {
		t.Errorf("CacheHitRate() = %v; want 0", got)
	}
}

func TestMetrics_Validations(t *testing.T) {
	m := NewMetrics()

	m.RecordValidation(StatusValid)
	m.RecordValidation(StatusWarning)
	m.RecordValidation(StatusInvalid)

	s := m.Snapshot()
	if s.ValidationsTotal != 3 || s.ValidationsValid != 2 {
		t.Errorf("validations total/valid = %d/%d; want 3/2", s.ValidationsTotal, s.ValidationsValid)
	}
}

func TestMetrics_Constraints(t *testing.T) {
	m := NewMetrics()

	m.RecordConstraint(OutcomeSatisfied)
	m.RecordConstraint(OutcomeSatisfied)
	m.RecordConstraint(OutcomeViolated)
	m.RecordConstraint(OutcomeError)
	m.RecordConstraint("unknown")

	s := m.Snapshot()
	if s.ConstraintsSatisfied != 2 || s.ConstraintsViolated != 1 || s.ConstraintsErrored != 1 {
		t.Errorf("constraints = %d/%d/%d; want 2/1/1", s.ConstraintsSatisfied, s.ConstraintsViolated, s.ConstraintsErrored)
	}
	if s.ConstraintsTotal() != 4 {
		t.Errorf("ConstraintsTotal() = %d; want 4", s.ConstraintsTotal())
	}
}

func TestMetrics_References(t *testing.T) {
	m := NewMetrics()

	m.RecordReference(true)
	m.RecordReference(false)
	m.RecordReference(false)
	m.RecordReferenceCancelled()

	s := m.Snapshot()
	if s.ReferencesResolved != 1 || s.ReferencesUnresolved != 2 || s.ReferencesCancelled != 1 {
		t.Errorf("references = %d/%d/%d; want 1/2/1", s.ReferencesResolved, s.ReferencesUnresolved, s.ReferencesCancelled)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.RecordTypeLookup(false)
	m.RecordCacheMiss(time.Millisecond)
	m.RecordValidation(StatusValid)
	m.RecordConstraint(OutcomeViolated)
	m.RecordReference(true)

	m.Reset()

	if s := m.Snapshot(); s != (MetricsSnapshot{}) {
		t.Errorf("Snapshot() after Reset = %+v; want zero", s)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordTypeLookup(true)
			m.RecordCacheHit()
			m.RecordCacheMiss(time.Microsecond)
			m.RecordConstraint(OutcomeSatisfied)
			_ = m.Snapshot()
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.TypeLookups != 100 || s.CacheHits != 100 || s.CacheMisses != 100 || s.ConstraintsSatisfied != 100 {
		t.Errorf("Snapshot() = %+v; want 100 of each", s)
	}
}
