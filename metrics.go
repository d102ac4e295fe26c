package fhirmodel

import (
	"sync/atomic"
	"time"
)

// Metrics tracks provider activity using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Type lookups
	typeLookups    atomic.Uint64
	typeMisses     atomic.Uint64
	schemaFailures atomic.Uint64
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	resolveTimeSum atomic.Uint64 // nanoseconds, cache misses only
	resolveTimeMax atomic.Uint64

	// Conformance
	validationsTotal atomic.Uint64
	validationsValid atomic.Uint64

	// Constraints by outcome
	constraintsSatisfied atomic.Uint64
	constraintsViolated  atomic.Uint64
	constraintsErrored   atomic.Uint64

	// References
	referencesResolved   atomic.Uint64
	referencesUnresolved atomic.Uint64
	referencesCancelled  atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// --- Recording Methods ---

// RecordTypeLookup records one TypeReflection call. found is false for
// unknown names.
func (m *Metrics) RecordTypeLookup(found bool) {
	m.typeLookups.Add(1)
	if !found {
		m.typeMisses.Add(1)
	}
}

// RecordSchemaFailure records a lookup that failed with ErrInvalidSchema.
func (m *Metrics) RecordSchemaFailure() {
	m.schemaFailures.Add(1)
}

// RecordCacheHit records a type cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a type cache miss and the time spent resolving.
func (m *Metrics) RecordCacheMiss(resolve time.Duration) {
	m.cacheMisses.Add(1)
	ns := uint64(resolve.Nanoseconds()) //nolint:gosec // durations measured with time.Since are positive
	m.resolveTimeSum.Add(ns)
	for {
		old := m.resolveTimeMax.Load()
		if ns <= old || m.resolveTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordValidation records a completed conformance validation.
func (m *Metrics) RecordValidation(status ConformanceStatus) {
	m.validationsTotal.Add(1)
	if status != StatusInvalid {
		m.validationsValid.Add(1)
	}
}

// RecordConstraint records one invariant outcome.
func (m *Metrics) RecordConstraint(outcome Outcome) {
	switch outcome {
	case OutcomeSatisfied:
		m.constraintsSatisfied.Add(1)
	case OutcomeViolated:
		m.constraintsViolated.Add(1)
	case OutcomeError:
		m.constraintsErrored.Add(1)
	}
}

// RecordReference records a reference resolution attempt.
func (m *Metrics) RecordReference(resolved bool) {
	if resolved {
		m.referencesResolved.Add(1)
	} else {
		m.referencesUnresolved.Add(1)
	}
}

// RecordReferenceCancelled records an asynchronous resolution that was cancelled.
func (m *Metrics) RecordReferenceCancelled() {
	m.referencesCancelled.Add(1)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TypeLookups    uint64
	TypeMisses     uint64
	SchemaFailures uint64
	CacheHits      uint64
	CacheMisses    uint64
	AvgResolveTime time.Duration
	MaxResolveTime time.Duration

	ValidationsTotal uint64
	ValidationsValid uint64

	ConstraintsSatisfied uint64
	ConstraintsViolated  uint64
	ConstraintsErrored   uint64

	ReferencesResolved   uint64
	ReferencesUnresolved uint64
	ReferencesCancelled  uint64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		TypeLookups:          m.typeLookups.Load(),
		TypeMisses:           m.typeMisses.Load(),
		SchemaFailures:       m.schemaFailures.Load(),
		CacheHits:            m.cacheHits.Load(),
		CacheMisses:          m.cacheMisses.Load(),
		MaxResolveTime:       time.Duration(m.resolveTimeMax.Load()), //nolint:gosec // nanoseconds within int64 range
		ValidationsTotal:     m.validationsTotal.Load(),
		ValidationsValid:     m.validationsValid.Load(),
		ConstraintsSatisfied: m.constraintsSatisfied.Load(),
		ConstraintsViolated:  m.constraintsViolated.Load(),
		ConstraintsErrored:   m.constraintsErrored.Load(),
		ReferencesResolved:   m.referencesResolved.Load(),
		ReferencesUnresolved: m.referencesUnresolved.Load(),
		ReferencesCancelled:  m.referencesCancelled.Load(),
	}
	if s.CacheMisses > 0 {
		s.AvgResolveTime = time.Duration(m.resolveTimeSum.Load() / s.CacheMisses) //nolint:gosec // nanoseconds within int64 range
	}
	return s
}

// CacheHitRate returns the type cache hit rate (0.0 to 1.0).
func (s MetricsSnapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// ConstraintsTotal returns the number of invariants evaluated.
func (s MetricsSnapshot) ConstraintsTotal() uint64 {
	return s.ConstraintsSatisfied + s.ConstraintsViolated + s.ConstraintsErrored
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.typeLookups, &m.typeMisses, &m.schemaFailures, &m.cacheHits, &m.cacheMisses,
		&m.resolveTimeSum, &m.resolveTimeMax, &m.validationsTotal, &m.validationsValid,
		&m.constraintsSatisfied, &m.constraintsViolated, &m.constraintsErrored,
		&m.referencesResolved, &m.referencesUnresolved, &m.referencesCancelled,
	} {
		c.Store(0)
	}
}
