package fhirmodel

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/gofhir/model/pkg/logger"
)

// Option configures a provider.
type Option func(*Options)

// Options holds all configuration for a provider.
type Options struct {
	// Capability switches
	EnableAsync       bool
	EnableInterchange bool

	// Type resolution
	MaxBaseDepth  int
	TypeCacheSize int

	// Constraint evaluation
	ExpressionCacheSize   int
	ConstraintConcurrency int
	EvaluationTimeout     time.Duration
	Evaluator             ExpressionEvaluator

	Logger *zap.Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		// Optional capabilities are off until asked for
		EnableAsync:       false,
		EnableInterchange: false,

		MaxBaseDepth:  32,
		TypeCacheSize: 1000,

		ExpressionCacheSize:   2000,
		ConstraintConcurrency: runtime.NumCPU(),
		EvaluationTimeout:     5 * time.Second,

		Logger: logger.Default(),
	}
}

// Apply applies opts on top of o and returns o.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// --- Capability Options ---

// WithAsync enables asynchronous reference resolution.
func WithAsync(enable bool) Option {
	return func(o *Options) {
		o.EnableAsync = enable
	}
}

// WithInterchange enables JSON and YAML codecs for the data model.
func WithInterchange(enable bool) Option {
	return func(o *Options) {
		o.EnableInterchange = enable
	}
}

// --- Resolution Options ---

// WithMaxBaseDepth bounds the base-type chain walk.
func WithMaxBaseDepth(depth int) Option {
	return func(o *Options) {
		if depth > 0 {
			o.MaxBaseDepth = depth
		}
	}
}

// WithTypeCacheSize sets the number of resolved types kept in memory.
func WithTypeCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.TypeCacheSize = size
		}
	}
}

// --- Constraint Options ---

// WithExpressionCacheSize sets the number of compiled FHIRPath expressions kept in memory.
func WithExpressionCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// WithConstraintConcurrency bounds the goroutines used by batch evaluation.
// Defaults to runtime.NumCPU().
func WithConstraintConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ConstraintConcurrency = n
		}
	}
}

// WithEvaluationTimeout bounds a single invariant evaluation.
// Use 0 for no timeout.
func WithEvaluationTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.EvaluationTimeout = timeout
	}
}

// WithEvaluator replaces the FHIRPath engine used for invariants.
func WithEvaluator(e ExpressionEvaluator) Option {
	return func(o *Options) {
		o.Evaluator = e
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.Logger = l
	}
}

// --- Presets ---

// FullOptions enables every optional capability.
func FullOptions() []Option {
	return []Option{
		WithAsync(true),
		WithInterchange(true),
	}
}
