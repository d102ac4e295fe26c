package constraint

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	fm "github.com/gofhir/model"
)

// DefaultTimeout bounds a single invariant evaluation.
const DefaultTimeout = 5 * time.Second

// Engine checks and delegates invariant evaluation.
type Engine struct {
	types   Types
	eval    fm.ExpressionEvaluator
	limit   int
	timeout time.Duration
	log     *zap.Logger
	metrics *fm.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConcurrency limits the number of invariants evaluated in parallel by
// EvaluateAll.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithTimeout bounds each evaluation. Zero disables the bound.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for failed evaluations.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records every outcome in m.
func WithMetrics(m *fm.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine. A nil evaluator makes every evaluation an
// error outcome.
func NewEngine(types Types, eval fm.ExpressionEvaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		types:   types,
		eval:    eval,
		limit:   runtime.NumCPU(),
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates one invariant against res. Failures of any kind are
// returned as an OutcomeError result.
func (e *Engine) Evaluate(ctx context.Context, c fm.ConstraintInfo, res *fm.Resource) fm.ConstraintResult {
	result := e.evaluate(ctx, c, res)
	if result.IsError() {
		e.log.Warn("constraint evaluation failed",
			zap.String("constraint", c.ID),
			zap.String("expression", c.Expression),
			zap.String("diagnostic", result.Diagnostic))
	}
	if e.metrics != nil {
		e.metrics.RecordConstraint(result.Outcome)
	}
	return result
}

func (e *Engine) evaluate(ctx context.Context, c fm.ConstraintInfo, res *fm.Resource) fm.ConstraintResult {
	if err := c.Validate(); err != nil {
		return fm.EvaluationFailed(c.ID, err)
	}
	if res == nil {
		return fm.EvaluationFailed(c.ID, fmt.Errorf("%w: no resource", fm.ErrMalformedInput))
	}
	if e.eval == nil {
		return fm.EvaluationFailed(c.ID, fmt.Errorf("%w: no expression evaluator configured", fm.ErrCapabilityDisabled))
	}

	contextType := res.ResourceType
	if c.TypeName != "" && c.TypeName != contextType && !e.types.IsSubtypeOf(contextType, c.TypeName) {
		return fm.EvaluationFailed(c.ID, fmt.Errorf("constraint applies to %s, not %s", c.TypeName, contextType))
	}
	if info, err := e.types.TypeReflection(contextType); err != nil {
		return fm.EvaluationFailed(c.ID, err)
	} else if info != nil {
		if err := CheckPaths(c.Expression, contextType, e.types); err != nil {
			return fm.EvaluationFailed(c.ID, err)
		}
	}

	ok, err := e.run(ctx, c.Expression, res)
	switch {
	case err != nil:
		return fm.EvaluationFailed(c.ID, err)
	case ok:
		return fm.Satisfied(c.ID)
	default:
		return fm.Violated(c.ID)
	}
}

type evalResult struct {
	ok  bool
	err error
}

// run delegates to the evaluator, giving up when ctx ends or the timeout
// expires. The evaluator goroutine may outlive the call; its result is
// discarded.
func (e *Engine) run(ctx context.Context, expr string, res *fm.Resource) (bool, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	done := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evalResult{err: fmt.Errorf("evaluator panic: %v", r)}
			}
		}()
		ok, err := e.eval.EvaluateBoolean(ctx, expr, res)
		done <- evalResult{ok: ok, err: err}
	}()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		if e.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("evaluation timed out after %s", e.timeout)
		}
		return false, ctx.Err()
	}
}

// EvaluateAll evaluates every invariant independently and returns the
// results in input order.
func (e *Engine) EvaluateAll(ctx context.Context, cs []fm.ConstraintInfo, res *fm.Resource) []fm.ConstraintResult {
	results := make([]fm.ConstraintResult, len(cs))
	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for i := range cs {
		g.Go(func() error {
			results[i] = e.Evaluate(ctx, cs[i], res)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
