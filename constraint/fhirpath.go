package constraint

import (
	"context"
	"fmt"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/funcs"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/cache"
)

func init() {
	// trace() appears in core invariants and writes to stderr by default.
	funcs.SetTraceLogger(funcs.NullTraceLogger{})
}

// DefaultExpressionCacheSize bounds the compiled expression cache.
const DefaultExpressionCacheSize = 2000

// FHIRPath evaluates expressions with the gofhir FHIRPath engine.
// Compiled expressions are kept in an LRU cache.
type FHIRPath struct {
	compiled *cache.LRU[string, *fhirpath.Expression]
}

// NewFHIRPath creates an evaluator caching up to size compiled expressions.
func NewFHIRPath(size int) *FHIRPath {
	if size <= 0 {
		size = DefaultExpressionCacheSize
	}
	return &FHIRPath{compiled: cache.New[string, *fhirpath.Expression](size)}
}

// EvaluateBoolean evaluates expression against resource. An empty result
// is true; a result that is not a single boolean is an error.
func (f *FHIRPath) EvaluateBoolean(ctx context.Context, expression string, resource *fm.Resource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if resource == nil {
		return false, fmt.Errorf("%w: nil resource", fm.ErrMalformedInput)
	}

	expr, err := f.compile(expression)
	if err != nil {
		return false, err
	}

	data, err := resource.JSON()
	if err != nil {
		return false, fmt.Errorf("encoding resource: %w", err)
	}

	result, err := expr.Evaluate(data)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", expression, err)
	}
	if result.Empty() {
		return true, nil
	}
	b, err := result.ToBoolean()
	if err != nil {
		return false, fmt.Errorf("%q did not produce a boolean: %w", expression, err)
	}
	return b, nil
}

func (f *FHIRPath) compile(expression string) (*fhirpath.Expression, error) {
	return f.compiled.GetOrLoad(expression, func() (*fhirpath.Expression, error) {
		expr, err := fhirpath.Compile(expression)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", expression, err)
		}
		return expr, nil
	})
}

// CacheStats reports the compiled expression cache statistics.
func (f *FHIRPath) CacheStats() cache.Stats {
	return f.compiled.Stats()
}

// ClearCache drops all compiled expressions.
func (f *FHIRPath) ClearCache() {
	f.compiled.Purge()
}

var _ fm.ExpressionEvaluator = (*FHIRPath)(nil)
