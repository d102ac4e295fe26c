package provider

import (
	"context"
	"io"

	"github.com/gofhir/model/stream"
	"github.com/gofhir/model/worker"
)

// ValidateBatch validates resources in parallel with one worker per unit of
// ConstraintConcurrency. Results are in input order; each one is also
// counted in Metrics.
func (p *Provider) ValidateBatch(ctx context.Context, resources [][]byte) *worker.BatchResult {
	return worker.NewBatch(p, p.opts.ConstraintConcurrency).Validate(ctx, resources)
}

// ValidateBundle streams the entries of the Bundle read from r through
// ValidateConformance.
func (p *Provider) ValidateBundle(ctx context.Context, r io.Reader) <-chan *stream.EntryResult {
	return stream.NewBundleValidator(p).
		WithWorkerCount(p.opts.ConstraintConcurrency).
		ValidateStream(ctx, r)
}
