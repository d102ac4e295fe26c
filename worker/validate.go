package worker

import (
	"context"
	"errors"
	"time"

	fm "github.com/gofhir/model"
)

// ErrNoValidator is returned when no validator was configured.
var ErrNoValidator = errors.New("no validator configured")

// validate runs v on resource and times it.
func validate(ctx context.Context, v fm.ConformanceValidator, id string, index int, resource []byte) *JobResult {
	start := time.Now()
	r := &JobResult{ID: id, Index: index}
	switch {
	case v == nil:
		r.Err = ErrNoValidator
	case ctx.Err() != nil:
		r.Err = ctx.Err()
	default:
		r.Result, r.Err = v.ValidateConformance(ctx, resource)
		if r.Err != nil {
			r.Result = nil
		}
	}
	r.Duration = time.Since(start)
	return r
}
