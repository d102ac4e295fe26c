package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync"

	fm "github.com/gofhir/model"
)

// Batch validates a fixed set of resources in parallel.
type Batch struct {
	validator fm.ConformanceValidator
	workers   int
}

// NewBatch creates a Batch. workers <= 0 means runtime.NumCPU().
func NewBatch(v fm.ConformanceValidator, workers int) *Batch {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Batch{validator: v, workers: workers}
}

// Validate validates every resource and returns one JobResult per input, in
// input order. Job IDs are the input indexes. Resources not started before
// ctx ends are reported with ctx's error.
func (b *Batch) Validate(ctx context.Context, resources [][]byte) *BatchResult {
	results := make([]*JobResult, len(resources))
	if len(resources) <= 2 {
		for i, res := range resources {
			results[i] = validate(ctx, b.validator, strconv.Itoa(i), i, res)
		}
		return collect(results)
	}

	workers := min(b.workers, len(resources))
	indexes := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = validate(ctx, b.validator, strconv.Itoa(i), i, resources[i])
			}
		}()
	}

	for i := range resources {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return collect(results)
}

func collect(results []*JobResult) *BatchResult {
	br := &BatchResult{Results: results, TotalJobs: len(results)}
	for _, r := range results {
		br.add(r)
	}
	return br
}

// ValidateBatch validates resources with one worker per CPU.
func ValidateBatch(ctx context.Context, v fm.ConformanceValidator, resources [][]byte) *BatchResult {
	return NewBatch(v, runtime.NumCPU()).Validate(ctx, resources)
}
