// Package worker validates many resources in parallel against any
// fm.ConformanceValidator.
//
// For a fixed set of resources use Batch, which returns results in input
// order:
//
//	result := worker.NewBatch(provider, 4).Validate(ctx, resources)
//	if result.HasErrors() {
//		// inspect result.Results
//	}
//
// For a long-running producer use Pool:
//
//	pool := worker.NewPool(provider, 4, nil)
//	go func() {
//		for i, r := range incoming {
//			pool.Submit(ctx, worker.Job{ID: strconv.Itoa(i), Resource: r})
//		}
//		pool.Close()
//	}()
//	for result := range pool.Results() {
//		// result.Result, result.Err
//	}
package worker
