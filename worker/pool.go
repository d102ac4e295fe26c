package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	fm "github.com/gofhir/model"
)

// Pool is a fixed set of goroutines validating submitted jobs.
//
// Results must be consumed from Results, or the pool stops taking jobs once
// its buffers are full. Close or CloseAndWait must be called to release the
// goroutines.
type Pool struct {
	workers   int
	jobs      chan Job
	results   chan *JobResult
	validator fm.ConformanceValidator
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards closing jobs against concurrent Submit calls
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	// Metrics
	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsFailed    atomic.Uint64
	totalDuration atomic.Int64
}

// NewPool starts a pool. workers <= 0 means runtime.NumCPU(); a nil logger
// disables logging.
func NewPool(v fm.ConformanceValidator, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:   workers,
		jobs:      make(chan Job, workers*2),
		results:   make(chan *JobResult, workers*2),
		validator: v,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// Submit queues job, blocking while the queue is full. It returns false if
// the pool is closed or ctx ends first.
func (p *Pool) Submit(ctx context.Context, job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		p.jobsSubmitted.Add(1)
		return true
	case <-ctx.Done():
		return false
	case <-p.ctx.Done():
		return false
	}
}

// TrySubmit queues job without blocking. It returns false if the queue is
// full or the pool is closed.
func (p *Pool) TrySubmit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		p.jobsSubmitted.Add(1)
		return true
	default:
		return false
	}
}

// Results returns the channel results are delivered on. It is closed once
// the pool has shut down.
func (p *Pool) Results() <-chan *JobResult {
	return p.results
}

// Close stops the pool. Queued jobs that have not started are dropped and
// undelivered results are discarded.
func (p *Pool) Close() {
	p.cancel()
	go func() {
		for range p.results {
		}
	}()
	p.shutdown()
}

// Drain stops accepting jobs and blocks until every queued job has been
// delivered on Results, which is then closed. Another goroutine must keep
// reading Results.
func (p *Pool) Drain() {
	p.shutdown()
	p.cancel()
}

// CloseAndWait stops accepting jobs, waits for every queued job and returns
// the results that were not already read from Results.
func (p *Pool) CloseAndWait() *BatchResult {
	var pending []*JobResult
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for r := range p.results {
			pending = append(pending, r)
		}
	}()

	p.shutdown()
	<-drained
	p.cancel()

	br := &BatchResult{
		Results:       pending,
		TotalJobs:     int(p.jobsSubmitted.Load()), //nolint:gosec // job counts fit in int
		CompletedJobs: int(p.jobsCompleted.Load()), //nolint:gosec // job counts fit in int
		FailedJobs:    int(p.jobsFailed.Load()),    //nolint:gosec // job counts fit in int
		TotalDuration: time.Duration(p.totalDuration.Load()),
	}
	for _, r := range pending {
		if r.Invalid() {
			br.InvalidJobs++
		}
	}
	return br
}

func (p *Pool) shutdown() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()
		close(p.results)

		stats := p.Stats()
		p.log.Debug("worker pool closed",
			zap.Uint64("submitted", stats.JobsSubmitted),
			zap.Uint64("completed", stats.JobsCompleted),
			zap.Uint64("failed", stats.JobsFailed))
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		if p.ctx.Err() != nil {
			continue
		}

		result := validate(p.ctx, p.validator, job.ID, 0, job.Resource)
		p.jobsCompleted.Add(1)
		p.totalDuration.Add(int64(result.Duration))
		if result.Failed() {
			p.jobsFailed.Add(1)
		}

		select {
		case p.results <- result:
		case <-p.ctx.Done():
		}
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	JobsFailed    uint64
	AvgDuration   time.Duration
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	s := PoolStats{
		Workers:       p.workers,
		JobsSubmitted: p.jobsSubmitted.Load(),
		JobsCompleted: p.jobsCompleted.Load(),
		JobsFailed:    p.jobsFailed.Load(),
	}
	if s.JobsCompleted > 0 {
		s.AvgDuration = time.Duration(uint64(p.totalDuration.Load()) / s.JobsCompleted) //nolint:gosec // durations are positive
	}
	return s
}
