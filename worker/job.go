package worker

import (
	"time"

	fm "github.com/gofhir/model"
)

// Job is one resource to validate.
type Job struct {
	// ID identifies the job in its JobResult.
	ID string

	// Resource is the JSON resource.
	Resource []byte
}

// JobResult is the outcome of one Job.
type JobResult struct {
	ID string

	// Index is the position in the input of Batch.Validate; 0 for pool jobs.
	Index int

	// Result is nil when Err is set.
	Result *fm.ConformanceResult

	// Err is a failure to validate at all: malformed input, version
	// mismatch or cancellation.
	Err error

	Duration time.Duration
}

// Failed reports whether the job could not be validated.
func (r *JobResult) Failed() bool {
	return r.Err != nil
}

// Invalid reports whether the resource was validated and has errors.
func (r *JobResult) Invalid() bool {
	return r.Result != nil && r.Result.Status() == fm.StatusInvalid
}

// BatchResult aggregates the results of several jobs.
type BatchResult struct {
	Results []*JobResult

	TotalJobs     int
	CompletedJobs int

	// FailedJobs counts jobs with Err set.
	FailedJobs int

	// InvalidJobs counts validated resources with error violations.
	InvalidJobs int

	// TotalDuration sums the time spent in the validator.
	TotalDuration time.Duration
}

// HasErrors reports whether any job failed or found an invalid resource.
func (br *BatchResult) HasErrors() bool {
	return br.FailedJobs > 0 || br.InvalidJobs > 0
}

// ErrorCount returns the number of error violations across all results.
func (br *BatchResult) ErrorCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Result != nil {
			count += r.Result.ErrorCount()
		}
	}
	return count
}

// add records r in the counters.
func (br *BatchResult) add(r *JobResult) {
	br.CompletedJobs++
	br.TotalDuration += r.Duration
	if r.Failed() {
		br.FailedJobs++
	}
	if r.Invalid() {
		br.InvalidJobs++
	}
}
