// Package stream validates the entries of a Bundle as they are read, without
// decoding the whole Bundle first.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/buger/jsonparser"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/worker"
)

// EntryResult is the outcome for one Bundle entry.
type EntryResult struct {
	// Index is the position of the entry in Bundle.entry, or -1 for an
	// error about the Bundle itself.
	Index int

	FullURL      string
	ResourceType string
	ResourceID   string

	// Result is nil when Error is set or the entry has no resource.
	Result *fm.ConformanceResult

	// Error is a failure to read or validate the entry.
	Error error
}

// bundleEntry is the part of a Bundle entry validation needs.
type bundleEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

// BundleValidator validates Bundle entries against a ConformanceValidator.
type BundleValidator struct {
	validator   fm.ConformanceValidator
	bufferSize  int
	workerCount int
}

// NewBundleValidator creates a BundleValidator.
func NewBundleValidator(v fm.ConformanceValidator) *BundleValidator {
	return &BundleValidator{
		validator:   v,
		bufferSize:  100,
		workerCount: 4,
	}
}

// WithBufferSize sets the result channel buffer size.
func (v *BundleValidator) WithBufferSize(size int) *BundleValidator {
	if size > 0 {
		v.bufferSize = size
	}
	return v
}

// WithWorkerCount sets the number of workers used by ValidateStreamParallel.
func (v *BundleValidator) WithWorkerCount(count int) *BundleValidator {
	if count > 0 {
		v.workerCount = count
	}
	return v
}

// ValidateStream reads a Bundle from r and emits one result per entry, in
// entry order. The channel is closed when the Bundle ends, on the first read
// error, or when ctx ends.
func (v *BundleValidator) ValidateStream(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, v.bufferSize)

	go func() {
		defer close(results)
		emit := func(res *EntryResult) bool {
			select {
			case results <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		decoder := json.NewDecoder(r)
		if err := expectDelim(decoder, '{'); err != nil {
			emit(&EntryResult{Index: -1, Error: fmt.Errorf("read bundle: %w", err)})
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				emit(&EntryResult{Index: -1, Error: ctx.Err()})
				return
			}

			token, err := decoder.Token()
			if err != nil {
				emit(&EntryResult{Index: -1, Error: fmt.Errorf("read field: %w", err)})
				return
			}
			field, _ := token.(string)
			if field == "entry" {
				v.streamEntries(ctx, decoder, emit)
				return
			}

			var skip json.RawMessage
			if err := decoder.Decode(&skip); err != nil {
				emit(&EntryResult{Index: -1, Error: fmt.Errorf("skip field %s: %w", field, err)})
				return
			}
		}
	}()

	return results
}

func (v *BundleValidator) streamEntries(ctx context.Context, decoder *json.Decoder, emit func(*EntryResult) bool) {
	if err := expectDelim(decoder, '['); err != nil {
		emit(&EntryResult{Index: -1, Error: fmt.Errorf("read entry array: %w", err)})
		return
	}

	for index := 0; decoder.More(); index++ {
		if ctx.Err() != nil {
			emit(&EntryResult{Index: index, Error: ctx.Err()})
			return
		}

		var entry bundleEntry
		if err := decoder.Decode(&entry); err != nil {
			emit(&EntryResult{Index: index, Error: fmt.Errorf("decode entry %d: %w", index, err)})
			return
		}
		if !emit(v.validateEntry(ctx, index, entry)) {
			return
		}
	}
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %v, got %v", want, token)
	}
	return nil
}

func (v *BundleValidator) validateEntry(ctx context.Context, index int, entry bundleEntry) *EntryResult {
	result := describe(index, entry)
	if len(entry.Resource) == 0 {
		return result
	}
	result.Result, result.Error = v.validator.ValidateConformance(ctx, entry.Resource)
	if result.Error != nil {
		result.Result = nil
	}
	return result
}

// describe fills in the entry metadata without validating.
func describe(index int, entry bundleEntry) *EntryResult {
	result := &EntryResult{Index: index, FullURL: entry.FullURL}
	if len(entry.Resource) > 0 {
		result.ResourceType, _ = jsonparser.GetString(entry.Resource, "resourceType")
		result.ResourceID, _ = jsonparser.GetString(entry.Resource, "id")
	}
	return result
}

// ValidateStreamParallel decodes the whole Bundle and validates its entries
// with a worker.Batch. Results are emitted in entry order.
func (v *BundleValidator) ValidateStreamParallel(ctx context.Context, r io.Reader) <-chan *EntryResult {
	results := make(chan *EntryResult, v.bufferSize)

	go func() {
		defer close(results)
		emit := func(res *EntryResult) bool {
			select {
			case results <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var bundle struct {
			Entry []bundleEntry `json:"entry"`
		}
		if err := json.NewDecoder(r).Decode(&bundle); err != nil {
			emit(&EntryResult{Index: -1, Error: fmt.Errorf("decode bundle: %w", err)})
			return
		}

		// Entries without a resource are reported but not validated.
		var resources [][]byte
		var positions []int
		for i, e := range bundle.Entry {
			if len(e.Resource) > 0 {
				resources = append(resources, e.Resource)
				positions = append(positions, i)
			}
		}
		batch := worker.NewBatch(v.validator, v.workerCount).Validate(ctx, resources)

		entries := make([]*EntryResult, len(bundle.Entry))
		for i, e := range bundle.Entry {
			entries[i] = describe(i, e)
		}
		for j, jr := range batch.Results {
			entries[positions[j]].Result = jr.Result
			entries[positions[j]].Error = jr.Err
		}

		for _, e := range entries {
			if !emit(e) {
				return
			}
		}
	}()

	return results
}

// BundleStreamResult aggregates the results of a streamed Bundle.
type BundleStreamResult struct {
	TotalEntries int

	// EntriesWithErrors counts entries with at least one error violation.
	EntriesWithErrors int

	// EntriesWithWarnings counts entries with warnings but no errors.
	EntriesWithWarnings int

	// TotalViolations counts Error and Warning entries.
	TotalViolations int

	// TotalInformation counts Information entries, such as a modifier
	// element being present.
	TotalInformation int

	// ProcessingErrors are failures to read or validate, not violations.
	ProcessingErrors []error

	// Violations holds every entry's violations, Information included, by
	// entry index.
	Violations map[int][]fm.Violation
}

// Aggregate drains results into a BundleStreamResult.
func Aggregate(results <-chan *EntryResult) *BundleStreamResult {
	agg := &BundleStreamResult{
		Violations: make(map[int][]fm.Violation),
	}

	for result := range results {
		if result.Error != nil {
			agg.ProcessingErrors = append(agg.ProcessingErrors, result.Error)
			continue
		}
		if result.Index < 0 {
			continue
		}

		agg.TotalEntries++
		if result.Result == nil || len(result.Result.Violations) == 0 {
			continue
		}

		vs := result.Result.Violations
		agg.Violations[result.Index] = vs

		hasError, hasWarning := false, false
		for _, violation := range vs {
			switch {
			case violation.IsError():
				hasError = true
				agg.TotalViolations++
			case violation.IsWarning():
				hasWarning = true
				agg.TotalViolations++
			default:
				agg.TotalInformation++
			}
		}
		if hasError {
			agg.EntriesWithErrors++
		} else if hasWarning {
			agg.EntriesWithWarnings++
		}
	}

	return agg
}

// HasErrors reports whether any entry had errors or could not be processed.
func (r *BundleStreamResult) HasErrors() bool {
	return r.EntriesWithErrors > 0 || len(r.ProcessingErrors) > 0
}

// Summary returns a one-line description of the result.
func (r *BundleStreamResult) Summary() string {
	return fmt.Sprintf(
		"Validated %d entries: %d with errors, %d with warnings, %d total violations, %d informational",
		r.TotalEntries,
		r.EntriesWithErrors,
		r.EntriesWithWarnings,
		r.TotalViolations,
		r.TotalInformation,
	)
}
