package ingest

import (
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Stats is a snapshot of one pipeline run. Counts reflect work committed to
// the store, including when the run fails part way.
type Stats struct {
	TotalRecords     int // data lines read, valid or not
	ProcessedRecords int // records written to the store
	SkippedRecords   int // malformed records dropped
	FieldWarnings    int // field-level problems on kept records
	TotalGenotypes   int // genotype edges written
	InvalidGenotypes int // genotype calls that could not be encoded
	UnresolvedEdges  int // edges skipped because the sample node was missing
	Batches          int // successful flushes
	Retries          int
	DiscardedRecords int // records dropped on cancellation
	Canceled         bool
	Elapsed          time.Duration
	State            State

	// Warnings aggregates the first MaxWarnings soft errors; use
	// multierr.Errors to list them.
	Warnings error
}

// recorder accumulates Stats across the reader and flush workers.
type recorder struct {
	mu          sync.Mutex
	s           Stats
	maxWarnings int
}

func newRecorder(maxWarnings int) *recorder {
	return &recorder{maxWarnings: maxWarnings}
}

func (r *recorder) update(fn func(s *Stats)) {
	r.mu.Lock()
	fn(&r.s)
	r.mu.Unlock()
}

func (r *recorder) warn(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(multierr.Errors(r.s.Warnings)) >= r.maxWarnings {
		return
	}
	r.s.Warnings = multierr.Append(r.s.Warnings, err)
}

func (r *recorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}
