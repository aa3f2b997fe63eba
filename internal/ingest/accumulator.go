package ingest

import (
	"fmt"
	"time"

	"github.com/inodb/vibe-kg/internal/vcf"
)

// Accumulator buffers parsed records until a batch is full or, with a
// window set, until the oldest buffered record has waited long enough.
// It is not safe for concurrent use.
type Accumulator struct {
	size   int
	window time.Duration
	now    func() time.Time

	buf    []*vcf.Record
	oldest time.Time
}

// NewAccumulator creates an accumulator flushing every size records. A zero
// window disables time-based flushing.
func NewAccumulator(size int, window time.Duration) (*Accumulator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", size)
	}
	return &Accumulator{
		size:   size,
		window: window,
		now:    time.Now,
		buf:    make([]*vcf.Record, 0, size),
	}, nil
}

// Add appends a record.
func (a *Accumulator) Add(rec *vcf.Record) {
	if len(a.buf) == 0 {
		a.oldest = a.now()
	}
	a.buf = append(a.buf, rec)
}

// ShouldFlush reports whether the buffer should be drained.
func (a *Accumulator) ShouldFlush() bool {
	if len(a.buf) >= a.size {
		return true
	}
	return a.window > 0 && len(a.buf) > 0 && a.now().Sub(a.oldest) >= a.window
}

// Drain returns the buffered records in arrival order and empties the
// buffer. The returned slice is owned by the caller.
func (a *Accumulator) Drain() []*vcf.Record {
	if len(a.buf) == 0 {
		return nil
	}
	out := a.buf
	a.buf = make([]*vcf.Record, 0, a.size)
	return out
}

// Len returns the number of buffered records.
func (a *Accumulator) Len() int {
	return len(a.buf)
}
