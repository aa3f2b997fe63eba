package ingest

import (
	"errors"
	"fmt"
	"time"
)

// CancelPolicy selects what happens to buffered records when a run is
// canceled.
type CancelPolicy string

const (
	// CancelFlush writes pending and queued batches before returning.
	CancelFlush CancelPolicy = "flush"
	// CancelDiscard drops them and counts them in Stats.DiscardedRecords.
	CancelDiscard CancelPolicy = "discard"
)

// DefaultSpecies is registered for samples when none is configured.
const DefaultSpecies = "Zea mays"

// Config controls batching, concurrency and retry behavior of a Pipeline.
type Config struct {
	BatchSize     int           // records per flush; must be > 0
	MaxRecords    int           // stop after this many valid records; 0 = unlimited
	FlushInterval time.Duration // flush a partial batch once its oldest record is this old; 0 = off
	FlushWorkers  int
	QueueSize     int // drained batches waiting for a worker
	StoreTimeout  time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration // initial backoff between retries
	OnCancel      CancelPolicy
	Species       string
	MaxWarnings   int // warnings kept in Stats.Warnings
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:    10000,
		FlushWorkers: 2,
		QueueSize:    4,
		StoreTimeout: 30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		OnCancel:     CancelFlush,
		Species:      DefaultSpecies,
		MaxWarnings:  100,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be > 0, got %d", c.BatchSize))
	}
	if c.MaxRecords < 0 {
		errs = append(errs, fmt.Errorf("max records must be >= 0, got %d", c.MaxRecords))
	}
	if c.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("flush interval must be >= 0, got %s", c.FlushInterval))
	}
	if c.FlushWorkers <= 0 {
		errs = append(errs, fmt.Errorf("flush workers must be > 0, got %d", c.FlushWorkers))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size must be >= 0, got %d", c.QueueSize))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be > 0, got %s", c.StoreTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries))
	}
	switch c.OnCancel {
	case CancelFlush, CancelDiscard:
	default:
		errs = append(errs, fmt.Errorf("unknown cancel policy %q (want flush or discard)", c.OnCancel))
	}
	return errors.Join(errs...)
}
