package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/inodb/vibe-kg/internal/graph"
	"github.com/inodb/vibe-kg/internal/vcf"
)

// ErrFlushTimeout marks a store operation that exceeded Config.StoreTimeout.
// It is retried like graph.ErrStoreUnavailable.
var ErrFlushTimeout = errors.New("store operation timed out")

// pending is a drained batch waiting for a flush worker.
type pending struct {
	seq     int
	records []*vcf.Record
}

func (r *run) worker(ctx context.Context, queue <-chan pending) error {
	for p := range queue {
		if ctx.Err() != nil {
			// Another worker failed; the run is over.
			return nil
		}
		if r.discard.Load() {
			r.discardRecords(p.records)
			continue
		}
		if err := r.flush(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// flush writes one batch, nodes before edges. A failed attempt retries the
// whole batch; upserts make the repeated writes harmless.
func (r *run) flush(ctx context.Context, p pending) error {
	b := buildBatch(ctx, p.seq, p.records, r.samples, r.p.lookup)
	for _, w := range b.warnings {
		r.stats.warn(w)
	}

	r.gate.acquire(b.keys)
	defer r.gate.release(b.keys)

	start := time.Now()
	var res graph.EdgeResult
	err := r.retry(ctx, "flush", func() error {
		err := r.withTimeout(ctx, func(ctx context.Context) error {
			_, err := r.p.writer.WriteVariants(ctx, b.nodes)
			return err
		})
		if err != nil {
			return err
		}
		return r.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			res, err = r.p.writer.WriteEdgesResult(ctx, b.edges)
			return err
		})
	})
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("flush batch %d: %w", b.seq, err)
	}

	if res.Unresolved > 0 {
		r.stats.warn(fmt.Errorf("batch %d: %d edges skipped: %w", b.seq, res.Unresolved, graph.ErrUnresolvedSample))
	}
	r.stats.update(func(s *Stats) {
		s.Batches++
		s.ProcessedRecords += b.records
		s.TotalGenotypes += res.Written
		s.InvalidGenotypes += b.invalid
		s.UnresolvedEdges += res.Unresolved
	})
	r.p.metrics.flushed(b, res.Written, res.Unresolved, elapsed)
	r.p.logger.Debug("flushed batch",
		zap.Int("batch", b.seq),
		zap.Int("records", b.records),
		zap.Int("variants", len(b.keys)),
		zap.Int("edges", res.Written),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (r *run) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

// retry runs op with exponential backoff until it succeeds, fails with a
// non-retryable error or MaxRetries retries are used up.
func (r *run) retry(ctx context.Context, what string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.RetryBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.cfg.MaxRetries)), ctx)

	return backoff.RetryNotify(func() error {
		return retryable(op())
	}, policy, func(err error, wait time.Duration) {
		r.stats.update(func(s *Stats) { s.Retries++ })
		r.p.metrics.retried()
		r.p.logger.Warn("retrying store operation",
			zap.String("op", what),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
}

// retryable marks timeouts and unavailable stores as retryable and every
// other error as permanent.
func retryable(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrFlushTimeout, err)
	case errors.Is(err, graph.ErrStoreUnavailable):
		return err
	default:
		return backoff.Permanent(err)
	}
}
