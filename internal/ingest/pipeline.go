// Package ingest streams VCF records into a property graph in idempotent
// batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-kg/internal/graph"
	"github.com/inodb/vibe-kg/internal/ontology"
	"github.com/inodb/vibe-kg/internal/vcf"
)

// RejectSink receives records dropped as malformed.
type RejectSink interface {
	Reject(err *vcf.ParseError) error
}

// Pipeline ingests VCF streams into a GraphStore.
type Pipeline struct {
	cfg      Config
	writer   *graph.Writer
	registry graph.SampleRegistry
	lookup   ontology.Lookup
	rejects  RejectSink
	metrics  *Metrics
	logger   *zap.Logger
	state    atomic.Int32
}

// NewPipeline creates a pipeline writing to store. Samples are registered
// in the same store unless SetRegistry replaces the registry.
func NewPipeline(store graph.GraphStore, cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	if cfg.Species == "" {
		cfg.Species = DefaultSpecies
	}
	return &Pipeline{
		cfg:      cfg,
		writer:   graph.NewWriter(store),
		registry: graph.NewStoreRegistry(store),
		logger:   zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for progress and warning messages.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
	p.writer.SetLogger(l)
}

// SetRegistry replaces the sample registry. A nil registry skips sample
// registration; edges to unknown samples are then counted as unresolved.
func (p *Pipeline) SetRegistry(reg graph.SampleRegistry) {
	p.registry = reg
}

// SetOntology enables mapping of functional impacts to ontology terms.
func (p *Pipeline) SetOntology(l ontology.Lookup) {
	p.lookup = l
}

// SetRejectSink sets where malformed records are reported.
func (p *Pipeline) SetRejectSink(s RejectSink) {
	p.rejects = s
}

// SetMetrics enables Prometheus metrics.
func (p *Pipeline) SetMetrics(m *Metrics) {
	p.metrics = m
}

// State returns the state of the current or last run.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// run holds the state of one Run call.
type run struct {
	p       *Pipeline
	cfg     Config
	stats   *recorder
	gate    *keyGate
	samples []string

	seq      int // last dispatched batch, reader goroutine only
	canceled bool
	discard  atomic.Bool
}

// Run ingests one VCF stream. Header failures, I/O errors and store
// failures that outlast the retry budget end the run with an error; the
// returned Stats always describe the work committed. Cancellation of ctx
// is not an error: the run stops reading, handles buffered records per
// Config.OnCancel and returns Stats with Canceled set.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Stats, error) {
	start := time.Now()
	p.setState(StateIdle)

	rn := &run{
		p:     p,
		cfg:   p.cfg,
		stats: newRecorder(p.cfg.MaxWarnings),
		gate:  newKeyGate(),
	}
	err := rn.execute(ctx, r)
	if err != nil {
		p.setState(StateFailed)
	} else {
		p.setState(StateCompleted)
	}

	rn.stats.update(func(s *Stats) {
		s.Canceled = rn.canceled
		s.Elapsed = time.Since(start)
		s.State = p.State()
	})
	stats := rn.stats.snapshot()

	fields := []zap.Field{
		zap.Int("total", stats.TotalRecords),
		zap.Int("processed", stats.ProcessedRecords),
		zap.Int("skipped", stats.SkippedRecords),
		zap.Int("genotypes", stats.TotalGenotypes),
		zap.Int("batches", stats.Batches),
		zap.Bool("canceled", stats.Canceled),
		zap.Duration("elapsed", stats.Elapsed),
	}
	if err != nil {
		p.logger.Error("ingestion failed", append(fields, zap.Error(err))...)
	} else {
		p.logger.Info("ingestion completed", fields...)
	}
	return stats, err
}

func (r *run) execute(ctx context.Context, in io.Reader) error {
	reader, err := vcf.NewReader(in)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	defer reader.Close()
	r.p.setState(StateHeaderParsed)
	r.samples = reader.SampleNames()

	r.p.logger.Info("starting ingestion",
		zap.String("fileformat", reader.Metadata()["fileformat"]),
		zap.Int("samples", len(r.samples)),
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Int("workers", r.cfg.FlushWorkers))

	// Store writes are detached from ctx so that cancellation never
	// interrupts a flush half way.
	storeCtx := context.WithoutCancel(ctx)
	if err := r.registerSamples(storeCtx); err != nil {
		return err
	}

	acc, err := NewAccumulator(r.cfg.BatchSize, r.cfg.FlushInterval)
	if err != nil {
		return err
	}

	queue := make(chan pending, r.cfg.QueueSize)
	g, gctx := errgroup.WithContext(storeCtx)
	for i := 0; i < r.cfg.FlushWorkers; i++ {
		g.Go(func() error { return r.worker(gctx, queue) })
	}

	readErr := r.stream(ctx, gctx, reader, acc, queue)

	r.p.setState(StateDraining)
	switch {
	case r.discard.Load():
		r.discardRecords(acc.Drain())
	case gctx.Err() == nil:
		r.dispatch(ctx, gctx, queue, acc.Drain())
	}
	close(queue)

	return multierr.Combine(readErr, g.Wait())
}

func (r *run) registerSamples(ctx context.Context) error {
	if len(r.samples) == 0 || r.p.registry == nil {
		return nil
	}
	err := r.retry(ctx, "register samples", func() error {
		return r.withTimeout(ctx, func(ctx context.Context) error {
			return graph.EnsureSamples(ctx, r.p.registry, r.samples, r.cfg.Species)
		})
	})
	if err != nil {
		return fmt.Errorf("register samples: %w", err)
	}
	return nil
}

// stream reads records until end of input, cancellation, MaxRecords, a
// worker failure or an I/O error.
func (r *run) stream(ctx, gctx context.Context, reader *vcf.Reader, acc *Accumulator, queue chan<- pending) error {
	r.p.setState(StateStreaming)
	accepted := 0
	for {
		if ctx.Err() != nil {
			r.markCanceled()
			return nil
		}
		if gctx.Err() != nil {
			return nil
		}
		if r.cfg.MaxRecords > 0 && accepted >= r.cfg.MaxRecords {
			r.p.logger.Info("record limit reached", zap.Int("max_records", r.cfg.MaxRecords))
			return nil
		}

		rec, err := reader.Next()
		if err != nil {
			var pe *vcf.ParseError
			if errors.As(err, &pe) {
				r.skip(pe)
				continue
			}
			return fmt.Errorf("read input: %w", err)
		}
		if rec == nil {
			return nil
		}

		r.accept(rec)
		accepted++
		acc.Add(rec)
		if acc.ShouldFlush() {
			r.p.setState(StateBatchFull)
			r.p.setState(StateFlushing)
			if !r.dispatch(ctx, gctx, queue, acc.Drain()) {
				return nil
			}
			r.p.setState(StateStreaming)
		}
	}
}

// dispatch hands a drained batch to the workers, blocking while the queue is
// full. It returns false if the batch was not queued.
func (r *run) dispatch(ctx, gctx context.Context, queue chan<- pending, records []*vcf.Record) bool {
	if len(records) == 0 {
		return true
	}
	r.seq++
	p := pending{seq: r.seq, records: records}

	if !r.discard.Load() {
		select {
		case queue <- p:
			return true
		case <-gctx.Done():
			return false
		case <-ctx.Done():
			r.markCanceled()
		}
	}
	if r.discard.Load() {
		r.discardRecords(records)
		return false
	}
	select {
	case queue <- p:
		return true
	case <-gctx.Done():
		return false
	}
}

func (r *run) markCanceled() {
	if r.canceled {
		return
	}
	r.canceled = true
	if r.cfg.OnCancel == CancelDiscard {
		r.discard.Store(true)
	}
	r.p.logger.Info("ingestion canceled", zap.String("on_cancel", string(r.cfg.OnCancel)))
}

func (r *run) accept(rec *vcf.Record) {
	r.stats.update(func(s *Stats) {
		s.TotalRecords++
		s.FieldWarnings += len(rec.Warnings)
	})
	for _, w := range rec.Warnings {
		r.stats.warn(w)
	}
}

func (r *run) skip(pe *vcf.ParseError) {
	r.stats.update(func(s *Stats) {
		s.TotalRecords++
		s.SkippedRecords++
	})
	r.stats.warn(pe)
	r.p.metrics.records(OutcomeSkipped, 1)
	r.p.logger.Debug("skipping malformed record", zap.Int("line", pe.Line), zap.Error(pe))
	if r.p.rejects != nil {
		if err := r.p.rejects.Reject(pe); err != nil {
			r.p.logger.Warn("failed to write reject", zap.Error(err))
		}
	}
}

func (r *run) discardRecords(records []*vcf.Record) {
	if len(records) == 0 {
		return
	}
	r.stats.update(func(s *Stats) { s.DiscardedRecords += len(records) })
	r.p.metrics.records(OutcomeDiscarded, len(records))
}
