package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-kg/internal/duckdb"
	"github.com/inodb/vibe-kg/internal/ingest"
	"github.com/inodb/vibe-kg/internal/output"
	"github.com/inodb/vibe-kg/internal/source"
)

func newIngestCmd(a *app) *cobra.Command {
	d := ingest.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "ingest <input.vcf[.gz]|-|s3://bucket/key>",
		Short: "Ingest a VCF file into the graph",
		Long: `Stream a VCF file into the configured graph store. Malformed records are
skipped (and written to --rejects when set); the run summary is printed to
stderr. Interrupting the run flushes or discards buffered records per
--on-cancel.`,
		Example: `  vibe-kg ingest calls.vcf.gz
  vibe-kg ingest --store duckdb --duckdb-path graph.duckdb calls.vcf
  vibe-kg ingest --store neo4j --neo4j-password secret s3://bucket/calls.vcf.gz
  zcat calls.vcf.gz | vibe-kg ingest -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), a, args[0])
		},
	}

	f := cmd.Flags()
	f.Int("batch-size", d.BatchSize, "Records per batch")
	f.Int("max-records", 0, "Stop after this many valid records (0 = unlimited)")
	f.Duration("flush-interval", 0, "Flush a partial batch after this long (0 = off)")
	f.Int("flush-workers", d.FlushWorkers, "Concurrent batch writers")
	f.Int("queue-size", d.QueueSize, "Batches queued for writers")
	f.Duration("store-timeout", d.StoreTimeout, "Timeout for each store call")
	f.Int("max-retries", d.MaxRetries, "Retries for a failed batch")
	f.String("on-cancel", string(d.OnCancel), "On interrupt: flush or discard buffered records")
	f.String("species", d.Species, "Species for registered samples")
	f.String("ontology-table", "", "TSV mapping functional impacts to ontology terms")
	f.String("ontology-cache", cacheNone, "Ontology cache: none, lru, redis")
	f.String("redis-addr", "localhost:6379", "Redis address for the ontology cache")
	f.String("rejects", "", "Write malformed records to this TSV file")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.String("s3-region", "", "S3 region (default: us-east-1)")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL")
	f.Bool("s3-path-style", false, "Use path-style S3 addressing")
	bindFlags(f, map[string]string{
		"batch_size":     "batch-size",
		"max_records":    "max-records",
		"flush_interval": "flush-interval",
		"flush_workers":  "flush-workers",
		"queue_size":     "queue-size",
		"store_timeout":  "store-timeout",
		"max_retries":    "max-retries",
		"on_cancel":      "on-cancel",
		"species":        "species",
		"ontology.table": "ontology-table",
		"ontology.cache": "ontology-cache",
		"redis.addr":     "redis-addr",
		"rejects":        "rejects",
		"metrics_addr":   "metrics-addr",
		"s3.region":      "s3-region",
		"s3.endpoint":    "s3-endpoint",
		"s3.path_style":  "s3-path-style",
	})
	return cmd
}

func runIngest(ctx context.Context, a *app, uri string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipelineConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid ingest config: %w", err)
	}

	be, err := openBackend(ctx, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			a.logger.Warn("closing store", zap.Error(err))
		}
	}()

	in, err := source.Open(ctx, uri, s3Config())
	if err != nil {
		return err
	}
	defer in.Close()

	p, err := ingest.NewPipeline(be.store, cfg)
	if err != nil {
		return err
	}
	p.SetLogger(a.logger.With(zap.String("input", in.Name)))

	lookup, closeLookup, err := openOntology(ctx, a.logger)
	if err != nil {
		return err
	}
	defer closeLookup()
	if lookup != nil {
		p.SetOntology(lookup)
	}

	if path := viper.GetString("rejects"); path != "" {
		rw, closeRejects, err := createRejects(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeRejects(); err != nil {
				a.logger.Warn("closing reject log", zap.String("path", path), zap.Error(err))
			}
		}()
		p.SetRejectSink(rw)
	}

	if addr := viper.GetString("metrics_addr"); addr != "" {
		m, shutdown, err := serveMetrics(addr, a.logger)
		if err != nil {
			return err
		}
		defer shutdown()
		p.SetMetrics(m)
	}

	var runID string
	if be.ledger != nil {
		src := duckdb.RunSource{Name: in.Name, Size: in.Size, ModTime: in.ModTime}
		if runID, err = be.ledger.StartRun(ctx, src); err != nil {
			return err
		}
	}

	stats, runErr := p.Run(ctx, in)

	if runID != "" {
		if err := be.ledger.FinishRun(context.WithoutCancel(ctx), runID, stats, runErr); err != nil {
			a.logger.Warn("recording run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	if err := output.WriteSummary(a.stderr, stats); err != nil {
		a.logger.Warn("writing summary", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("ingesting %s: %w", in.Name, runErr)
	}
	return nil
}

func createRejects(path string) (*output.RejectWriter, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating reject log: %w", err)
	}
	rw := output.NewRejectWriter(f)
	if err := rw.WriteHeader(); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("writing reject log header: %w", err)
	}
	return rw, func() error {
		return errors.Join(rw.Flush(), f.Close())
	}, nil
}

// serveMetrics exposes ingest metrics on addr until shutdown is called.
func serveMetrics(addr string, logger *zap.Logger) (*ingest.Metrics, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := ingest.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
