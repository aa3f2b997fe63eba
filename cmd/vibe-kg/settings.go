package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-kg/internal/duckdb"
	"github.com/inodb/vibe-kg/internal/graph"
	"github.com/inodb/vibe-kg/internal/ingest"
	"github.com/inodb/vibe-kg/internal/neo4jdb"
	"github.com/inodb/vibe-kg/internal/ontology"
	"github.com/inodb/vibe-kg/internal/source"
)

// Store drivers.
const (
	driverMemory = "memory"
	driverDuckDB = "duckdb"
	driverNeo4j  = "neo4j"
)

// Ontology cache kinds.
const (
	cacheNone  = "none"
	cacheLRU   = "lru"
	cacheRedis = "redis"
)

const defaultDuckDBPath = "vibe-kg.duckdb"

func setDefaults() {
	d := ingest.DefaultConfig()
	viper.SetDefault("batch_size", d.BatchSize)
	viper.SetDefault("max_records", d.MaxRecords)
	viper.SetDefault("flush_interval", d.FlushInterval)
	viper.SetDefault("flush_workers", d.FlushWorkers)
	viper.SetDefault("queue_size", d.QueueSize)
	viper.SetDefault("store_timeout", d.StoreTimeout)
	viper.SetDefault("max_retries", d.MaxRetries)
	viper.SetDefault("retry_backoff", d.RetryBackoff)
	viper.SetDefault("on_cancel", string(d.OnCancel))
	viper.SetDefault("species", d.Species)
	viper.SetDefault("max_warnings", d.MaxWarnings)

	viper.SetDefault("store.driver", driverMemory)
	viper.SetDefault("store.duckdb_path", defaultDuckDBPath)

	n := neo4jdb.DefaultConfig()
	viper.SetDefault("neo4j.uri", n.URI)
	viper.SetDefault("neo4j.user", n.User)
	viper.SetDefault("neo4j.max_pool_size", n.MaxPoolSize)
	viper.SetDefault("neo4j.connect_timeout", n.ConnectTimeout)

	viper.SetDefault("ontology.cache", cacheNone)
	viper.SetDefault("ontology.cache_size", 4096)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.ttl", 24*time.Hour)
}

// bindFlags binds config keys to the named flags.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// pipelineConfig builds the ingest configuration from viper.
func pipelineConfig() ingest.Config {
	return ingest.Config{
		BatchSize:     viper.GetInt("batch_size"),
		MaxRecords:    viper.GetInt("max_records"),
		FlushInterval: viper.GetDuration("flush_interval"),
		FlushWorkers:  viper.GetInt("flush_workers"),
		QueueSize:     viper.GetInt("queue_size"),
		StoreTimeout:  viper.GetDuration("store_timeout"),
		MaxRetries:    viper.GetInt("max_retries"),
		RetryBackoff:  viper.GetDuration("retry_backoff"),
		OnCancel:      ingest.CancelPolicy(viper.GetString("on_cancel")),
		Species:       viper.GetString("species"),
		MaxWarnings:   viper.GetInt("max_warnings"),
	}
}

func s3Config() source.S3Config {
	return source.S3Config{
		Region:    viper.GetString("s3.region"),
		Endpoint:  viper.GetString("s3.endpoint"),
		PathStyle: viper.GetBool("s3.path_style"),
	}
}

// backend is an opened graph store.
type backend struct {
	driver string
	store  graph.GraphStore
	ledger *duckdb.Store // set for the duckdb driver only
	close  func() error
}

func openBackend(ctx context.Context, logger *zap.Logger) (*backend, error) {
	driver := viper.GetString("store.driver")
	switch driver {
	case driverMemory:
		return &backend{driver: driver, store: graph.NewMemoryStore(), close: func() error { return nil }}, nil

	case driverDuckDB:
		path := viper.GetString("store.duckdb_path")
		s, err := duckdb.Open(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened duckdb store", zap.String("path", path))
		return &backend{driver: driver, store: s, ledger: s, close: s.Close}, nil

	case driverNeo4j:
		cfg := neo4jdb.Config{
			URI:            viper.GetString("neo4j.uri"),
			User:           viper.GetString("neo4j.user"),
			Password:       viper.GetString("neo4j.password"),
			Database:       viper.GetString("neo4j.database"),
			MaxPoolSize:    viper.GetInt("neo4j.max_pool_size"),
			ConnectTimeout: viper.GetDuration("neo4j.connect_timeout"),
		}
		s, err := neo4jdb.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.SetLogger(logger)
		logger.Debug("connected to neo4j", zap.String("uri", cfg.URI))
		return &backend{
			driver: driver,
			store:  s,
			close:  func() error { return s.Close(context.Background()) },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s, %s or %s)", driver, driverMemory, driverDuckDB, driverNeo4j)
	}
}

// openOntology loads the configured impact term table behind the configured
// cache. It returns a nil Lookup when no table is set.
func openOntology(ctx context.Context, logger *zap.Logger) (ontology.Lookup, func() error, error) {
	noop := func() error { return nil }
	path := viper.GetString("ontology.table")
	if path == "" {
		return nil, noop, nil
	}
	table, err := ontology.LoadTable(path)
	if err != nil {
		return nil, noop, err
	}
	logger.Info("loaded ontology table", zap.String("path", path), zap.Int("terms", len(table)))

	kind := viper.GetString("ontology.cache")
	var cache ontology.Cache
	closer := noop
	switch kind {
	case cacheNone, "":
		return table, noop, nil
	case cacheLRU:
		c, err := ontology.NewLRUCache(viper.GetInt("ontology.cache_size"))
		if err != nil {
			return nil, noop, err
		}
		cache = c
	case cacheRedis:
		c, err := ontology.DialRedis(ctx, viper.GetString("redis.addr"), viper.GetDuration("redis.ttl"))
		if err != nil {
			return nil, noop, err
		}
		cache, closer = c, c.Close
	default:
		return nil, noop, fmt.Errorf("unknown ontology cache %q (want %s, %s or %s)", kind, cacheNone, cacheLRU, cacheRedis)
	}

	cached := ontology.NewCached(table, cache)
	cached.SetLogger(logger)
	return cached, closer, nil
}
