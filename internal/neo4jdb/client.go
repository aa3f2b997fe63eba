// Package neo4jdb implements the graph store on Neo4j with parameterized
// UNWIND/MERGE upserts.
package neo4jdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config holds connection settings.
type Config struct {
	URI            string
	User           string
	Password       string
	Database       string // empty selects the server default
	MaxPoolSize    int
	ConnectTimeout time.Duration
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		URI:            "neo4j://localhost:7687",
		User:           "neo4j",
		MaxPoolSize:    50,
		ConnectTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = d.MaxPoolSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	return c
}

// Open creates a driver and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	driver, err := newDriver(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("neo4j verify connectivity: %w", err)
	}

	return NewStore(driver, cfg.Database), nil
}

func newDriver(cfg Config) (neo4j.DriverWithContext, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: missing URI")
	}
	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.ConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j init driver: %w", err)
	}
	return driver, nil
}

// Store is a graph.GraphStore backed by a Neo4j database.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewStore wraps an existing driver.
func NewStore(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{
		driver:   driver,
		database: database,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for schema and debug messages.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Close closes the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
}
