// Package ontology resolves free-text annotation values to ontology terms
// through a pluggable lookup and a caller-owned cache.
package ontology

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Term is an ontology term.
type Term struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Ontology string `json:"ontology,omitempty"`
}

// Lookup resolves a key to a term. A key with no term returns false and a
// nil error.
type Lookup interface {
	Lookup(ctx context.Context, key string) (Term, bool, error)
}

// Cache memoizes lookups. A Term with an empty ID records a known miss.
type Cache interface {
	Get(ctx context.Context, key string) (Term, bool, error)
	Put(ctx context.Context, key string, t Term) error
}

// NormalizeKey folds case and surrounding space so lookups of the same
// annotation value share a cache entry.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Cached wraps a Lookup with a Cache. Cache failures are logged and fall
// through to the underlying lookup.
type Cached struct {
	lookup Lookup
	cache  Cache
	logger *zap.Logger
}

// NewCached creates a cached lookup.
func NewCached(lookup Lookup, cache Cache) *Cached {
	return &Cached{
		lookup: lookup,
		cache:  cache,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for cache failure warnings.
func (c *Cached) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Lookup implements Lookup.
func (c *Cached) Lookup(ctx context.Context, key string) (Term, bool, error) {
	key = NormalizeKey(key)
	if key == "" {
		return Term{}, false, nil
	}

	t, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("ontology cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return t, t.ID != "", nil
	}

	t, ok, err = c.lookup.Lookup(ctx, key)
	if err != nil {
		return Term{}, false, err
	}
	if !ok {
		t = Term{}
	}
	if err := c.cache.Put(ctx, key, t); err != nil {
		c.logger.Warn("ontology cache put failed", zap.String("key", key), zap.Error(err))
	}
	return t, ok, nil
}
