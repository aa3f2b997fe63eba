package ontology

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is a bounded in-process Cache.
type LRUCache struct {
	lru *lru.Cache[string, Term]
}

// NewLRUCache creates a cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, Term](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRUCache{lru: c}, nil
}

// Get implements Cache.
func (c *LRUCache) Get(_ context.Context, key string) (Term, bool, error) {
	t, ok := c.lru.Get(key)
	return t, ok, nil
}

// Put implements Cache.
func (c *LRUCache) Put(_ context.Context, key string, t Term) error {
	c.lru.Add(key, t)
	return nil
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}
