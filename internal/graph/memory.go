package graph

import (
	"context"
	"maps"
	"sync"
	"time"
)

type edgeKey struct {
	relType            string
	fromLabel, fromKey string
	toLabel, toKey     string
}

// MemoryStore is an in-process GraphStore with MERGE semantics. It backs
// dry runs and tests, and can inject failures and latency.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string]map[string]map[string]any // label -> key -> props
	edges map[edgeKey]map[string]any

	failNext int
	failErr  error
	delay    time.Duration
	calls    int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]map[string]map[string]any),
		edges: make(map[edgeKey]map[string]any),
	}
}

// FailNext makes the next n upsert calls return err without writing.
func (s *MemoryStore) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failErr = err
}

// SetDelay makes every upsert wait d (or until ctx is done) before writing.
func (s *MemoryStore) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *MemoryStore) begin(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	delay := s.delay
	var err error
	if s.failNext > 0 {
		s.failNext--
		err = s.failErr
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return ctx.Err()
}

// UpsertNodes implements GraphStore.
func (s *MemoryStore) UpsertNodes(ctx context.Context, label, keyField string, records []NodeRecord) (int, error) {
	if err := CheckIdentifiers(label, keyField); err != nil {
		return 0, err
	}
	if err := s.begin(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.nodes[label]
	if byKey == nil {
		byKey = make(map[string]map[string]any)
		s.nodes[label] = byKey
	}
	for _, rec := range records {
		props := byKey[rec.Key]
		if props == nil {
			props = map[string]any{keyField: rec.Key}
			byKey[rec.Key] = props
		}
		setProps(props, rec.Props)
		props[keyField] = rec.Key
	}
	return len(records), nil
}

// UpsertEdges implements GraphStore.
func (s *MemoryStore) UpsertEdges(ctx context.Context, relType string, from, to NodeRef, records []EdgeRecord) (int, error) {
	if err := CheckIdentifiers(relType, from.Label, from.KeyField, to.Label, to.KeyField); err != nil {
		return 0, err
	}
	if err := s.begin(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, rec := range records {
		if _, ok := s.nodes[from.Label][rec.FromKey]; !ok {
			continue
		}
		if _, ok := s.nodes[to.Label][rec.ToKey]; !ok {
			continue
		}
		k := edgeKey{relType, from.Label, rec.FromKey, to.Label, rec.ToKey}
		props := s.edges[k]
		if props == nil {
			props = make(map[string]any)
			s.edges[k] = props
		}
		setProps(props, rec.Props)
		written++
	}
	return written, nil
}

// setProps mirrors Cypher "SET n += $props": nil removes a property.
func setProps(dst, src map[string]any) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

// NodeCount returns the number of nodes with label.
func (s *MemoryStore) NodeCount(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes[label])
}

// EdgeCount returns the number of relationships of relType.
func (s *MemoryStore) EdgeCount(relType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.edges {
		if k.relType == relType {
			n++
		}
	}
	return n
}

// Node returns a copy of a node's properties.
func (s *MemoryStore) Node(label, key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.nodes[label][key]
	if !ok {
		return nil, false
	}
	return maps.Clone(props), true
}

// Edge returns a copy of a relationship's properties.
func (s *MemoryStore) Edge(relType string, from NodeRef, fromKey string, to NodeRef, toKey string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.edges[edgeKey{relType, from.Label, fromKey, to.Label, toKey}]
	if !ok {
		return nil, false
	}
	return maps.Clone(props), true
}

// Calls returns the number of upsert calls received, including failed ones.
func (s *MemoryStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
