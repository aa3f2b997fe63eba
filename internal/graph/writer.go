package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Writer issues idempotent variant and genotype-edge upserts against a
// GraphStore.
type Writer struct {
	store  GraphStore
	logger *zap.Logger
}

// NewWriter creates a writer for the given store.
func NewWriter(store GraphStore) *Writer {
	return &Writer{
		store:  store,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and debug messages.
func (w *Writer) SetLogger(l *zap.Logger) {
	w.logger = l
}

// EdgeResult summarizes one edge write.
type EdgeResult struct {
	Submitted  int // edges after in-batch deduplication
	Written    int
	Unresolved int // edges skipped because an endpoint was missing
}

// WriteVariants upserts variant nodes keyed by VariantID and returns the
// number written. Repeated IDs within the call collapse to the last one.
func (w *Writer) WriteVariants(ctx context.Context, nodes []VariantNode) (int, error) {
	if len(nodes) == 0 {
		return 0, nil
	}

	index := make(map[string]int, len(nodes))
	records := make([]NodeRecord, 0, len(nodes))
	for i := range nodes {
		rec := nodes[i].Record()
		if j, ok := index[rec.Key]; ok {
			records[j] = rec
			continue
		}
		index[rec.Key] = len(records)
		records = append(records, rec)
	}

	n, err := w.store.UpsertNodes(ctx, LabelVariant, KeyVariant, records)
	if err != nil {
		return n, fmt.Errorf("upsert variant nodes: %w", err)
	}
	w.logger.Debug("upserted variant nodes", zap.Int("count", n))
	return n, nil
}

// WriteEdges upserts sample-variant edges and returns the number written.
// Edges whose sample does not exist are skipped, not failed.
func (w *Writer) WriteEdges(ctx context.Context, edges []SampleVariantEdge) (int, error) {
	res, err := w.WriteEdgesResult(ctx, edges)
	return res.Written, err
}

// WriteEdgesResult is WriteEdges with a breakdown of unresolved edges.
func (w *Writer) WriteEdgesResult(ctx context.Context, edges []SampleVariantEdge) (EdgeResult, error) {
	if len(edges) == 0 {
		return EdgeResult{}, nil
	}

	type pair struct{ sample, variant string }
	index := make(map[pair]int, len(edges))
	records := make([]EdgeRecord, 0, len(edges))
	for i := range edges {
		rec := edges[i].Record()
		k := pair{rec.FromKey, rec.ToKey}
		if j, ok := index[k]; ok {
			records[j] = rec
			continue
		}
		index[k] = len(records)
		records = append(records, rec)
	}

	n, err := w.store.UpsertEdges(ctx, RelHasVariant, SampleRef, VariantRef, records)
	res := EdgeResult{Submitted: len(records), Written: n}
	if err != nil {
		return res, fmt.Errorf("upsert genotype edges: %w", err)
	}

	if n < len(records) {
		res.Unresolved = len(records) - n
		w.logger.Warn("skipped genotype edges with unresolved endpoints",
			zap.Int("unresolved", res.Unresolved),
			zap.Int("submitted", len(records)),
			zap.Error(ErrUnresolvedSample))
	}
	w.logger.Debug("upserted genotype edges", zap.Int("count", n))
	return res, nil
}
