package graph

import (
	"context"
	"fmt"
)

// SampleRegistry guarantees a sample entity exists before edges reference it.
type SampleRegistry interface {
	EnsureExists(ctx context.Context, sampleID, species string) error
}

// BatchSampleRegistry is implemented by registries that can register many
// samples in one round trip.
type BatchSampleRegistry interface {
	SampleRegistry
	EnsureAll(ctx context.Context, sampleIDs []string, species string) error
}

// StoreRegistry registers samples as Germplasm nodes in a GraphStore.
type StoreRegistry struct {
	store GraphStore
}

// NewStoreRegistry creates a registry backed by store.
func NewStoreRegistry(store GraphStore) *StoreRegistry {
	return &StoreRegistry{store: store}
}

// EnsureExists upserts a single Germplasm node.
func (r *StoreRegistry) EnsureExists(ctx context.Context, sampleID, species string) error {
	return r.EnsureAll(ctx, []string{sampleID}, species)
}

// EnsureAll upserts Germplasm nodes for all sample IDs.
func (r *StoreRegistry) EnsureAll(ctx context.Context, sampleIDs []string, species string) error {
	if len(sampleIDs) == 0 {
		return nil
	}
	records := make([]NodeRecord, len(sampleIDs))
	for i, id := range sampleIDs {
		s := Sample{ID: id, Species: species}
		records[i] = s.Record()
	}
	if _, err := r.store.UpsertNodes(ctx, LabelGermplasm, KeyGermplasm, records); err != nil {
		return fmt.Errorf("register samples: %w", err)
	}
	return nil
}

// EnsureSamples registers every sample through reg, using a single batch
// call when the registry supports it.
func EnsureSamples(ctx context.Context, reg SampleRegistry, sampleIDs []string, species string) error {
	if b, ok := reg.(BatchSampleRegistry); ok {
		return b.EnsureAll(ctx, sampleIDs, species)
	}
	for _, id := range sampleIDs {
		if err := reg.EnsureExists(ctx, id, species); err != nil {
			return fmt.Errorf("register sample %s: %w", id, err)
		}
	}
	return nil
}
