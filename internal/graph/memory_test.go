package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_NilPropertyRemoves(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.UpsertNodes(ctx, "Variant", "variant_id", []NodeRecord{
		{Key: "v1", Props: map[string]any{"allele_frequency": 0.5, "chromosome": "1"}},
	})
	require.NoError(t, err)
	_, err = s.UpsertNodes(ctx, "Variant", "variant_id", []NodeRecord{
		{Key: "v1", Props: map[string]any{"allele_frequency": nil}},
	})
	require.NoError(t, err)

	props, ok := s.Node("Variant", "v1")
	require.True(t, ok)
	assert.NotContains(t, props, "allele_frequency")
	assert.Equal(t, "1", props["chromosome"])
	assert.Equal(t, "v1", props["variant_id"])
}

func TestMemoryStore_EdgesRequireEndpoints(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.UpsertNodes(ctx, LabelGermplasm, KeyGermplasm, []NodeRecord{{Key: "S1"}})
	require.NoError(t, err)

	n, err := s.UpsertEdges(ctx, RelHasVariant, SampleRef, VariantRef, []EdgeRecord{
		{FromKey: "S1", ToKey: "missing"},
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.EdgeCount(RelHasVariant))
}

func TestMemoryStore_RejectsInvalidIdentifiers(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.UpsertNodes(context.Background(), "Variant`) DELETE", "variant_id", nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = s.UpsertEdges(context.Background(), "HAS VARIANT", SampleRef, VariantRef, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Zero(t, s.Calls())
}

func TestMemoryStore_FailNext(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.FailNext(2, boom)

	for i := 0; i < 2; i++ {
		_, err := s.UpsertNodes(ctx, "Variant", "variant_id", []NodeRecord{{Key: "v1"}})
		assert.ErrorIs(t, err, boom)
	}
	_, err := s.UpsertNodes(ctx, "Variant", "variant_id", []NodeRecord{{Key: "v1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, 1, s.NodeCount("Variant"))
}

func TestMemoryStore_DelayHonorsContext(t *testing.T) {
	s := NewMemoryStore()
	s.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.UpsertNodes(ctx, "Variant", "variant_id", []NodeRecord{{Key: "v1"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Zero(t, s.NodeCount("Variant"))
}
