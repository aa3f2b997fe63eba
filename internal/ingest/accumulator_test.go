package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-kg/internal/vcf"
)

func TestNewAccumulator_InvalidSize(t *testing.T) {
	_, err := NewAccumulator(0, 0)
	assert.Error(t, err)
	_, err = NewAccumulator(-5, 0)
	assert.Error(t, err)
}

func TestAccumulator_SizeTrigger(t *testing.T) {
	acc, err := NewAccumulator(3, 0)
	require.NoError(t, err)

	recs := []*vcf.Record{{Pos: 1}, {Pos: 2}, {Pos: 3}}
	for i, r := range recs {
		assert.False(t, acc.ShouldFlush(), "before record %d", i)
		acc.Add(r)
	}
	assert.True(t, acc.ShouldFlush())
	assert.Equal(t, 3, acc.Len())

	out := acc.Drain()
	assert.Equal(t, recs, out, "drain preserves arrival order")
	assert.Zero(t, acc.Len())
	assert.False(t, acc.ShouldFlush())
	assert.Nil(t, acc.Drain())
}

func TestAccumulator_DrainIsDestructive(t *testing.T) {
	acc, err := NewAccumulator(10, 0)
	require.NoError(t, err)

	acc.Add(&vcf.Record{Pos: 1})
	first := acc.Drain()
	acc.Add(&vcf.Record{Pos: 2})
	second := acc.Drain()

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, int64(1), first[0].Pos, "earlier drain must not be overwritten")
	assert.Equal(t, int64(2), second[0].Pos)
}

func TestAccumulator_TimeWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	acc, err := NewAccumulator(100, time.Second)
	require.NoError(t, err)
	acc.now = func() time.Time { return now }

	assert.False(t, acc.ShouldFlush(), "empty buffer never flushes")

	acc.Add(&vcf.Record{Pos: 1})
	now = now.Add(500 * time.Millisecond)
	acc.Add(&vcf.Record{Pos: 2})
	assert.False(t, acc.ShouldFlush())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, acc.ShouldFlush(), "oldest record reached the window")

	acc.Drain()
	acc.Add(&vcf.Record{Pos: 3})
	assert.False(t, acc.ShouldFlush(), "window restarts after drain")
}
