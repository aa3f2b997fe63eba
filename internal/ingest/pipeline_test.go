package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/inodb/vibe-kg/internal/graph"
	"github.com/inodb/vibe-kg/internal/ontology"
	"github.com/inodb/vibe-kg/internal/vcf"
)

const header = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n"

const sitesHeader = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.StoreTimeout = 5 * time.Second
	return cfg
}

func newTestPipeline(t *testing.T, store graph.GraphStore, cfg Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store, cfg)
	require.NoError(t, err)
	p.SetLogger(zaptest.NewLogger(t))
	return p
}

// dataLines returns n distinct two-sample records.
func dataLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("chr1\t%d\t.\tA\tG\t30\tPASS\t.\tGT\t0/1\t1/1\n", (i+1)*10)
	}
	return lines
}

func openTestdata(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestPipeline_EndToEnd(t *testing.T) {
	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())

	input := header + "chr1\t100\t.\tA\tG\t30\tPASS\t.\tGT\t0/1\t1/1\n"
	stats, err := p.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ProcessedRecords)
	assert.Equal(t, 2, stats.TotalGenotypes)
	assert.Equal(t, StateCompleted, stats.State)
	assert.Equal(t, StateCompleted, p.State())

	node, ok := store.Node(graph.LabelVariant, "chr1_100_A_G")
	require.True(t, ok)
	assert.Equal(t, "SNP", node["variant_type"])
	assert.Equal(t, 1, store.NodeCount(graph.LabelVariant))

	e1, ok := store.Edge(graph.RelHasVariant, graph.SampleRef, "S1", graph.VariantRef, "chr1_100_A_G")
	require.True(t, ok)
	assert.Equal(t, int64(1), e1["dosage"])
	e2, ok := store.Edge(graph.RelHasVariant, graph.SampleRef, "S2", graph.VariantRef, "chr1_100_A_G")
	require.True(t, ok)
	assert.Equal(t, int64(2), e2["dosage"])
}

func TestPipeline_TestdataFile(t *testing.T) {
	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())

	stats, err := p.Run(context.Background(), openTestdata(t, "small.vcf"))
	require.NoError(t, err)

	assert.Equal(t, 6, stats.TotalRecords)
	assert.Equal(t, 5, stats.ProcessedRecords)
	assert.Equal(t, 1, stats.SkippedRecords)
	assert.Equal(t, 1, stats.FieldWarnings)
	assert.Equal(t, 13, stats.TotalGenotypes)
	assert.Equal(t, 1, stats.InvalidGenotypes)
	assert.Zero(t, stats.UnresolvedEdges)
	assert.Equal(t, 1, stats.Batches)
	assert.Len(t, multierr.Errors(stats.Warnings), 3)

	assert.Equal(t, 5, store.NodeCount(graph.LabelVariant))
	assert.Equal(t, 3, store.NodeCount(graph.LabelGermplasm))
	assert.Equal(t, 13, store.EdgeCount(graph.RelHasVariant))

	sample, ok := store.Node(graph.LabelGermplasm, "CML247")
	require.True(t, ok)
	assert.Equal(t, "Zea mays", sample["species"])

	multi, ok := store.Node(graph.LabelVariant, "2_3500_G_T_C")
	require.True(t, ok)
	assert.Equal(t, 0.1, multi["allele_frequency"])
	assert.Equal(t, "T,C", multi["alt_allele"])

	refOnly, ok := store.Node(graph.LabelVariant, "2_3000_C_REF")
	require.True(t, ok)
	assert.Equal(t, "SNP", refOnly["variant_type"])
}

func TestPipeline_Idempotent(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.BatchSize = 2
	p := newTestPipeline(t, store, cfg)

	first, err := p.Run(context.Background(), openTestdata(t, "small.vcf"))
	require.NoError(t, err)
	nodes := store.NodeCount(graph.LabelVariant)
	edges := store.EdgeCount(graph.RelHasVariant)

	second, err := p.Run(context.Background(), openTestdata(t, "small.vcf"))
	require.NoError(t, err)

	assert.Equal(t, nodes, store.NodeCount(graph.LabelVariant))
	assert.Equal(t, edges, store.EdgeCount(graph.RelHasVariant))
	assert.Equal(t, 3, store.NodeCount(graph.LabelGermplasm))
	assert.Equal(t, first.ProcessedRecords, second.ProcessedRecords)
	assert.Equal(t, first.TotalGenotypes, second.TotalGenotypes)
}

func TestPipeline_BatchCount(t *testing.T) {
	for _, tc := range []struct{ n, batch, workers int }{
		{1, 1, 1},
		{10, 3, 1},
		{10, 5, 2},
		{100, 7, 4},
		{100, 100, 2},
		{99, 1000, 3},
	} {
		t.Run(fmt.Sprintf("n=%d/b=%d/w=%d", tc.n, tc.batch, tc.workers), func(t *testing.T) {
			store := graph.NewMemoryStore()
			cfg := testConfig()
			cfg.BatchSize = tc.batch
			cfg.FlushWorkers = tc.workers
			cfg.QueueSize = 1
			p := newTestPipeline(t, store, cfg)

			input := header + strings.Join(dataLines(tc.n), "")
			stats, err := p.Run(context.Background(), strings.NewReader(input))
			require.NoError(t, err)

			want := (tc.n + tc.batch - 1) / tc.batch
			assert.Equal(t, want, stats.Batches)
			assert.Equal(t, tc.n, stats.ProcessedRecords)
			assert.Equal(t, 2*tc.n, stats.TotalGenotypes)
			assert.Zero(t, stats.UnresolvedEdges, "edges must only reference written nodes")
			assert.Equal(t, tc.n, store.NodeCount(graph.LabelVariant))
		})
	}
}

func TestPipeline_MalformedResilience(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.BatchSize = 4
	p := newTestPipeline(t, store, cfg)

	var rejects rejectCollector
	p.SetRejectSink(&rejects)

	lines := dataLines(20)
	for _, i := range []int{0, 5, 6, 19} {
		lines[i] = "chr1\t5\trs\tA\n"
	}
	stats, err := p.Run(context.Background(), strings.NewReader(header+strings.Join(lines, "")))
	require.NoError(t, err)

	assert.Equal(t, 20, stats.TotalRecords)
	assert.Equal(t, 16, stats.ProcessedRecords)
	assert.Equal(t, 4, stats.SkippedRecords)
	assert.Equal(t, StateCompleted, stats.State)
	require.Len(t, rejects.errs, 4)
	assert.Equal(t, 3, rejects.errs[0].Line)
	assert.ErrorIs(t, rejects.errs[0], vcf.ErrMalformedRecord)
}

func TestPipeline_OverlappingKeysAcrossBatches(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.FlushWorkers = 4
	cfg.QueueSize = 2
	p := newTestPipeline(t, store, cfg)

	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "chr1\t%d\t.\tA\tG\t30\tPASS\t.\tGT\t0/1\t1/1\n", (i%5+1)*10)
	}
	stats, err := p.Run(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)

	assert.Equal(t, 100, stats.Batches)
	assert.Equal(t, 5, store.NodeCount(graph.LabelVariant))
	assert.Equal(t, 10, store.EdgeCount(graph.RelHasVariant))
}

func TestPipeline_MaxRecords(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.BatchSize = 3
	cfg.MaxRecords = 4
	p := newTestPipeline(t, store, cfg)

	stats, err := p.Run(context.Background(), strings.NewReader(header+strings.Join(dataLines(10), "")))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.ProcessedRecords)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 4, store.NodeCount(graph.LabelVariant))
	assert.Equal(t, StateCompleted, stats.State)
}

func TestPipeline_HeaderFailure(t *testing.T) {
	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())

	stats, err := p.Run(context.Background(), strings.NewReader("chr1\t100\t.\tA\tG\t30\tPASS\t.\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, vcf.ErrHeaderParse)
	assert.Equal(t, StateFailed, stats.State)
	assert.Zero(t, store.Calls())
}

func TestPipeline_RetriesStoreUnavailable(t *testing.T) {
	store := graph.NewMemoryStore()
	store.FailNext(2, graph.ErrStoreUnavailable)
	p := newTestPipeline(t, store, testConfig())

	stats, err := p.Run(context.Background(), openTestdata(t, "small.vcf"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Retries)
	assert.Equal(t, 5, stats.ProcessedRecords)
	assert.Equal(t, 13, store.EdgeCount(graph.RelHasVariant))
}

func TestPipeline_RetriesExhausted(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.MaxRetries = 2
	p := newTestPipeline(t, store, cfg)
	p.SetRegistry(nil)
	store.FailNext(100, graph.ErrStoreUnavailable)

	stats, err := p.Run(context.Background(), strings.NewReader(sitesHeader+"1\t10\t.\tA\tG\t1\tPASS\t.\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrStoreUnavailable)
	assert.Equal(t, StateFailed, stats.State)
	assert.Equal(t, 2, stats.Retries)
	assert.Zero(t, stats.ProcessedRecords)
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 3, store.Calls())
}

func TestPipeline_PermanentErrorNotRetried(t *testing.T) {
	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())
	p.SetRegistry(nil)
	boom := errors.New("constraint violation")
	store.FailNext(1, boom)

	stats, err := p.Run(context.Background(), strings.NewReader(sitesHeader+"1\t10\t.\tA\tG\t1\tPASS\t.\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, stats.Retries)
	assert.Equal(t, StateFailed, p.State())
}

func TestPipeline_StoreTimeout(t *testing.T) {
	store := graph.NewMemoryStore()
	store.SetDelay(time.Second)
	cfg := testConfig()
	cfg.StoreTimeout = 10 * time.Millisecond
	cfg.MaxRetries = 1
	p := newTestPipeline(t, store, cfg)

	stats, err := p.Run(context.Background(), strings.NewReader(sitesHeader+"1\t10\t.\tA\tG\t1\tPASS\t.\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlushTimeout)
	assert.Equal(t, 1, stats.Retries)
	assert.Equal(t, StateFailed, stats.State)
}

func TestPipeline_IOErrorKeepsCommittedWork(t *testing.T) {
	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())

	diskErr := errors.New("disk gone")
	r := &lineReader{
		lines: append([]string{header}, dataLines(2)...),
		err:   diskErr,
	}
	stats, err := p.Run(context.Background(), r)
	require.Error(t, err)
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, StateFailed, stats.State)
	assert.Equal(t, 2, stats.ProcessedRecords, "records read before the failure are flushed")
	assert.Equal(t, 2, store.NodeCount(graph.LabelVariant))
}

func TestPipeline_CancelFlush(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.BatchSize = 100
	p := newTestPipeline(t, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &lineReader{
		lines:    append([]string{header}, dataLines(10)...),
		cancelAt: 4,
		cancel:   cancel,
	}
	stats, err := p.Run(ctx, r)
	require.NoError(t, err)

	assert.True(t, stats.Canceled)
	assert.Equal(t, 4, stats.ProcessedRecords)
	assert.Zero(t, stats.DiscardedRecords)
	assert.Equal(t, 4, store.NodeCount(graph.LabelVariant))
	assert.Equal(t, StateCompleted, stats.State)
}

func TestPipeline_CancelDiscard(t *testing.T) {
	store := graph.NewMemoryStore()
	cfg := testConfig()
	cfg.BatchSize = 100
	cfg.OnCancel = CancelDiscard
	p := newTestPipeline(t, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &lineReader{
		lines:    append([]string{header}, dataLines(10)...),
		cancelAt: 4,
		cancel:   cancel,
	}
	stats, err := p.Run(ctx, r)
	require.NoError(t, err)

	assert.True(t, stats.Canceled)
	assert.Zero(t, stats.ProcessedRecords)
	assert.Equal(t, 4, stats.DiscardedRecords)
	assert.Zero(t, store.NodeCount(graph.LabelVariant))
	assert.Equal(t, 2, store.NodeCount(graph.LabelGermplasm), "samples are registered before streaming")
}

func TestPipeline_Ontology(t *testing.T) {
	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())

	cache, err := ontology.NewLRUCache(8)
	require.NoError(t, err)
	table := ontology.Table{"frameshift_variant": {ID: "SO:0001589", Name: "frameshift_variant"}}
	p.SetOntology(ontology.NewCached(table, cache))

	_, err = p.Run(context.Background(), openTestdata(t, "small.vcf"))
	require.NoError(t, err)

	node, ok := store.Node(graph.LabelVariant, "1_2000_AT_A")
	require.True(t, ok)
	assert.Equal(t, "frameshift_variant", node["functional_impact"])
	assert.Equal(t, "SO:0001589", node[ExtraImpactTermID])
}

func TestPipeline_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err, "metrics register once per registry")

	store := graph.NewMemoryStore()
	p := newTestPipeline(t, store, testConfig())
	p.SetMetrics(m)

	_, err = p.Run(context.Background(), openTestdata(t, "small.vcf"))
	require.NoError(t, err)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Records.WithLabelValues(OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.Genotypes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvalidGenotypes))
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 0
	_, err := NewPipeline(graph.NewMemoryStore(), cfg)
	assert.Error(t, err)
}

type rejectCollector struct {
	mu   sync.Mutex
	errs []*vcf.ParseError
}

func (c *rejectCollector) Reject(err *vcf.ParseError) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	return nil
}

// lineReader returns one line per Read call. It calls cancel after handing
// out data line cancelAt (1-based, the header is line 0) and returns err
// once the lines run out.
type lineReader struct {
	lines    []string
	next     int
	cancelAt int
	cancel   context.CancelFunc
	err      error
}

func (r *lineReader) Read(p []byte) (int, error) {
	if r.next >= len(r.lines) {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.lines[r.next])
	r.lines[r.next] = r.lines[r.next][n:]
	if r.lines[r.next] == "" {
		if r.cancel != nil && r.next == r.cancelAt {
			r.cancel()
		}
		r.next++
	}
	return n, nil
}
