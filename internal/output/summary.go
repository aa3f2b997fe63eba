package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/inodb/vibe-kg/internal/duckdb"
	"github.com/inodb/vibe-kg/internal/graph"
	"github.com/inodb/vibe-kg/internal/ingest"
)

// WriteSummary writes run statistics as "key<TAB>value" lines followed by
// any recorded warnings.
func WriteSummary(w io.Writer, s ingest.Stats) error {
	bw := bufio.NewWriter(w)
	rows := []struct {
		key   string
		value string
	}{
		{"state", s.State.String()},
		{"total_records", strconv.Itoa(s.TotalRecords)},
		{"processed_records", strconv.Itoa(s.ProcessedRecords)},
		{"skipped_records", strconv.Itoa(s.SkippedRecords)},
		{"field_warnings", strconv.Itoa(s.FieldWarnings)},
		{"genotype_edges", strconv.Itoa(s.TotalGenotypes)},
		{"invalid_genotypes", strconv.Itoa(s.InvalidGenotypes)},
		{"unresolved_edges", strconv.Itoa(s.UnresolvedEdges)},
		{"batches", strconv.Itoa(s.Batches)},
		{"retries", strconv.Itoa(s.Retries)},
		{"discarded_records", strconv.Itoa(s.DiscardedRecords)},
		{"canceled", strconv.FormatBool(s.Canceled)},
		{"elapsed", s.Elapsed.Round(time.Millisecond).String()},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", r.key, r.value); err != nil {
			return err
		}
	}
	for _, err := range multierr.Errors(s.Warnings) {
		if _, werr := fmt.Fprintf(bw, "warning\t%s\n", sanitize(err.Error())); werr != nil {
			return werr
		}
	}
	return bw.Flush()
}

// WriteRuns writes the run ledger as a tab-delimited table.
func WriteRuns(w io.Writer, runs []duckdb.Run) error {
	bw := bufio.NewWriter(w)
	columns := []string{"#Run_ID", "Source", "Started", "Finished", "State", "Processed", "Skipped", "Genotypes", "Error"}
	if _, err := bw.WriteString(strings.Join(columns, "\t") + "\n"); err != nil {
		return err
	}
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.UTC().Format(time.RFC3339)
		}
		values := []string{
			r.ID,
			sanitize(r.Source),
			r.StartedAt.UTC().Format(time.RFC3339),
			finished,
			r.State,
			strconv.FormatInt(r.ProcessedRecords, 10),
			strconv.FormatInt(r.SkippedRecords, 10),
			strconv.FormatInt(r.GenotypeEdges, 10),
			sanitize(r.Error),
		}
		if _, err := bw.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteClassifications writes "name<TAB>type" for each entity name.
func WriteClassifications(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for _, name := range names {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", sanitize(name), graph.Classify(name)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
