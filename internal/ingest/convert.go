package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-kg/internal/graph"
	"github.com/inodb/vibe-kg/internal/ontology"
	"github.com/inodb/vibe-kg/internal/vcf"
)

// Extra keys set on variant nodes when the functional impact resolves to an
// ontology term.
const (
	ExtraImpactTermID   = "impact_term_id"
	ExtraImpactTermName = "impact_term_name"
)

// batch is the graph form of one drained set of records.
type batch struct {
	seq      int
	records  int
	nodes    []graph.VariantNode
	edges    []graph.SampleVariantEdge
	keys     []string
	invalid  int     // genotype calls that failed to encode
	warnings []error // soft conversion problems
}

// buildBatch converts records into variant nodes and genotype edges. Every
// edge references a node of the same batch. Samples are visited in header
// order so the output is deterministic.
func buildBatch(ctx context.Context, seq int, records []*vcf.Record, samples []string, lookup ontology.Lookup) *batch {
	b := &batch{
		seq:     seq,
		records: len(records),
		nodes:   make([]graph.VariantNode, 0, len(records)),
		keys:    make([]string, 0, len(records)),
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		node := VariantNodeFor(rec)
		if lookup != nil && node.FunctionalImpact != "" {
			if err := annotateImpact(ctx, lookup, &node); err != nil {
				b.warnings = append(b.warnings, fmt.Errorf("line %d: %w", rec.Line, err))
			}
		}
		b.nodes = append(b.nodes, node)
		if _, ok := seen[node.VariantID]; !ok {
			seen[node.VariantID] = struct{}{}
			b.keys = append(b.keys, node.VariantID)
		}

		for _, sample := range samples {
			raw, ok := rec.Genotypes[sample]
			if !ok || vcf.IsMissingGenotype(raw) {
				continue
			}
			d := encodeCall(raw, len(rec.Alt))
			if !d.Valid {
				b.invalid++
				b.warnings = append(b.warnings, fmt.Errorf("line %d: invalid genotype %q for sample %s", rec.Line, raw, sample))
				continue
			}
			b.edges = append(b.edges, graph.SampleVariantEdge{
				SampleID:     sample,
				VariantID:    node.VariantID,
				Genotype:     raw,
				Dosage:       d.Count,
				QualityScore: rec.Qual,
			})
		}
	}
	return b
}

// encodeCall checks allele indexes only for records without ALT, where any
// non-reference token cannot refer to a called allele.
func encodeCall(raw string, altCount int) vcf.Dosage {
	if altCount == 0 {
		return vcf.EncodeGenotypeFor(raw, 0)
	}
	return vcf.EncodeGenotype(raw)
}

// VariantNodeFor builds the variant node for a record.
func VariantNodeFor(rec *vcf.Record) graph.VariantNode {
	return graph.VariantNode{
		VariantID:        vcf.NormalizeKey(rec),
		OriginalID:       rec.ID,
		Chromosome:       rec.Chrom,
		Position:         rec.Pos,
		RefAllele:        rec.Ref,
		AltAllele:        rec.JoinedAlt(),
		VariantType:      rec.VariantType(),
		QualityScore:     rec.Qual,
		FilterStatus:     rec.Filter,
		AlleleFrequency:  alleleFrequency(rec),
		FunctionalImpact: functionalImpact(rec),
	}
}

// alleleFrequency returns the first value of INFO AF.
func alleleFrequency(rec *vcf.Record) *float64 {
	v, ok := rec.InfoString("AF")
	if !ok {
		return nil
	}
	first, _, _ := strings.Cut(v, ",")
	af, err := strconv.ParseFloat(first, 64)
	if err != nil || math.IsNaN(af) || math.IsInf(af, 0) {
		return nil
	}
	return &af
}

// functionalImpact returns the effect field of the first INFO ANN entry.
func functionalImpact(rec *vcf.Record) string {
	v, ok := rec.InfoString("ANN")
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(v, ",")
	parts := strings.Split(first, "|")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func annotateImpact(ctx context.Context, lookup ontology.Lookup, node *graph.VariantNode) error {
	term, ok, err := lookup.Lookup(ctx, node.FunctionalImpact)
	if err != nil {
		return fmt.Errorf("ontology lookup %q: %w", node.FunctionalImpact, err)
	}
	if !ok {
		return nil
	}
	if node.Extra == nil {
		node.Extra = make(map[string]string, 2)
	}
	node.Extra[ExtraImpactTermID] = term.ID
	node.Extra[ExtraImpactTermName] = term.Name
	return nil
}
