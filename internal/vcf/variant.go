// Package vcf provides streaming VCF parsing, variant key normalization and
// genotype dosage encoding.
package vcf

import "strings"

// Missing is the VCF missing-value marker.
const Missing = "."

// Variant types derived from allele lengths.
const (
	TypeSNP   = "SNP"
	TypeIndel = "INDEL"
)

// Record is a single parsed VCF data line.
type Record struct {
	Chrom     string            // Chromosome name (e.g., "1", "chr1")
	Pos       int64             // 1-based genomic position
	ID        string            // Source identifier, "{chrom}_{pos}" when missing
	Ref       string            // Reference allele
	Alt       []string          // Alternate alleles, empty when none called
	Qual      *float64          // Quality score, nil when missing or unparsable
	Filter    string            // Filter status (PASS or filter name)
	Info      map[string]any    // INFO key-value pairs; flags map to true
	Genotypes map[string]string // sample name -> raw GT subfield
	Line      int               // source line number

	// Warnings holds field-level problems that did not cause the record
	// to be dropped.
	Warnings []error
}

// VariantType returns INDEL if any alternate allele differs in length from
// the reference allele, SNP otherwise (including records with no ALT).
func (r *Record) VariantType() string {
	for _, alt := range r.Alt {
		if len(alt) != len(r.Ref) {
			return TypeIndel
		}
	}
	return TypeSNP
}

// JoinedAlt returns the alternate alleles joined by commas.
func (r *Record) JoinedAlt() string {
	return strings.Join(r.Alt, ",")
}

// InfoString returns the string value of an INFO key.
// Flags and absent keys return "", false.
func (r *Record) InfoString(key string) (string, bool) {
	v, ok := r.Info[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
