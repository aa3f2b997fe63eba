// Package graph defines the property-graph model for variants and samples,
// the GraphStore write contract, and the idempotent upsert writer.
package graph

// Labels, key fields and relationship types used by the variant graph.
const (
	LabelVariant   = "Variant"
	LabelGermplasm = "Germplasm"

	KeyVariant   = "variant_id"
	KeyGermplasm = "germplasm_id"

	RelHasVariant = "HAS_VARIANT"
)

// VariantRef and SampleRef identify the endpoints of genotype edges.
var (
	VariantRef = NodeRef{Label: LabelVariant, KeyField: KeyVariant}
	SampleRef  = NodeRef{Label: LabelGermplasm, KeyField: KeyGermplasm}
)

// VariantNode is a persisted variant, keyed by its normalized VariantID.
type VariantNode struct {
	VariantID        string
	OriginalID       string
	Chromosome       string
	Position         int64
	RefAllele        string
	AltAllele        string // alternate alleles joined by ","
	VariantType      string // SNP or INDEL
	QualityScore     *float64
	FilterStatus     string
	AlleleFrequency  *float64
	FunctionalImpact string
	Extra            map[string]string
}

// Record converts the node into store parameters.
func (n *VariantNode) Record() NodeRecord {
	props := map[string]any{
		KeyVariant:          n.VariantID,
		"original_id":       n.OriginalID,
		"chromosome":        n.Chromosome,
		"position":          n.Position,
		"ref_allele":        n.RefAllele,
		"alt_allele":        n.AltAllele,
		"variant_type":      n.VariantType,
		"quality_score":     floatOrNil(n.QualityScore),
		"filter_status":     n.FilterStatus,
		"allele_frequency":  floatOrNil(n.AlleleFrequency),
		"functional_impact": stringOrNil(n.FunctionalImpact),
	}
	mergeExtra(props, n.Extra)
	return NodeRecord{Key: n.VariantID, Props: props}
}

// SampleVariantEdge links a sample to a variant it carries.
type SampleVariantEdge struct {
	SampleID     string
	VariantID    string
	Genotype     string
	Dosage       int
	QualityScore *float64
	Extra        map[string]string
}

// Record converts the edge into store parameters.
func (e *SampleVariantEdge) Record() EdgeRecord {
	props := map[string]any{
		"genotype":      e.Genotype,
		"dosage":        int64(e.Dosage),
		"quality_score": floatOrNil(e.QualityScore),
	}
	mergeExtra(props, e.Extra)
	return EdgeRecord{FromKey: e.SampleID, ToKey: e.VariantID, Props: props}
}

// Sample is a germplasm entity referenced by genotype edges.
type Sample struct {
	ID      string
	Species string
}

// Record converts the sample into store parameters.
func (s *Sample) Record() NodeRecord {
	return NodeRecord{
		Key: s.ID,
		Props: map[string]any{
			KeyGermplasm: s.ID,
			"name":       s.ID,
			"species":    s.Species,
		},
	}
}

// mergeExtra copies the open property bag without overriding fixed fields.
func mergeExtra(props map[string]any, extra map[string]string) {
	for k, v := range extra {
		if _, fixed := props[k]; fixed {
			continue
		}
		props[k] = v
	}
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
