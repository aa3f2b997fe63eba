package graph

// IndexSpec describes a constraint or index the variant graph relies on.
type IndexSpec struct {
	Name       string
	Label      string
	Properties []string
	Unique     bool
}

// Schema lists the constraints and indexes for variant ingestion. Unique
// constraints back the MERGE keys; the others serve locus and type queries.
var Schema = []IndexSpec{
	{Name: "variant_id_unique", Label: LabelVariant, Properties: []string{KeyVariant}, Unique: true},
	{Name: "germplasm_id_unique", Label: LabelGermplasm, Properties: []string{KeyGermplasm}, Unique: true},
	{Name: "variant_position_index", Label: LabelVariant, Properties: []string{"chromosome", "position"}},
	{Name: "variant_type_index", Label: LabelVariant, Properties: []string{"variant_type"}},
	{Name: "germplasm_species_index", Label: LabelGermplasm, Properties: []string{"species"}},
}
