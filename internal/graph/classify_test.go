package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want EntityType
	}{
		{"ZmNAC111", EntityGene},
		{"DREB2A", EntityGene},
		{"Drought tolerance", EntityTrait},
		{"Grain yield", EntityTrait},
		{"B73", EntityGermplasm},
		{"Mo17", EntityGermplasm},
		{"qPH1", EntityQTL},
		{"Chromosome 3", EntityChromosome},
		{"Ames trial 2021", EntityTrial},
		{"Ames", EntityLocation},
		{"Drought", EntityWeather},
		{"SNP_1234", EntityMarker},
		{"Auxin signaling", EntityPathway},
		{"Unknown thing", EntityUnknown},
		{"", EntityUnknown},
		{"   ", EntityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}

func TestClassify_RuleOrder(t *testing.T) {
	// Gene patterns win over trait words.
	assert.Equal(t, EntityGene, Classify("ZmDREB drought tolerance"))
	// Trait words win over weather words ("stress" is a trait word).
	assert.Equal(t, EntityTrait, Classify("cold stress"))
	// Germplasm names require an exact match.
	assert.Equal(t, EntityUnknown, Classify("B73x"))
}
