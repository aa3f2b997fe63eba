package graph

import (
	"slices"
	"strings"
	"unicode"
)

// EntityType is the node label assigned to a free-text entity name.
type EntityType string

// Entity types in rule order. EntityUnknown is the fallback.
const (
	EntityGene       EntityType = "Gene"
	EntityTrait      EntityType = "Trait"
	EntityGermplasm  EntityType = "Germplasm"
	EntityQTL        EntityType = "QTL"
	EntityChromosome EntityType = "Chromosome"
	EntityTrial      EntityType = "Trial"
	EntityLocation   EntityType = "Location"
	EntityWeather    EntityType = "Weather"
	EntityMarker     EntityType = "Marker"
	EntityPathway    EntityType = "Pathway"
	EntityUnknown    EntityType = "Entity"
)

var (
	genePatterns = []string{
		"DREB", "Zm", "PSY", "VPP", "NF-Y", "CCT", "EREB", "WRKY", "MYB",
		"HDZ", "TCP", "NAC", "ARF", "GRF", "SPL", "KN", "GA20ox",
	}
	traitWords = []string{
		"tolerance", "yield", "depth", "color", "roots", "flowering",
		"resistance", "production", "architecture", "height", "senescence",
		"development", "size", "elongation", "efficiency", "protein",
		"kernel", "leaves", "system", "lodging", "rainfall", "stress",
	}
	germplasmNames = []string{
		"B73", "Mo17", "CML247", "W22", "Oh43", "PH207", "Ki3", "A632",
		"Tx303", "NC350", "F7", "B37",
	}
	locationNames = []string{
		"Ames", "Iowa", "Nebraska", "Illinois", "Kansas", "Minnesota",
	}
	weatherWords = []string{
		"drought", "normal", "high", "cold", "wind", "temperature",
	}
	pathwayWords = []string{
		"pathway", "signaling", "biosynthesis", "metabolism", "response",
		"clock", "division",
	}
)

type classifyRule struct {
	typ   EntityType
	match func(name, lower string) bool
}

// Rules are evaluated in order; the first match wins.
var classifyRules = []classifyRule{
	{EntityGene, func(name, _ string) bool { return containsAny(name, genePatterns) }},
	{EntityTrait, func(_, lower string) bool { return containsAny(lower, traitWords) }},
	{EntityGermplasm, func(name, _ string) bool { return slices.Contains(germplasmNames, name) }},
	{EntityQTL, func(name, _ string) bool {
		return strings.HasPrefix(name, "q") && strings.ContainsFunc(name, unicode.IsDigit)
	}},
	{EntityChromosome, func(_, lower string) bool { return strings.Contains(lower, "chromosome") }},
	{EntityTrial, func(_, lower string) bool { return strings.Contains(lower, "trial") }},
	{EntityLocation, func(name, _ string) bool { return slices.Contains(locationNames, name) }},
	{EntityWeather, func(_, lower string) bool { return containsAny(lower, weatherWords) }},
	{EntityMarker, func(name, _ string) bool {
		return strings.HasPrefix(name, "SNP_") || strings.HasPrefix(name, "SSR_")
	}},
	{EntityPathway, func(_, lower string) bool { return containsAny(lower, pathwayWords) }},
}

// Classify assigns an entity type to a name using the ordered rule list.
// Names matching no rule are EntityUnknown.
func Classify(name string) EntityType {
	name = strings.TrimSpace(name)
	if name == "" {
		return EntityUnknown
	}
	lower := strings.ToLower(name)
	for _, r := range classifyRules {
		if r.match(name, lower) {
			return r.typ
		}
	}
	return EntityUnknown
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
