package vcf

import (
	"strconv"
	"strings"
)

// Dosage is the encoded form of a genotype call.
type Dosage struct {
	Count int  // number of alternate-allele copies; meaningful only if Valid
	Valid bool // false for missing or unparsable calls
}

// EncodeGenotype converts a GT string such as "0/1" or "1|1" into an
// alternate-allele dosage. Phased and unphased separators are treated alike.
// Missing calls and calls with non-numeric allele tokens are invalid.
// Ploidy is not limited: every token greater than zero adds one.
func EncodeGenotype(raw string) Dosage {
	return encode(raw, -1)
}

// EncodeGenotypeFor is EncodeGenotype with an additional range check: a
// token referring to an allele index above altCount makes the call invalid.
// With altCount 0 any non-reference token is invalid.
func EncodeGenotypeFor(raw string, altCount int) Dosage {
	return encode(raw, altCount)
}

// IsMissingGenotype reports whether raw is a no-call rather than a
// malformed genotype.
func IsMissingGenotype(raw string) bool {
	switch raw {
	case "", Missing, "./.", ".|.":
		return true
	}
	return false
}

func encode(raw string, altCount int) Dosage {
	if IsMissingGenotype(raw) {
		return Dosage{}
	}

	count := 0
	for _, tok := range strings.Split(strings.ReplaceAll(raw, "|", "/"), "/") {
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || tok[0] == '+' {
			return Dosage{}
		}
		if altCount >= 0 && idx > altCount {
			return Dosage{}
		}
		if idx > 0 {
			count++
		}
	}
	return Dosage{Count: count, Valid: true}
}
