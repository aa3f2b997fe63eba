package vcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	// MaxKeyLength bounds the length of a readable variant key. Longer keys
	// are replaced by a digest.
	MaxKeyLength = 100

	// RefOnlyAllele stands in for the ALT segment when no alternate allele
	// was called. Unresolved and reference-only calls at the same locus and
	// REF share a key and merge into one node.
	RefOnlyAllele = "REF"

	// DigestPrefix tags keys that were replaced by a digest.
	DigestPrefix = "VAR_"
)

// NormalizeKey returns the stable variant key for a record.
func NormalizeKey(r *Record) string {
	return VariantKey(r.Chrom, r.Pos, r.Ref, r.Alt)
}

// VariantKey builds "chrom_pos_ref_alt1_alt2...". Keys longer than
// MaxKeyLength become DigestPrefix followed by 32 hex characters of a
// BLAKE3 digest of the long form.
//
// The readable form splits back unambiguously only while no allele contains
// '_'. Base alleles never do; symbolic and breakend alleles such as
// <INS_ME> or G]chrUn_gl000220:10] may, so those keys are always digested,
// from a tab-separated form in which the field boundaries stay intact.
func VariantKey(chrom string, pos int64, ref string, alts []string) string {
	if strings.Contains(ref, "_") || anyContains(alts, "_") {
		return DigestPrefix + digest16(strings.Join([]string{
			chrom, strconv.FormatInt(pos, 10), ref, strings.Join(alts, ","),
		}, "\t"))
	}

	var b strings.Builder
	b.Grow(len(chrom) + len(ref) + 24)
	b.WriteString(chrom)
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(pos, 10))
	b.WriteByte('_')
	b.WriteString(ref)
	b.WriteByte('_')
	if len(alts) == 0 {
		b.WriteString(RefOnlyAllele)
	} else {
		b.WriteString(strings.Join(alts, "_"))
	}

	key := b.String()
	if len(key) <= MaxKeyLength {
		return key
	}
	return DigestPrefix + digest16(key)
}

func anyContains(values []string, sub string) bool {
	for _, v := range values {
		if strings.Contains(v, sub) {
			return true
		}
	}
	return false
}

// digest16 returns 16 bytes of BLAKE3 output as hex.
func digest16(s string) string {
	hasher := blake3.New()
	_, _ = hasher.Write([]byte(s))
	var buf [16]byte
	_, _ = hasher.Digest().Read(buf[:])
	return fmt.Sprintf("%x", buf)
}
