package vcf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const minColumns = 8

// Reader streams records from VCF text. The header is consumed once by
// NewReader; each call to Next parses one data line.
type Reader struct {
	reader     *bufio.Reader
	gzipReader *gzip.Reader
	lineNumber int
	metadata   map[string]string
	samples    []string
}

// NewReader creates a reader over plain or gzip-compressed VCF text and
// parses the header. A missing #CHROM line yields an error wrapping
// ErrHeaderParse.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	p := &Reader{metadata: make(map[string]string)}

	// Check for gzip magic number (0x1f, 0x8b)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReaderSize(p.gzipReader, 1<<20)
	} else {
		p.reader = br
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned normally; io.EOF is returned only once no
// data remains.
func (p *Reader) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		} else {
			return "", err
		}
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Reader) parseHeader() error {
	for {
		line, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}

		if strings.HasPrefix(line, "##") {
			if key, value, ok := strings.Cut(line[2:], "="); ok {
				p.metadata[key] = value
			}
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			// Sample names follow FORMAT (index 9+)
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				p.samples = fields[9:]
			}
			return nil
		}

		// Other comment lines may precede #CHROM.
		if line == "" || line[0] == '#' {
			continue
		}

		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
			Err:     ErrHeaderParse,
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
		Err:     ErrHeaderParse,
	}
}

// Next reads the next record.
// Returns nil, nil when there are no more records. A malformed line returns
// a *ParseError wrapping ErrMalformedRecord and the stream may continue;
// any other error is an I/O failure.
func (p *Reader) Next() (*Record, error) {
	for {
		line, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("read record line %d: %w", p.lineNumber+1, err)
		}
		if line == "" || line[0] == '#' {
			continue
		}
		return ParseRecord(line, p.samples, p.lineNumber)
	}
}

// ParseRecord parses one tab-delimited data line. Genotype columns are
// matched positionally to samples.
func ParseRecord(line string, samples []string, lineNo int) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minColumns {
		return nil, malformed(lineNo, "", "expected at least %d columns, found %d", minColumns, len(fields))
	}

	chrom := fields[0]
	if chrom == "" || chrom == Missing {
		return nil, malformed(lineNo, "CHROM", "missing chromosome")
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, malformed(lineNo, "POS", "invalid position: %s", fields[1])
	}

	ref := fields[3]
	if ref == "" || ref == Missing {
		return nil, malformed(lineNo, "REF", "missing reference allele")
	}

	rec := &Record{
		Chrom:  chrom,
		Pos:    pos,
		ID:     fields[2],
		Ref:    ref,
		Filter: fields[6],
		Info:   parseInfo(fields[7]),
		Line:   lineNo,
	}

	if rec.ID == "" || rec.ID == Missing {
		rec.ID = fmt.Sprintf("%s_%d", chrom, pos)
	}

	if fields[4] != Missing && fields[4] != "" {
		rec.Alt = strings.Split(fields[4], ",")
		for _, alt := range rec.Alt {
			if alt == "" || alt == ref {
				return nil, malformed(lineNo, "ALT", "invalid alternate allele %q for reference %q", alt, ref)
			}
		}
	}

	if fields[5] != Missing {
		q, err := strconv.ParseFloat(fields[5], 64)
		if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
			rec.Warnings = append(rec.Warnings, malformed(lineNo, "QUAL", "non-numeric quality: %s", fields[5]))
		} else {
			rec.Qual = &q
		}
	}

	rec.Genotypes = parseGenotypes(fields, samples)
	return rec, nil
}

// parseInfo parses the INFO field into a map.
func parseInfo(info string) map[string]any {
	result := make(map[string]any)
	if info == Missing {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		if ok {
			result[key] = value
		} else {
			// Flag-type INFO field
			result[key] = true
		}
	}

	return result
}

// parseGenotypes keeps the first colon-delimited subfield of each sample
// column. Columns without a matching sample are ignored.
func parseGenotypes(fields []string, samples []string) map[string]string {
	if len(fields) <= 9 || len(samples) == 0 {
		return nil
	}
	genotypes := make(map[string]string, len(samples))
	for i, sample := range samples {
		col := 9 + i
		if col >= len(fields) {
			break
		}
		gt, _, _ := strings.Cut(fields[col], ":")
		genotypes[sample] = gt
	}
	return genotypes
}

// Metadata returns the ##key=value header entries.
func (p *Reader) Metadata() map[string]string {
	return p.metadata
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Reader) SampleNames() []string {
	return p.samples
}

// Close releases the decompressor, if any. The underlying reader is owned
// by the caller.
func (p *Reader) Close() error {
	if p.gzipReader != nil {
		return p.gzipReader.Close()
	}
	return nil
}
