// Package output provides tab-delimited writers for rejected records, run
// summaries and entity classifications.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/inodb/vibe-kg/internal/vcf"
)

// RejectWriter writes malformed VCF records as tab-delimited rows. It is
// safe for concurrent use.
type RejectWriter struct {
	mu      sync.Mutex
	w       *bufio.Writer
	columns []string
}

// NewRejectWriter creates a reject log writer.
func NewRejectWriter(w io.Writer) *RejectWriter {
	return &RejectWriter{
		w:       bufio.NewWriter(w),
		columns: []string{"#Line", "Field", "Reason"},
	}
}

// WriteHeader writes the header line.
func (rw *RejectWriter) WriteHeader() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	_, err := rw.w.WriteString(strings.Join(rw.columns, "\t") + "\n")
	return err
}

// Reject writes one rejected record.
func (rw *RejectWriter) Reject(pe *vcf.ParseError) error {
	field := pe.Field
	if field == "" {
		field = "-"
	}
	values := []string{
		strconv.Itoa(pe.Line),
		field,
		sanitize(pe.Message),
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	_, err := rw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (rw *RejectWriter) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.w.Flush()
}

// sanitize keeps a value on one tab-delimited cell.
func sanitize(s string) string {
	if s == "" {
		return "-"
	}
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
