package vcf

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a data line (or one of its fields) that
	// could not be parsed. It never aborts a stream.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrHeaderParse marks input without a usable #CHROM header line.
	ErrHeaderParse = errors.New("header parse failure")
)

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Field   string // set for field-level errors, e.g. "QUAL"
	Message string
	Err     error // ErrMalformedRecord or ErrHeaderParse
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("vcf parse error at line %d (%s): %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func malformed(line int, field, format string, args ...any) *ParseError {
	return &ParseError{
		Line:    line,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     ErrMalformedRecord,
	}
}
