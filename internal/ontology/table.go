package ontology

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is an in-memory term table keyed by normalized annotation value.
type Table map[string]Term

// Lookup implements Lookup.
func (t Table) Lookup(_ context.Context, key string) (Term, bool, error) {
	term, ok := t[NormalizeKey(key)]
	return term, ok, nil
}

// LoadTable loads a term table from a TSV file.
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open term table: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}

// ReadTable reads a TSV term table. The header must name the columns "key",
// "term_id" and "name"; an "ontology" column is optional. Lines starting
// with '#' are comments.
func ReadTable(r io.Reader) (Table, error) {
	scanner := bufio.NewScanner(r)

	var header []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		header = strings.Split(line, "\t")
		break
	}
	if header == nil {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading term table: %w", err)
		}
		return nil, fmt.Errorf("term table: empty file")
	}

	keyIdx, idIdx, nameIdx, ontIdx := -1, -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "key":
			keyIdx = i
		case "term_id":
			idIdx = i
		case "name":
			nameIdx = i
		case "ontology":
			ontIdx = i
		}
	}
	if keyIdx < 0 || idIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("term table: header must contain 'key', 'term_id' and 'name' columns")
	}

	table := make(Table)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= keyIdx || len(fields) <= idIdx || len(fields) <= nameIdx {
			continue
		}
		key := NormalizeKey(fields[keyIdx])
		id := strings.TrimSpace(fields[idIdx])
		if key == "" || id == "" {
			continue
		}
		term := Term{ID: id, Name: strings.TrimSpace(fields[nameIdx])}
		if ontIdx >= 0 && ontIdx < len(fields) {
			term.Ontology = strings.TrimSpace(fields[ontIdx])
		}
		table[key] = term
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading term table: %w", err)
	}

	return table, nil
}
