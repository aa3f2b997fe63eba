package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrStoreUnavailable marks a store failure worth retrying (connection
	// loss, leader switch, overload).
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrUnresolvedSample marks an edge whose sample node does not exist.
	ErrUnresolvedSample = errors.New("unresolved sample reference")

	// ErrInvalidIdentifier is returned for labels, key fields or
	// relationship types that are not plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid graph identifier")
)

// NodeRef names a node label and the property that identifies it.
type NodeRef struct {
	Label    string
	KeyField string
}

// NodeRecord is one node upsert. Props replace same-named properties of an
// existing node.
type NodeRecord struct {
	Key   string
	Props map[string]any
}

// EdgeRecord is one relationship upsert between two existing nodes.
type EdgeRecord struct {
	FromKey string
	ToKey   string
	Props   map[string]any
}

// GraphStore is the write surface of a property-graph backend. Both
// operations must be idempotent: submitting the same records repeatedly
// leaves the store as a single submission would.
type GraphStore interface {
	// UpsertNodes creates or updates nodes of label keyed by keyField and
	// returns the number of records written.
	UpsertNodes(ctx context.Context, label, keyField string, records []NodeRecord) (int, error)

	// UpsertEdges creates or updates at most one relationship of relType per
	// (from, to) pair. Records whose endpoints do not exist are skipped and
	// not counted.
	UpsertEdges(ctx context.Context, relType string, from, to NodeRef, records []EdgeRecord) (int, error)
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a label, property key or
// relationship type without quoting user data into a query.
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// CheckIdentifiers returns an error wrapping ErrInvalidIdentifier for the
// first invalid identifier.
func CheckIdentifiers(ids ...string) error {
	for _, id := range ids {
		if !ValidIdentifier(id) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}
	return nil
}
