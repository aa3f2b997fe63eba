// Package duckdb provides an embedded GraphStore backed by DuckDB and the
// ledger of ingestion runs.
//
// Nodes and relationships are stored as rows keyed by label and key with
// their properties encoded as JSON. Upserts merge properties the way Cypher
// "SET n += $props" does.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-kg/internal/graph"
)

// Store manages a DuckDB connection holding a property graph.
type Store struct {
	db *sql.DB
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			label VARCHAR NOT NULL,
			node_key VARCHAR NOT NULL,
			props VARCHAR NOT NULL,
			PRIMARY KEY (label, node_key)
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			rel_type VARCHAR NOT NULL,
			from_label VARCHAR NOT NULL,
			from_key VARCHAR NOT NULL,
			to_label VARCHAR NOT NULL,
			to_key VARCHAR NOT NULL,
			props VARCHAR NOT NULL,
			PRIMARY KEY (rel_type, from_label, from_key, to_label, to_key)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			run_id VARCHAR PRIMARY KEY,
			source VARCHAR,
			source_size BIGINT,
			source_modtime TIMESTAMP,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			state VARCHAR,
			total_records BIGINT,
			processed_records BIGINT,
			skipped_records BIGINT,
			genotype_edges BIGINT,
			batches BIGINT,
			retries BIGINT,
			error VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertNodes implements graph.GraphStore. All records are written in one
// transaction: existing properties are read and merged records written back
// a chunk at a time.
func (s *Store) UpsertNodes(ctx context.Context, label, keyField string, records []graph.NodeRecord) (int, error) {
	if err := graph.CheckIdentifiers(label, keyField); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("begin transaction", err)
	}
	defer tx.Rollback()

	var keys []string
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if !seen[rec.Key] {
			seen[rec.Key] = true
			keys = append(keys, rec.Key)
		}
	}

	merged := make(map[string]map[string]any, len(keys))
	err = queryInChunks(ctx, tx, `SELECT node_key, props FROM graph_nodes WHERE label = ? AND node_key`,
		[]any{label}, keys, func(rows *sql.Rows) error {
			var key, raw string
			if err := rows.Scan(&key, &raw); err != nil {
				return err
			}
			props, err := decodeProps(raw)
			if err != nil {
				return fmt.Errorf("decode node %s: %w", key, err)
			}
			merged[key] = props
			return nil
		})
	if err != nil {
		return 0, storeError("select nodes", err)
	}

	// Later records for the same key merge over earlier ones.
	for _, rec := range records {
		props, ok := merged[rec.Key]
		if !ok {
			props = make(map[string]any)
			merged[rec.Key] = props
		}
		mergeProps(props, rec.Props)
		props[keyField] = rec.Key
	}

	rows := make([][]any, 0, len(keys))
	for _, key := range keys {
		raw, err := encodeProps(merged[key])
		if err != nil {
			return 0, fmt.Errorf("encode node %s: %w", key, err)
		}
		rows = append(rows, []any{label, key, raw})
	}
	err = execInChunks(ctx, tx, `INSERT INTO graph_nodes (label, node_key, props) VALUES `,
		` ON CONFLICT (label, node_key) DO UPDATE SET props = excluded.props`, rows)
	if err != nil {
		return 0, storeError("upsert nodes", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError("commit nodes", err)
	}
	return len(records), nil
}

type edgeEnds struct {
	from, to string
}

// UpsertEdges implements graph.GraphStore. Records whose endpoints are not
// stored are skipped.
func (s *Store) UpsertEdges(ctx context.Context, relType string, from, to graph.NodeRef, records []graph.EdgeRecord) (int, error) {
	if err := graph.CheckIdentifiers(relType, from.Label, from.KeyField, to.Label, to.KeyField); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("begin transaction", err)
	}
	defer tx.Rollback()

	fromKeys, toKeys := distinctEnds(records)
	fromFound, err := storedKeys(ctx, tx, from.Label, fromKeys)
	if err != nil {
		return 0, storeError("check endpoints", err)
	}
	toFound, err := storedKeys(ctx, tx, to.Label, toKeys)
	if err != nil {
		return 0, storeError("check endpoints", err)
	}

	var live []graph.EdgeRecord
	liveFrom := make(map[string]bool)
	var liveFromKeys []string
	for _, rec := range records {
		if !fromFound[rec.FromKey] || !toFound[rec.ToKey] {
			continue
		}
		live = append(live, rec)
		if !liveFrom[rec.FromKey] {
			liveFrom[rec.FromKey] = true
			liveFromKeys = append(liveFromKeys, rec.FromKey)
		}
	}
	if len(live) == 0 {
		return 0, nil
	}

	// The lookup is keyed on the source side only; rows for other targets
	// are ignored below.
	existing := make(map[edgeEnds]map[string]any)
	err = queryInChunks(ctx, tx, `SELECT from_key, to_key, props FROM graph_edges
		WHERE rel_type = ? AND from_label = ? AND to_label = ? AND from_key`,
		[]any{relType, from.Label, to.Label}, liveFromKeys, func(rows *sql.Rows) error {
			var ends edgeEnds
			var raw string
			if err := rows.Scan(&ends.from, &ends.to, &raw); err != nil {
				return err
			}
			if !toFound[ends.to] {
				return nil
			}
			props, err := decodeProps(raw)
			if err != nil {
				return fmt.Errorf("decode edge %s->%s: %w", ends.from, ends.to, err)
			}
			existing[ends] = props
			return nil
		})
	if err != nil {
		return 0, storeError("select edges", err)
	}

	var order []edgeEnds
	queued := make(map[edgeEnds]bool, len(live))
	for _, rec := range live {
		ends := edgeEnds{rec.FromKey, rec.ToKey}
		props, ok := existing[ends]
		if !ok {
			props = make(map[string]any)
			existing[ends] = props
		}
		if !queued[ends] {
			queued[ends] = true
			order = append(order, ends)
		}
		mergeProps(props, rec.Props)
	}

	rows := make([][]any, 0, len(order))
	for _, ends := range order {
		enc, err := encodeProps(existing[ends])
		if err != nil {
			return 0, fmt.Errorf("encode edge %s->%s: %w", ends.from, ends.to, err)
		}
		rows = append(rows, []any{relType, from.Label, ends.from, to.Label, ends.to, enc})
	}
	err = execInChunks(ctx, tx, `INSERT INTO graph_edges (rel_type, from_label, from_key, to_label, to_key, props) VALUES `,
		` ON CONFLICT (rel_type, from_label, from_key, to_label, to_key) DO UPDATE SET props = excluded.props`, rows)
	if err != nil {
		return 0, storeError("upsert edges", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError("commit edges", err)
	}
	return len(live), nil
}

func distinctEnds(records []graph.EdgeRecord) (fromKeys, toKeys []string) {
	seenFrom := make(map[string]bool)
	seenTo := make(map[string]bool)
	for _, rec := range records {
		if !seenFrom[rec.FromKey] {
			seenFrom[rec.FromKey] = true
			fromKeys = append(fromKeys, rec.FromKey)
		}
		if !seenTo[rec.ToKey] {
			seenTo[rec.ToKey] = true
			toKeys = append(toKeys, rec.ToKey)
		}
	}
	return fromKeys, toKeys
}

// storedKeys returns which of keys exist as nodes with label.
func storedKeys(ctx context.Context, tx *sql.Tx, label string, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	err := queryInChunks(ctx, tx, `SELECT node_key FROM graph_nodes WHERE label = ? AND node_key`,
		[]any{label}, keys, func(rows *sql.Rows) error {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			found[key] = true
			return nil
		})
	return found, err
}

// NodeCount returns the number of nodes with label.
func (s *Store) NodeCount(ctx context.Context, label string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM graph_nodes WHERE label = ?`, label).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// EdgeCount returns the number of relationships of relType.
func (s *Store) EdgeCount(ctx context.Context, relType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM graph_edges WHERE rel_type = ?`, relType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return n, nil
}

// Node returns a node's properties.
func (s *Store) Node(ctx context.Context, label, key string) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT props FROM graph_nodes WHERE label = ? AND node_key = ?`, label, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query node: %w", err)
	}
	props, err := decodeProps(raw)
	if err != nil {
		return nil, false, err
	}
	return props, true, nil
}

// Edge returns a relationship's properties.
func (s *Store) Edge(ctx context.Context, relType string, from graph.NodeRef, fromKey string, to graph.NodeRef, toKey string) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT props FROM graph_edges
		WHERE rel_type = ? AND from_label = ? AND from_key = ? AND to_label = ? AND to_key = ?`,
		relType, from.Label, fromKey, to.Label, toKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query edge: %w", err)
	}
	props, err := decodeProps(raw)
	if err != nil {
		return nil, false, err
	}
	return props, true, nil
}

// storeError marks lost connections and transaction conflicts as
// retryable.
func storeError(op string, err error) error {
	if retryableError(err) {
		return fmt.Errorf("%s: %w: %w", op, graph.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func retryableError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var duckErr *goduckdb.Error
	return errors.As(err, &duckErr) && duckErr.Type == goduckdb.ErrorTypeTransaction
}

var _ graph.GraphStore = (*Store)(nil)
