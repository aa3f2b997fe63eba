package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inodb/vibe-kg/internal/ingest"
)

// Run is one row of the ingestion ledger.
type Run struct {
	ID               string
	Source           string
	SourceSize       int64 // -1 when unknown
	SourceModTime    time.Time
	StartedAt        time.Time
	FinishedAt       time.Time // zero while running
	State            string
	TotalRecords     int64
	ProcessedRecords int64
	SkippedRecords   int64
	GenotypeEdges    int64
	Batches          int64
	Retries          int64
	Error            string
}

// RunSource identifies the input of a run as reported by its backend.
// Size is negative and ModTime zero when unknown, e.g. for stdin.
type RunSource struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// StartRun records the start of an ingestion and returns its run ID.
func (s *Store) StartRun(ctx context.Context, src RunSource) (string, error) {
	id := uuid.NewString()
	var (
		size    sql.NullInt64
		modTime sql.NullTime
	)
	if src.Size >= 0 {
		size = sql.NullInt64{Int64: src.Size, Valid: true}
	}
	if !src.ModTime.IsZero() {
		modTime = sql.NullTime{Time: src.ModTime.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_runs
		(run_id, source, source_size, source_modtime, started_at, state)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, src.Name, size, modTime, time.Now().UTC(), ingest.StateStreaming.String())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final stats of a run.
func (s *Store) FinishRun(ctx context.Context, id string, stats ingest.Stats, runErr error) error {
	var errMsg sql.NullString
	if runErr != nil {
		errMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE ingest_runs SET
		finished_at = ?, state = ?, total_records = ?, processed_records = ?,
		skipped_records = ?, genotype_edges = ?, batches = ?, retries = ?, error = ?
		WHERE run_id = ?`,
		time.Now().UTC(), stats.State.String(),
		stats.TotalRecords, stats.ProcessedRecords, stats.SkippedRecords,
		stats.TotalGenotypes, stats.Batches, stats.Retries, errMsg, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: unknown run %s", id)
	}
	return nil
}

// Runs returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, source, source_size, source_modtime, started_at, finished_at,
		state, total_records, processed_records, skipped_records, genotype_edges,
		batches, retries, error
		FROM ingest_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                             Run
			source, errMsg                sql.NullString
			size, total, processed        sql.NullInt64
			skipped, edges, batches, rtry sql.NullInt64
			modTime, finished             sql.NullTime
		)
		if err := rows.Scan(&r.ID, &source, &size, &modTime, &r.StartedAt, &finished,
			&r.State, &total, &processed, &skipped, &edges, &batches, &rtry, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Source = source.String
		r.SourceSize = -1
		if size.Valid {
			r.SourceSize = size.Int64
		}
		r.SourceModTime = modTime.Time
		r.FinishedAt = finished.Time
		r.TotalRecords = total.Int64
		r.ProcessedRecords = processed.Int64
		r.SkippedRecords = skipped.Int64
		r.GenotypeEdges = edges.Int64
		r.Batches = batches.Int64
		r.Retries = rtry.Int64
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
