package duckdb

import (
	"context"
	"database/sql"
	"strings"
)

// chunkRows bounds the rows bound into one statement.
const chunkRows = 500

// queryInChunks runs query once per chunk of keys, appending
// "IN (?, ...)" for the chunk after the fixed args.
func queryInChunks(ctx context.Context, tx *sql.Tx, query string, args []any, keys []string, scan func(*sql.Rows) error) error {
	for start := 0; start < len(keys); start += chunkRows {
		chunk := keys[start:min(start+chunkRows, len(keys))]

		bound := make([]any, 0, len(args)+len(chunk))
		bound = append(bound, args...)
		for _, k := range chunk {
			bound = append(bound, k)
		}

		rows, err := tx.QueryContext(ctx, query+" IN ("+placeholders(len(chunk))+")", bound...)
		if err != nil {
			return err
		}
		for rows.Next() {
			if err := scan(rows); err != nil {
				rows.Close()
				return err
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// execInChunks inserts rows with one multi-row statement per chunk. Every
// row must have the same width, and keys must be unique across rows since
// DuckDB rejects a statement that updates one conflict target twice.
func execInChunks(ctx context.Context, tx *sql.Tx, prefix, suffix string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tuple := "(" + placeholders(len(rows[0])) + ")"

	for start := 0; start < len(rows); start += chunkRows {
		chunk := rows[start:min(start+chunkRows, len(rows))]

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, len(chunk)*len(chunk[0]))
		for i, row := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tuple)
			args = append(args, row...)
		}
		b.WriteString(suffix)

		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
