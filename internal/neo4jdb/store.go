package neo4jdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/inodb/vibe-kg/internal/graph"
)

// UpsertNodes implements graph.GraphStore.
func (s *Store) UpsertNodes(ctx context.Context, label, keyField string, records []graph.NodeRecord) (int, error) {
	query, err := nodeUpsertQuery(label, keyField)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = map[string]any{"key": rec.Key, "props": rec.Props}
	}
	return s.write(ctx, query, rows)
}

// UpsertEdges implements graph.GraphStore. MATCH on both endpoints means
// rows with a missing node are neither written nor counted.
func (s *Store) UpsertEdges(ctx context.Context, relType string, from, to graph.NodeRef, records []graph.EdgeRecord) (int, error) {
	query, err := edgeUpsertQuery(relType, from, to)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = map[string]any{"from": rec.FromKey, "to": rec.ToKey, "props": rec.Props}
	}
	return s.write(ctx, query, rows)
}

func (s *Store) write(ctx context.Context, query string, rows []map[string]any) (int, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	written, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("written")
		count, _ := n.(int64)
		return count, nil
	})
	if err != nil {
		return 0, classifyError(err)
	}
	return int(written.(int64)), nil
}

// EnsureSchema creates the given constraints and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context, specs []graph.IndexSpec) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, spec := range specs {
		query, err := schemaQuery(spec)
		if err != nil {
			return err
		}
		res, err := session.Run(ctx, query, nil)
		if err != nil {
			return fmt.Errorf("create %s: %w", spec.Name, classifyError(err))
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("create %s: %w", spec.Name, classifyError(err))
		}
		s.logger.Info("ensured schema object", zap.String("name", spec.Name), zap.Bool("unique", spec.Unique))
	}
	return nil
}

// quote wraps a validated identifier in backticks.
func quote(id string) string {
	return "`" + id + "`"
}

func nodeUpsertQuery(label, keyField string) (string, error) {
	if err := graph.CheckIdentifiers(label, keyField); err != nil {
		return "", err
	}
	return fmt.Sprintf(`UNWIND $rows AS row
MERGE (n:%s {%s: row.key})
SET n += row.props
RETURN count(n) AS written`, quote(label), quote(keyField)), nil
}

func edgeUpsertQuery(relType string, from, to graph.NodeRef) (string, error) {
	if err := graph.CheckIdentifiers(relType, from.Label, from.KeyField, to.Label, to.KeyField); err != nil {
		return "", err
	}
	return fmt.Sprintf(`UNWIND $rows AS row
MATCH (a:%s {%s: row.from})
MATCH (b:%s {%s: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props
RETURN count(r) AS written`,
		quote(from.Label), quote(from.KeyField),
		quote(to.Label), quote(to.KeyField),
		quote(relType)), nil
}

func schemaQuery(spec graph.IndexSpec) (string, error) {
	if len(spec.Properties) == 0 {
		return "", fmt.Errorf("schema %s: no properties", spec.Name)
	}
	ids := append([]string{spec.Name, spec.Label}, spec.Properties...)
	if err := graph.CheckIdentifiers(ids...); err != nil {
		return "", err
	}

	props := make([]string, len(spec.Properties))
	for i, p := range spec.Properties {
		props[i] = "n." + quote(p)
	}
	if spec.Unique {
		target := props[0]
		if len(props) > 1 {
			target = "(" + strings.Join(props, ", ") + ")"
		}
		return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE %s IS UNIQUE",
			quote(spec.Name), quote(spec.Label), target), nil
	}
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (%s)",
		quote(spec.Name), quote(spec.Label), strings.Join(props, ", ")), nil
}

// classifyError marks connectivity and transient server errors as
// graph.ErrStoreUnavailable.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if neo4j.IsConnectivityError(err) || neo4j.IsRetryable(err) {
		return fmt.Errorf("%w: %w", graph.ErrStoreUnavailable, err)
	}
	return err
}

var _ graph.GraphStore = (*Store)(nil)
