package neo4jdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-kg/internal/graph"
)

func TestNodeUpsertQuery(t *testing.T) {
	q, err := nodeUpsertQuery(graph.LabelVariant, graph.KeyVariant)
	require.NoError(t, err)
	assert.Equal(t, "UNWIND $rows AS row\n"+
		"MERGE (n:`Variant` {`variant_id`: row.key})\n"+
		"SET n += row.props\n"+
		"RETURN count(n) AS written", q)

	_, err = nodeUpsertQuery("Variant`) DETACH DELETE n //", graph.KeyVariant)
	assert.ErrorIs(t, err, graph.ErrInvalidIdentifier)
}

func TestEdgeUpsertQuery(t *testing.T) {
	q, err := edgeUpsertQuery(graph.RelHasVariant, graph.SampleRef, graph.VariantRef)
	require.NoError(t, err)
	assert.Contains(t, q, "MATCH (a:`Germplasm` {`germplasm_id`: row.from})")
	assert.Contains(t, q, "MATCH (b:`Variant` {`variant_id`: row.to})")
	assert.Contains(t, q, "MERGE (a)-[r:`HAS_VARIANT`]->(b)")
	assert.Contains(t, q, "SET r += row.props")

	_, err = edgeUpsertQuery("HAS VARIANT", graph.SampleRef, graph.VariantRef)
	assert.ErrorIs(t, err, graph.ErrInvalidIdentifier)
}

func TestSchemaQuery(t *testing.T) {
	tests := []struct {
		spec graph.IndexSpec
		want string
	}{
		{
			graph.IndexSpec{Name: "variant_id_unique", Label: "Variant", Properties: []string{"variant_id"}, Unique: true},
			"CREATE CONSTRAINT `variant_id_unique` IF NOT EXISTS FOR (n:`Variant`) REQUIRE n.`variant_id` IS UNIQUE",
		},
		{
			graph.IndexSpec{Name: "variant_position_index", Label: "Variant", Properties: []string{"chromosome", "position"}},
			"CREATE INDEX `variant_position_index` IF NOT EXISTS FOR (n:`Variant`) ON (n.`chromosome`, n.`position`)",
		},
		{
			graph.IndexSpec{Name: "pair_unique", Label: "Edge", Properties: []string{"a", "b"}, Unique: true},
			"CREATE CONSTRAINT `pair_unique` IF NOT EXISTS FOR (n:`Edge`) REQUIRE (n.`a`, n.`b`) IS UNIQUE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.spec.Name, func(t *testing.T) {
			got, err := schemaQuery(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, spec := range graph.Schema {
		_, err := schemaQuery(spec)
		assert.NoError(t, err, spec.Name)
	}

	_, err := schemaQuery(graph.IndexSpec{Name: "empty", Label: "Variant"})
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, classifyError(nil))
	assert.ErrorIs(t, classifyError(context.DeadlineExceeded), context.DeadlineExceeded)

	plain := errors.New("syntax error")
	err := classifyError(plain)
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, graph.ErrStoreUnavailable)
}

func TestOpen_InvalidURI(t *testing.T) {
	_, err := Open(context.Background(), Config{URI: "ftp://localhost:7687"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{URI: "neo4j://db:7687"}.withDefaults()
	assert.Equal(t, 50, c.MaxPoolSize)
	assert.Equal(t, DefaultConfig().ConnectTimeout, c.ConnectTimeout)
}
