package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridgraph/hybridgraph/internal/engine"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
)

func TestInitConfigBuildsEngineFromDefaults(t *testing.T) {
	c := &CLI{}
	require.NoError(t, c.initConfig())
	require.NotNil(t, c.cfg)
	require.NotNil(t, c.engine)
	require.Equal(t, "https://hybridgraph.dev/ont#hasTimeseries", c.cfg.Predicates.HasTimeseries)
}

func TestInitConfigHonorsEndpointOverride(t *testing.T) {
	c := &CLI{endpoint: "http://example.invalid/sparql"}
	require.NoError(t, c.initConfig())
	require.Equal(t, "http://example.invalid/sparql", c.cfg.SPARQLEndpoint)
}

func TestRenderTableHumanReadable(t *testing.T) {
	c := &CLI{}
	table := &engine.Table{
		Schema: &resultstream.ResultSchema{Columns: []resultstream.ColumnDef{
			{Name: "room", Kind: resultstream.ColumnIRI},
			{Name: "value", Kind: resultstream.ColumnLiteral},
		}},
		Rows: []resultstream.Row{{"room": "https://hybridgraph.dev/room1", "value": 42.5}},
	}

	var buf bytes.Buffer
	c.renderTable(&buf, table)

	out := buf.String()
	require.Contains(t, out, "ROOM")
	require.Contains(t, out, "https://hybridgraph.dev/room1")
	require.Contains(t, out, "(1 rows)")
}

func TestRenderTableJSON(t *testing.T) {
	c := &CLI{jsonOutput: true}
	table := &engine.Table{
		Schema: &resultstream.ResultSchema{Columns: []resultstream.ColumnDef{{Name: "room", Kind: resultstream.ColumnIRI}}},
		Rows:   []resultstream.Row{{"room": "https://hybridgraph.dev/room1"}},
	}

	var buf bytes.Buffer
	c.renderTable(&buf, table)

	require.Contains(t, buf.String(), `"room": "https://hybridgraph.dev/room1"`)
}

func TestColorizeDirectionCoversAllDirections(t *testing.T) {
	c := &CLI{}
	require.Contains(t, c.colorizeDirection("NoChange"), "NoChange")
	require.Contains(t, c.colorizeDirection("Relaxed"), "Relaxed")
	require.Contains(t, c.colorizeDirection("Constrained"), "Constrained")
	require.Equal(t, "Unknown", c.colorizeDirection("Unknown"))
}
