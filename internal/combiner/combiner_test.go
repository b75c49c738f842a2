package combiner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/observability"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/rewriter"
	"github.com/hybridgraph/hybridgraph/internal/sparqlclient"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

type fakeSPARQL struct {
	results *sparqlclient.Results
}

func (f *fakeSPARQL) Execute(ctx context.Context, sparql string) (*sparqlclient.Results, error) {
	return f.results, nil
}

type fakeBackend struct {
	schema *resultstream.ResultSchema
	rows   []resultstream.Row
}

func (f *fakeBackend) Execute(ctx context.Context, q *tsbackend.TimeSeriesQuery) (resultstream.ResultStream, error) {
	return resultstream.NewSliceStream(f.schema, f.rows), nil
}

func (f *fakeBackend) Capabilities() tsbackend.BackendCapabilities {
	return tsbackend.BackendCapabilities{SupportsValueConditionPushdown: true}
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

func roomTriple() algebra.GraphPattern {
	return algebra.Bgp{Patterns: []algebra.TriplePattern{{
		Subject:   algebra.VariableTerm{Var: "room"},
		Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasTimeseries"},
		Object:    algebra.VariableTerm{Var: "ts"},
	}}}
}

func TestCombinerExecuteStaticOnly(t *testing.T) {
	sparql := &fakeSPARQL{results: &sparqlclient.Results{
		Variables: []string{"room"},
		Rows: []sparqlclient.Row{
			{"room": sparqlclient.Binding{Type: "uri", Value: "https://hybridgraph.dev/room1"}},
		},
	}}
	comb := &Combiner{SPARQL: sparql, Logger: observability.NewNoopLogger()}

	result := &rewriter.Result{
		Query: &algebra.Select{Pattern: roomTriple(), Variables: []algebra.Variable{"room"}},
	}

	stream, err := comb.Execute(context.Background(), roomTriple(), []algebra.Variable{"room"}, result)
	require.NoError(t, err)

	rows, err := resultstream.CollectStream(context.Background(), stream)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "https://hybridgraph.dev/room1", rows[0]["room"])
}

func TestCombinerExecuteJoinsTimeSeriesLeaf(t *testing.T) {
	sparql := &fakeSPARQL{results: &sparqlclient.Results{
		Variables: []string{"room", "ts"},
		Rows: []sparqlclient.Row{
			{
				"room": sparqlclient.Binding{Type: "uri", Value: "https://hybridgraph.dev/room1"},
				"ts":   sparqlclient.Binding{Type: "literal", Value: "sensor-1"},
			},
		},
	}}

	backend := &fakeBackend{
		schema: &resultstream.ResultSchema{Columns: []resultstream.ColumnDef{
			{Name: "identifier", Kind: resultstream.ColumnLiteral},
			{Name: "value", Kind: resultstream.ColumnLiteral},
		}},
		rows: []resultstream.Row{
			{"identifier": "sensor-1", "value": 42.5},
		},
	}

	comb := &Combiner{SPARQL: sparql, TimeSeries: backend, Logger: observability.NewNoopLogger()}

	value := algebra.Variable("value")
	basic := tsquery.Basic{IdentifierVariable: "ts", TimeseriesVariable: "ts", ValueVariable: &value}

	result := &rewriter.Result{
		Query:             &algebra.Select{Pattern: roomTriple(), Variables: []algebra.Variable{"room", "ts"}},
		TimeSeriesQueries: []tsquery.Query{basic},
	}

	stream, err := comb.Execute(context.Background(), roomTriple(), []algebra.Variable{"room", "value"}, result)
	require.NoError(t, err)

	rows, err := resultstream.CollectStream(context.Background(), stream)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "https://hybridgraph.dev/room1", rows[0]["room"])
	require.Equal(t, 42.5, rows[0]["value"])
}

func TestCombinerExecutePropagatesSPARQLTransportError(t *testing.T) {
	comb := &Combiner{SPARQL: &erroringSPARQL{}, Logger: observability.NewNoopLogger()}
	result := &rewriter.Result{Query: &algebra.Select{Pattern: algebra.Bgp{}, Variables: nil}}
	_, err := comb.Execute(context.Background(), algebra.Bgp{}, nil, result)
	require.Error(t, err)
}

type erroringSPARQL struct{}

func (e *erroringSPARQL) Execute(ctx context.Context, sparql string) (*sparqlclient.Results, error) {
	return nil, context.DeadlineExceeded
}
