package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridgraph/hybridgraph/internal/config"
	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
)

func fakeSPARQLEndpoint(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(body))
	}))
}

func TestExecuteHybridQueryStaticOnly(t *testing.T) {
	srv := fakeSPARQLEndpoint(t, `{
		"head": {"vars": ["s", "o"]},
		"results": {"bindings": [
			{"s": {"type": "uri", "value": "https://example.org/alice"}, "o": {"type": "uri", "value": "https://example.org/bob"}}
		]}
	}`)
	defer srv.Close()

	e := New(srv.URL)
	table, err := e.ExecuteHybridQuery(context.Background(), `
		SELECT ?s ?o WHERE { ?s <https://example.org/friend> ?o }
	`)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	require.Equal(t, "https://example.org/alice", table.Rows[0]["s"])
}

func TestExecuteHybridQueryRejectsMalformedSPARQL(t *testing.T) {
	e := New("http://unused.invalid")
	_, err := e.ExecuteHybridQuery(context.Background(), "not a sparql query")
	require.Error(t, err)
	var malformed *internalerrors.ErrMalformedSPARQL
	require.ErrorAs(t, err, &malformed)
}

func TestExecuteHybridQueryRequiresBackendWhenTimeSeriesInvolved(t *testing.T) {
	srv := fakeSPARQLEndpoint(t, `{"head": {"vars": []}, "results": {"bindings": []}}`)
	defer srv.Close()

	cfg := config.DefaultConfig()
	e := NewWithConfig(cfg, srv.URL)
	require.Equal(t, "https://hybridgraph.dev/ont#hasTimeseries", cfg.Predicates.HasTimeseries)
	query := `
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT ?room ?value WHERE {
			?room ont:hasTimeseries ?ts .
			?ts ont:hasDataPoint ?dp .
			?dp ont:hasValue ?value .
		}
	`
	_, err := e.ExecuteHybridQuery(context.Background(), query)
	require.Error(t, err)
	var missing *internalerrors.ErrTimeSeriesBackendMissing
	require.ErrorAs(t, err, &missing)
}

func TestExecuteDSLQueryRequiresConfiguration(t *testing.T) {
	e := New("http://unused.invalid")
	_, err := e.ExecuteDSLQuery(context.Background(), "graphpattern: {}")
	require.Error(t, err)
	var missing *internalerrors.ErrDSLConfigurationMissing
	require.ErrorAs(t, err, &missing)
}

func TestSetTimeSeriesBackendRejectsSecondCall(t *testing.T) {
	e := New("http://unused.invalid")
	require.NoError(t, e.SetTimeSeriesBackend(nil))
	err := e.SetTimeSeriesBackend(nil)
	require.Error(t, err)
	var already *internalerrors.ErrTimeSeriesBackendAlreadyDefined
	require.ErrorAs(t, err, &already)
}
