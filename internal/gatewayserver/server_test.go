package gatewayserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/engine"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend/memframe"
	"github.com/hybridgraph/hybridgraph/pkg/api"
	"github.com/hybridgraph/hybridgraph/pkg/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.New("http://sparql.invalid/query")
	backend, err := memframe.Open(memframe.Options{})
	require.NoError(t, err)
	require.NoError(t, eng.SetTimeSeriesBackend(backend))
	return New(eng)
}

func TestHandleQueryRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, api.EndpointQuery, bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryRejectsMalformedSPARQL(t *testing.T) {
	s := newTestServer(t)
	body, err := json.Marshal(models.QueryRequest{SPARQL: "not sparql at all"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, api.EndpointQuery, bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.NotEmpty(t, errResp.Reason)
}

func TestHandleExplainStaticQuery(t *testing.T) {
	s := newTestServer(t)
	body, err := json.Marshal(models.ExplainRequest{
		Query: `SELECT ?room WHERE { ?room <https://hybridgraph.dev/ont#hasTimeseries> ?ts . }`,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, api.EndpointQueryExplain, bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ExplainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.StaticQuery)
}

func TestHandleHealthAlwaysOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, api.EndpointHealth, nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadyFailsWithoutReachableSPARQLEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, api.EndpointReady, nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDefaultConfigHasTimeseriesPredicate(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Equal(t, "https://hybridgraph.dev/ont#hasTimeseries", cfg.Predicates.HasTimeseries)
}
