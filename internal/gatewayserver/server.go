// Package gatewayserver exposes an *engine.Engine over HTTP. Routing is
// grounded on elasticproxy/cmd/proxy/main.go's gorilla/mux wiring
// (mux.NewRouter, per-route .Methods(...)); response negotiation (gzip,
// optional Ion) is this package's own addition, since neither the teacher
// nor elasticproxy negotiate a binary wire format on Accept.
package gatewayserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"

	"github.com/hybridgraph/hybridgraph/internal/engine"
	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
	"github.com/hybridgraph/hybridgraph/pkg/api"
	"github.com/hybridgraph/hybridgraph/pkg/models"
)

// Server wraps an engine.Engine with the HTTP surface spec §6 calls the
// gateway: query, DSL query, explain, and health/readiness.
type Server struct {
	engine *engine.Engine
	router *mux.Router
}

// New builds a Server routing onto eng.
func New(eng *engine.Engine) *Server {
	s := &Server{engine: eng, router: mux.NewRouter()}
	s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc(api.EndpointQuery, s.handleQuery).Methods(http.MethodPost)
	s.router.HandleFunc(api.EndpointDSLQuery, s.handleDSLQuery).Methods(http.MethodPost)
	s.router.HandleFunc(api.EndpointQueryExplain, s.handleExplain).Methods(http.MethodPost)
	s.router.HandleFunc(api.EndpointHealth, s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc(api.EndpointReady, s.handleReady).Methods(http.MethodGet)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	table, err := s.engine.ExecuteHybridQuery(r.Context(), req.SPARQL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTable(w, r, "hybrid", table)
}

func (s *Server) handleDSLQuery(w http.ResponseWriter, r *http.Request) {
	var req models.DSLQueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	table, err := s.engine.ExecuteDSLQuery(r.Context(), req.DSL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTable(w, r, "dsl", table)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req models.ExplainRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var explanation *engine.Explanation
	var err error
	if req.DSL {
		explanation, err = s.engine.ExplainDSLQuery(r.Context(), req.Query)
	} else {
		explanation, err = s.engine.ExplainHybridQuery(r.Context(), req.Query)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.ExplainResponse{
		SPARQL:               req.Query,
		ChangeDirection:      explanation.Direction,
		StaticQuery:          explanation.StaticQuery,
		TimeSeriesQueryCount: explanation.TimeSeriesQueryCount,
		PushdownsAdmitted:    explanation.PushdownsAdmitted,
		PushdownsRefused:     explanation.PushdownsRefused,
	}
	writeBody(w, r, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	report := s.engine.Doctor(r.Context())
	if report.SPARQLError != nil {
		http.Error(w, "sparql endpoint unreachable: "+report.SPARQLError.Error(), http.StatusServiceUnavailable)
		return
	}
	if report.TimeSeriesBackend != "" && report.TimeSeriesError != nil {
		http.Error(w, "time-series backend unreachable: "+report.TimeSeriesError.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBody(w, r, http.StatusBadRequest, models.ErrorResponse{
			Error: "malformed request body",
			Code:  http.StatusBadRequest,
		})
		return false
	}
	return true
}

func writeTable(w http.ResponseWriter, r *http.Request, engineName string, table *engine.Table) {
	columns := make([]string, len(table.Schema.Columns))
	for i, col := range table.Schema.Columns {
		columns[i] = col.Name
	}
	rows := make([]map[string]interface{}, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = row
	}
	resp := models.QueryResponse{
		Columns:  columns,
		Rows:     rows,
		RowCount: len(rows),
		Engine:   engineName,
	}
	writeBody(w, r, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := models.ErrorResponse{Error: err.Error(), Code: status}

	if he, ok := internalerrors.AsHybridError(err); ok {
		status = statusForCode(he.Code)
		body = models.ErrorResponse{
			Error:      he.Message,
			Reason:     he.Reason,
			Suggestion: he.Suggestion,
			Code:       status,
		}
	}

	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusForCode(code internalerrors.ErrorCode) int {
	switch code {
	case internalerrors.CodeParse, internalerrors.CodeConfiguration:
		return http.StatusBadRequest
	case internalerrors.CodePlan:
		return http.StatusUnprocessableEntity
	case internalerrors.CodeExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeBody writes v as the response body, negotiating Ion encoding when
// the client sends Accept: application/ion (parse_ion.go's Decoder is the
// teacher-side half of this; there is no comparable teacher encoder, so
// ion.NewEncoder is this package's own addition) and gzip compression
// when Accept-Encoding allows it.
func writeBody(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	var out io.Writer = w
	if acceptsGzip(r) {
		w.Header().Set(api.HeaderContentEncoding, "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		out = gz
	}

	if r.Header.Get(api.HeaderAccept) == api.ContentTypeIon {
		w.Header().Set(api.HeaderContentType, api.ContentTypeIon)
		w.WriteHeader(status)
		_ = ion.NewEncoder(out).Encode(v)
		return
	}

	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(out).Encode(v)
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range r.Header.Values(api.HeaderAcceptEncoding) {
		if enc == "gzip" {
			return true
		}
	}
	return false
}
