// Package models provides shared data models for the hybridgraph public API.
package models

// QueryRequest is the API request for executing a hybrid SPARQL query.
type QueryRequest struct {
	SPARQL string `json:"sparql"`
}

// DSLQueryRequest is the API request for executing a DSL query (spec §4.5;
// the DSL arrives as a YAML document, see internal/engine's
// ExecuteDSLQuery for why).
type DSLQueryRequest struct {
	DSL string `json:"dsl"`
}

// QueryResponse is the API response for a query execution.
type QueryResponse struct {
	QueryID  string                   `json:"query_id"`
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"row_count"`
	Engine   string                   `json:"engine"`
	Duration string                   `json:"duration"`
	Metadata map[string]string        `json:"metadata,omitempty"`
}

// ExplainRequest is the API request for explaining a query without
// executing it. Query is SPARQL by default; set DSL to treat it as a YAML
// DSL document instead, mirroring the CLI's explain --dsl flag.
type ExplainRequest struct {
	Query string `json:"query"`
	DSL   bool   `json:"dsl,omitempty"`
}

// ExplainResponse is the API response for query explanation: the result of
// preprocessing and statically rewriting a query without executing it.
type ExplainResponse struct {
	SPARQL                string `json:"sparql"`
	ChangeDirection       string `json:"change_direction"`
	StaticQuery           string `json:"static_query"`
	TimeSeriesQueryCount  int    `json:"timeseries_query_count"`
	PushdownsAdmitted     int    `json:"pushdowns_admitted"`
	PushdownsRefused      int    `json:"pushdowns_refused"`
	Explanation           string `json:"explanation"`
}

// BackendInfo is the API response describing the engine's configured
// time-series backend, used by the doctor/status surfaces.
type BackendInfo struct {
	Name                           string `json:"name"`
	Available                      bool   `json:"available"`
	AllowCompoundTimeseriesQueries bool   `json:"allow_compound_timeseries_queries"`
	SupportsGroupByPushdown        bool   `json:"supports_group_by_pushdown"`
	SupportsValueConditionPushdown bool   `json:"supports_value_condition_pushdown"`
}

// ErrorResponse is the API response for errors, mirroring
// internal/errors.HybridError's fields so a client can render the same
// actionable detail the CLI does.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}
