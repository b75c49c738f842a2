// Package api defines the public API version, endpoint paths, header names
// and content types of the hybridgraph gateway.
package api

// Version is the API version.
const Version = "0.1.0"

// API endpoints.
const (
	EndpointQuery        = "/api/v1/query"
	EndpointDSLQuery     = "/api/v1/query/dsl"
	EndpointQueryExplain = "/api/v1/query/explain"
	EndpointHealth       = "/healthz"
	EndpointReady        = "/readyz"
)

// HTTP headers.
const (
	HeaderContentType     = "Content-Type"
	HeaderContentEncoding = "Content-Encoding"
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderAccept          = "Accept"
	HeaderQueryID         = "X-Query-ID"
)

// Content types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeIon  = "application/ion"
)
