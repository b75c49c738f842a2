// Package errors provides explicit, human-readable error types for hybridgraph.
// Every error carries a Reason and a Suggestion for actionable feedback.
package errors

import (
	stderrors "errors"
	"fmt"
)

// HybridError is the base error type for all hybridgraph errors.
type HybridError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error from spec §7.
type ErrorCode int

const (
	// CodeParse covers malformed SPARQL, malformed DSL, OnlySelectSupported.
	CodeParse ErrorCode = 1
	// CodeConfiguration covers missing backend, missing DSL config, duplicate backend.
	CodeConfiguration ErrorCode = 2
	// CodePlan covers a rewrite that cannot be safely split (HybridQueryUnsound).
	CodePlan ErrorCode = 3
	// CodeExecution covers SPARQL/time-series transport errors and datatype mismatches.
	CodeExecution ErrorCode = 4
	// CodeInternal covers assertion failures on impossible algebra states.
	CodeInternal ErrorCode = 5
)

func (e *HybridError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *HybridError) Unwrap() error {
	return e.Cause
}

// AsHybridError reports whether err (or something in its chain) carries a
// *HybridError, e.g. for an HTTP handler to map spec §7's error codes onto
// status codes.
func AsHybridError(err error) (*HybridError, bool) {
	var coder interface{ hybridError() *HybridError }
	if stderrors.As(err, &coder) {
		return coder.hybridError(), true
	}
	return nil, false
}

func (e *HybridError) hybridError() *HybridError { return e }

// ErrOnlySelectSupported is returned when the preprocessor is given anything
// but a Select query.
type ErrOnlySelectSupported struct {
	HybridError
	Kind string
}

// NewOnlySelectSupported creates an ErrOnlySelectSupported.
func NewOnlySelectSupported(kind string) *ErrOnlySelectSupported {
	return &ErrOnlySelectSupported{
		HybridError: HybridError{
			Code:       CodeParse,
			Message:    fmt.Sprintf("unsupported query form: %s", kind),
			Reason:     "the preprocessor only accepts SELECT queries",
			Suggestion: "rewrite the query as a SELECT",
		},
		Kind: kind,
	}
}

// ErrMalformedSPARQL is returned when a query string fails to parse.
type ErrMalformedSPARQL struct {
	HybridError
	Query string
}

// NewMalformedSPARQL creates an ErrMalformedSPARQL.
func NewMalformedSPARQL(query string, cause error) *ErrMalformedSPARQL {
	reason := "syntax error"
	if cause != nil {
		reason = cause.Error()
	}
	return &ErrMalformedSPARQL{
		HybridError: HybridError{
			Code:       CodeParse,
			Message:    "failed to parse SPARQL query",
			Reason:     reason,
			Suggestion: "check the query against SPARQL 1.1 grammar",
			Cause:      cause,
		},
		Query: query,
	}
}

// ErrMalformedDSL is returned when a DSL query string fails to parse.
type ErrMalformedDSL struct {
	HybridError
	DSL string
}

// NewMalformedDSL creates an ErrMalformedDSL.
func NewMalformedDSL(dsl string, cause error) *ErrMalformedDSL {
	reason := "syntax error"
	if cause != nil {
		reason = cause.Error()
	}
	return &ErrMalformedDSL{
		HybridError: HybridError{
			Code:       CodeParse,
			Message:    "failed to parse DSL query",
			Reason:     reason,
			Suggestion: "check the DSL query against the path-expression grammar",
			Cause:      cause,
		},
		DSL: dsl,
	}
}

// ErrTimeSeriesBackendMissing is returned when a hybrid query is executed
// before a time-series backend has been configured.
type ErrTimeSeriesBackendMissing struct {
	HybridError
}

// NewTimeSeriesBackendMissing creates an ErrTimeSeriesBackendMissing.
func NewTimeSeriesBackendMissing() *ErrTimeSeriesBackendMissing {
	return &ErrTimeSeriesBackendMissing{
		HybridError: HybridError{
			Code:       CodeConfiguration,
			Message:    "no time-series backend configured",
			Reason:     "execute_hybrid_query requires a backend set via SetTimeSeriesBackend",
			Suggestion: "call engine.SetTimeSeriesBackend before executing a hybrid query",
		},
	}
}

// ErrTimeSeriesBackendAlreadyDefined is returned when a second backend is
// registered on an engine. Per spec §6, exactly one backend is permitted.
type ErrTimeSeriesBackendAlreadyDefined struct {
	HybridError
	Existing string
}

// NewTimeSeriesBackendAlreadyDefined creates an ErrTimeSeriesBackendAlreadyDefined.
func NewTimeSeriesBackendAlreadyDefined(existing string) *ErrTimeSeriesBackendAlreadyDefined {
	return &ErrTimeSeriesBackendAlreadyDefined{
		HybridError: HybridError{
			Code:       CodeConfiguration,
			Message:    "time-series backend already defined",
			Reason:     fmt.Sprintf("engine is already bound to backend %q", existing),
			Suggestion: "construct a new Engine to bind a different backend",
		},
		Existing: existing,
	}
}

// ErrDSLConfigurationMissing is returned when execute_dsl_query is called
// before the name_predicate and connective_mapping configuration is set.
type ErrDSLConfigurationMissing struct {
	HybridError
	Field string
}

// NewDSLConfigurationMissing creates an ErrDSLConfigurationMissing.
func NewDSLConfigurationMissing(field string) *ErrDSLConfigurationMissing {
	return &ErrDSLConfigurationMissing{
		HybridError: HybridError{
			Code:       CodeConfiguration,
			Message:    "DSL translator not configured",
			Reason:     fmt.Sprintf("missing required configuration: %s", field),
			Suggestion: "set name_predicate and connective_mapping before calling execute_dsl_query",
		},
		Field: field,
	}
}

// ErrHybridQueryUnsound is returned when the static rewriter cannot produce
// a safe split at the root (the rewrite's change direction is Constrained).
type ErrHybridQueryUnsound struct {
	HybridError
}

// NewHybridQueryUnsound creates an ErrHybridQueryUnsound.
func NewHybridQueryUnsound(reason string) *ErrHybridQueryUnsound {
	return &ErrHybridQueryUnsound{
		HybridError: HybridError{
			Code:       CodePlan,
			Message:    "query cannot be safely split across the static and time-series backends",
			Reason:     reason,
			Suggestion: "simplify filters/joins that mix static and dynamic variables, or restructure the query",
		},
	}
}

// ErrSPARQLTransport is returned when the SPARQL HTTP client fails.
type ErrSPARQLTransport struct {
	HybridError
	Endpoint string
}

// NewSPARQLTransportError creates an ErrSPARQLTransport.
func NewSPARQLTransportError(endpoint string, cause error) *ErrSPARQLTransport {
	reason := "transport failure"
	if cause != nil {
		reason = cause.Error()
	}
	return &ErrSPARQLTransport{
		HybridError: HybridError{
			Code:       CodeExecution,
			Message:    "SPARQL endpoint request failed",
			Reason:     reason,
			Suggestion: fmt.Sprintf("check connectivity to %s", endpoint),
			Cause:      cause,
		},
		Endpoint: endpoint,
	}
}

// ErrTimeSeriesTransport is returned when a time-series backend call fails.
type ErrTimeSeriesTransport struct {
	HybridError
	QueryID string
}

// NewTimeSeriesTransportError creates an ErrTimeSeriesTransport.
func NewTimeSeriesTransportError(queryID string, cause error) *ErrTimeSeriesTransport {
	reason := "transport failure"
	if cause != nil {
		reason = cause.Error()
	}
	return &ErrTimeSeriesTransport{
		HybridError: HybridError{
			Code:       CodeExecution,
			Message:    "time-series backend request failed",
			Reason:     reason,
			Suggestion: "check the time-series backend is reachable and healthy",
			Cause:      cause,
		},
		QueryID: queryID,
	}
}

// ErrDatatypeMismatch is returned when a time-series column's runtime type
// does not match the expected xsd datatype.
type ErrDatatypeMismatch struct {
	HybridError
	Column   string
	Expected string
	Got      string
}

// NewDatatypeMismatch creates an ErrDatatypeMismatch.
func NewDatatypeMismatch(column, expected, got string) *ErrDatatypeMismatch {
	return &ErrDatatypeMismatch{
		HybridError: HybridError{
			Code:       CodeExecution,
			Message:    fmt.Sprintf("datatype mismatch on column %q", column),
			Reason:     fmt.Sprintf("expected %s, got %s", expected, got),
			Suggestion: "check the time-series backend's column typing against the query's xsd datatype",
		},
		Column:   column,
		Expected: expected,
		Got:      got,
	}
}

// ErrInternalInvariantViolation is returned when an impossible algebra state
// is reached. These are treated as fatal bugs, never recovered from.
type ErrInternalInvariantViolation struct {
	HybridError
	Invariant string
}

// NewInternalInvariantViolation creates an ErrInternalInvariantViolation.
func NewInternalInvariantViolation(invariant, detail string) *ErrInternalInvariantViolation {
	return &ErrInternalInvariantViolation{
		HybridError: HybridError{
			Code:       CodeInternal,
			Message:    "internal invariant violated",
			Reason:     fmt.Sprintf("%s: %s", invariant, detail),
			Suggestion: "this is a bug in hybridgraph; please report it with the query that triggered it",
		},
		Invariant: invariant,
	}
}
