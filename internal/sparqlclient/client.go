// Package sparqlclient implements the thin HTTP client the combiner uses to
// run the static SPARQL query the rewriter produced against a SPARQL 1.1
// Protocol endpoint, parsing the standard SPARQL 1.1 Query Results JSON
// Format response into rows. Grounded on the teacher's adapter shape
// (internal/adapters/adapter.go's EngineAdapter interface: Name/Execute/
// Ping/Close) and its explicit, no-silent-retry philosophy
// (internal/adapters/retry.go).
package sparqlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
)

// Binding is one variable's value in one SPARQL 1.1 JSON result row.
type Binding struct {
	Type     string `json:"type"` // "uri", "literal", "bnode"
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Row is one solution mapping: variable name to binding. A variable absent
// from a row is unbound in that solution.
type Row map[string]Binding

// Results is a parsed SPARQL 1.1 JSON Query Results document (SELECT form;
// ASK is out of scope per spec §4.1's SELECT-only support).
type Results struct {
	Variables []string `json:"-"`
	Rows      []Row    `json:"-"`
}

type sparqlJSONResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Binding `json:"bindings"`
	} `json:"results"`
}

// Client is a minimal SPARQL 1.1 Protocol client: one configured endpoint,
// executed over POST with `application/sparql-query`, Accept
// `application/sparql-results+json`.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a Client for endpoint with sane defaults (teacher's adapters
// are constructed with an explicit, non-nil http.Client rather than relying
// on http.DefaultClient's shared state).
func New(endpoint string) *Client {
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Timeout:    30 * time.Second,
	}
}

// Execute runs sparql against the endpoint and returns the parsed result
// set. Per the teacher's "no silent retries, no hidden fallbacks" adapter
// philosophy, a failed request is returned as an ErrSPARQLTransport rather
// than retried internally; callers that want retry semantics apply their
// own policy around Execute.
func (c *Client) Execute(ctx context.Context, sparql string) (*Results, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewBufferString(sparql))
	if err != nil {
		return nil, internalerrors.NewSPARQLTransportError(c.Endpoint, err)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, internalerrors.NewSPARQLTransportError(c.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internalerrors.NewSPARQLTransportError(c.Endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, internalerrors.NewSPARQLTransportError(c.Endpoint, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed sparqlJSONResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, internalerrors.NewSPARQLTransportError(c.Endpoint, fmt.Errorf("decoding SPARQL 1.1 JSON results: %w", err))
	}

	rows := make([]Row, len(parsed.Results.Bindings))
	for i, b := range parsed.Results.Bindings {
		rows[i] = Row(b)
	}
	return &Results{Variables: parsed.Head.Vars, Rows: rows}, nil
}

// Ping verifies the endpoint is reachable by issuing a trivial ASK-free
// SELECT (mirrors the teacher's adapter CheckHealth contract).
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, "SELECT * WHERE { ?s ?p ?o } LIMIT 1")
	return err
}

// AsFloat64 parses b's lexical value as a float64, returning
// ErrDatatypeMismatch if b is not a numeric literal.
func (b Binding) AsFloat64() (float64, error) {
	f, err := strconv.ParseFloat(b.Value, 64)
	if err != nil {
		return 0, internalerrors.NewDatatypeMismatch(b.Value, "numeric", b.Datatype)
	}
	return f, nil
}

// AsTime parses b's lexical value as an RFC3339 datetime, returning
// ErrDatatypeMismatch on failure.
func (b Binding) AsTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, b.Value)
	if err != nil {
		return time.Time{}, internalerrors.NewDatatypeMismatch(b.Value, "dateTime", b.Datatype)
	}
	return t, nil
}

// EncodeURIValue percent-encodes v for use in a SPARQL 1.1 Protocol GET
// query string parameter, for callers constructing direct endpoint links;
// nothing in this module calls it.
func EncodeURIValue(v string) string {
	return url.QueryEscape(v)
}
