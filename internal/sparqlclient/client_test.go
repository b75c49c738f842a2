package sparqlclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExecuteParsesSPARQLJSONResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/sparql-results+json" {
			t.Errorf("unexpected Accept header: %s", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{
			"head": {"vars": ["s", "v"]},
			"results": {"bindings": [
				{"s": {"type": "uri", "value": "http://example.org/1"}, "v": {"type": "literal", "value": "42.5", "datatype": "http://www.w3.org/2001/XMLSchema#double"}}
			]}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	results, err := c.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?v }")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results.Variables) != 2 {
		t.Fatalf("expected 2 head vars, got %d", len(results.Variables))
	}
	if len(results.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results.Rows))
	}
	f, err := results.Rows[0]["v"].AsFloat64()
	if err != nil {
		t.Fatalf("AsFloat64: %v", err)
	}
	if f != 42.5 {
		t.Fatalf("expected 42.5, got %v", f)
	}
}

func TestExecuteNonOKStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }"); err == nil {
		t.Fatal("expected a transport error on a non-200 response")
	}
}

func TestPingSucceedsAgainstWorkingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"head":{"vars":[]},"results":{"bindings":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestAsTimeRejectsMalformedDatetime(t *testing.T) {
	b := Binding{Type: "literal", Value: "not-a-date"}
	if _, err := b.AsTime(); err == nil {
		t.Fatal("expected an error for a malformed datetime")
	}
}
