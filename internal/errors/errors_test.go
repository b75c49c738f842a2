package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsHybridErrorFindsCodeThroughConcreteType(t *testing.T) {
	err := NewMalformedSPARQL("SELECT ?x WHERE", errors.New("unexpected EOF"))

	he, ok := AsHybridError(err)
	require.True(t, ok)
	require.Equal(t, CodeParse, he.Code)
	require.Contains(t, he.Reason, "unexpected EOF")
}

func TestAsHybridErrorFailsForPlainError(t *testing.T) {
	_, ok := AsHybridError(errors.New("boom"))
	require.False(t, ok)
}

func TestHybridErrorMessageIncludesReasonSuggestionAndCause(t *testing.T) {
	err := NewTimeSeriesBackendMissing()
	msg := err.Error()
	require.Contains(t, msg, err.Reason)
	require.Contains(t, msg, err.Suggestion)

	withCause := NewSPARQLTransportError("http://sparql.invalid", errors.New("connection refused"))
	require.Contains(t, withCause.Error(), "Caused by: connection refused")
}
