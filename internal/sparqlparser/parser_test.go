package sparqlparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
)

func TestParseSimpleBgp(t *testing.T) {
	sel, err := NewParser().Parse(`
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT ?sensor WHERE {
			?sensor ont:hasTimeseries ?ts .
			?ts ont:externalId ?eid .
		}
	`)
	require.NoError(t, err)
	require.Equal(t, []algebra.Variable{"sensor"}, sel.Variables)

	bgp, ok := sel.Pattern.(algebra.Bgp)
	require.True(t, ok, "expected one Bgp of two triples, got %T", sel.Pattern)
	require.Len(t, bgp.Patterns, 2)
	require.Equal(t, algebra.VariableTerm{Var: "sensor"}, bgp.Patterns[0].Subject)
	require.Equal(t, algebra.VariableTerm{Var: "ts"}, bgp.Patterns[1].Subject)
}

func TestParseFilterAndOptional(t *testing.T) {
	sel, err := NewParser().Parse(`
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT ?room WHERE {
			?room ont:hasTimeseries ?ts .
			OPTIONAL { ?ts ont:label ?label . }
			FILTER(BOUND(?ts))
		}
	`)
	require.NoError(t, err)
	filter, ok := sel.Pattern.(algebra.Filter)
	require.True(t, ok, "expected top-level Filter, got %T", sel.Pattern)
	_, ok = filter.Expr.(algebra.BoundExpr)
	require.True(t, ok)
	_, ok = filter.Inner.(algebra.LeftJoin)
	require.True(t, ok, "expected OPTIONAL to translate to LeftJoin, got %T", filter.Inner)
}

func TestParseUnionAndMinus(t *testing.T) {
	sel, err := NewParser().Parse(`
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT ?s WHERE {
			{ ?s ont:hasValue ?v } UNION { ?s ont:hasTimestamp ?v }
			MINUS { ?s ont:excluded true }
		}
	`)
	require.NoError(t, err)
	minus, ok := sel.Pattern.(algebra.Minus)
	require.True(t, ok, "expected top-level Minus, got %T", sel.Pattern)
	_, ok = minus.Left.(algebra.Union)
	require.True(t, ok, "expected Union on the left of Minus, got %T", minus.Left)
}

func TestParsePropertyPathSequenceDesugars(t *testing.T) {
	sel, err := NewParser().Parse(`
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT ?room ?dp WHERE {
			?room ont:hasTimeseries/ont:hasDataPoint ?dp .
		}
	`)
	require.NoError(t, err)
	bgp, ok := sel.Pattern.(algebra.Bgp)
	require.True(t, ok, "expected a two-triple Bgp, got %T", sel.Pattern)
	require.Len(t, bgp.Patterns, 2)
	mid, ok := bgp.Patterns[0].Object.(algebra.BlankNodeTerm)
	require.True(t, ok)
	mid2, ok := bgp.Patterns[1].Subject.(algebra.BlankNodeTerm)
	require.True(t, ok)
	require.Equal(t, algebra.VariableTerm{Var: "room"}, bgp.Patterns[0].Subject)
	require.Equal(t, mid, mid2)
}

func TestParseInverseAndStarPath(t *testing.T) {
	sel, err := NewParser().Parse(`
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT ?a ?b WHERE {
			?a ^ont:parent ?b .
			?b ont:ancestor* ?a .
		}
	`)
	require.NoError(t, err)
	join, ok := sel.Pattern.(algebra.Join)
	require.True(t, ok)
	bgp, ok := join.Left.(algebra.Bgp)
	require.True(t, ok)
	require.Len(t, bgp.Patterns, 1)
	require.Equal(t, algebra.VariableTerm{Var: "b"}, bgp.Patterns[0].Subject)
	require.Equal(t, algebra.VariableTerm{Var: "a"}, bgp.Patterns[0].Object)

	path, ok := join.Right.(algebra.Path)
	require.True(t, ok)
	require.Equal(t, algebra.PathZeroOrMore, path.Element.Multiplicity)
}

func TestParseOrderLimitOffsetDistinct(t *testing.T) {
	sel, err := NewParser().Parse(`
		PREFIX ont: <https://hybridgraph.dev/ont#>
		SELECT DISTINCT ?v WHERE { ?s ont:hasValue ?v . }
		ORDER BY DESC(?v) LIMIT 10 OFFSET 5
	`)
	require.NoError(t, err)
	distinct, ok := sel.Pattern.(algebra.Distinct)
	require.True(t, ok, "expected top-level Distinct, got %T", sel.Pattern)
	slice, ok := distinct.Inner.(algebra.Slice)
	require.True(t, ok, "expected Slice under Distinct, got %T", distinct.Inner)
	require.Equal(t, int64(5), slice.Start)
	require.NotNil(t, slice.Length)
	require.Equal(t, int64(10), *slice.Length)
	order, ok := slice.Inner.(algebra.OrderBy)
	require.True(t, ok)
	require.Len(t, order.Expression, 1)
	require.True(t, order.Expression[0].Descending)
}

func TestParseRejectsNonSelect(t *testing.T) {
	_, err := NewParser().Parse(`ASK { ?s ?p ?o }`)
	require.Error(t, err)
}

func TestParseValuesClause(t *testing.T) {
	sel, err := NewParser().Parse(`
		SELECT ?s WHERE {
			VALUES ?s { <https://hybridgraph.dev/r1> <https://hybridgraph.dev/r2> }
			?s ?p ?o .
		}
	`)
	require.NoError(t, err)
	join, ok := sel.Pattern.(algebra.Join)
	require.True(t, ok)
	values, ok := join.Left.(algebra.Values)
	require.True(t, ok)
	require.Len(t, values.Bindings, 2)
}
