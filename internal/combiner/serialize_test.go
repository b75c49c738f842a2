package combiner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
)

func TestRenderSelectBgpAndFilter(t *testing.T) {
	pattern := algebra.Filter{
		Expr: algebra.ComparisonExpr{
			Op:    algebra.OpGreater,
			Left:  algebra.VariableExpr{Var: "value"},
			Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: "10", Datatype: xsdIntegerForTest}},
		},
		Inner: algebra.Bgp{Patterns: []algebra.TriplePattern{{
			Subject:   algebra.VariableTerm{Var: "dp"},
			Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasValue"},
			Object:    algebra.VariableTerm{Var: "value"},
		}}},
	}
	sel := &algebra.Select{Pattern: pattern, Variables: []algebra.Variable{"dp", "value"}}

	out := RenderSelect(sel)
	require.Contains(t, out, "SELECT ?dp ?value WHERE {")
	require.Contains(t, out, "<https://hybridgraph.dev/ont#hasValue>")
	require.Contains(t, out, "FILTER((?value > \"10\"")
}

func TestRenderSelectOptionalUnionMinus(t *testing.T) {
	pattern := algebra.Minus{
		Left: algebra.LeftJoin{
			Left: algebra.Union{
				Left:  algebra.Bgp{Patterns: []algebra.TriplePattern{{Subject: algebra.VariableTerm{Var: "s"}, Predicate: algebra.VariablePredicate{Var: "p"}, Object: algebra.VariableTerm{Var: "o"}}}},
				Right: algebra.Bgp{Patterns: []algebra.TriplePattern{{Subject: algebra.VariableTerm{Var: "s"}, Predicate: algebra.VariablePredicate{Var: "p2"}, Object: algebra.VariableTerm{Var: "o"}}}},
			},
			Right: algebra.Bgp{Patterns: []algebra.TriplePattern{{Subject: algebra.VariableTerm{Var: "s"}, Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#label"}, Object: algebra.VariableTerm{Var: "label"}}}},
		},
		Right: algebra.Bgp{Patterns: []algebra.TriplePattern{{Subject: algebra.VariableTerm{Var: "s"}, Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#excluded"}, Object: algebra.LiteralTerm{Literal: algebra.Literal{Value: "true"}}}}},
	}
	sel := &algebra.Select{Pattern: pattern, Variables: []algebra.Variable{"s"}}

	out := RenderSelect(sel)
	require.Contains(t, out, "OPTIONAL")
	require.Contains(t, out, "UNION")
	require.Contains(t, out, "MINUS")
}

func TestRenderSelectOrderLimitOffset(t *testing.T) {
	inner := algebra.Bgp{Patterns: []algebra.TriplePattern{{
		Subject:   algebra.VariableTerm{Var: "s"},
		Predicate: algebra.VariablePredicate{Var: "p"},
		Object:    algebra.VariableTerm{Var: "o"},
	}}}
	pattern := algebra.Slice{
		Inner: algebra.OrderBy{
			Inner:      inner,
			Expression: []algebra.OrderExpression{{Expr: algebra.VariableExpr{Var: "o"}, Descending: true}},
		},
		Start:  5,
		Length: int64Ptr(10),
	}
	sel := &algebra.Select{Pattern: pattern, Variables: []algebra.Variable{"s", "o"}}

	out := RenderSelect(sel)
	require.Contains(t, out, "ORDER BY DESC(?o)")
	require.Contains(t, out, "OFFSET 5")
	require.Contains(t, out, "LIMIT 10")
}

func int64Ptr(v int64) *int64 { return &v }

const xsdIntegerForTest = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#integer")
