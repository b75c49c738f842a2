package preprocessor

import (
	"testing"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/constraints"
)

func testPredicates() config.PredicateConfig {
	return config.PredicateConfig{
		HasTimeseries: "https://hybridgraph.dev/ont#hasTimeseries",
		HasDataPoint:  "https://hybridgraph.dev/ont#hasDataPoint",
		HasValue:      "https://hybridgraph.dev/ont#hasValue",
		HasTimestamp:  "https://hybridgraph.dev/ont#hasTimestamp",
	}
}

func TestBlankNodeEliminationIsStable(t *testing.T) {
	bn := algebra.BlankNode("b0")
	s := algebra.MustVariable("s")
	tp1 := algebra.TriplePattern{
		Subject:   algebra.VariableTerm{Var: s},
		Predicate: algebra.FixedPredicate{IRI: "https://example.org#p"},
		Object:    algebra.BlankNodeTerm{Node: bn},
	}
	tp2 := algebra.TriplePattern{
		Subject:   algebra.BlankNodeTerm{Node: bn},
		Predicate: algebra.FixedPredicate{IRI: "https://example.org#q"},
		Object:    algebra.VariableTerm{Var: algebra.MustVariable("o")},
	}
	query := &algebra.Select{
		Pattern: algebra.Bgp{Patterns: []algebra.TriplePattern{tp1, tp2}},
	}

	p := New(testPredicates())
	out, _, err := p.Preprocess(query)
	if err != nil {
		t.Fatalf("Preprocess returned error: %v", err)
	}
	bgp, ok := out.Pattern.(algebra.Bgp)
	if !ok {
		t.Fatalf("expected Bgp, got %T", out.Pattern)
	}
	first, ok := algebra.VariableOf(bgp.Patterns[0].Object)
	if !ok {
		t.Fatalf("expected object of first triple to be a variable after blank node replacement")
	}
	second, ok := algebra.VariableOf(bgp.Patterns[1].Subject)
	if !ok {
		t.Fatalf("expected subject of second triple to be a variable after blank node replacement")
	}
	if first != second {
		t.Errorf("blank node replacement not stable across occurrences: %v != %v", first, second)
	}
}

func TestConstraintTaggingFromPredicates(t *testing.T) {
	series := algebra.MustVariable("series")
	point := algebra.MustVariable("point")
	value := algebra.MustVariable("value")
	ts := algebra.MustVariable("ts")

	patterns := []algebra.TriplePattern{
		{
			Subject:   algebra.VariableTerm{Var: algebra.MustVariable("sensor")},
			Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasTimeseries"},
			Object:    algebra.VariableTerm{Var: series},
		},
		{
			Subject:   algebra.VariableTerm{Var: series},
			Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasDataPoint"},
			Object:    algebra.VariableTerm{Var: point},
		},
		{
			Subject:   algebra.VariableTerm{Var: point},
			Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasValue"},
			Object:    algebra.VariableTerm{Var: value},
		},
		{
			Subject:   algebra.VariableTerm{Var: point},
			Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasTimestamp"},
			Object:    algebra.VariableTerm{Var: ts},
		},
	}
	query := &algebra.Select{Pattern: algebra.Bgp{Patterns: patterns}}

	p := New(testPredicates())
	_, tags, err := p.Preprocess(query)
	if err != nil {
		t.Fatalf("Preprocess returned error: %v", err)
	}

	want := map[algebra.Variable]constraints.Kind{
		series: constraints.ExternalTimeseries,
		point:  constraints.ExternalDataPoint,
		value:  constraints.ExternalDataValue,
		ts:     constraints.ExternalTimestamp,
	}
	for v, k := range want {
		if got := tags[v]; got != k {
			t.Errorf("tags[%v] = %v, want %v", v, got, k)
		}
	}
}

func TestDerivedTaggingThroughExtend(t *testing.T) {
	value := algebra.MustVariable("value")
	derived := algebra.MustVariable("derived")

	base := algebra.Bgp{Patterns: []algebra.TriplePattern{
		{
			Subject:   algebra.VariableTerm{Var: algebra.MustVariable("point")},
			Predicate: algebra.FixedPredicate{IRI: "https://hybridgraph.dev/ont#hasValue"},
			Object:    algebra.VariableTerm{Var: value},
		},
	}}
	extend := algebra.Extend{
		Inner:      base,
		Variable:   derived,
		Expression: algebra.ArithmeticExpr{Op: algebra.OpMultiply, Left: algebra.VariableExpr{Var: value}, Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: "2"}}},
	}
	query := &algebra.Select{Pattern: extend}

	p := New(testPredicates())
	_, tags, err := p.Preprocess(query)
	if err != nil {
		t.Fatalf("Preprocess returned error: %v", err)
	}
	if got := tags[derived]; got != constraints.ExternallyDerived {
		t.Errorf("tags[derived] = %v, want ExternallyDerived", got)
	}
}

func TestPreprocessRecursesIntoExists(t *testing.T) {
	bn := algebra.BlankNode("b0")
	inner := algebra.Bgp{Patterns: []algebra.TriplePattern{
		{
			Subject:   algebra.BlankNodeTerm{Node: bn},
			Predicate: algebra.FixedPredicate{IRI: "https://example.org#p"},
			Object:    algebra.VariableTerm{Var: algebra.MustVariable("o")},
		},
	}}
	filter := algebra.Filter{
		Inner: algebra.Bgp{},
		Expr:  algebra.ExistsExpr{Pattern: inner},
	}
	query := &algebra.Select{Pattern: filter}

	p := New(testPredicates())
	out, _, err := p.Preprocess(query)
	if err != nil {
		t.Fatalf("Preprocess returned error: %v", err)
	}
	f, ok := out.Pattern.(algebra.Filter)
	if !ok {
		t.Fatalf("expected Filter, got %T", out.Pattern)
	}
	exists, ok := f.Expr.(algebra.ExistsExpr)
	if !ok {
		t.Fatalf("expected ExistsExpr, got %T", f.Expr)
	}
	innerBgp, ok := exists.Pattern.(algebra.Bgp)
	if !ok {
		t.Fatalf("expected Bgp inside Exists, got %T", exists.Pattern)
	}
	if _, ok := algebra.VariableOf(innerBgp.Patterns[0].Subject); !ok {
		t.Errorf("blank node inside Exists was not replaced with a variable")
	}
}
