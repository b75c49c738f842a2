package dsltranslator

import (
	"testing"
	"time"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/config"
)

func testConfig() (config.PredicateConfig, config.DSLConfig) {
	predicates := config.DefaultConfig().Predicates
	dsl := config.DSLConfig{
		NamePredicate:     "https://hybridgraph.dev/ont#hasName",
		ConnectiveMapping: map[string]string{".": "https://hybridgraph.dev/ont#connectedTo"},
		LikeFunctionIRI:   "https://hybridgraph.dev/ont#like",
	}
	return predicates, dsl
}

func simplePath(name string) Path {
	return Path{First: PathElement{Constraint: &ElementConstraint{Name: name}}}
}

func TestTranslateSinglePathNoCondition(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	q := Query{GraphPattern: GraphPathPattern{
		ConditionedPaths: []ConditionedPath{{LHS: simplePath("sensor1")}},
	}}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(sel.Variables) == 0 {
		t.Fatal("expected a non-empty projection")
	}
	proj, ok := sel.Pattern.(algebra.Project)
	if !ok {
		t.Fatalf("expected top-level Project, got %T", sel.Pattern)
	}
	if _, ok := proj.Inner.(algebra.Bgp); !ok {
		t.Fatalf("expected inner Bgp (no Join needed for one path), got %T", proj.Inner)
	}
}

func TestTranslateConditionedPathAgainstLiteral(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	op := OpGT
	lit := 10.0
	q := Query{GraphPattern: GraphPathPattern{
		ConditionedPaths: []ConditionedPath{{
			LHS:      simplePath("sensor1"),
			Operator: &op,
			RHS:      &PathOrLiteral{Literal: &LiteralValue{Real: &lit}},
		}},
	}}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	proj := sel.Pattern.(algebra.Project)
	filter, ok := proj.Inner.(algebra.Filter)
	if !ok {
		t.Fatalf("expected a Filter wrapping the comparison, got %T", proj.Inner)
	}
	cmp, ok := filter.Expr.(algebra.ComparisonExpr)
	if !ok {
		t.Fatalf("expected a ComparisonExpr, got %T", filter.Expr)
	}
	if cmp.Op != algebra.OpGreater {
		t.Fatalf("expected OpGreater, got %v", cmp.Op)
	}
}

func TestTranslateMultiplePathsJoinedByAnd(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	q := Query{GraphPattern: GraphPathPattern{
		ConditionedPaths: []ConditionedPath{
			{LHS: simplePath("sensor1")},
			{LHS: simplePath("sensor2")},
		},
		Joins: []TopLevelConnective{TopLevelAnd},
	}}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	proj := sel.Pattern.(algebra.Project)
	if _, ok := proj.Inner.(algebra.Join); !ok {
		t.Fatalf("expected top-level Join for two and-joined paths, got %T", proj.Inner)
	}
}

func TestTranslateMultiplePathsJoinedByOr(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	q := Query{GraphPattern: GraphPathPattern{
		ConditionedPaths: []ConditionedPath{
			{LHS: simplePath("sensor1")},
			{LHS: simplePath("sensor2")},
		},
		Joins: []TopLevelConnective{TopLevelOr},
	}}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	proj := sel.Pattern.(algebra.Project)
	if _, ok := proj.Inner.(algebra.Union); !ok {
		t.Fatalf("expected top-level Union for two or-joined paths, got %T", proj.Inner)
	}
}

func TestTranslateOptionalPath(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	p := simplePath("sensor1")
	p.Optional = true
	q := Query{GraphPattern: GraphPathPattern{
		ConditionedPaths: []ConditionedPath{{LHS: p}},
	}}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	proj := sel.Pattern.(algebra.Project)
	if _, ok := proj.Inner.(algebra.LeftJoin); !ok {
		t.Fatalf("expected LeftJoin for an optional path, got %T", proj.Inner)
	}
}

func TestTranslateTimeBoundsProduceFilter(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	q := Query{
		GraphPattern: GraphPathPattern{ConditionedPaths: []ConditionedPath{{LHS: simplePath("sensor1")}}},
		FromDatetime: &from,
		ToDatetime:   &to,
	}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	proj := sel.Pattern.(algebra.Project)
	if _, ok := proj.Inner.(algebra.Filter); !ok {
		t.Fatalf("expected a Filter for the time bound, got %T", proj.Inner)
	}
}

func TestTranslateAggregationProducesGroup(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	q := Query{
		GraphPattern: GraphPathPattern{ConditionedPaths: []ConditionedPath{{LHS: simplePath("sensor1")}}},
		Aggregation:  &Aggregation{FunctionName: "mean", Duration: time.Hour},
	}

	sel, err := tr.Translate(q)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(sel.Variables) != 2 {
		t.Fatalf("expected [bucket_datetime, result] projection, got %v", sel.Variables)
	}
	proj := sel.Pattern.(algebra.Project)
	extend, ok := proj.Inner.(algebra.Extend)
	if !ok {
		t.Fatalf("expected an Extend wrapping the bucket-to-datetime conversion, got %T", proj.Inner)
	}
	if _, ok := extend.Inner.(algebra.Group); !ok {
		t.Fatalf("expected a Group inside the bucket Extend, got %T", extend.Inner)
	}
}

func TestTranslateUnmappedConnectiveFails(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	p := Path{
		First: PathElement{Constraint: &ElementConstraint{Name: "a"}},
		Steps: []PathStep{{Connective: "???", Element: PathElement{Constraint: &ElementConstraint{Name: "b"}}}},
	}
	q := Query{GraphPattern: GraphPathPattern{ConditionedPaths: []ConditionedPath{{LHS: p}}}}

	if _, err := tr.Translate(q); err == nil {
		t.Fatal("expected an error for an unmapped connective")
	}
}

func TestTranslateGluedVariableReused(t *testing.T) {
	predicates, dsl := testConfig()
	tr := New(predicates, dsl)

	glue := &Glue{ID: "shared"}
	left := Path{First: PathElement{Glue: glue, Constraint: &ElementConstraint{Name: "a"}}}
	right := Path{First: PathElement{Glue: glue, Constraint: &ElementConstraint{Name: "a"}}}

	lt, err := tr.translatePath(left)
	if err != nil {
		t.Fatalf("translatePath left: %v", err)
	}
	rt, err := tr.translatePath(right)
	if err != nil {
		t.Fatalf("translatePath right: %v", err)
	}
	if lt.finalVar != rt.finalVar {
		t.Fatalf("expected glued paths to share a variable, got %v and %v", lt.finalVar, rt.finalVar)
	}
}
