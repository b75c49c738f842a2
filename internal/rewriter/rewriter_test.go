package rewriter

import (
	"testing"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/constraints"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

const (
	predHasExternalID = "https://hybridgraph.dev/ont#hasExternalId"
	predHasDataPoint  = "https://hybridgraph.dev/ont#hasDataPoint"
	predHasValue      = "https://hybridgraph.dev/ont#hasValue"
	predHasTimestamp  = "https://hybridgraph.dev/ont#hasTimestamp"
)

func testPredicates() config.PredicateConfig {
	return config.PredicateConfig{
		HasTimeseries: "https://hybridgraph.dev/ont#hasTimeseries",
		HasDataPoint:  predHasDataPoint,
		HasValue:      predHasValue,
		HasTimestamp:  predHasTimestamp,
		HasExternalID: predHasExternalID,
	}
}

func permissiveSettings() tsquery.Settings {
	return tsquery.Settings{GroupBy: true, ValueConditions: true}
}

func v(name string) algebra.Variable { return algebra.MustVariable(name) }

func tp(s algebra.Variable, pred string, o algebra.Variable) algebra.TriplePattern {
	return algebra.TriplePattern{
		Subject:   algebra.VariableTerm{Var: s},
		Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(pred)},
		Object:    algebra.VariableTerm{Var: o},
	}
}

// simpleSeriesJoinQuery builds ?series hasDataPoint ?dp. ?dp hasValue ?val.
// ?dp hasTimestamp ?ts. joined with a static triple on ?series, mirroring
// spec §8's "simple series join" scenario.
func simpleSeriesJoinQuery() (*algebra.Select, constraints.Map) {
	series, dp, val, ts := v("series"), v("dp"), v("val"), v("ts")
	name := v("name")

	cm := constraints.NewMap()
	cm.SetIfAbsent(series, constraints.ExternalTimeseries)
	cm.SetIfAbsent(dp, constraints.ExternalDataPoint)
	cm.SetIfAbsent(val, constraints.ExternalDataValue)
	cm.SetIfAbsent(ts, constraints.ExternalTimestamp)

	pattern := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(series, "https://example.org#hasName", name),
		tp(series, predHasDataPoint, dp),
		tp(dp, predHasValue, val),
		tp(dp, predHasTimestamp, ts),
	}}

	return &algebra.Select{Pattern: pattern, Variables: []algebra.Variable{name, val, ts}}, cm
}

func TestRewriteSimpleSeriesJoin(t *testing.T) {
	query, cm := simpleSeriesJoinQuery()
	rw := New(testPredicates(), permissiveSettings(), cm)

	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if len(result.TimeSeriesQueries) != 1 {
		t.Fatalf("expected exactly one time-series query, got %d", len(result.TimeSeriesQueries))
	}
	basic, ok := result.TimeSeriesQueries[0].(tsquery.Basic)
	if !ok {
		t.Fatalf("expected a Basic time-series query, got %T", result.TimeSeriesQueries[0])
	}
	if basic.TimeseriesVariable != v("series") {
		t.Errorf("expected timeseries variable 'series', got %v", basic.TimeseriesVariable)
	}
	if basic.DataPointVariable == nil || *basic.DataPointVariable != v("dp") {
		t.Errorf("expected data point variable 'dp' to be threaded through")
	}
	if basic.ValueVariable == nil || *basic.ValueVariable != v("val") {
		t.Errorf("expected value variable 'val' to be threaded through")
	}
	if basic.TimestampVariable == nil || *basic.TimestampVariable != v("ts") {
		t.Errorf("expected timestamp variable 'ts' to be threaded through")
	}

	bgp, ok := result.Query.Pattern.(algebra.Project).Inner.(algebra.Bgp)
	if !ok {
		t.Fatalf("expected a Project wrapping a Bgp, got %T", result.Query.Pattern.(algebra.Project).Inner)
	}
	for _, tp := range bgp.Patterns {
		if tp.Subject == (algebra.VariableTerm{Var: v("dp")}) {
			t.Fatalf("dynamic triple on ?dp leaked into the static Bgp")
		}
	}

	foundExternalID := false
	for _, proj := range result.Query.Variables {
		if proj == basic.IdentifierVariable {
			foundExternalID = true
		}
	}
	if !foundExternalID {
		t.Errorf("expected the minted external-id variable to be in the static projection")
	}
}

func TestRewriteFilterOnPlainStaticVariableSurvives(t *testing.T) {
	query, cm := simpleSeriesJoinQuery()

	// A filter referencing a plain static variable not in any time-series
	// query's scope should rewrite cleanly on the static side (NoChange),
	// not get dropped.
	filterExpr := algebra.ComparisonExpr{
		Op:    algebra.OpEqual,
		Left:  algebra.VariableExpr{Var: v("name")},
		Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: "room-1"}},
	}
	query.Pattern = algebra.Filter{Expr: filterExpr, Inner: query.Pattern}

	rw := New(testPredicates(), permissiveSettings(), cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	inner := result.Query.Pattern.(algebra.Project).Inner
	if _, ok := inner.(algebra.Filter); !ok {
		t.Fatalf("expected the static Filter to survive, got %T", inner)
	}
}

func TestRewriteFilterOnValueIsDroppedWhenValueConditionsDisabled(t *testing.T) {
	query, cm := simpleSeriesJoinQuery()
	settings := tsquery.Settings{GroupBy: true, ValueConditions: false}

	filterExpr := algebra.ComparisonExpr{
		Op:    algebra.OpGreater,
		Left:  algebra.VariableExpr{Var: v("val")},
		Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: "10"}},
	}
	query.Pattern = algebra.Filter{Expr: filterExpr, Inner: query.Pattern}

	rw := New(testPredicates(), settings, cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if result.Direction != changedir.Relaxed {
		t.Errorf("expected Relaxed direction once the value filter is dropped, got %v", result.Direction)
	}
	inner := result.Query.Pattern.(algebra.Project).Inner
	if _, ok := inner.(algebra.Filter); ok {
		t.Errorf("expected the unpushable value filter to be dropped from the static tree")
	}
	basic := result.TimeSeriesQueries[0].(tsquery.Basic)
	if !basic.LostValue {
		t.Errorf("expected LostValue to be set so the combiner re-applies the filter")
	}
}

func TestRewriteFilterOnValuePushesDownWhenEnabled(t *testing.T) {
	query, cm := simpleSeriesJoinQuery()
	settings := permissiveSettings()

	filterExpr := algebra.ComparisonExpr{
		Op:    algebra.OpGreater,
		Left:  algebra.VariableExpr{Var: v("val")},
		Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: "10"}},
	}
	query.Pattern = algebra.Filter{Expr: filterExpr, Inner: query.Pattern}

	rw := New(testPredicates(), settings, cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	filtered, ok := result.TimeSeriesQueries[0].(tsquery.Filtered)
	if !ok {
		t.Fatalf("expected the value filter to be pushed into the time-series query as Filtered, got %T", result.TimeSeriesQueries[0])
	}
	if _, ok := filtered.Inner.(tsquery.Basic); !ok {
		t.Fatalf("expected Filtered to wrap the Basic query directly")
	}
	inner := result.Query.Pattern.(algebra.Project).Inner
	if _, ok := inner.(algebra.Filter); ok {
		t.Errorf("expected no static Filter to remain once the filter is fully pushed down")
	}
}

func TestRewriteOptionalBlockKeepsLeftJoinWhenBothSidesRewrite(t *testing.T) {
	series := v("series")
	name := v("name")
	temp := v("temp")
	dp := v("dp")

	cm := constraints.NewMap()
	cm.SetIfAbsent(series, constraints.ExternalTimeseries)
	cm.SetIfAbsent(dp, constraints.ExternalDataPoint)

	left := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(series, "https://example.org#hasName", name),
	}}
	right := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(series, predHasDataPoint, dp),
	}}
	query := &algebra.Select{
		Pattern:   algebra.LeftJoin{Left: left, Right: right},
		Variables: []algebra.Variable{name},
	}

	rw := New(testPredicates(), permissiveSettings(), cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if _, ok := result.Query.Pattern.(algebra.Project).Inner.(algebra.LeftJoin); !ok {
		t.Fatalf("expected the LeftJoin structure to survive with both sides rewritable")
	}
}

func TestRewriteMinusDoesNotLeakExternalIDScope(t *testing.T) {
	seriesA, seriesB := v("seriesA"), v("seriesB")
	name := v("name")

	cm := constraints.NewMap()
	cm.SetIfAbsent(seriesA, constraints.ExternalTimeseries)
	cm.SetIfAbsent(seriesB, constraints.ExternalTimeseries)

	left := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(seriesA, "https://example.org#hasName", name),
	}}
	right := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(seriesB, "https://example.org#hasName", name),
	}}
	query := &algebra.Select{
		Pattern:   algebra.Minus{Left: left, Right: right},
		Variables: []algebra.Variable{name},
	}

	rw := New(testPredicates(), permissiveSettings(), cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if len(result.TimeSeriesQueries) != 1 {
		t.Fatalf("expected only the left side's time-series query to survive, got %d", len(result.TimeSeriesQueries))
	}
	if result.TimeSeriesQueries[0].(tsquery.Basic).TimeseriesVariable != seriesA {
		t.Errorf("expected the surviving time-series query to be seriesA's, not seriesB's")
	}
}

func TestRewriteGroupedAggregationPushesDownWhenAdmissible(t *testing.T) {
	series, dp, val := v("series"), v("dp"), v("val")

	cm := constraints.NewMap()
	cm.SetIfAbsent(series, constraints.ExternalTimeseries)
	cm.SetIfAbsent(dp, constraints.ExternalDataPoint)
	cm.SetIfAbsent(val, constraints.ExternalDataValue)

	inner := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(series, predHasDataPoint, dp),
		tp(dp, predHasValue, val),
	}}
	avg := v("avgval")
	group := algebra.Group{
		Inner:      inner,
		Variables:  nil,
		Aggregates: []algebra.GroupAggregate{{Variable: avg, Aggregate: algebra.AvgAgg{Expr: algebra.VariableExpr{Var: val}}}},
	}
	query := &algebra.Select{Pattern: group, Variables: []algebra.Variable{avg}}

	rw := New(testPredicates(), permissiveSettings(), cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if len(result.GroupPushdownPending) != 0 {
		t.Fatalf("expected the group-by with no static grouping variables to be immediately admissible, got %d pending", len(result.GroupPushdownPending))
	}
	grouped, ok := result.TimeSeriesQueries[0].(tsquery.Grouped)
	if !ok {
		t.Fatalf("expected the time-series query to be wrapped in Grouped, got %T", result.TimeSeriesQueries[0])
	}
	if len(grouped.Aggregates) != 1 {
		t.Errorf("expected one pushed-down aggregate, got %d", len(grouped.Aggregates))
	}
}

// TestRewriteMintsExternalIDForTimeseriesVarOnlyReachedAsObjectOfDynamicTriple
// covers a timeseries variable whose only appearance in the Bgp is as the
// object of a triple that is itself classified dynamic because its subject
// is tagged ExternalDataPoint. Minting must still run for that object, since
// it is independent of whether the triple ends up in the static or the
// dynamic list.
func TestRewriteMintsExternalIDForTimeseriesVarOnlyReachedAsObjectOfDynamicTriple(t *testing.T) {
	dp, series := v("dp"), v("series")

	cm := constraints.NewMap()
	cm.SetIfAbsent(dp, constraints.ExternalDataPoint)
	cm.SetIfAbsent(series, constraints.ExternalTimeseries)

	pattern := algebra.Bgp{Patterns: []algebra.TriplePattern{
		tp(dp, "https://example.org#partOfSeries", series),
	}}
	query := &algebra.Select{Pattern: pattern, Variables: []algebra.Variable{series}}

	rw := New(testPredicates(), permissiveSettings(), cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if len(result.TimeSeriesQueries) != 1 {
		t.Fatalf("expected series's external id to be minted into a tracked time-series query, got %d", len(result.TimeSeriesQueries))
	}
	basic, ok := result.TimeSeriesQueries[0].(tsquery.Basic)
	if !ok {
		t.Fatalf("expected a Basic time-series query, got %T", result.TimeSeriesQueries[0])
	}
	if basic.TimeseriesVariable != series {
		t.Errorf("expected the tracked query's timeseries variable to be 'series', got %v", basic.TimeseriesVariable)
	}

	bgp, ok := result.Query.Pattern.(algebra.Project).Inner.(algebra.Bgp)
	if !ok {
		t.Fatalf("expected a Project wrapping a Bgp, got %T", result.Query.Pattern.(algebra.Project).Inner)
	}
	foundExternalID := false
	for _, p := range bgp.Patterns {
		if p.Subject == (algebra.VariableTerm{Var: series}) && p.Predicate == (algebra.FixedPredicate{IRI: algebra.NamedNode(predHasExternalID)}) {
			foundExternalID = true
		}
	}
	if !foundExternalID {
		t.Errorf("expected a hasExternalId triple for 'series' to be minted into the static Bgp")
	}
}

func TestRewritePropertyPathPassesThroughUnrewritten(t *testing.T) {
	s, o := v("s"), v("o")
	cm := constraints.NewMap()
	path := algebra.Path{
		Subject: algebra.VariableTerm{Var: s},
		Element: algebra.PathElement{Predicate: "https://example.org#knows", Multiplicity: algebra.PathOneOrMore},
		Object:  algebra.VariableTerm{Var: o},
	}
	query := &algebra.Select{Pattern: path, Variables: []algebra.Variable{s, o}}

	rw := New(testPredicates(), permissiveSettings(), cm)
	result, err := rw.Rewrite(query)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	if _, ok := result.Query.Pattern.(algebra.Project).Inner.(algebra.Path); !ok {
		t.Fatalf("expected the Path pattern to pass through unrewritten")
	}
}
