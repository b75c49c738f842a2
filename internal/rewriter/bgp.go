package rewriter

import (
	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
	"github.com/hybridgraph/hybridgraph/internal/constraints"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// rewriteBgp implements spec §4.2's Bgp rule: partition triples into
// static and dynamic, mint a fresh external-id variable (and a new Basic
// time-series query) for every first-observed ExternalTimeseries variable,
// and thread dynamic triples into the matching time-series query once
// every relationship in this Bgp has been registered.
func (r *Rewriter) rewriteBgp(n algebra.Bgp, dir changedir.Direction) (algebra.GraphPattern, changedir.Direction, bool) {
	var static []algebra.TriplePattern
	var dynamic []algebra.TriplePattern

	for _, tp := range n.Patterns {
		// Minting runs over every triple's subject/object independently of
		// the static/dynamic partition below: a triple can be dynamic (and
		// so never appended to static itself) while still being the first
		// sighting of an ExternalTimeseries variable that needs its
		// hasExternalId triple and tracked query registered.
		r.mintExternalIDsFromTriple(tp, &static)
		if r.tripleIsDynamic(tp) {
			dynamic = append(dynamic, tp)
			continue
		}
		static = append(static, tp)
	}

	// Dynamic triples are processed only after every relationship in this
	// Bgp has been registered (spec §4.2: "Processing dynamic triples is
	// deferred until all relationships are registered to avoid ordering
	// hazards").
	for _, tp := range dynamic {
		r.threadDynamicTriple(tp)
	}

	if len(static) == 0 {
		if !dir.AllowsSuperset() {
			return nil, 0, false
		}
		return algebra.Bgp{}, changedir.Relaxed, true
	}
	return algebra.Bgp{Patterns: static}, changedir.NoChange, true
}

// tripleIsDynamic reports whether tp's subject or object is tagged with one
// of ExternalDataPoint, ExternalDataValue, ExternalTimestamp.
func (r *Rewriter) tripleIsDynamic(tp algebra.TriplePattern) bool {
	if v, ok := algebra.VariableOf(tp.Subject); ok && r.isDynamic(v) {
		return true
	}
	if v, ok := algebra.VariableOf(tp.Object); ok && r.isDynamic(v) {
		return true
	}
	return false
}

// mintExternalIDsFromTriple mints a fresh external-id variable (and a new
// tracked Basic query) for every variable in tp tagged ExternalTimeseries
// that has not already been registered, appending the synthetic
// `?ts hasExternalId ?ts_external_id_N` triple to static.
func (r *Rewriter) mintExternalIDsFromTriple(tp algebra.TriplePattern, static *[]algebra.TriplePattern) {
	for _, term := range []algebra.TermPattern{tp.Subject, tp.Object} {
		v, ok := algebra.VariableOf(term)
		if !ok {
			continue
		}
		k, hasKind := r.kindOf(v)
		if !hasKind || k != constraints.ExternalTimeseries {
			continue
		}
		if _, already := r.tsByTimeseriesVar[v]; already {
			continue
		}
		idVar := r.freshExternalID()
		basic := &tsquery.Basic{
			IdentifierVariable: idVar,
			TimeseriesVariable: v,
		}
		tracked := &trackedQuery{basic: basic, top: *basic}
		r.tsByTimeseriesVar[v] = tracked
		r.tracked = append(r.tracked, tracked)

		*static = append(*static, algebra.TriplePattern{
			Subject:   algebra.VariableTerm{Var: v},
			Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(r.predicates.HasExternalID)},
			Object:    algebra.VariableTerm{Var: idVar},
		})
	}
}

// threadDynamicTriple binds data_point_variable / value_variable /
// timestamp_variable on the matching tracked query by following the
// subject-variable chain established by hasDataPoint/hasValue/
// hasTimestamp triples (spec §4.2 Bgp rule).
func (r *Rewriter) threadDynamicTriple(tp algebra.TriplePattern) {
	iri, ok := tp.PredicateIRI()
	if !ok {
		return
	}
	subjVar, subjOk := algebra.VariableOf(tp.Subject)
	objVar, objOk := algebra.VariableOf(tp.Object)
	if !subjOk || !objOk {
		return
	}

	switch string(iri) {
	case r.predicates.HasDataPoint:
		tracked, found := r.tsByTimeseriesVar[subjVar]
		if !found {
			return
		}
		if tracked.basic.DataPointVariable == nil {
			dp := objVar
			tracked.basic.DataPointVariable = &dp
		}
		r.tsByDataPointVar[objVar] = tracked
	case r.predicates.HasValue:
		tracked, found := r.tsByDataPointVar[subjVar]
		if !found {
			return
		}
		v := objVar
		tracked.basic.ValueVariable = &v
	case r.predicates.HasTimestamp:
		tracked, found := r.tsByDataPointVar[subjVar]
		if !found {
			return
		}
		t := objVar
		tracked.basic.TimestampVariable = &t
	}
}
