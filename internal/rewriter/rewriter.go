// Package rewriter implements spec §4.2: the static rewriter that splits a
// preprocessed SPARQL algebra tree into a static SPARQL sub-query and a
// list of time-series queries, tracking the three-valued change-direction
// contract along the way. Grounded on
// _examples/original_source/hybrid/src/static_rewrite.rs's recursive
// Option<(Node, ChangeType)> shape and on the teacher's single-owner
// planner-state pattern (internal/planner/planner.go, internal/federation
// pushdown.go's closed Operation sum type).
package rewriter

import (
	"fmt"
	"sort"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/constraints"
	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// trackedQuery is one time-series query under construction. basic holds the
// mutable leaf (identifier/series/datapoint/value/timestamp variables,
// filled in as dynamic triples are processed); top is the current root of
// that query's tree, initially the Basic itself and progressively wrapped
// in Filtered/Grouped as pushdowns succeed.
type trackedQuery struct {
	basic *tsquery.Basic
	top   tsquery.Query
}

// GroupPushdownCandidate is a group-by pushdown whose structural
// admissibility held (spec §4.3 step 5) but whose numeric isomorphism test
// needs the materialized static result; the combiner finalizes it once
// IdentifierTupleCounts are available.
type GroupPushdownCandidate struct {
	Partition  tsquery.GroupPartition
	Identifier algebra.Variable
	By         []algebra.Variable
	Aggregates []algebra.GroupAggregate
	query      *trackedQuery
}

// Rewriter owns the counter for fresh ts_external_id_N variables, the
// registries used to thread dynamic triples into the right time-series
// query, and the accumulated additional-projections set (spec §9 "shared
// static state is confined to a single owning planner value"). A Rewriter
// is constructed once per query and discarded.
type Rewriter struct {
	predicates  config.PredicateConfig
	settings    tsquery.Settings
	constraints constraints.Map

	externalIDCounter int

	tsByTimeseriesVar map[algebra.Variable]*trackedQuery
	tsByDataPointVar  map[algebra.Variable]*trackedQuery
	tracked           []*trackedQuery

	additionalProjections map[algebra.Variable]bool

	pushdownsAdmitted int
	pushdownsRefused  int

	groupCandidates []*GroupPushdownCandidate
}

// New creates a Rewriter for one query.
func New(predicates config.PredicateConfig, settings tsquery.Settings, cm constraints.Map) *Rewriter {
	return &Rewriter{
		predicates:            predicates,
		settings:              settings,
		constraints:           cm,
		tsByTimeseriesVar:     make(map[algebra.Variable]*trackedQuery),
		tsByDataPointVar:      make(map[algebra.Variable]*trackedQuery),
		additionalProjections: make(map[algebra.Variable]bool),
	}
}

// Result is everything the rewrite produced: the static SPARQL query, the
// time-series query forest, and the group-by pushdown candidates still
// pending numeric confirmation from the combiner.
type Result struct {
	Query               *algebra.Select
	TimeSeriesQueries    []tsquery.Query
	GroupPushdownPending []*GroupPushdownCandidate
	PushdownsAdmitted    int
	PushdownsRefused     int
	Direction            changedir.Direction
}

// Rewrite is the public entry point (spec §4.2 "rewrite(query) → Select |
// None"). Returns ErrHybridQueryUnsound if the root rewrite direction is
// Constrained or the rewrite fails outright.
func (r *Rewriter) Rewrite(query *algebra.Select) (*Result, error) {
	ctx := algebra.RootContext()
	pattern, dir, ok := r.rewritePattern(query.Pattern, changedir.Relaxed, ctx)
	if !ok {
		return nil, internalerrors.NewHybridQueryUnsound("no sound static rewrite exists for this query")
	}
	if dir == changedir.Constrained {
		return nil, internalerrors.NewHybridQueryUnsound("the rewrite would constrain (lose tuples from) the static side, which changes downstream join semantics")
	}

	r.pushdownGroupBys(query.Pattern)

	projected := r.augmentProjection(query.Variables)
	out := &algebra.Select{
		Pattern:   algebra.Project{Inner: pattern, Variables: projected},
		Variables: projected,
	}

	queries := make([]tsquery.Query, len(r.tracked))
	for i, t := range r.tracked {
		queries[i] = withCurrentBasic(t.top, *t.basic)
	}

	return &Result{
		Query:                out,
		TimeSeriesQueries:    queries,
		GroupPushdownPending: r.groupCandidates,
		PushdownsAdmitted:    r.pushdownsAdmitted,
		PushdownsRefused:     r.pushdownsRefused,
		Direction:            dir,
	}, nil
}

// withCurrentBasic returns q with its Basic leaf replaced by b: top copied
// the Basic when the query was minted, before dynamic triples filled in its
// variables and LostValue.
func withCurrentBasic(q tsquery.Query, b tsquery.Basic) tsquery.Query {
	switch n := q.(type) {
	case tsquery.Basic:
		return b
	case tsquery.Filtered:
		return tsquery.Filtered{Inner: withCurrentBasic(n.Inner, b), Expr: n.Expr}
	case tsquery.Grouped:
		return tsquery.Grouped{Inner: withCurrentBasic(n.Inner, b), By: n.By, Aggregates: n.Aggregates}
	default:
		return q
	}
}

// augmentProjection implements spec §4.2 "Project": the projected variable
// list gains every external-id variable in scope (sorted by name) and
// every variable accumulated into additionalProjections not already
// present.
func (r *Rewriter) augmentProjection(original []algebra.Variable) []algebra.Variable {
	present := make(map[algebra.Variable]bool, len(original))
	out := make([]algebra.Variable, 0, len(original))
	for _, v := range original {
		if !present[v] {
			present[v] = true
			out = append(out, v)
		}
	}

	externalIDs := make([]algebra.Variable, 0, len(r.tracked))
	for _, t := range r.tracked {
		externalIDs = append(externalIDs, t.basic.IdentifierVariable)
	}
	sort.Slice(externalIDs, func(i, j int) bool { return externalIDs[i] < externalIDs[j] })
	for _, v := range externalIDs {
		if !present[v] {
			present[v] = true
			out = append(out, v)
		}
	}

	extra := make([]algebra.Variable, 0, len(r.additionalProjections))
	for v := range r.additionalProjections {
		extra = append(extra, v)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, v := range extra {
		if !present[v] {
			present[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (r *Rewriter) freshExternalID() algebra.Variable {
	v := algebra.MustVariable(fmt.Sprintf("ts_external_id_%d", r.externalIDCounter))
	r.externalIDCounter++
	return v
}

// rewritePattern dispatches on node type, implementing spec §4.2's
// per-node rules.
func (r *Rewriter) rewritePattern(gp algebra.GraphPattern, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	switch n := gp.(type) {
	case algebra.Bgp:
		return r.rewriteBgp(n, dir)
	case algebra.Path:
		// Paths are assumed desugared to blank-node-free single hops by the
		// preprocessor; pass through unrewritten (spec §4.2 "Values / Path").
		return n, changedir.NoChange, true
	case algebra.Join:
		return r.rewriteJoin(n, dir, ctx)
	case algebra.LeftJoin:
		return r.rewriteLeftJoin(n, dir, ctx)
	case algebra.Filter:
		return r.rewriteFilter(n, dir, ctx)
	case algebra.Union:
		return r.rewriteUnion(n, dir, ctx)
	case algebra.Minus:
		return r.rewriteMinus(n, dir, ctx)
	case algebra.Graph:
		inner, innerDir, ok := r.rewritePattern(n.Inner, dir, ctx.Push(algebra.GraphInner))
		if !ok {
			return nil, 0, false
		}
		return algebra.Graph{Name: n.Name, Inner: inner}, innerDir, true
	case algebra.Service:
		// Per spec Non-goals (distributed multi-endpoint execution), Service
		// patterns pass through unrewritten.
		inner, innerDir, ok := r.rewritePattern(n.Inner, dir, ctx.Push(algebra.GraphInner))
		if !ok {
			return nil, 0, false
		}
		return algebra.Service{Endpoint: n.Endpoint, Inner: inner, Silent: n.Silent}, innerDir, true
	case algebra.Extend:
		return r.rewriteExtend(n, dir, ctx)
	case algebra.OrderBy:
		return r.rewriteOrderBy(n, dir, ctx)
	case algebra.Project:
		inner, innerDir, ok := r.rewritePattern(n.Inner, dir, ctx.Push(algebra.ProjectInner))
		if !ok {
			return nil, 0, false
		}
		return algebra.Project{Inner: inner, Variables: n.Variables}, innerDir, true
	case algebra.Distinct:
		inner, innerDir, ok := r.rewritePattern(n.Inner, dir, ctx)
		if !ok {
			return nil, 0, false
		}
		return algebra.Distinct{Inner: inner}, innerDir, true
	case algebra.Reduced:
		inner, innerDir, ok := r.rewritePattern(n.Inner, dir, ctx)
		if !ok {
			return nil, 0, false
		}
		return algebra.Reduced{Inner: inner}, innerDir, true
	case algebra.Slice:
		inner, innerDir, ok := r.rewritePattern(n.Inner, dir, ctx)
		if !ok {
			return nil, 0, false
		}
		return algebra.Slice{Inner: inner, Start: n.Start, Length: n.Length}, innerDir, true
	case algebra.Group:
		return r.rewriteGroup(n, dir, ctx)
	case algebra.Values:
		return n, changedir.NoChange, true
	default:
		return nil, 0, false
	}
}

func (r *Rewriter) kindOf(v algebra.Variable) (constraints.Kind, bool) {
	k, ok := r.constraints[v]
	return k, ok
}

func (r *Rewriter) isDynamic(v algebra.Variable) bool {
	k, ok := r.kindOf(v)
	return ok && k.IsDynamic()
}
