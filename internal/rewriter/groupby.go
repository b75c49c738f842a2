package rewriter

import (
	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// rewriteGroup implements the structural half of spec §4.2/§4.3's Group
// rule: a Group whose grouping variables and aggregate expressions never
// touch a dynamic variable passes through unchanged; any other Group is
// dropped from the static tree (its static columns are kept projected so
// the combiner can recompute the aggregation over the joined frame, spec
// §4.4), and is left for the separate pushdownGroupBys pass to decide
// whether the dropped aggregation can instead be pushed down onto the
// owning time-series query.
func (r *Rewriter) rewriteGroup(n algebra.Group, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	inner, innerDir, innerOk := r.rewritePattern(n.Inner, dir, ctx.Push(algebra.GroupInner))
	if !innerOk {
		return nil, 0, false
	}

	if !r.groupTouchesDynamic(n) {
		return algebra.Group{Inner: inner, Variables: n.Variables, Aggregates: n.Aggregates}, innerDir, true
	}

	for _, v := range n.Variables {
		if !r.isDynamic(v) {
			r.additionalProjections[v] = true
		}
	}
	for _, agg := range n.Aggregates {
		for v := range algebra.UsedVariablesInAggregate(agg.Aggregate) {
			if !r.isDynamic(v) {
				r.additionalProjections[v] = true
			}
		}
	}
	return inner, changedir.Relaxed, true
}

func (r *Rewriter) groupTouchesDynamic(n algebra.Group) bool {
	for _, v := range n.Variables {
		if r.isDynamic(v) {
			return true
		}
	}
	for _, agg := range n.Aggregates {
		for v := range algebra.UsedVariablesInAggregate(agg.Aggregate) {
			if r.isDynamic(v) {
				return true
			}
		}
	}
	return false
}

// pushdownGroupBys implements spec §4.3's group-by pushdown pass: it walks
// the original (pre-rewrite) algebra tree looking for Group nodes that
// touch a dynamic variable, partitions each one's grouping variables into
// static and dynamic, and either commits the pushdown immediately (when
// structurally admissible with no static grouping variables) or records a
// GroupPushdownCandidate for the combiner to finalize once it can compute
// IdentifierTupleCounts from the materialized static result.
func (r *Rewriter) pushdownGroupBys(pattern algebra.GraphPattern) {
	if !r.settings.GroupBy {
		return
	}
	r.walkForGroups(pattern)
}

func (r *Rewriter) walkForGroups(p algebra.GraphPattern) {
	switch n := p.(type) {
	case algebra.Group:
		r.considerGroupPushdown(n)
		r.walkForGroups(n.Inner)
	case algebra.Join:
		r.walkForGroups(n.Left)
		r.walkForGroups(n.Right)
	case algebra.LeftJoin:
		r.walkForGroups(n.Left)
		r.walkForGroups(n.Right)
	case algebra.Filter:
		r.walkForGroups(n.Inner)
	case algebra.Union:
		r.walkForGroups(n.Left)
		r.walkForGroups(n.Right)
	case algebra.Graph:
		r.walkForGroups(n.Inner)
	case algebra.Service:
		r.walkForGroups(n.Inner)
	case algebra.Extend:
		r.walkForGroups(n.Inner)
	case algebra.Minus:
		r.walkForGroups(n.Left)
	case algebra.OrderBy:
		r.walkForGroups(n.Inner)
	case algebra.Project:
		r.walkForGroups(n.Inner)
	case algebra.Distinct:
		r.walkForGroups(n.Inner)
	case algebra.Reduced:
		r.walkForGroups(n.Inner)
	case algebra.Slice:
		r.walkForGroups(n.Inner)
	}
	// Open Question decision (ii): does not recurse into a nested Group's
	// own inner pattern beyond the single Inner walk above — a Group
	// establishes its own scope for its aggregates, so further nested
	// Groups are considered independently when walkForGroups reaches them
	// through the outer case's recursion into n.Inner.
}

// considerGroupPushdown handles one dynamic-touching Group node: it must
// aggregate over exactly one time-series query (spread across several
// would require a synchronized join with a shared grouping key, which is
// out of scope here) for a pushdown to be possible at all.
func (r *Rewriter) considerGroupPushdown(n algebra.Group) {
	if !r.groupTouchesDynamic(n) {
		return
	}

	owner := r.findSingleOwner(n)
	if owner == nil {
		return
	}

	partition := tsquery.GroupPartition{}
	for _, v := range n.Variables {
		if r.isDynamic(v) || v == owner.basic.IdentifierVariable || v == owner.basic.TimeseriesVariable {
			partition.DynamicGroupingVariables = append(partition.DynamicGroupingVariables, v)
		} else {
			partition.StaticGroupingVariables = append(partition.StaticGroupingVariables, v)
		}
	}

	if tsquery.Admissible(partition, nil) {
		by := tsquery.AppendIdentifierToGroupBy(partition.DynamicGroupingVariables, owner.basic.IdentifierVariable)
		owner.top = tsquery.Grouped{Inner: owner.top, By: by, Aggregates: n.Aggregates}
		r.pushdownsAdmitted++
		return
	}

	r.groupCandidates = append(r.groupCandidates, &GroupPushdownCandidate{
		Partition:  partition,
		Identifier: owner.basic.IdentifierVariable,
		By:         tsquery.AppendIdentifierToGroupBy(partition.DynamicGroupingVariables, owner.basic.IdentifierVariable),
		Aggregates: n.Aggregates,
		query:      owner,
	})
}

// Confirm finalizes a pending group-by pushdown once the combiner has
// computed IdentifierTupleCounts from the materialized static result
// (spec §4.3 step 5's numeric isomorphism test). On success it mutates the
// owning tracked query's tree in place and returns true; the combiner
// should otherwise fall back to executing the owning query unaggregated
// and performing the GROUP BY itself over the joined frame.
func (c *GroupPushdownCandidate) Confirm(counts *tsquery.IdentifierTupleCounts) bool {
	if !tsquery.Admissible(c.Partition, counts) {
		return false
	}
	c.query.top = tsquery.Grouped{Inner: c.query.top, By: c.By, Aggregates: c.Aggregates}
	return true
}

// findSingleOwner returns the one tracked time-series query every
// dynamic variable referenced by n's grouping/aggregate expressions
// belongs to, or nil if n's dynamic references span more than one tracked
// query (or none at all).
func (r *Rewriter) findSingleOwner(n algebra.Group) *trackedQuery {
	touched := make(map[algebra.Variable]bool)
	for _, v := range n.Variables {
		touched[v] = true
	}
	for _, agg := range n.Aggregates {
		for v := range algebra.UsedVariablesInAggregate(agg.Aggregate) {
			touched[v] = true
		}
	}

	var owner *trackedQuery
	for _, t := range r.tracked {
		scope := tsquery.ScopeOf(*t.basic)
		touches := false
		for v := range touched {
			if scope.Allows(v) {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		if owner != nil {
			return nil
		}
		owner = t
	}
	return owner
}
