package rewriter

import (
	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
	"github.com/hybridgraph/hybridgraph/internal/constraints"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// rewriteFilter implements spec §4.2's Filter rule: an expression that can
// be pushed whole into exactly one time-series query is moved there
// entirely (no static Filter node remains); otherwise the static-side
// rewrite is attempted, and if that also fails the filter is dropped,
// keeping its referenced static variables projected so the combiner can
// re-apply it against the joined frame.
func (r *Rewriter) rewriteFilter(n algebra.Filter, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	inner, innerDir, innerOk := r.rewritePattern(n.Inner, dir, ctx.Push(algebra.FilterInner))
	if !innerOk {
		return nil, 0, false
	}

	// Pushdown runs after the inner rewrite so the time-series queries the
	// inner pattern registers are available as pushdown targets.
	if r.tryPushdownExpressionIntoTsQueries(n.Expr) {
		return inner, innerDir, true
	}

	expr, exprDir, exprOk := r.rewriteStaticExpr(n.Expr, dir, ctx.Push(algebra.FilterExpression))
	if !exprOk {
		r.addStaticVarsToProjection(n.Expr)
		return inner, changedir.Relaxed, true
	}

	combined, err := changedir.And(innerDir, exprDir)
	if !err {
		return inner, changedir.Relaxed, true
	}
	return algebra.Filter{Expr: expr, Inner: inner}, combined, true
}

// rewriteExtend implements spec §4.2's Extend rule: the bound expression
// is rewritten on the static side; if that fails, the Extend is dropped
// (the bound variable becomes unavailable downstream, which the combiner
// restores by re-evaluating the original Extend over the joined frame, per
// spec §4.4) and the expression's static variables are kept projected.
func (r *Rewriter) rewriteExtend(n algebra.Extend, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	inner, innerDir, innerOk := r.rewritePattern(n.Inner, dir, ctx.Push(algebra.ExtendInner))
	if !innerOk {
		return nil, 0, false
	}

	if r.isDynamicExpr(n.Expression) {
		r.addStaticVarsToProjection(n.Expression)
		return inner, changedir.Relaxed, true
	}

	expr, exprDir, exprOk := r.rewriteStaticExpr(n.Expression, dir, ctx.Push(algebra.ExtendExpression))
	if !exprOk {
		r.addStaticVarsToProjection(n.Expression)
		return inner, changedir.Relaxed, true
	}

	combined, err := changedir.And(innerDir, exprDir)
	if !err {
		combined = changedir.Relaxed
	}
	return algebra.Extend{Inner: inner, Variable: n.Variable, Expression: expr}, combined, true
}

// rewriteOrderBy implements spec §4.2's OrderBy rule: order keys that
// reference a dynamic variable cannot be evaluated on the static side and
// are dropped from the ORDER BY clause (the combiner re-sorts the final
// frame, spec §4.4); if every key is dropped the ORDER BY node itself is
// elided.
func (r *Rewriter) rewriteOrderBy(n algebra.OrderBy, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	inner, innerDir, innerOk := r.rewritePattern(n.Inner, dir, ctx)
	if !innerOk {
		return nil, 0, false
	}

	kept := make([]algebra.OrderExpression, 0, len(n.Expression))
	for _, oe := range n.Expression {
		if r.isDynamicExpr(oe.Expr) {
			r.addStaticVarsToProjection(oe.Expr)
			continue
		}
		rewritten, _, ok := r.rewriteStaticExpr(oe.Expr, dir, ctx)
		if !ok {
			r.addStaticVarsToProjection(oe.Expr)
			continue
		}
		kept = append(kept, algebra.OrderExpression{Expr: rewritten, Descending: oe.Descending})
	}

	if len(kept) == 0 {
		return inner, innerDir, true
	}
	return algebra.OrderBy{Inner: inner, Expression: kept}, innerDir, true
}

// isDynamicExpr reports whether expr references any variable tagged
// ExternalDataPoint, ExternalDataValue, or ExternalTimestamp.
func (r *Rewriter) isDynamicExpr(expr algebra.Expression) bool {
	for v := range algebra.UsedVariables(expr) {
		if r.isDynamic(v) {
			return true
		}
	}
	return false
}

// rewriteStaticExpr is the static-side expression rewrite (spec §4.2):
// distinct from tsquery.TryRewriteExpression, which asks "can this live
// inside one time-series query instead". Here every variable leaf must be
// a static variable (ExternalTimeseries, ExternallyDerived, or untagged) —
// a reference to ExternalDataPoint/ExternalDataValue/ExternalTimestamp
// always fails the static side, since those values only exist once the
// time-series queries have executed.
func (r *Rewriter) rewriteStaticExpr(expr algebra.Expression, dir changedir.Direction, ctx algebra.Context) (algebra.Expression, changedir.Direction, bool) {
	switch e := expr.(type) {
	case algebra.AndExpr:
		left, leftDir, leftOk := r.rewriteStaticExpr(e.Left, dir, ctx.Push(algebra.AndLeft))
		right, rightDir, rightOk := r.rewriteStaticExpr(e.Right, dir, ctx.Push(algebra.AndRight))
		switch {
		case leftOk && rightOk:
			combined, ok := changedir.And(leftDir, rightDir)
			if !ok {
				return nil, 0, false
			}
			return algebra.AndExpr{Left: left, Right: right}, combined, true
		case leftOk && dir.AllowsSuperset():
			return left, leftDir, true
		case rightOk && dir.AllowsSuperset():
			return right, rightDir, true
		default:
			return nil, 0, false
		}

	case algebra.OrExpr:
		left, leftDir, leftOk := r.rewriteStaticExpr(e.Left, dir, ctx.Push(algebra.OrLeft))
		right, rightDir, rightOk := r.rewriteStaticExpr(e.Right, dir, ctx.Push(algebra.OrRight))
		switch {
		case leftOk && rightOk:
			combined, ok := changedir.Or(leftDir, rightDir)
			if !ok {
				return nil, 0, false
			}
			return algebra.OrExpr{Left: left, Right: right}, combined, true
		case leftOk && dir.AllowsSubset():
			return left, leftDir, true
		case rightOk && dir.AllowsSubset():
			return right, rightDir, true
		default:
			return nil, 0, false
		}

	case algebra.NotExpr:
		inner, innerDir, ok := r.rewriteStaticExpr(e.Inner, changedir.Opposite(dir), ctx)
		if !ok {
			return nil, 0, false
		}
		return algebra.NotExpr{Inner: inner}, changedir.Not(innerDir), true

	case algebra.InExpr:
		left, leftDir, leftOk := r.rewriteStaticExpr(e.Left, dir, ctx)
		if !leftOk {
			return nil, 0, false
		}
		kept := make([]algebra.Expression, 0, len(e.Alternatives))
		for _, alt := range e.Alternatives {
			if r.isDynamicExpr(alt) {
				if !dir.AllowsSuperset() {
					return nil, 0, false
				}
				continue
			}
			rewritten, _, ok := r.rewriteStaticExpr(alt, dir, ctx)
			if !ok {
				if !dir.AllowsSuperset() {
					return nil, 0, false
				}
				continue
			}
			kept = append(kept, rewritten)
		}
		// Open Question decision: all alternatives dropped under Relaxed
		// is a failed rewrite, not a vacuous true/false.
		if len(kept) == 0 {
			return nil, 0, false
		}
		outDir := leftDir
		if len(kept) != len(e.Alternatives) {
			outDir = changedir.Relaxed
		}
		return algebra.InExpr{Left: left, Alternatives: kept}, outDir, true

	case algebra.ExistsExpr:
		pattern, patternDir, ok := r.rewritePattern(e.Pattern, dir, ctx.Push(algebra.ExistsInner))
		if !ok {
			return nil, 0, false
		}
		return algebra.ExistsExpr{Pattern: pattern}, patternDir, true

	case algebra.ComparisonExpr:
		return r.rewriteStaticLeafPair(e.Left, e.Right, func(l, r algebra.Expression) algebra.Expression {
			return algebra.ComparisonExpr{Op: e.Op, Left: l, Right: r}
		})

	case algebra.ArithmeticExpr:
		return r.rewriteStaticLeafPair(e.Left, e.Right, func(l, r algebra.Expression) algebra.Expression {
			return algebra.ArithmeticExpr{Op: e.Op, Left: l, Right: r}
		})

	case algebra.SameTermExpr:
		return r.rewriteStaticLeafPair(e.Left, e.Right, func(l, r algebra.Expression) algebra.Expression {
			return algebra.SameTermExpr{Left: l, Right: r}
		})

	default:
		return r.rewriteStaticLeaf(expr)
	}
}

// rewriteStaticLeafPair handles the binary non-connective expression
// nodes (comparison, arithmetic, sameterm) uniformly: both operands must
// rewrite to NoChange for the whole node to succeed, since there is no
// sound partial rewrite of e.g. one side of a comparison.
func (r *Rewriter) rewriteStaticLeafPair(left, right algebra.Expression, rebuild func(l, r algebra.Expression) algebra.Expression) (algebra.Expression, changedir.Direction, bool) {
	leftOut, leftDir, leftOk := r.rewriteStaticLeaf(left)
	if !leftOk || leftDir != changedir.NoChange {
		return nil, 0, false
	}
	rightOut, rightDir, rightOk := r.rewriteStaticLeaf(right)
	if !rightOk || rightDir != changedir.NoChange {
		return nil, 0, false
	}
	return rebuild(leftOut, rightOut), changedir.NoChange, true
}

// rewriteStaticLeaf is the base case: any leaf expression (variable
// reference, constant, function call, bound/if/coalesce) whose used
// variables are all static passes through unchanged with NoChange; any
// reference to a dynamic variable fails outright.
func (r *Rewriter) rewriteStaticLeaf(expr algebra.Expression) (algebra.Expression, changedir.Direction, bool) {
	for v := range algebra.UsedVariables(expr) {
		k, hasKind := r.kindOf(v)
		if hasKind && k != constraints.ExternalTimeseries && k != constraints.ExternallyDerived {
			return nil, 0, false
		}
	}
	return expr, changedir.NoChange, true
}

// addStaticVarsToProjection records every static (non-dynamic) variable
// used by expr into the additional-projections set, so a dropped
// filter/extend/order key's static columns survive into the static query's
// projection for the combiner to re-evaluate against (spec §4.4).
func (r *Rewriter) addStaticVarsToProjection(expr algebra.Expression) {
	for v := range algebra.UsedVariables(expr) {
		if !r.isDynamic(v) {
			r.additionalProjections[v] = true
		}
	}
}

// tryPushdownExpressionIntoTsQueries attempts to push expr whole into
// exactly one tracked time-series query's scope (spec §4.3 "Expression
// pushdown"). It only commits the pushdown (wrapping the tracked query in
// a Filtered node) when expr references variables from a single tracked
// query's scope and tsquery.TryRewriteExpression succeeds against it;
// expressions spanning multiple time-series queries, or none, are left for
// the static-side rewrite instead.
func (r *Rewriter) tryPushdownExpressionIntoTsQueries(expr algebra.Expression) bool {
	used := algebra.UsedVariables(expr)

	var owner *trackedQuery
	for _, t := range r.tracked {
		scope := tsquery.ScopeOf(*t.basic)
		touches := false
		for v := range used {
			if scope.Allows(v) {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		if owner != nil {
			// Spans more than one time-series query: not a single-query
			// pushdown candidate.
			r.pushdownsRefused++
			return false
		}
		owner = t
	}
	if owner == nil {
		return false
	}

	scope := tsquery.ScopeOf(*owner.basic)
	rewritten, _, ok, lostValue := tsquery.TryRewriteExpression(expr, changedir.Relaxed, scope, r.settings)
	if !ok {
		if lostValue {
			owner.basic.LostValue = true
		}
		r.pushdownsRefused++
		return false
	}

	owner.top = tsquery.Filtered{Inner: owner.top, Expr: rewritten}
	r.pushdownsAdmitted++
	return true
}
