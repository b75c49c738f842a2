package rewriter

import (
	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
)

// rewriteJoin implements spec §4.2's Join rule.
func (r *Rewriter) rewriteJoin(n algebra.Join, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	left, leftDir, leftOk := r.rewritePattern(n.Left, dir, ctx.Push(algebra.JoinLeft))
	right, rightDir, rightOk := r.rewritePattern(n.Right, dir, ctx.Push(algebra.JoinRight))

	switch {
	case leftOk && rightOk:
		combined, err := changedir.Combine(leftDir, rightDir)
		if err != nil {
			return nil, 0, false
		}
		return algebra.Join{Left: left, Right: right}, combined, true
	case leftOk && leftDir.AllowsSuperset():
		return left, changedir.Relaxed, true
	case rightOk && rightDir.AllowsSuperset():
		return right, changedir.Relaxed, true
	default:
		return nil, 0, false
	}
}

// rewriteLeftJoin implements spec §4.2's LeftJoin rule: the right
// sub-pattern is rewritten first so its time-series queries are registered,
// then the optional filter expression is pushed into time-series queries,
// and only then is the left sub-pattern rewritten; an expression that
// cannot be pushed or rewritten keeps its static variables in the static
// side's additional projections.
func (r *Rewriter) rewriteLeftJoin(n algebra.LeftJoin, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	right, rightDir, rightOk := r.rewritePattern(n.Right, dir, ctx.Push(algebra.LeftJoinRight))

	var exprPushed bool
	if n.Expression != nil {
		exprPushed = r.tryPushdownExpressionIntoTsQueries(n.Expression)
	}

	left, leftDir, leftOk := r.rewritePattern(n.Left, dir, ctx.Push(algebra.LeftJoinLeft))
	if !leftOk {
		return nil, 0, false
	}

	var exprNode algebra.Expression
	var exprDir changedir.Direction
	var exprOk bool
	if n.Expression != nil && !exprPushed {
		exprNode, exprDir, exprOk = r.rewriteStaticExpr(n.Expression, dir, ctx.Push(algebra.LeftJoinExpression))
		if !exprOk {
			r.addStaticVarsToProjection(n.Expression)
		}
	}

	switch {
	case rightOk:
		dirs := []changedir.Direction{leftDir, rightDir}
		if exprOk {
			dirs = append(dirs, exprDir)
		}
		combined := dirs[0]
		for _, d := range dirs[1:] {
			var err error
			combined, err = changedir.Combine(combined, d)
			if err != nil {
				return nil, 0, false
			}
		}
		if n.Expression != nil && !exprOk {
			// Dropping the filter while keeping the outer pattern relaxes
			// the result (spec §4.2 LeftJoin rule).
			if combined == changedir.Constrained {
				combined = changedir.Relaxed
			} else if combined == changedir.NoChange {
				combined = changedir.Relaxed
			}
		}
		var expr algebra.Expression
		if exprOk {
			expr = exprNode
		}
		return algebra.LeftJoin{Left: left, Right: right, Expression: expr}, combined, true

	case leftDir.AllowsSuperset():
		// Missing right side degenerates into Filter(left, expr) or just left.
		if exprOk {
			combined, err := changedir.Combine(leftDir, exprDir)
			if err != nil {
				combined = changedir.Relaxed
			}
			return algebra.Filter{Expr: exprNode, Inner: left}, combined, true
		}
		return left, changedir.Relaxed, true

	default:
		return nil, 0, false
	}
}

// rewriteUnion implements spec §4.2's Union rule: direction-dependent
// degeneration when one side is missing.
func (r *Rewriter) rewriteUnion(n algebra.Union, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	left, leftDir, leftOk := r.rewritePattern(n.Left, dir, ctx.Push(algebra.UnionLeft))
	right, rightDir, rightOk := r.rewritePattern(n.Right, dir, ctx.Push(algebra.UnionRight))

	switch {
	case leftOk && rightOk:
		combined, err := changedir.Combine(leftDir, rightDir)
		if err != nil {
			return nil, 0, false
		}
		return algebra.Union{Left: left, Right: right}, combined, true
	case dir == changedir.Relaxed && leftOk:
		return left, changedir.Relaxed, true
	case dir == changedir.Relaxed && rightOk:
		return right, changedir.Relaxed, true
	default:
		return nil, 0, false
	}
}

// rewriteMinus implements spec §4.2's Minus rule: the right side is
// rewritten under the opposite requested direction (A MINUS B is
// anti-monotone in B), and per Open Question (iii) the right side's
// external-id scope is not propagated up into the outer scope.
func (r *Rewriter) rewriteMinus(n algebra.Minus, dir changedir.Direction, ctx algebra.Context) (algebra.GraphPattern, changedir.Direction, bool) {
	left, leftDir, leftOk := r.rewritePattern(n.Left, dir, ctx.Push(algebra.MinusLeft))
	if !leftOk {
		return nil, 0, false
	}

	// Snapshot tracked-query count so the right side's registrations (which
	// must not leak into the outer scope) can be rolled back.
	before := len(r.tracked)
	right, rightDir, rightOk := r.rewritePattern(n.Right, changedir.Opposite(dir), ctx.Push(algebra.MinusRight))
	r.discardTrackedSince(before)

	if !rightOk {
		if leftDir.AllowsSuperset() {
			return left, changedir.Relaxed, true
		}
		return nil, 0, false
	}

	combined, err := changedir.Combine(leftDir, changedir.Opposite(rightDir))
	if err != nil {
		return nil, 0, false
	}
	return algebra.Minus{Left: left, Right: right}, combined, true
}

// discardTrackedSince removes tracked queries registered after index from,
// and their registry entries, used by Minus to keep its right side's
// external-id scope from leaking into the outer query (Open Question iii).
func (r *Rewriter) discardTrackedSince(from int) {
	if from >= len(r.tracked) {
		return
	}
	discarded := r.tracked[from:]
	r.tracked = r.tracked[:from]
	for _, t := range discarded {
		delete(r.tsByTimeseriesVar, t.basic.TimeseriesVariable)
		if t.basic.DataPointVariable != nil {
			delete(r.tsByDataPointVar, *t.basic.DataPointVariable)
		}
	}
}
