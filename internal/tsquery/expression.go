package tsquery

import (
	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/changedir"
)

// TryRewriteExpression walks expr and returns a rewritten expression whose
// variables are all drawn from scope, along with the change direction it
// was rewritten under and whether the rewrite succeeded (spec §4.3
// "Expression pushdown"). lostValue is set when a value-variable reference
// was rejected because settings.ValueConditions is disabled; the caller
// must then keep the filter on the static/combiner side.
func TryRewriteExpression(expr algebra.Expression, dir changedir.Direction, scope Scope, settings Settings) (out algebra.Expression, outDir changedir.Direction, ok bool, lostValue bool) {
	switch e := expr.(type) {
	case algebra.AndExpr:
		left, leftDir, leftOk, leftLost := TryRewriteExpression(e.Left, dir, scope, settings)
		right, rightDir, rightOk, rightLost := TryRewriteExpression(e.Right, dir, scope, settings)
		lostValue = leftLost || rightLost
		switch {
		case leftOk && rightOk:
			combined, combOk := changedir.And(leftDir, rightDir)
			if !combOk {
				return nil, 0, false, lostValue
			}
			return algebra.AndExpr{Left: left, Right: right}, combined, true, lostValue
		case leftOk && dir.AllowsSuperset():
			return left, leftDir, true, lostValue
		case rightOk && dir.AllowsSuperset():
			return right, rightDir, true, lostValue
		default:
			return nil, 0, false, lostValue
		}

	case algebra.OrExpr:
		left, leftDir, leftOk, leftLost := TryRewriteExpression(e.Left, dir, scope, settings)
		right, rightDir, rightOk, rightLost := TryRewriteExpression(e.Right, dir, scope, settings)
		lostValue = leftLost || rightLost
		switch {
		case leftOk && rightOk:
			combined, combOk := changedir.Or(leftDir, rightDir)
			if !combOk {
				return nil, 0, false, lostValue
			}
			return algebra.OrExpr{Left: left, Right: right}, combined, true, lostValue
		case leftOk && dir.AllowsSubset():
			return left, leftDir, true, lostValue
		case rightOk && dir.AllowsSubset():
			return right, rightDir, true, lostValue
		default:
			return nil, 0, false, lostValue
		}

	case algebra.NotExpr:
		inner, innerDir, innerOk, innerLost := TryRewriteExpression(e.Inner, changedir.Not(dir), scope, settings)
		if !innerOk {
			return nil, 0, false, innerLost
		}
		return algebra.NotExpr{Inner: inner}, changedir.Not(innerDir), true, innerLost

	default:
		return tryRewriteLeaf(expr, scope, settings)
	}
}

// tryRewriteLeaf handles every non-boolean-connective expression: the
// rewrite succeeds, with direction NoChange, iff every variable it uses is
// within scope. A reference to the scope's value variable outside this
// check is further gated by settings.ValueConditions.
func tryRewriteLeaf(expr algebra.Expression, scope Scope, settings Settings) (algebra.Expression, changedir.Direction, bool, bool) {
	used := algebra.UsedVariables(expr)
	lostValue := false
	for v := range used {
		if scope.IsValue(v) && !settings.ValueConditions {
			lostValue = true
			return nil, 0, false, lostValue
		}
		if !scope.Allows(v) {
			return nil, 0, false, lostValue
		}
	}
	return expr, changedir.NoChange, true, lostValue
}
