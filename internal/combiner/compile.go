package combiner

import (
	"context"
	"fmt"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// compiledLeaf pairs one Basic time-series query with the wire query the
// combiner sends to the backend and any post-pushdown expression that
// could not be expressed as a tsbackend.ValueCondition and must instead be
// re-applied once the result is joined back into the frame (spec §4.4
// step 4's lost_value re-application).
type compiledLeaf struct {
	basic      *tsquery.Basic
	query      *tsbackend.TimeSeriesQuery
	residual   algebra.Expression
	groupByID  bool
	aggregates []algebra.GroupAggregate
}

// compile flattens q into one compiledLeaf per Basic, binding each Basic's
// identifiers from base (spec §4.4 step 2) and folding Filtered
// conditions into the leaf's pushdown and Grouped aggregates into the
// leaf's group request.
func compile(q tsquery.Query, base *frame) ([]*compiledLeaf, error) {
	switch n := q.(type) {
	case tsquery.Basic:
		basic := n
		basic.IDs = identifierValues(base, string(basic.IdentifierVariable))
		return []*compiledLeaf{{
			basic: &basic,
			query: &tsbackend.TimeSeriesQuery{
				Identifiers:     basic.IDs,
				ValueColumn:     optionalVarName(basic.ValueVariable),
				TimestampColumn: optionalVarName(basic.TimestampVariable),
			},
		}}, nil

	case tsquery.Filtered:
		children, err := compile(n.Inner, base)
		if err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("combiner: Filtered must wrap exactly one time-series leaf, got %d", len(children))
		}
		leaf := children[0]
		if cond, ok := extractValueCondition(n.Expr, leaf.basic); ok {
			leaf.query.Conditions = append(leaf.query.Conditions, cond)
		} else {
			leaf.residual = n.Expr
		}
		return children, nil

	case tsquery.Grouped:
		children, err := compile(n.Inner, base)
		if err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("combiner: Grouped must wrap exactly one time-series leaf, got %d", len(children))
		}
		leaf := children[0]
		for _, v := range n.By {
			if v == leaf.basic.IdentifierVariable {
				leaf.groupByID = true
			}
		}
		leaf.aggregates = n.Aggregates
		leaf.query.GroupByIdentifier = leaf.groupByID
		for _, agg := range n.Aggregates {
			fn, ok := backendAggregateFunction(agg.Aggregate)
			if !ok {
				continue
			}
			leaf.query.Aggregates = append(leaf.query.Aggregates, tsbackend.Aggregate{
				Function:     fn,
				OutputColumn: string(agg.Variable),
			})
		}
		return children, nil

	case tsquery.InnerSynchronized:
		var out []*compiledLeaf
		for _, sub := range n.Queries {
			children, err := compile(sub, base)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("combiner: unsupported time-series query node %T", q)
	}
}

func optionalVarName(v *algebra.Variable) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

// extractValueCondition recognizes `?value op literal` or `literal op
// ?value` comparisons, the only shape tsbackend.ValueCondition can carry.
func extractValueCondition(expr algebra.Expression, basic *tsquery.Basic) (tsbackend.ValueCondition, bool) {
	cmp, ok := expr.(algebra.ComparisonExpr)
	if !ok || basic.ValueVariable == nil {
		return tsbackend.ValueCondition{}, false
	}
	if v, lit, ok := asVarLiteral(cmp.Left, cmp.Right); ok && v == *basic.ValueVariable {
		if f, ok := asFloat(literalValue(lit)); ok {
			return tsbackend.ValueCondition{Operator: tsbackend.ValueOperator(cmp.Op), Operand: f}, true
		}
	}
	if v, lit, ok := asVarLiteral(cmp.Right, cmp.Left); ok && v == *basic.ValueVariable {
		if f, ok := asFloat(literalValue(lit)); ok {
			return tsbackend.ValueCondition{Operator: tsbackend.ValueOperator(flipOp(cmp.Op)), Operand: f}, true
		}
	}
	return tsbackend.ValueCondition{}, false
}

func asVarLiteral(a, b algebra.Expression) (algebra.Variable, algebra.Literal, bool) {
	ve, ok := a.(algebra.VariableExpr)
	if !ok {
		return "", algebra.Literal{}, false
	}
	le, ok := b.(algebra.LiteralExpr)
	if !ok {
		return "", algebra.Literal{}, false
	}
	return ve.Var, le.Literal, true
}

func flipOp(op algebra.BinaryOp) algebra.BinaryOp {
	switch op {
	case algebra.OpLess:
		return algebra.OpGreater
	case algebra.OpLessOrEqual:
		return algebra.OpGreaterOrEqual
	case algebra.OpGreater:
		return algebra.OpLess
	case algebra.OpGreaterOrEqual:
		return algebra.OpLessOrEqual
	default:
		return op
	}
}

func backendAggregateFunction(agg algebra.AggregateExpression) (tsbackend.AggregateFunction, bool) {
	switch agg.(type) {
	case algebra.CountAgg:
		return tsbackend.AggCount, true
	case algebra.SumAgg:
		return tsbackend.AggSum, true
	case algebra.AvgAgg:
		return tsbackend.AggAvg, true
	case algebra.MinAgg:
		return tsbackend.AggMin, true
	case algebra.MaxAgg:
		return tsbackend.AggMax, true
	case algebra.SampleAgg:
		return tsbackend.AggSample, true
	default:
		return "", false
	}
}

// executeLeaf runs a compiled leaf against backend and renames the
// backend's generic "identifier" column to the leaf's actual identifier
// variable name so the result aligns with the static frame on a shared
// column for the join in step 4, then re-applies any residual filter the
// pushdown could not express.
func executeLeaf(ctx context.Context, backend tsbackend.Backend, leaf *compiledLeaf) (*frame, error) {
	stream, err := backend.Execute(ctx, leaf.query)
	if err != nil {
		return nil, err
	}
	rows, err := resultstream.CollectStream(ctx, stream)
	if err != nil {
		return nil, err
	}
	_ = stream.Close()

	idName := string(leaf.basic.IdentifierVariable)
	cols := []resultstream.ColumnDef{{Name: idName, Kind: resultstream.ColumnLiteral}}
	for _, c := range stream.Schema().Columns {
		if c.Name == "identifier" {
			continue
		}
		cols = append(cols, c)
	}

	out := make([]resultstream.Row, 0, len(rows))
	for _, r := range rows {
		row := resultstream.Row{}
		for k, v := range r {
			if k == "identifier" {
				row[idName] = v
				continue
			}
			row[k] = v
		}
		out = append(out, row)
	}

	f := &frame{schema: &resultstream.ResultSchema{Columns: cols}, rows: out}
	if leaf.residual != nil {
		var filtered []resultstream.Row
		for _, r := range f.rows {
			ok, err := EvalBool(leaf.residual, r)
			if err == nil && ok {
				filtered = append(filtered, r)
			}
		}
		f.rows = filtered
	}
	return f, nil
}
