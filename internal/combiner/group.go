package combiner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
)

// groupBy evaluates a Group node over inner (spec §4.4 step 4's "if not
// pushed down, evaluate aggregates over the combined frame").
func groupBy(inner *frame, variables []algebra.Variable, aggregates []algebra.GroupAggregate) (*frame, error) {
	groups := make(map[string][]resultstream.Row)
	var order []string
	names := make([]string, len(variables))
	for i, v := range variables {
		names[i] = string(v)
	}

	for _, r := range inner.rows {
		key := rowKey(r, names)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Strings(order)

	cols := make([]resultstream.ColumnDef, 0, len(variables)+len(aggregates))
	for _, v := range variables {
		cols = append(cols, resultstream.ColumnDef{Name: string(v), Kind: resultstream.ColumnLiteral})
	}
	for _, agg := range aggregates {
		cols = append(cols, resultstream.ColumnDef{Name: string(agg.Variable), Kind: resultstream.ColumnLiteral})
	}

	rows := make([]resultstream.Row, 0, len(order))
	for _, key := range order {
		members := groups[key]
		row := resultstream.Row{}
		for _, v := range variables {
			row[string(v)] = members[0][string(v)]
		}
		for _, agg := range aggregates {
			v, err := evalAggregate(agg.Aggregate, members)
			if err != nil {
				return nil, fmt.Errorf("combiner: evaluating aggregate %s: %w", agg.Variable, err)
			}
			row[string(agg.Variable)] = v
		}
		rows = append(rows, row)
	}

	return &frame{schema: &resultstream.ResultSchema{Columns: cols}, rows: rows}, nil
}

func evalAggregate(agg algebra.AggregateExpression, members []resultstream.Row) (interface{}, error) {
	switch a := agg.(type) {
	case algebra.CountAgg:
		if a.Expr == nil {
			return float64(len(members)), nil
		}
		count := 0
		seen := map[string]bool{}
		for _, m := range members {
			v, err := EvalExpression(a.Expr, m)
			if err != nil || v == nil {
				continue
			}
			if a.Distinct {
				k := renderValue(v)
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			count++
		}
		return float64(count), nil

	case algebra.SumAgg:
		return aggregateNumeric(a.Expr, members, a.Distinct, 0, func(acc, v float64) float64 { return acc + v })

	case algebra.AvgAgg:
		sum, err := aggregateNumeric(a.Expr, members, a.Distinct, 0, func(acc, v float64) float64 { return acc + v })
		if err != nil {
			return nil, err
		}
		n := float64(len(members))
		if n == 0 {
			return 0.0, nil
		}
		return sum.(float64) / n, nil

	case algebra.MinAgg:
		var min float64
		first := true
		for _, m := range members {
			v, err := EvalExpression(a.Expr, m)
			if err != nil {
				continue
			}
			f, ok := asFloat(v)
			if !ok {
				continue
			}
			if first || f < min {
				min = f
				first = false
			}
		}
		return min, nil

	case algebra.MaxAgg:
		var max float64
		first := true
		for _, m := range members {
			v, err := EvalExpression(a.Expr, m)
			if err != nil {
				continue
			}
			f, ok := asFloat(v)
			if !ok {
				continue
			}
			if first || f > max {
				max = f
				first = false
			}
		}
		return max, nil

	case algebra.SampleAgg:
		if len(members) == 0 {
			return nil, nil
		}
		return EvalExpression(a.Expr, members[0])

	case algebra.GroupConcatAgg:
		sep := a.Separator
		if sep == "" {
			sep = " "
		}
		var parts []string
		seen := map[string]bool{}
		for _, m := range members {
			v, err := EvalExpression(a.Expr, m)
			if err != nil || v == nil {
				continue
			}
			s := renderValue(v)
			if a.Distinct {
				if seen[s] {
					continue
				}
				seen[s] = true
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, sep), nil

	case algebra.CustomAgg:
		return nil, fmt.Errorf("combiner: custom aggregate functions are not supported")

	default:
		return nil, fmt.Errorf("combiner: unsupported aggregate %T", agg)
	}
}

func aggregateNumeric(expr algebra.Expression, members []resultstream.Row, distinct bool, start float64, combine func(acc, v float64) float64) (interface{}, error) {
	acc := start
	seen := map[string]bool{}
	for _, m := range members {
		v, err := EvalExpression(expr, m)
		if err != nil {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			continue
		}
		if distinct {
			k := renderValue(v)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		acc = combine(acc, f)
	}
	return acc, nil
}
