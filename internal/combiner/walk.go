package combiner

import (
	"fmt"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
)

// evaluate re-traverses the original (post-preprocessing, pre-rewrite)
// algebra tree over base — the frame already produced by joining the
// static SPARQL result with every time-series result (spec §4.4 step 4).
// Leaf patterns (Bgp/Path/Values/Graph/Service) are pass-throughs: their
// contribution to base was already realized either by the static SPARQL
// endpoint or by the time-series join, so evaluate only has structural
// combinators left to apply.
func evaluate(pattern algebra.GraphPattern, base *frame) (*frame, error) {
	switch p := pattern.(type) {
	case algebra.Bgp, algebra.Path, algebra.Values, algebra.Service:
		return base, nil

	case algebra.Graph:
		return evaluate(p.Inner, base)

	case algebra.Join:
		left, err := evaluate(p.Left, base)
		if err != nil {
			return nil, err
		}
		right, err := evaluate(p.Right, base)
		if err != nil {
			return nil, err
		}
		return innerJoin(left, right), nil

	case algebra.LeftJoin:
		left, err := evaluate(p.Left, base)
		if err != nil {
			return nil, err
		}
		right, err := evaluate(p.Right, base)
		if err != nil {
			return nil, err
		}
		return leftJoin(left, right, p.Expression), nil

	case algebra.Union:
		left, err := evaluate(p.Left, base)
		if err != nil {
			return nil, err
		}
		right, err := evaluate(p.Right, base)
		if err != nil {
			return nil, err
		}
		return union(left, right), nil

	case algebra.Minus:
		left, err := evaluate(p.Left, base)
		if err != nil {
			return nil, err
		}
		right, err := evaluate(p.Right, base)
		if err != nil {
			return nil, err
		}
		return minus(left, right), nil

	case algebra.Filter:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		var rows []resultstream.Row
		for _, r := range inner.rows {
			ok, err := EvalBool(p.Expr, r)
			if err == nil && ok {
				rows = append(rows, r)
			}
		}
		return &frame{schema: inner.schema, rows: rows}, nil

	case algebra.Extend:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		out := inner.withColumn(resultstream.ColumnDef{Name: string(p.Variable), Kind: resultstream.ColumnLiteral})
		rows := make([]resultstream.Row, len(out.rows))
		for i, r := range out.rows {
			row := resultstream.Row{}
			for k, v := range r {
				row[k] = v
			}
			v, err := EvalExpression(p.Expression, r)
			if err != nil {
				return nil, fmt.Errorf("combiner: evaluating Extend(%s): %w", p.Variable, err)
			}
			row[string(p.Variable)] = v
			rows[i] = row
		}
		return &frame{schema: out.schema, rows: rows}, nil

	case algebra.Group:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		return groupBy(inner, p.Variables, p.Aggregates)

	case algebra.OrderBy:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		return orderBy(inner, p.Expression), nil

	case algebra.Project:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		return project(inner, p.Variables), nil

	case algebra.Distinct:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		return distinct(inner), nil

	case algebra.Reduced:
		return evaluate(p.Inner, base)

	case algebra.Slice:
		inner, err := evaluate(p.Inner, base)
		if err != nil {
			return nil, err
		}
		return slice(inner, p.Start, p.Length), nil

	default:
		return nil, fmt.Errorf("combiner: unsupported pattern node %T", pattern)
	}
}

// sharedColumns returns the column names both frames carry, the join key
// for innerJoin/leftJoin/union/minus's mapping-compatibility test.
func sharedColumns(a, b *frame) []string {
	bset := make(map[string]bool)
	for _, c := range b.schema.Columns {
		bset[c.Name] = true
	}
	var shared []string
	for _, c := range a.schema.Columns {
		if bset[c.Name] {
			shared = append(shared, c.Name)
		}
	}
	return shared
}

func compatible(a, b resultstream.Row, shared []string) bool {
	for _, c := range shared {
		av, bv := a[c], b[c]
		if av == nil || bv == nil {
			continue
		}
		if renderValue(av) != renderValue(bv) {
			return false
		}
	}
	return true
}

func mergeRows(a, b resultstream.Row) resultstream.Row {
	out := resultstream.Row{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if out[k] == nil {
			out[k] = v
		}
	}
	return out
}

// innerJoin mirrors internal/federation/join.go's hash-join compatibility
// test (shared variables must agree, unbound is wildcard) without its
// build/probe-side selection heuristics, since combiner frames are
// expected to be small once bounded by time-series identifiers.
func innerJoin(left, right *frame) *frame {
	shared := sharedColumns(left, right)
	schema := resultstream.MergeSchemas(left.schema, onlyNewColumns(right.schema, left.schema))
	var rows []resultstream.Row
	for _, l := range left.rows {
		for _, r := range right.rows {
			if compatible(l, r, shared) {
				rows = append(rows, mergeRows(l, r))
			}
		}
	}
	return &frame{schema: schema, rows: rows}
}

// leftJoin mirrors the teacher's hashJoinStream.mergeRowsWithNulls:
// unmatched left rows are emitted once, null-padded over right's columns.
func leftJoin(left, right *frame, filter algebra.Expression) *frame {
	shared := sharedColumns(left, right)
	schema := resultstream.MergeSchemas(left.schema, onlyNewColumns(right.schema, left.schema))
	var rows []resultstream.Row
	for _, l := range left.rows {
		matched := false
		for _, r := range right.rows {
			if !compatible(l, r, shared) {
				continue
			}
			merged := mergeRows(l, r)
			if filter != nil {
				ok, err := EvalBool(filter, merged)
				if err != nil || !ok {
					continue
				}
			}
			rows = append(rows, merged)
			matched = true
		}
		if !matched {
			padded := resultstream.Row{}
			for k, v := range l {
				padded[k] = v
			}
			for _, c := range right.schema.Columns {
				if _, ok := padded[c.Name]; !ok {
					padded[c.Name] = nil
				}
			}
			rows = append(rows, padded)
		}
	}
	return &frame{schema: schema, rows: rows}
}

func union(left, right *frame) *frame {
	schema := resultstream.MergeSchemas(left.schema, onlyNewColumns(right.schema, left.schema))
	rows := append(append([]resultstream.Row{}, left.rows...), right.rows...)
	return &frame{schema: schema, rows: rows}
}

// minus mirrors SPARQL MINUS: left rows with no compatible, non-disjoint
// mapping in right are kept.
func minus(left, right *frame) *frame {
	shared := sharedColumns(left, right)
	var rows []resultstream.Row
	for _, l := range left.rows {
		excluded := false
		if len(shared) > 0 {
			for _, r := range right.rows {
				if compatible(l, r, shared) {
					excluded = true
					break
				}
			}
		}
		if !excluded {
			rows = append(rows, l)
		}
	}
	return &frame{schema: left.schema, rows: rows}
}

func onlyNewColumns(candidate, existing *resultstream.ResultSchema) *resultstream.ResultSchema {
	have := make(map[string]bool)
	for _, c := range existing.Columns {
		have[c.Name] = true
	}
	var cols []resultstream.ColumnDef
	for _, c := range candidate.Columns {
		if !have[c.Name] {
			cols = append(cols, c)
		}
	}
	return &resultstream.ResultSchema{Columns: cols}
}
