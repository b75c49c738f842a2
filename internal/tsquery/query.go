// Package tsquery implements the per-identifier time-series query tree
// and its pushdown rules from spec §4.3, grounded on
// _examples/original_source/hybrid/src/timeseries_query/expression_rewrites.rs
// and hybrid/src/groupby_pushdown.rs, using the teacher's closed
// marker-interface sum-type idiom from internal/federation/pushdown.go.
package tsquery

import "github.com/hybridgraph/hybridgraph/internal/algebra"

// Query is the closed time-series query tree type.
type Query interface {
	tsQuery()
}

// Basic is a single time-series query against one identifier. It is the
// leaf of every query tree; every other node wraps a Basic (directly or
// through InnerSynchronized). ValueVariable and TimestampVariable start
// nil and become populated once a matching dynamic triple is processed
// during Bgp rewriting (spec §4.3 "Time-series query construction
// invariants").
type Basic struct {
	IdentifierVariable algebra.Variable
	TimeseriesVariable algebra.Variable
	DataPointVariable  *algebra.Variable
	ValueVariable      *algebra.Variable
	TimestampVariable  *algebra.Variable
	IDs                []string
	// LostValue is set when a filter referencing the value variable could
	// not be pushed down because ValueConditions pushdown is disabled; the
	// combiner must re-apply the filter on the materialized frame.
	LostValue bool
}

func (Basic) tsQuery() {}

// IdentifierOf returns the identifier variable of a query tree's leaf,
// descending through Filtered/Grouped wrappers and the first branch of an
// InnerSynchronized join. Used by the combiner to know which static result
// column to read ids from for a given tree.
func IdentifierOf(q Query) (algebra.Variable, bool) {
	switch n := q.(type) {
	case Basic:
		return n.IdentifierVariable, true
	case Filtered:
		return IdentifierOf(n.Inner)
	case Grouped:
		return IdentifierOf(n.Inner)
	case InnerSynchronized:
		if len(n.Queries) == 0 {
			return "", false
		}
		return IdentifierOf(n.Queries[0])
	default:
		return "", false
	}
}

// Filtered wraps a query with a pushed-down boolean expression evaluated
// by the time-series backend itself.
type Filtered struct {
	Inner Query
	Expr  algebra.Expression
}

func (Filtered) tsQuery() {}

// InnerSynchronized joins several Basic queries that share a common
// timestamp axis (e.g. two value columns read off the same identifier,
// or values from distinct identifiers synchronized on time), matching
// multiple dynamic triples bound to the same data point / timestamp.
type InnerSynchronized struct {
	Queries []Query
}

func (InnerSynchronized) tsQuery() {}

// LeftSynchronized is reserved for an outer-join synchronization over two
// time axes. No rewrite rule in internal/rewriter currently constructs it;
// it exists so the closed type's consumers can exhaustively switch over
// every variant without special-casing an unimplemented one later.
type LeftSynchronized struct {
	Left, Right Query
}

func (LeftSynchronized) tsQuery() {}

// Grouped wraps a query with an admissible pushed-down aggregation,
// produced by the group-by pushdown pass (spec §4.3).
type Grouped struct {
	Inner      Query
	By         []algebra.Variable
	Aggregates []algebra.GroupAggregate
}

func (Grouped) tsQuery() {}

// Settings gates which pushdowns the rewriter is allowed to perform,
// mirroring internal/config.PushdownConfig.
type Settings struct {
	GroupBy         bool
	ValueConditions bool
}
