package tsquery

import "github.com/hybridgraph/hybridgraph/internal/algebra"

// GroupPartition is the result of partitioning a Group node's grouping
// variables into static and dynamic columns (spec §4.3 step 4). It is
// produced by internal/rewriter, which has access to the surrounding
// algebra tree and constraint map; this package only holds the pure
// admissibility test that consumes the partition (step 5).
type GroupPartition struct {
	StaticGroupingVariables  []algebra.Variable
	DynamicGroupingVariables []algebra.Variable
}

// IdentifierTupleCounts carries the cardinalities the admissibility test
// compares: how many distinct values the time-series identifier column
// takes in the materialized static result, and how many distinct tuples
// the static grouping columns take over the same result. Both counts are
// computed by the combiner once the static query has executed, since the
// isomorphism test is inherently a property of actual result data, not of
// the query shape alone.
type IdentifierTupleCounts struct {
	DistinctIdentifierValues int
	DistinctGroupingTuples   int
}

// Admissible reports whether a group-by pushdown for partition is
// structurally and (once counts is non-nil) numerically admissible (spec
// §4.3 step 5): either there are no static grouping variables at all (pure
// time-series grouping), or the static grouping columns are isomorphic to
// the time-series identifier on the materialized static result.
//
// counts may be nil during a purely structural (pre-execution) admissibility
// check; in that case only the "no static grouping variables" shortcut can
// succeed, and any partition with static grouping variables is deferred
// until counts are available.
func Admissible(partition GroupPartition, counts *IdentifierTupleCounts) bool {
	if len(partition.StaticGroupingVariables) == 0 {
		return true
	}
	if counts == nil {
		return false
	}
	return counts.DistinctIdentifierValues == counts.DistinctGroupingTuples
}

// AppendIdentifierToGroupBy appends the identifier variable to a pushed
// down Grouped node's `by` list when the isomorphism test held on static
// grouping columns (spec §4.3 step 5: "the identifier variable is
// appended to the pushed-down `by` list so the time-series store can
// group per series and still preserve the intended static partitioning").
func AppendIdentifierToGroupBy(by []algebra.Variable, identifier algebra.Variable) []algebra.Variable {
	for _, v := range by {
		if v == identifier {
			return by
		}
	}
	out := make([]algebra.Variable, len(by), len(by)+1)
	copy(out, by)
	return append(out, identifier)
}
