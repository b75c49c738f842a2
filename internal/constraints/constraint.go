// Package constraints defines the ordered set of variable constraint kinds
// from spec §3/§4.1: ExternalTimeseries, ExternalDataPoint,
// ExternalDataValue, ExternalTimestamp, ExternallyDerived.
package constraints

import "github.com/hybridgraph/hybridgraph/internal/algebra"

// Kind tags a variable with the role it plays in the time-series shape.
type Kind int

const (
	// ExternalTimeseries is bound to an external series handle.
	ExternalTimeseries Kind = iota + 1
	// ExternalDataPoint is bound to a datapoint node.
	ExternalDataPoint
	// ExternalDataValue is bound to the value column.
	ExternalDataValue
	// ExternalTimestamp is bound to the timestamp column.
	ExternalTimestamp
	// ExternallyDerived is bound to an expression over the previous kinds.
	ExternallyDerived
)

func (k Kind) String() string {
	switch k {
	case ExternalTimeseries:
		return "ExternalTimeseries"
	case ExternalDataPoint:
		return "ExternalDataPoint"
	case ExternalDataValue:
		return "ExternalDataValue"
	case ExternalTimestamp:
		return "ExternalTimestamp"
	case ExternallyDerived:
		return "ExternallyDerived"
	default:
		return "Unknown"
	}
}

// IsDynamic reports whether a variable tagged with k can no longer be
// answered purely by the static SPARQL endpoint (spec §4.2 Bgp rule: "A
// triple is dynamic iff its subject or object is tagged with one of
// ExternalDataPoint, ExternalDataValue, ExternalTimestamp").
func (k Kind) IsDynamic() bool {
	return k == ExternalDataPoint || k == ExternalDataValue || k == ExternalTimestamp
}

// Map is variable → constraint kind, the output of the preprocessor
// (spec §4.1).
type Map map[algebra.Variable]Kind

// NewMap creates an empty constraint map.
func NewMap() Map {
	return make(Map)
}

// SetIfAbsent tags v with k only if v has no tag yet, mirroring the
// preprocessor's "unless already tagged" rule for derived tagging.
func (m Map) SetIfAbsent(v algebra.Variable, k Kind) {
	if _, ok := m[v]; !ok {
		m[v] = k
	}
}

// SortedVariables returns m's keys in deterministic (lexicographic) order,
// per spec §5 "Sorted iteration for determinism".
func (m Map) SortedVariables() []algebra.Variable {
	out := make([]algebra.Variable, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
