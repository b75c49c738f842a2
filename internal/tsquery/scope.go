package tsquery

import "github.com/hybridgraph/hybridgraph/internal/algebra"

// Scope names the variable roles a single time-series query (or a
// synchronized group of them) exposes to expression pushdown, matching
// spec §4.3's set {identifier, series, datapoint, value, timestamp,
// functions-of-timestamps}.
type Scope struct {
	Identifier          algebra.Variable
	Series              algebra.Variable
	DataPoint           *algebra.Variable
	Value               *algebra.Variable
	Timestamp           *algebra.Variable
	FunctionsOfTimestamps map[algebra.Variable]bool
}

// ScopeOf derives a Scope from a Basic time-series query's currently
// known variables.
func ScopeOf(b Basic) Scope {
	return Scope{
		Identifier: b.IdentifierVariable,
		Series:     b.TimeseriesVariable,
		DataPoint:  b.DataPointVariable,
		Value:      b.ValueVariable,
		Timestamp:  b.TimestampVariable,
	}
}

// Allows reports whether v is one of the variable roles this scope
// exposes (used for expression-pushdown admissibility, not for the
// ValueConditions gate, which is checked separately).
func (s Scope) Allows(v algebra.Variable) bool {
	if v == s.Identifier || v == s.Series {
		return true
	}
	if s.DataPoint != nil && v == *s.DataPoint {
		return true
	}
	if s.Value != nil && v == *s.Value {
		return true
	}
	if s.Timestamp != nil && v == *s.Timestamp {
		return true
	}
	if s.FunctionsOfTimestamps != nil && s.FunctionsOfTimestamps[v] {
		return true
	}
	return false
}

// IsValue reports whether v is this scope's value variable.
func (s Scope) IsValue(v algebra.Variable) bool {
	return s.Value != nil && v == *s.Value
}
