// Package changedir implements the three-valued change-direction lattice
// from spec §3/§4.2: NoChange < Relaxed (superset of solutions) and
// NoChange < Constrained (subset); Relaxed and Constrained are
// incomparable. Every recursive rewrite function in internal/rewriter and
// internal/tsquery returns a Direction alongside its rewritten node.
package changedir

import "fmt"

// Direction is the three-valued change-direction tag.
type Direction int

const (
	// NoChange means the rewrite is semantically equivalent.
	NoChange Direction = iota
	// Relaxed means the rewrite yields a superset of the intended solutions.
	Relaxed
	// Constrained means the rewrite yields a subset of the intended solutions.
	Constrained
)

func (d Direction) String() string {
	switch d {
	case NoChange:
		return "NoChange"
	case Relaxed:
		return "Relaxed"
	case Constrained:
		return "Constrained"
	default:
		return "Unknown"
	}
}

// ErrIncomparable is returned by Combine when asked to merge Relaxed with
// Constrained: the two are incomparable in the lattice and no single
// direction can soundly describe their combination.
var ErrIncomparable = fmt.Errorf("changedir: Relaxed and Constrained are incomparable")

// Combine merges the change directions of two independently rewritten
// sub-patterns that are joined together (spec §4.2 Join rule):
// NoChange⊕NoChange=NoChange; any mix of NoChange/Relaxed=Relaxed; any mix
// of NoChange/Constrained=Constrained; mixing Relaxed and Constrained fails.
func Combine(a, b Direction) (Direction, error) {
	if a == b {
		return a, nil
	}
	if a == NoChange {
		return b, nil
	}
	if b == NoChange {
		return a, nil
	}
	return 0, ErrIncomparable
}

// Not negates a direction (spec §4.2 expression rule "Not: negates the
// direction").
func Not(d Direction) Direction {
	switch d {
	case Relaxed:
		return Constrained
	case Constrained:
		return Relaxed
	default:
		return NoChange
	}
}

// Opposite is an alias for Not, used where the spec names it explicitly
// (spec §4.2 Minus rule: "Rewrite right with the opposite requested
// direction").
func Opposite(d Direction) Direction {
	return Not(d)
}

// AllowsSuperset reports whether d permits the rewrite to return more
// solutions than the original query (d ∈ {NoChange, Relaxed}).
func (d Direction) AllowsSuperset() bool {
	return d == NoChange || d == Relaxed
}

// AllowsSubset reports whether d permits the rewrite to return fewer
// solutions than the original query (d ∈ {NoChange, Constrained}).
func (d Direction) AllowsSubset() bool {
	return d == NoChange || d == Constrained
}

// Or combines two operand directions under the `Or` expression rule
// (spec §4.2): Relaxed if either side is Relaxed/NoChange; Constrained only
// if both sides are Constrained/NoChange. Both sides NoChange must be
// checked first. NoChange alone satisfies both AllowsSubset and
// AllowsSuperset, so without this short-circuit a fully static Or would be
// misreported as Constrained.
func Or(a, b Direction) (Direction, bool) {
	if a == NoChange && b == NoChange {
		return NoChange, true
	}
	if a.AllowsSubset() && b.AllowsSubset() {
		return Constrained, true
	}
	if a.AllowsSuperset() || b.AllowsSuperset() {
		return Relaxed, true
	}
	return 0, false
}

// And combines two operand directions under the `And` expression rule
// (spec §4.2), dual to Or: Constrained if either side is
// Constrained/NoChange; Relaxed requires both sides to be Relaxed/NoChange.
// As with Or, both sides NoChange must be special-cased ahead of the
// Allows* checks, or a fully static And is misreported as Relaxed.
func And(a, b Direction) (Direction, bool) {
	if a == NoChange && b == NoChange {
		return NoChange, true
	}
	if a.AllowsSuperset() && b.AllowsSuperset() {
		return Relaxed, true
	}
	if a.AllowsSubset() || b.AllowsSubset() {
		return Constrained, true
	}
	return 0, false
}
