// Package preprocessor implements spec §4.1: blank-node elimination and
// variable constraint tagging, grounded on original_source's
// hybrid/src/preprocessing.rs and on the teacher's single-owner,
// counter-based planner state shape (internal/planner/planner.go).
package preprocessor

import (
	"fmt"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/constraints"
	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
)

// Preprocessor owns the counter used to mint fresh blank-node replacement
// variables and the running constraint map. Per spec §9 "Shared static
// state is confined to a single owning planner value", a Preprocessor is
// used once per query and discarded.
type Preprocessor struct {
	counter           int
	blankNodeRename   map[algebra.BlankNode]algebra.Variable
	hasConstraint     constraints.Map
	predicates        config.PredicateConfig
}

// New creates a Preprocessor configured with the engine's predicate IRIs.
func New(predicates config.PredicateConfig) *Preprocessor {
	return &Preprocessor{
		blankNodeRename: make(map[algebra.BlankNode]algebra.Variable),
		hasConstraint:   constraints.NewMap(),
		predicates:      predicates,
	}
}

// Preprocess runs the full algorithm over a Select query (spec §4.1).
// Fails with ErrOnlySelectSupported if given anything else — callers must
// construct query as a Select before calling this, which this signature
// already enforces; the error exists for parity with the spec's contract
// at the parser boundary (see internal/dsltranslator and pkg/api callers).
func (p *Preprocessor) Preprocess(query *algebra.Select) (*algebra.Select, constraints.Map, error) {
	if query == nil {
		return nil, nil, internalerrors.NewOnlySelectSupported("nil")
	}
	newPattern := p.preprocessPattern(query.Pattern)
	out := &algebra.Select{
		Pattern:   newPattern,
		Variables: query.Variables,
	}
	return out, p.hasConstraint, nil
}

func (p *Preprocessor) freshBlankReplacement(bn algebra.BlankNode) algebra.Variable {
	if v, ok := p.blankNodeRename[bn]; ok {
		return v
	}
	v := algebra.MustVariable(fmt.Sprintf("blank_replacement_%d", p.counter))
	p.counter++
	p.blankNodeRename[bn] = v
	return v
}

func (p *Preprocessor) preprocessTerm(t algebra.TermPattern) algebra.TermPattern {
	if bn, ok := t.(algebra.BlankNodeTerm); ok {
		return algebra.VariableTerm{Var: p.freshBlankReplacement(bn.Node)}
	}
	return t
}

func (p *Preprocessor) preprocessTriple(tp algebra.TriplePattern) algebra.TriplePattern {
	out := algebra.TriplePattern{
		Subject:   p.preprocessTerm(tp.Subject),
		Predicate: tp.Predicate,
		Object:    p.preprocessTerm(tp.Object),
	}
	p.tagFromPredicate(out)
	return out
}

// tagFromPredicate implements spec §4.1 step 2: constraint tagging from
// predicates. The predicate IRIs are configured constants, not hard-wired
// SPARQL vocabulary.
func (p *Preprocessor) tagFromPredicate(tp algebra.TriplePattern) {
	iri, ok := tp.PredicateIRI()
	if !ok {
		return
	}
	subjVar, subjIsVar := algebra.VariableOf(tp.Subject)
	objVar, objIsVar := algebra.VariableOf(tp.Object)

	switch string(iri) {
	case p.predicates.HasTimeseries:
		if objIsVar {
			p.hasConstraint[objVar] = constraints.ExternalTimeseries
		}
	case p.predicates.HasDataPoint:
		if subjIsVar {
			p.hasConstraint[subjVar] = constraints.ExternalTimeseries
		}
		if objIsVar {
			p.hasConstraint[objVar] = constraints.ExternalDataPoint
		}
	case p.predicates.HasValue:
		if subjIsVar {
			p.hasConstraint[subjVar] = constraints.ExternalDataPoint
		}
		if objIsVar {
			p.hasConstraint[objVar] = constraints.ExternalDataValue
		}
	case p.predicates.HasTimestamp:
		if subjIsVar {
			p.hasConstraint[subjVar] = constraints.ExternalDataPoint
		}
		if objIsVar {
			p.hasConstraint[objVar] = constraints.ExternalTimestamp
		}
	}
}

// derivedTagFromExpression implements spec §4.1 step 3: if expr
// transitively references a variable with kind in
// {ExternalDataValue, ExternalTimestamp, ExternallyDerived}, tag variable
// as ExternallyDerived unless it is already tagged.
func (p *Preprocessor) derivedTagFromExpression(variable algebra.Variable, expr algebra.Expression) {
	used := algebra.UsedVariables(expr)
	for v := range used {
		if k, ok := p.hasConstraint[v]; ok {
			if k == constraints.ExternalDataValue || k == constraints.ExternalTimestamp || k == constraints.ExternallyDerived {
				p.hasConstraint.SetIfAbsent(variable, constraints.ExternallyDerived)
			}
		}
	}
}

func (p *Preprocessor) derivedTagFromAggregate(variable algebra.Variable, agg algebra.AggregateExpression) {
	used := algebra.UsedVariablesInAggregate(agg)
	for v := range used {
		if k, ok := p.hasConstraint[v]; ok {
			if k == constraints.ExternalDataValue || k == constraints.ExternalTimestamp || k == constraints.ExternallyDerived {
				p.hasConstraint.SetIfAbsent(variable, constraints.ExternallyDerived)
			}
		}
	}
}

func (p *Preprocessor) preprocessPattern(gp algebra.GraphPattern) algebra.GraphPattern {
	switch n := gp.(type) {
	case algebra.Bgp:
		patterns := make([]algebra.TriplePattern, len(n.Patterns))
		for i, tp := range n.Patterns {
			patterns[i] = p.preprocessTriple(tp)
		}
		return algebra.Bgp{Patterns: patterns}

	case algebra.Path:
		return algebra.Path{
			Subject: p.preprocessTerm(n.Subject),
			Element: n.Element,
			Object:  p.preprocessTerm(n.Object),
		}

	case algebra.Join:
		return algebra.Join{
			Left:  p.preprocessPattern(n.Left),
			Right: p.preprocessPattern(n.Right),
		}

	case algebra.LeftJoin:
		left := p.preprocessPattern(n.Left)
		right := p.preprocessPattern(n.Right)
		var expr algebra.Expression
		if n.Expression != nil {
			expr = p.preprocessExpression(n.Expression)
		}
		return algebra.LeftJoin{Left: left, Right: right, Expression: expr}

	case algebra.Filter:
		inner := p.preprocessPattern(n.Inner)
		return algebra.Filter{Inner: inner, Expr: p.preprocessExpression(n.Expr)}

	case algebra.Union:
		return algebra.Union{
			Left:  p.preprocessPattern(n.Left),
			Right: p.preprocessPattern(n.Right),
		}

	case algebra.Graph:
		return algebra.Graph{Name: n.Name, Inner: p.preprocessPattern(n.Inner)}

	case algebra.Extend:
		inner := p.preprocessPattern(n.Inner)
		p.derivedTagFromExpression(n.Variable, n.Expression)
		return algebra.Extend{
			Inner:      inner,
			Variable:   n.Variable,
			Expression: p.preprocessExpression(n.Expression),
		}

	case algebra.Minus:
		return algebra.Minus{
			Left:  p.preprocessPattern(n.Left),
			Right: p.preprocessPattern(n.Right),
		}

	case algebra.Values:
		return n

	case algebra.OrderBy:
		inner := p.preprocessPattern(n.Inner)
		exprs := make([]algebra.OrderExpression, len(n.Expression))
		for i, oe := range n.Expression {
			exprs[i] = algebra.OrderExpression{
				Expr:       p.preprocessExpression(oe.Expr),
				Descending: oe.Descending,
			}
		}
		return algebra.OrderBy{Inner: inner, Expression: exprs}

	case algebra.Project:
		return algebra.Project{Inner: p.preprocessPattern(n.Inner), Variables: n.Variables}

	case algebra.Distinct:
		return algebra.Distinct{Inner: p.preprocessPattern(n.Inner)}

	case algebra.Reduced:
		return algebra.Reduced{Inner: p.preprocessPattern(n.Inner)}

	case algebra.Slice:
		return algebra.Slice{Inner: p.preprocessPattern(n.Inner), Start: n.Start, Length: n.Length}

	case algebra.Group:
		inner := p.preprocessPattern(n.Inner)
		for _, agg := range n.Aggregates {
			p.derivedTagFromAggregate(agg.Variable, agg.Aggregate)
		}
		return algebra.Group{Inner: inner, Variables: n.Variables, Aggregates: n.Aggregates}

	case algebra.Service:
		return algebra.Service{Endpoint: n.Endpoint, Inner: p.preprocessPattern(n.Inner), Silent: n.Silent}

	default:
		return gp
	}
}

// preprocessExpression recursively preprocesses expressions so that inner
// graph patterns (e.g. Exists) also participate (spec §4.1 step 4).
func (p *Preprocessor) preprocessExpression(expr algebra.Expression) algebra.Expression {
	switch e := expr.(type) {
	case algebra.AndExpr:
		return algebra.AndExpr{Left: p.preprocessExpression(e.Left), Right: p.preprocessExpression(e.Right)}
	case algebra.OrExpr:
		return algebra.OrExpr{Left: p.preprocessExpression(e.Left), Right: p.preprocessExpression(e.Right)}
	case algebra.NotExpr:
		return algebra.NotExpr{Inner: p.preprocessExpression(e.Inner)}
	case algebra.UnaryExpr:
		return algebra.UnaryExpr{Op: e.Op, Inner: p.preprocessExpression(e.Inner)}
	case algebra.ComparisonExpr:
		return algebra.ComparisonExpr{Op: e.Op, Left: p.preprocessExpression(e.Left), Right: p.preprocessExpression(e.Right)}
	case algebra.ArithmeticExpr:
		return algebra.ArithmeticExpr{Op: e.Op, Left: p.preprocessExpression(e.Left), Right: p.preprocessExpression(e.Right)}
	case algebra.InExpr:
		alts := make([]algebra.Expression, len(e.Alternatives))
		for i, a := range e.Alternatives {
			alts[i] = p.preprocessExpression(a)
		}
		return algebra.InExpr{Left: p.preprocessExpression(e.Left), Alternatives: alts}
	case algebra.IfExpr:
		return algebra.IfExpr{
			Condition: p.preprocessExpression(e.Condition),
			Then:      p.preprocessExpression(e.Then),
			Else:      p.preprocessExpression(e.Else),
		}
	case algebra.CoalesceExpr:
		args := make([]algebra.Expression, len(e.Args))
		for i, a := range e.Args {
			args[i] = p.preprocessExpression(a)
		}
		return algebra.CoalesceExpr{Args: args}
	case algebra.ExistsExpr:
		return algebra.ExistsExpr{Pattern: p.preprocessPattern(e.Pattern)}
	case algebra.FunctionCallExpr:
		args := make([]algebra.Expression, len(e.Args))
		for i, a := range e.Args {
			args[i] = p.preprocessExpression(a)
		}
		return algebra.FunctionCallExpr{Function: e.Function, Args: args}
	case algebra.SameTermExpr:
		return algebra.SameTermExpr{Left: p.preprocessExpression(e.Left), Right: p.preprocessExpression(e.Right)}
	default:
		return expr
	}
}
