package sparqlparser

import (
	"fmt"
	"strings"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
)

// parseConstraint parses a FILTER constraint: a bracketed expression or a
// bare builtin/function call (EXISTS, NOT EXISTS, BOUND(...), etc.).
func (p *parser) parseConstraint() (algebra.Expression, error) {
	return p.parseExpression()
}

// parseExpression implements the standard SPARQL precedence climb:
// ConditionalOr -> ConditionalAnd -> Relational -> Additive ->
// Multiplicative -> Unary -> Primary.
func (p *parser) parseExpression() (algebra.Expression, error) {
	return p.parseConditionalOr()
}

func (p *parser) parseConditionalOr() (algebra.Expression, error) {
	left, err := p.parseConditionalAnd()
	if err != nil {
		return nil, err
	}
	for p.peekOp("||") {
		p.advance()
		right, err := p.parseConditionalAnd()
		if err != nil {
			return nil, err
		}
		left = algebra.OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseConditionalAnd() (algebra.Expression, error) {
	left, err := p.parseValueLogical()
	if err != nil {
		return nil, err
	}
	for p.peekOp("&&") {
		p.advance()
		right, err := p.parseValueLogical()
		if err != nil {
			return nil, err
		}
		left = algebra.AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseValueLogical() (algebra.Expression, error) {
	left, err := p.parseNumericExpression()
	if err != nil {
		return nil, err
	}
	if p.peekKeywordCI("IN") || (p.peekKeywordCI("NOT") && p.peekAheadKeywordCI(1, "IN")) {
		negate := false
		if p.peekKeywordCI("NOT") {
			p.advance()
			negate = true
		}
		p.advance() // IN
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var alts []algebra.Expression
		for !p.peekPunct(")") {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			alts = append(alts, e)
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		in := algebra.Expression(algebra.InExpr{Left: left, Alternatives: alts})
		if negate {
			in = algebra.NotExpr{Inner: in}
		}
		return in, nil
	}

	ops := map[string]algebra.BinaryOp{
		"=": algebra.OpEqual, "!=": algebra.OpNotEqual,
		"<": algebra.OpLess, "<=": algebra.OpLessOrEqual,
		">": algebra.OpGreater, ">=": algebra.OpGreaterOrEqual,
	}
	if p.cur().kind == tokOp {
		if op, ok := ops[p.cur().text]; ok {
			p.advance()
			right, err := p.parseNumericExpression()
			if err != nil {
				return nil, err
			}
			return algebra.ComparisonExpr{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) peekAheadKeywordCI(offset int, word string) bool {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return false
	}
	t := p.toks[idx]
	return (t.kind == tokKeyword || t.kind == tokPrefixedName) && strings.EqualFold(t.text, word)
}

func (p *parser) parseNumericExpression() (algebra.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peekOp("+") || p.peekOp("-") {
		op := algebra.OpAdd
		if p.cur().text == "-" {
			op = algebra.OpSubtract
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = algebra.ArithmeticExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (algebra.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peekOp("*") || p.peekOp("/") {
		op := algebra.OpMultiply
		if p.cur().text == "/" {
			op = algebra.OpDivide
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = algebra.ArithmeticExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (algebra.Expression, error) {
	switch {
	case p.peekOp("!"):
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return algebra.NotExpr{Inner: inner}, nil
	case p.peekOp("+"):
		p.advance()
		return p.parseUnary()
	case p.peekOp("-"):
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return algebra.UnaryExpr{Op: algebra.OpSubtract, Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (algebra.Expression, error) {
	switch {
	case p.peekPunct("("):
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil

	case p.cur().kind == tokVariable:
		return algebra.VariableExpr{Var: algebra.Variable(p.advance().text)}, nil

	case p.cur().kind == tokNumber:
		return algebra.LiteralExpr{Literal: numberTokenToLiteral(p.advance())}, nil

	case p.cur().kind == tokString:
		return algebra.LiteralExpr{Literal: p.stringTokenToLiteral(p.advance())}, nil

	case p.cur().kind == tokIRI:
		return algebra.NamedNodeExpr{IRI: algebra.NamedNode(p.advance().text)}, nil

	case p.cur().kind == tokPrefixedName:
		iri, err := p.resolvePrefixed(p.advance().text)
		if err != nil {
			return nil, err
		}
		if p.peekPunct("(") {
			return p.parseFunctionCallArgs(iri)
		}
		return algebra.NamedNodeExpr{IRI: iri}, nil

	case p.peekKeywordCI("true") || p.peekKeywordCI("false"):
		v := strings.ToLower(p.advance().text)
		return algebra.LiteralExpr{Literal: algebra.Literal{Value: v, Datatype: xsdBoolean}}, nil

	case p.peekKeywordCI("NOT"):
		p.advance()
		if err := p.expectKeywordCI("EXISTS"); err != nil {
			return nil, err
		}
		pattern, err := p.parseGroupGraphPatternBraced()
		if err != nil {
			return nil, err
		}
		return algebra.NotExpr{Inner: algebra.ExistsExpr{Pattern: pattern}}, nil

	case p.peekKeywordCI("EXISTS"):
		p.advance()
		pattern, err := p.parseGroupGraphPatternBraced()
		if err != nil {
			return nil, err
		}
		return algebra.ExistsExpr{Pattern: pattern}, nil

	case p.peekKeywordCI("BOUND"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		if p.cur().kind != tokVariable {
			return nil, fmt.Errorf("expected variable inside BOUND(...)")
		}
		v := algebra.Variable(p.advance().text)
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return algebra.BoundExpr{Var: v}, nil

	case p.peekKeywordCI("IF"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		then, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		els, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return algebra.IfExpr{Condition: cond, Then: then, Else: els}, nil

	case p.peekKeywordCI("COALESCE"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var args []algebra.Expression
		for !p.peekPunct(")") {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return algebra.CoalesceExpr{Args: args}, nil

	case p.peekKeywordCI("SAMETERM"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		left, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		right, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return algebra.SameTermExpr{Left: left, Right: right}, nil

	case p.cur().kind == tokKeyword:
		name := p.advance().text
		if p.peekPunct("(") {
			return p.parseFunctionCallArgs(algebra.NamedNode(name))
		}
		return nil, fmt.Errorf("unexpected bare identifier %q in expression", name)
	}

	return nil, fmt.Errorf("unexpected token %q while parsing an expression", p.cur().text)
}

func (p *parser) parseFunctionCallArgs(fn algebra.NamedNode) (algebra.Expression, error) {
	p.advance() // '('
	var args []algebra.Expression
	for !p.peekPunct(")") {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.peekPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return algebra.FunctionCallExpr{Function: fn, Args: args}, nil
}
