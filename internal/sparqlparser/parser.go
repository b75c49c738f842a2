package sparqlparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
)

const rdfTypeIRI = algebra.NamedNode("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
const xsdInteger = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#integer")
const xsdDecimal = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#decimal")
const xsdBoolean = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#boolean")
const xsdString = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#string")

// Parser parses SPARQL 1.1 SELECT query text into the algebra fragment
// spec §3 supports. Construct with NewParser and call Parse once per
// query text, mirroring the teacher's one-shot internal/sql.Parser.
type Parser struct{}

// NewParser creates a SPARQL Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses sparql into an algebra.Select. Returns ErrMalformedSPARQL on
// any lexical or syntactic failure, or if the query is not a SELECT form
// (per spec §4.1, only SELECT is supported at all).
func (pp *Parser) Parse(sparql string) (*algebra.Select, error) {
	lx := newLexer(sparql)
	toks, err := lx.tokenize()
	if err != nil {
		return nil, internalerrors.NewMalformedSPARQL(sparql, err)
	}
	ps := &parser{toks: toks, prefixes: map[string]string{}}
	sel, err := ps.parseQuery()
	if err != nil {
		return nil, internalerrors.NewMalformedSPARQL(sparql, err)
	}
	return sel, nil
}

type pathStep struct {
	iri     algebra.NamedNode
	inverse bool
	mult    algebra.PathMultiplicity
}

type verb struct {
	variable *algebra.Variable
	steps    []pathStep
}

type selectItem struct {
	variable algebra.Variable
	expr     algebra.Expression // non-nil for a computed (expr AS ?v) projection
}

type parser struct {
	toks       []token
	pos        int
	prefixes   map[string]string
	blankNodes int
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) peekPunct(text string) bool {
	t := p.cur()
	return t.kind == tokPunct && t.text == text
}

func (p *parser) peekOp(text string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == text
}

func (p *parser) peekKeywordCI(word string) bool {
	t := p.cur()
	return (t.kind == tokKeyword || t.kind == tokPrefixedName) && strings.EqualFold(t.text, word)
}

func (p *parser) expectPunct(text string) error {
	if !p.peekPunct(text) {
		return fmt.Errorf("expected %q, got %q at token %d", text, p.cur().text, p.pos)
	}
	p.advance()
	return nil
}

func (p *parser) expectKeywordCI(word string) error {
	if !p.peekKeywordCI(word) {
		return fmt.Errorf("expected keyword %q, got %q", word, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) freshBlankNode() algebra.TermPattern {
	p.blankNodes++
	return algebra.BlankNodeTerm{Node: algebra.BlankNode(fmt.Sprintf("sparqlparser_%d", p.blankNodes))}
}

// parseQuery parses Prologue SelectQuery.
func (p *parser) parseQuery() (*algebra.Select, error) {
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	if !p.peekKeywordCI("SELECT") {
		return nil, fmt.Errorf("only SELECT queries are supported, found %q", p.cur().text)
	}
	p.advance()

	distinct, reduced := false, false
	switch {
	case p.peekKeywordCI("DISTINCT"):
		p.advance()
		distinct = true
	case p.peekKeywordCI("REDUCED"):
		p.advance()
		reduced = true
	}

	star := false
	var items []selectItem
	if p.peekOp("*") {
		p.advance()
		star = true
	} else {
		for p.cur().kind == tokVariable || p.peekPunct("(") {
			if p.peekPunct("(") {
				p.advance()
				expr, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if err := p.expectKeywordCI("AS"); err != nil {
					return nil, err
				}
				if p.cur().kind != tokVariable {
					return nil, fmt.Errorf("expected variable after AS")
				}
				v := algebra.Variable(p.advance().text)
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				items = append(items, selectItem{variable: v, expr: expr})
			} else {
				v := algebra.Variable(p.advance().text)
				items = append(items, selectItem{variable: v})
			}
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("expected a projected variable, '(', or '*' after SELECT")
		}
	}

	if p.peekKeywordCI("WHERE") {
		p.advance()
	}
	if !p.peekPunct("{") {
		return nil, fmt.Errorf("expected '{' to start the WHERE clause, got %q", p.cur().text)
	}
	pattern, err := p.parseGroupGraphPatternBraced()
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if it.expr != nil {
			pattern = algebra.Extend{Inner: pattern, Variable: it.variable, Expression: it.expr}
		}
	}

	if p.peekKeywordCI("GROUP") {
		p.advance()
		if err := p.expectKeywordCI("BY"); err != nil {
			return nil, err
		}
		var groupVars []algebra.Variable
		for p.cur().kind == tokVariable {
			groupVars = append(groupVars, algebra.Variable(p.advance().text))
		}
		pattern = algebra.Group{Inner: pattern, Variables: groupVars}
	}

	if p.peekKeywordCI("ORDER") {
		p.advance()
		if err := p.expectKeywordCI("BY"); err != nil {
			return nil, err
		}
		var order []algebra.OrderExpression
		for {
			desc := false
			if p.peekKeywordCI("DESC") {
				p.advance()
				desc = true
				if err := p.expectPunct("("); err != nil {
					return nil, err
				}
				e, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				order = append(order, algebra.OrderExpression{Expr: e, Descending: desc})
			} else if p.peekKeywordCI("ASC") {
				p.advance()
				if err := p.expectPunct("("); err != nil {
					return nil, err
				}
				e, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				order = append(order, algebra.OrderExpression{Expr: e})
			} else if p.cur().kind == tokVariable {
				v := algebra.Variable(p.advance().text)
				order = append(order, algebra.OrderExpression{Expr: algebra.VariableExpr{Var: v}})
			} else {
				break
			}
			if !(p.peekKeywordCI("DESC") || p.peekKeywordCI("ASC") || p.cur().kind == tokVariable) {
				break
			}
		}
		pattern = algebra.OrderBy{Inner: pattern, Expression: order}
	}

	var limit *int64
	var offset int64
	for {
		if p.peekKeywordCI("LIMIT") {
			p.advance()
			if p.cur().kind != tokNumber {
				return nil, fmt.Errorf("expected number after LIMIT")
			}
			n, err := strconv.ParseInt(p.advance().text, 10, 64)
			if err != nil {
				return nil, err
			}
			limit = &n
			continue
		}
		if p.peekKeywordCI("OFFSET") {
			p.advance()
			if p.cur().kind != tokNumber {
				return nil, fmt.Errorf("expected number after OFFSET")
			}
			n, err := strconv.ParseInt(p.advance().text, 10, 64)
			if err != nil {
				return nil, err
			}
			offset = n
			continue
		}
		break
	}
	if limit != nil || offset != 0 {
		pattern = algebra.Slice{Inner: pattern, Start: offset, Length: limit}
	}

	var variables []algebra.Variable
	if !star {
		for _, it := range items {
			variables = append(variables, it.variable)
		}
	} else {
		used := algebra.UsedVariablesInPattern(pattern)
		for v := range used {
			variables = append(variables, v)
		}
	}

	if distinct {
		pattern = algebra.Distinct{Inner: pattern}
	} else if reduced {
		pattern = algebra.Reduced{Inner: pattern}
	}

	return &algebra.Select{Pattern: pattern, Variables: variables}, nil
}

func (p *parser) parsePrologue() error {
	for {
		switch {
		case p.peekKeywordCI("PREFIX"):
			p.advance()
			if p.cur().kind != tokPrefixedName && p.cur().kind != tokKeyword {
				return fmt.Errorf("expected prefix label after PREFIX")
			}
			label := p.advance().text
			label = strings.TrimSuffix(label, ":")
			if p.cur().kind != tokIRI {
				return fmt.Errorf("expected IRI after PREFIX %s:", label)
			}
			p.prefixes[label] = p.advance().text
		case p.peekKeywordCI("BASE"):
			p.advance()
			if p.cur().kind != tokIRI {
				return fmt.Errorf("expected IRI after BASE")
			}
			p.advance()
		default:
			return nil
		}
	}
}

func (p *parser) resolvePrefixed(text string) (algebra.NamedNode, error) {
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return "", fmt.Errorf("malformed prefixed name %q", text)
	}
	prefix, local := text[:idx], text[idx+1:]
	base, ok := p.prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("undeclared prefix %q", prefix)
	}
	return algebra.NamedNode(base + local), nil
}

// ---- Graph pattern parsing ----

func (p *parser) parseGroupGraphPatternBraced() (algebra.GraphPattern, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	pattern, filters, err := p.parseGroupGraphPatternSub()
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		pattern = algebra.Filter{Expr: conjunctAll(filters), Inner: pattern}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return pattern, nil
}

func combineJoin(a, b algebra.GraphPattern) algebra.GraphPattern {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return algebra.Join{Left: a, Right: b}
}

func conjunctAll(exprs []algebra.Expression) algebra.Expression {
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = algebra.AndExpr{Left: out, Right: e}
	}
	return out
}

func (p *parser) isGroupTerminator() bool {
	return p.atEOF() || p.peekPunct("}")
}

func (p *parser) parseGroupGraphPatternSub() (algebra.GraphPattern, []algebra.Expression, error) {
	var current algebra.GraphPattern
	var filters []algebra.Expression

	for !p.isGroupTerminator() {
		switch {
		case p.peekPunct("."):
			p.advance()
		case p.peekKeywordCI("OPTIONAL"):
			p.advance()
			if err := p.expectPunct("{"); err != nil {
				return nil, nil, err
			}
			rightPattern, rightFilters, err := p.parseGroupGraphPatternSub()
			if err != nil {
				return nil, nil, err
			}
			if err := p.expectPunct("}"); err != nil {
				return nil, nil, err
			}
			var expr algebra.Expression
			if len(rightFilters) > 0 {
				expr = conjunctAll(rightFilters)
			}
			left := current
			if left == nil {
				left = algebra.Bgp{}
			}
			current = algebra.LeftJoin{Left: left, Right: rightPattern, Expression: expr}
		case p.peekKeywordCI("MINUS"):
			p.advance()
			right, err := p.parseGroupGraphPatternBraced()
			if err != nil {
				return nil, nil, err
			}
			left := current
			if left == nil {
				left = algebra.Bgp{}
			}
			current = algebra.Minus{Left: left, Right: right}
		case p.peekKeywordCI("FILTER"):
			p.advance()
			expr, err := p.parseConstraint()
			if err != nil {
				return nil, nil, err
			}
			filters = append(filters, expr)
		case p.peekKeywordCI("BIND"):
			p.advance()
			if err := p.expectPunct("("); err != nil {
				return nil, nil, err
			}
			expr, err := p.parseExpression()
			if err != nil {
				return nil, nil, err
			}
			if err := p.expectKeywordCI("AS"); err != nil {
				return nil, nil, err
			}
			if p.cur().kind != tokVariable {
				return nil, nil, fmt.Errorf("expected variable after AS in BIND")
			}
			v := algebra.Variable(p.advance().text)
			if err := p.expectPunct(")"); err != nil {
				return nil, nil, err
			}
			inner := current
			if inner == nil {
				inner = algebra.Bgp{}
			}
			current = algebra.Extend{Inner: inner, Variable: v, Expression: expr}
		case p.peekKeywordCI("VALUES"):
			p.advance()
			values, err := p.parseValuesClause()
			if err != nil {
				return nil, nil, err
			}
			current = combineJoin(current, values)
		case p.peekKeywordCI("SERVICE"):
			p.advance()
			silent := false
			if p.peekKeywordCI("SILENT") {
				p.advance()
				silent = true
			}
			endpoint, err := p.parseVarOrTerm()
			if err != nil {
				return nil, nil, err
			}
			inner, err := p.parseGroupGraphPatternBraced()
			if err != nil {
				return nil, nil, err
			}
			current = combineJoin(current, algebra.Service{Endpoint: endpoint, Inner: inner, Silent: silent})
		case p.peekPunct("{"):
			group, err := p.parseGroupOrUnion()
			if err != nil {
				return nil, nil, err
			}
			current = combineJoin(current, group)
		default:
			triples, paths, err := p.parseTriplesBlock()
			if err != nil {
				return nil, nil, err
			}
			block := triplesAndPathsToPattern(triples, paths)
			current = combineJoin(current, block)
		}
	}

	if current == nil {
		current = algebra.Bgp{}
	}
	return current, filters, nil
}

func triplesAndPathsToPattern(triples []algebra.TriplePattern, paths []algebra.GraphPattern) algebra.GraphPattern {
	var pattern algebra.GraphPattern
	if len(triples) > 0 {
		pattern = algebra.Bgp{Patterns: triples}
	}
	for _, path := range paths {
		pattern = combineJoin(pattern, path)
	}
	if pattern == nil {
		pattern = algebra.Bgp{}
	}
	return pattern
}

func (p *parser) parseGroupOrUnion() (algebra.GraphPattern, error) {
	acc, err := p.parseGroupGraphPatternBraced()
	if err != nil {
		return nil, err
	}
	for p.peekKeywordCI("UNION") {
		p.advance()
		next, err := p.parseGroupGraphPatternBraced()
		if err != nil {
			return nil, err
		}
		acc = algebra.Union{Left: acc, Right: next}
	}
	return acc, nil
}

func (p *parser) parseValuesClause() (algebra.GraphPattern, error) {
	var vars []algebra.Variable
	if p.peekPunct("(") {
		p.advance()
		for p.cur().kind == tokVariable {
			vars = append(vars, algebra.Variable(p.advance().text))
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	} else if p.cur().kind == tokVariable {
		vars = append(vars, algebra.Variable(p.advance().text))
	} else {
		return nil, fmt.Errorf("expected variable(s) after VALUES")
	}

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var bindings [][]algebra.TermPattern
	for !p.peekPunct("}") {
		var row []algebra.TermPattern
		if p.peekPunct("(") {
			p.advance()
			for !p.peekPunct(")") {
				if p.peekKeywordCI("UNDEF") {
					p.advance()
					row = append(row, nil)
					continue
				}
				t, err := p.parseVarOrTerm()
				if err != nil {
					return nil, err
				}
				row = append(row, t)
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		} else if p.peekKeywordCI("UNDEF") {
			p.advance()
			row = append(row, nil)
		} else {
			t, err := p.parseVarOrTerm()
			if err != nil {
				return nil, err
			}
			row = append(row, t)
		}
		bindings = append(bindings, row)
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return algebra.Values{Variables: vars, Bindings: bindings}, nil
}

// ---- Triples ----

func (p *parser) parseTriplesBlock() ([]algebra.TriplePattern, []algebra.GraphPattern, error) {
	var triples []algebra.TriplePattern
	var paths []algebra.GraphPattern
	for {
		subj, err := p.parseVarOrTerm()
		if err != nil {
			return nil, nil, err
		}
		if err := p.parsePropertyListNotEmpty(subj, &triples, &paths); err != nil {
			return nil, nil, err
		}
		if !p.peekPunct(".") {
			break
		}
		p.advance()
		if p.isGroupTerminator() || p.isPatternStartKeyword() {
			break
		}
	}
	return triples, paths, nil
}

func (p *parser) isPatternStartKeyword() bool {
	return p.peekKeywordCI("OPTIONAL") || p.peekKeywordCI("MINUS") || p.peekKeywordCI("FILTER") ||
		p.peekKeywordCI("BIND") || p.peekKeywordCI("VALUES") || p.peekKeywordCI("SERVICE") || p.peekPunct("{")
}

func (p *parser) parsePropertyListNotEmpty(subj algebra.TermPattern, triples *[]algebra.TriplePattern, paths *[]algebra.GraphPattern) error {
	for {
		v, err := p.parseVerb()
		if err != nil {
			return err
		}
		objs, err := p.parseObjectList()
		if err != nil {
			return err
		}
		for _, obj := range objs {
			if err := emitTriple(p, subj, v, obj, triples, paths); err != nil {
				return err
			}
		}
		if !p.peekPunct(";") {
			return nil
		}
		p.advance()
		if p.peekPunct(".") || p.isGroupTerminator() || p.isPatternStartKeyword() {
			return nil
		}
	}
}

func (p *parser) parseObjectList() ([]algebra.TermPattern, error) {
	var objs []algebra.TermPattern
	for {
		t, err := p.parseVarOrTerm()
		if err != nil {
			return nil, err
		}
		objs = append(objs, t)
		if !p.peekPunct(",") {
			break
		}
		p.advance()
	}
	return objs, nil
}

func (p *parser) parseVerb() (verb, error) {
	if p.peekKeywordCI("a") && p.cur().kind == tokKeyword {
		p.advance()
		return verb{steps: []pathStep{{iri: rdfTypeIRI}}}, nil
	}
	if p.cur().kind == tokVariable {
		v := algebra.Variable(p.advance().text)
		return verb{variable: &v}, nil
	}
	steps, err := p.parsePathSequence()
	if err != nil {
		return verb{}, err
	}
	return verb{steps: steps}, nil
}

func (p *parser) parsePathSequence() ([]pathStep, error) {
	var steps []pathStep
	for {
		inverse := false
		if p.peekOp("^") {
			p.advance()
			inverse = true
		}
		iri, err := p.parseIRIOrPrefixed()
		if err != nil {
			return nil, err
		}
		mult := algebra.PathOne
		if p.peekOp("*") {
			p.advance()
			mult = algebra.PathZeroOrMore
		} else if p.peekOp("+") {
			p.advance()
			mult = algebra.PathOneOrMore
		}
		steps = append(steps, pathStep{iri: iri, inverse: inverse, mult: mult})
		if p.peekOp("/") {
			p.advance()
			continue
		}
		break
	}
	return steps, nil
}

func (p *parser) parseIRIOrPrefixed() (algebra.NamedNode, error) {
	switch p.cur().kind {
	case tokIRI:
		return algebra.NamedNode(p.advance().text), nil
	case tokPrefixedName:
		return p.resolvePrefixed(p.advance().text)
	}
	return "", fmt.Errorf("expected an IRI or prefixed name, got %q", p.cur().text)
}

func emitTriple(p *parser, subj algebra.TermPattern, v verb, obj algebra.TermPattern, triples *[]algebra.TriplePattern, paths *[]algebra.GraphPattern) error {
	if v.variable != nil {
		*triples = append(*triples, algebra.TriplePattern{
			Subject: subj, Predicate: algebra.VariablePredicate{Var: *v.variable}, Object: obj,
		})
		return nil
	}
	if len(v.steps) == 1 {
		st := v.steps[0]
		if st.mult == algebra.PathOne {
			s, o := subj, obj
			if st.inverse {
				s, o = obj, subj
			}
			*triples = append(*triples, algebra.TriplePattern{
				Subject: s, Predicate: algebra.FixedPredicate{IRI: st.iri}, Object: o,
			})
			return nil
		}
		*paths = append(*paths, algebra.Path{
			Subject: subj,
			Element: algebra.PathElement{Predicate: st.iri, Inverse: st.inverse, Multiplicity: st.mult},
			Object:  obj,
		})
		return nil
	}

	cur := subj
	for i, st := range v.steps {
		if st.mult != algebra.PathOne {
			return fmt.Errorf("a repetition operator (*, +) on one element of a sequence path is not supported")
		}
		var next algebra.TermPattern
		if i == len(v.steps)-1 {
			next = obj
		} else {
			next = p.freshBlankNode()
		}
		s, o := cur, next
		if st.inverse {
			s, o = next, cur
		}
		*triples = append(*triples, algebra.TriplePattern{
			Subject: s, Predicate: algebra.FixedPredicate{IRI: st.iri}, Object: o,
		})
		cur = next
	}
	return nil
}

func (p *parser) parseVarOrTerm() (algebra.TermPattern, error) {
	switch p.cur().kind {
	case tokVariable:
		return algebra.VariableTerm{Var: algebra.Variable(p.advance().text)}, nil
	case tokIRI:
		return algebra.NamedNodeTerm{IRI: algebra.NamedNode(p.advance().text)}, nil
	case tokPrefixedName:
		iri, err := p.resolvePrefixed(p.advance().text)
		if err != nil {
			return nil, err
		}
		return algebra.NamedNodeTerm{IRI: iri}, nil
	case tokBlankNode:
		return algebra.BlankNodeTerm{Node: algebra.BlankNode(p.advance().text)}, nil
	case tokAnonBlankNode:
		p.advance()
		return p.freshBlankNode(), nil
	case tokString:
		return algebra.LiteralTerm{Literal: p.stringTokenToLiteral(p.advance())}, nil
	case tokNumber:
		return algebra.LiteralTerm{Literal: numberTokenToLiteral(p.advance())}, nil
	case tokKeyword:
		if strings.EqualFold(p.cur().text, "true") || strings.EqualFold(p.cur().text, "false") {
			return algebra.LiteralTerm{Literal: algebra.Literal{Value: strings.ToLower(p.advance().text), Datatype: xsdBoolean}}, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %q while parsing a term", p.cur().text)
}

func (p *parser) stringTokenToLiteral(t token) algebra.Literal {
	lit := algebra.Literal{Value: t.text}
	if t.datatypeIRI != "" {
		if iri, err := resolveMaybePrefixed(p, t.datatypeIRI); err == nil {
			lit.Datatype = iri
		} else {
			lit.Datatype = algebra.NamedNode(t.datatypeIRI)
		}
	} else if t.lang != "" {
		lit.Language = t.lang
	} else {
		lit.Datatype = xsdString
	}
	return lit
}

func resolveMaybePrefixed(p *parser, text string) (algebra.NamedNode, error) {
	if strings.Contains(text, ":") && !strings.Contains(text, "://") {
		return p.resolvePrefixed(text)
	}
	return algebra.NamedNode(text), nil
}

func numberTokenToLiteral(t token) algebra.Literal {
	dt := xsdInteger
	if strings.ContainsAny(t.text, ".eE") {
		dt = xsdDecimal
	}
	return algebra.Literal{Value: t.text, Datatype: dt}
}
