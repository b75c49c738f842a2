package combiner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
)

func sortedVariables(vars map[algebra.Variable]struct{}) []algebra.Variable {
	out := make([]algebra.Variable, 0, len(vars))
	for v := range vars {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RenderSelect serializes a rewritten static query tree back into SPARQL
// 1.1 text for internal/sparqlclient to POST to the endpoint. No pack
// repo carries a SPARQL serializer to ground this on; it follows the
// same text-building style as internal/sql/rewriter.go's
// regexp/strings.Builder-based clause construction, generalized from
// rewriting one engine's SQL dialect to emitting SPARQL syntax from this
// engine's own algebra tree.
func RenderSelect(q *algebra.Select) string {
	pattern := q.Pattern
	variables := q.Variables

	var distinct, reduced bool
	var order []algebra.OrderExpression
	var start int64
	var length *int64

	for {
		switch p := pattern.(type) {
		case algebra.Slice:
			start = p.Start
			length = p.Length
			pattern = p.Inner
			continue
		case algebra.OrderBy:
			order = p.Expression
			pattern = p.Inner
			continue
		case algebra.Distinct:
			distinct = true
			pattern = p.Inner
			continue
		case algebra.Reduced:
			reduced = true
			pattern = p.Inner
			continue
		case algebra.Project:
			variables = p.Variables
			pattern = p.Inner
		}
		break
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if distinct {
		b.WriteString("DISTINCT ")
	} else if reduced {
		b.WriteString("REDUCED ")
	}
	if len(variables) == 0 {
		b.WriteString("*")
	} else {
		for i, v := range variables {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(v.String())
		}
	}
	b.WriteString(" WHERE { ")
	b.WriteString(renderPattern(pattern))
	b.WriteString(" }")

	if len(order) > 0 {
		b.WriteString(" ORDER BY")
		for _, o := range order {
			if o.Descending {
				fmt.Fprintf(&b, " DESC(%s)", renderExpr(o.Expr))
			} else {
				fmt.Fprintf(&b, " %s", renderExpr(o.Expr))
			}
		}
	}
	if start > 0 {
		fmt.Fprintf(&b, " OFFSET %d", start)
	}
	if length != nil {
		fmt.Fprintf(&b, " LIMIT %d", *length)
	}

	return b.String()
}

func renderPattern(p algebra.GraphPattern) string {
	switch n := p.(type) {
	case algebra.Bgp:
		parts := make([]string, len(n.Patterns))
		for i, t := range n.Patterns {
			parts[i] = renderTriple(t)
		}
		return strings.Join(parts, " ")

	case algebra.Path:
		return fmt.Sprintf("%s %s %s .", renderTerm(n.Subject), renderPathElement(n.Element), renderTerm(n.Object))

	case algebra.Join:
		return renderPattern(n.Left) + " " + renderPattern(n.Right)

	case algebra.LeftJoin:
		s := renderPattern(n.Left) + " OPTIONAL { " + renderPattern(n.Right)
		if n.Expression != nil {
			s += " FILTER(" + renderExpr(n.Expression) + ")"
		}
		return s + " }"

	case algebra.Filter:
		return renderPattern(n.Inner) + " FILTER(" + renderExpr(n.Expr) + ")"

	case algebra.Union:
		return "{ " + renderPattern(n.Left) + " } UNION { " + renderPattern(n.Right) + " }"

	case algebra.Graph:
		return "GRAPH " + renderTerm(n.Name) + " { " + renderPattern(n.Inner) + " }"

	case algebra.Extend:
		return renderPattern(n.Inner) + fmt.Sprintf(" BIND(%s AS %s)", renderExpr(n.Expression), n.Variable.String())

	case algebra.Minus:
		return renderPattern(n.Left) + " MINUS { " + renderPattern(n.Right) + " }"

	case algebra.Values:
		return renderValues(n)

	case algebra.Service:
		silent := ""
		if n.Silent {
			silent = "SILENT "
		}
		return fmt.Sprintf("SERVICE %s%s { %s }", silent, renderTerm(n.Endpoint), renderPattern(n.Inner))

	case algebra.Group:
		return renderSubquery(algebra.Select{Pattern: n, Variables: n.Variables})

	case algebra.Project, algebra.Distinct, algebra.Reduced, algebra.OrderBy, algebra.Slice:
		return renderSubquery(algebra.Select{Pattern: p, Variables: sortedVariables(algebra.UsedVariablesInPattern(p))})

	default:
		return ""
	}
}

func renderSubquery(s algebra.Select) string {
	return "{ " + RenderSelect(&s) + " }"
}

func renderTriple(t algebra.TriplePattern) string {
	return fmt.Sprintf("%s %s %s .", renderTerm(t.Subject), renderPredicate(t.Predicate), renderTerm(t.Object))
}

func renderPredicate(p algebra.NamedNodePattern) string {
	switch n := p.(type) {
	case algebra.FixedPredicate:
		return "<" + string(n.IRI) + ">"
	case algebra.VariablePredicate:
		return n.Var.String()
	default:
		return "?unknown_predicate"
	}
}

func renderPathElement(e algebra.PathElement) string {
	pred := "<" + string(e.Predicate) + ">"
	if e.Inverse {
		pred = "^" + pred
	}
	return pred + string(e.Multiplicity)
}

func renderTerm(t algebra.TermPattern) string {
	switch n := t.(type) {
	case algebra.NamedNodeTerm:
		return "<" + string(n.IRI) + ">"
	case algebra.LiteralTerm:
		return renderLiteral(n.Literal)
	case algebra.BlankNodeTerm:
		return "_:" + string(n.Node)
	case algebra.VariableTerm:
		return n.Var.String()
	default:
		return "?unknown_term"
	}
}

func renderLiteral(l algebra.Literal) string {
	quoted := strconv.Quote(l.Value)
	if l.Language != "" {
		return quoted + "@" + l.Language
	}
	if l.Datatype != "" {
		return quoted + "^^<" + string(l.Datatype) + ">"
	}
	return quoted
}

func renderValues(v algebra.Values) string {
	var b strings.Builder
	b.WriteString("VALUES (")
	for i, v := range v.Variables {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(v.String())
	}
	b.WriteString(") { ")
	for _, row := range v.Bindings {
		b.WriteString("(")
		for i, term := range row {
			if i > 0 {
				b.WriteString(" ")
			}
			if term == nil {
				b.WriteString("UNDEF")
			} else {
				b.WriteString(renderTerm(term))
			}
		}
		b.WriteString(") ")
	}
	b.WriteString("}")
	return b.String()
}

func renderExpr(e algebra.Expression) string {
	switch expr := e.(type) {
	case algebra.VariableExpr:
		return expr.Var.String()
	case algebra.LiteralExpr:
		return renderLiteral(expr.Literal)
	case algebra.NamedNodeExpr:
		return "<" + string(expr.IRI) + ">"
	case algebra.AndExpr:
		return "(" + renderExpr(expr.Left) + " && " + renderExpr(expr.Right) + ")"
	case algebra.OrExpr:
		return "(" + renderExpr(expr.Left) + " || " + renderExpr(expr.Right) + ")"
	case algebra.NotExpr:
		return "!(" + renderExpr(expr.Inner) + ")"
	case algebra.UnaryExpr:
		return string(expr.Op) + renderExpr(expr.Inner)
	case algebra.ComparisonExpr:
		return "(" + renderExpr(expr.Left) + " " + string(expr.Op) + " " + renderExpr(expr.Right) + ")"
	case algebra.ArithmeticExpr:
		return "(" + renderExpr(expr.Left) + " " + string(expr.Op) + " " + renderExpr(expr.Right) + ")"
	case algebra.InExpr:
		parts := make([]string, len(expr.Alternatives))
		for i, a := range expr.Alternatives {
			parts[i] = renderExpr(a)
		}
		return renderExpr(expr.Left) + " IN (" + strings.Join(parts, ", ") + ")"
	case algebra.IfExpr:
		return fmt.Sprintf("IF(%s, %s, %s)", renderExpr(expr.Condition), renderExpr(expr.Then), renderExpr(expr.Else))
	case algebra.CoalesceExpr:
		parts := make([]string, len(expr.Args))
		for i, a := range expr.Args {
			parts[i] = renderExpr(a)
		}
		return "COALESCE(" + strings.Join(parts, ", ") + ")"
	case algebra.BoundExpr:
		return "BOUND(" + expr.Var.String() + ")"
	case algebra.ExistsExpr:
		return "EXISTS { " + renderPattern(expr.Pattern) + " }"
	case algebra.FunctionCallExpr:
		parts := make([]string, len(expr.Args))
		for i, a := range expr.Args {
			parts[i] = renderExpr(a)
		}
		return "<" + string(expr.Function) + ">(" + strings.Join(parts, ", ") + ")"
	case algebra.SameTermExpr:
		return "SAMETERM(" + renderExpr(expr.Left) + ", " + renderExpr(expr.Right) + ")"
	default:
		return ""
	}
}
