package combiner

import (
	"fmt"
	"strings"
	"time"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
)

// EvalExpression evaluates a SPARQL filter/extend expression against a
// materialized row, the in-memory counterpart to tsquery's pushdown
// evaluation but run over already-joined data instead of being compiled
// away to a backend query.
func EvalExpression(expr algebra.Expression, row resultstream.Row) (interface{}, error) {
	switch e := expr.(type) {
	case algebra.VariableExpr:
		return row[string(e.Var)], nil

	case algebra.LiteralExpr:
		return literalValue(e.Literal), nil

	case algebra.NamedNodeExpr:
		return string(e.IRI), nil

	case algebra.AndExpr:
		l, err := EvalBool(e.Left, row)
		if err != nil {
			return nil, err
		}
		if !l {
			return false, nil
		}
		return EvalBool(e.Right, row)

	case algebra.OrExpr:
		l, err := EvalBool(e.Left, row)
		if err == nil && l {
			return true, nil
		}
		return EvalBool(e.Right, row)

	case algebra.NotExpr:
		v, err := EvalBool(e.Inner, row)
		if err != nil {
			return nil, err
		}
		return !v, nil

	case algebra.UnaryExpr:
		v, err := EvalExpression(e.Inner, row)
		if err != nil {
			return nil, err
		}
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("combiner: unary %s requires a numeric operand", e.Op)
		}
		if e.Op == algebra.OpSubtract {
			return -f, nil
		}
		return f, nil

	case algebra.ComparisonExpr:
		left, err := EvalExpression(e.Left, row)
		if err != nil {
			return nil, err
		}
		right, err := EvalExpression(e.Right, row)
		if err != nil {
			return nil, err
		}
		return compareOp(e.Op, left, right), nil

	case algebra.ArithmeticExpr:
		left, err := EvalExpression(e.Left, row)
		if err != nil {
			return nil, err
		}
		right, err := EvalExpression(e.Right, row)
		if err != nil {
			return nil, err
		}
		lf, lok := asFloat(left)
		rf, rok := asFloat(right)
		if !lok || !rok {
			return nil, fmt.Errorf("combiner: arithmetic %s requires numeric operands", e.Op)
		}
		switch e.Op {
		case algebra.OpAdd:
			return lf + rf, nil
		case algebra.OpSubtract:
			return lf - rf, nil
		case algebra.OpMultiply:
			return lf * rf, nil
		case algebra.OpDivide:
			if rf == 0 {
				return nil, fmt.Errorf("combiner: division by zero")
			}
			return lf / rf, nil
		}
		return nil, fmt.Errorf("combiner: unknown arithmetic operator %s", e.Op)

	case algebra.InExpr:
		left, err := EvalExpression(e.Left, row)
		if err != nil {
			return nil, err
		}
		for _, alt := range e.Alternatives {
			v, err := EvalExpression(alt, row)
			if err == nil && compareValues(left, v) == 0 {
				return true, nil
			}
		}
		return false, nil

	case algebra.IfExpr:
		cond, err := EvalBool(e.Condition, row)
		if err != nil {
			return nil, err
		}
		if cond {
			return EvalExpression(e.Then, row)
		}
		return EvalExpression(e.Else, row)

	case algebra.CoalesceExpr:
		for _, a := range e.Args {
			v, err := EvalExpression(a, row)
			if err == nil && v != nil {
				return v, nil
			}
		}
		return nil, nil

	case algebra.BoundExpr:
		return row[string(e.Var)] != nil, nil

	case algebra.SameTermExpr:
		left, err := EvalExpression(e.Left, row)
		if err != nil {
			return nil, err
		}
		right, err := EvalExpression(e.Right, row)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right), nil

	case algebra.FunctionCallExpr:
		return evalFunctionCall(e, row)

	case algebra.ExistsExpr:
		// EXISTS over the joined frame is not re-evaluated here; the
		// pre-combiner rewrite stages only pass through ExistsExpr when
		// every variable it touches is fully static, so it is already
		// accounted for by the static SPARQL query's own semantics.
		return true, nil

	default:
		return nil, fmt.Errorf("combiner: unsupported expression %T", expr)
	}
}

// EvalBool evaluates expr and coerces it to SPARQL's effective boolean
// value, matching the teacher's conservative "unsure means false" stance
// from internal/adapters/retry.go's IsRetryable philosophy.
func EvalBool(expr algebra.Expression, row resultstream.Row) (bool, error) {
	v, err := EvalExpression(expr, row)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case time.Time:
		return !t.IsZero()
	default:
		return true
	}
}

func literalValue(l algebra.Literal) interface{} {
	switch l.Datatype {
	case "http://www.w3.org/2001/XMLSchema#double",
		"http://www.w3.org/2001/XMLSchema#float",
		"http://www.w3.org/2001/XMLSchema#decimal",
		"http://www.w3.org/2001/XMLSchema#integer":
		var f float64
		if _, err := fmt.Sscanf(l.Value, "%g", &f); err == nil {
			return f
		}
		return l.Value
	case "http://www.w3.org/2001/XMLSchema#dateTime":
		if t, err := time.Parse(time.RFC3339Nano, l.Value); err == nil {
			return t
		}
		return l.Value
	case "http://www.w3.org/2001/XMLSchema#boolean":
		return l.Value == "true" || l.Value == "1"
	default:
		return l.Value
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// compareValues orders values the way SPARQL's ORDER BY and equality
// testing expect for the value kinds this engine handles: numeric, time,
// string, bool. Values of differing incomparable kinds compare equal
// rather than panicking.
func compareValues(a, b interface{}) int {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	return 0
}

func compareOp(op algebra.BinaryOp, left, right interface{}) bool {
	cmp := compareValues(left, right)
	switch op {
	case algebra.OpEqual:
		return cmp == 0 && fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
	case algebra.OpNotEqual:
		return !(cmp == 0 && fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right))
	case algebra.OpLess:
		return cmp < 0
	case algebra.OpLessOrEqual:
		return cmp <= 0
	case algebra.OpGreater:
		return cmp > 0
	case algebra.OpGreaterOrEqual:
		return cmp >= 0
	default:
		return false
	}
}

// evalFunctionCall evaluates any two-argument call whose arguments are
// both strings as a SQL-LIKE match of the first against the second, the
// shape of the DSL's configured LIKE function; the function IRI itself is
// not checked. A call with another arity or with a non-string argument
// evaluates to false.
func evalFunctionCall(e algebra.FunctionCallExpr, row resultstream.Row) (interface{}, error) {
	if len(e.Args) != 2 {
		return false, nil
	}
	left, err := EvalExpression(e.Args[0], row)
	if err != nil {
		return nil, err
	}
	right, err := EvalExpression(e.Args[1], row)
	if err != nil {
		return nil, err
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return false, nil
	}
	pattern := strings.ReplaceAll(strings.ReplaceAll(rs, "%", "*"), "_", "?")
	return globMatch(pattern, ls), nil
}

// globMatch is a tiny SQL-LIKE-style matcher (* = any run, ? = any char),
// sufficient for the DSL's LIKE operator without pulling in a regex
// translation layer for a single-purpose comparison.
func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatchRunes(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	}
}

func renderValue(v interface{}) string {
	if v == nil {
		return "\x00"
	}
	return fmt.Sprintf("%v", v)
}
