package dsltranslator

import (
	"fmt"
	"strings"
	"time"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/config"
	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
)

const xsdDateTime = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#dateTime")
const xsdDouble = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#double")
const xsdInteger = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#integer")
const xsdBoolean = algebra.NamedNode("http://www.w3.org/2001/XMLSchema#boolean")
const rdfType = algebra.NamedNode("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")

// Translator compiles DSL Query values into algebra.Select, grounded on
// _examples/original_source/dsl/src/translator.rs's Translator. Per-path
// variable allocation and glued-variable reuse follow translator.rs's
// create_name_path_variable/add_path_element; terminal time-series shape
// synthesis (hasTimeseries -> hasDataPoint -> hasValue/hasTimestamp) mirrors
// its add_value_and_timeseries_variable.
type Translator struct {
	predicates config.PredicateConfig
	dsl        config.DSLConfig

	counter int
	glue    map[string]algebra.Variable

	// lastSynthesizedTimestamp/lastSynthesizedValue accumulate one
	// timestamp/value variable per path that synthesized a time-series
	// shape, in translation order, so the from/to datetime bound and the
	// aggregation step can reference them without re-threading them through
	// every intermediate return value.
	lastSynthesizedTimestamp []algebra.Variable
	lastSynthesizedValue     []algebra.Variable
}

// New creates a Translator bound to predicates/dsl for the lifetime of a
// single Translate call.
func New(predicates config.PredicateConfig, dsl config.DSLConfig) *Translator {
	return &Translator{
		predicates: predicates,
		dsl:        dsl,
		glue:       make(map[string]algebra.Variable),
	}
}

// pathTranslation is the accumulated state of translating one Path: the
// BGP triples it contributed, extra filters it needed (name/type-name
// constraints that can't be expressed as a triple), the path's final
// variable (its "path name" binding), and, when the path terminates in a
// time-series shape, the value/timestamp variables bound to it.
type pathTranslation struct {
	triples   []algebra.TriplePattern
	extra     []algebra.GraphPattern // property-path steps, joined alongside triples
	filters   []algebra.Expression
	finalVar  algebra.Variable
	value     *algebra.Variable
	timestamp *algebra.Variable
}

// Translate implements spec §4.5: compile a DSL Query into a runnable
// algebra.Select.
func (t *Translator) Translate(q Query) (*algebra.Select, error) {
	if len(q.GraphPattern.ConditionedPaths) == 0 {
		return nil, internalerrors.NewMalformedDSL("", fmt.Errorf("query has no conditioned paths"))
	}

	var pattern algebra.GraphPattern
	var projection []algebra.Variable
	seen := make(map[algebra.Variable]bool)

	for i, cp := range q.GraphPattern.ConditionedPaths {
		gp, pv, pf, err := t.translateConditionedPath(cp)
		if err != nil {
			return nil, err
		}
		if pattern == nil {
			pattern = gp
		} else {
			switch q.GraphPattern.Joins[i-1] {
			case TopLevelOr:
				pattern = algebra.Union{Left: pattern, Right: gp}
			default:
				pattern = algebra.Join{Left: pattern, Right: gp}
			}
		}
		for _, v := range pv {
			if !seen[v] {
				seen[v] = true
				projection = append(projection, v)
			}
		}
		for _, f := range pf {
			pattern = algebra.Filter{Expr: f, Inner: pattern}
		}
	}

	if q.FromDatetime != nil || q.ToDatetime != nil {
		bound, err := t.timeBoundFilter(q)
		if err != nil {
			return nil, err
		}
		if bound != nil {
			pattern = algebra.Filter{Expr: bound, Inner: pattern}
		}
	}

	if q.Aggregation != nil {
		var err error
		pattern, projection, err = t.applyAggregation(pattern, projection, *q.Aggregation, q.Group)
		if err != nil {
			return nil, err
		}
	}

	return &algebra.Select{
		Pattern:   algebra.Project{Inner: pattern, Variables: projection},
		Variables: projection,
	}, nil
}

// translateConditionedPath translates one ConditionedPath: the left-hand
// path, optionally filtered against a right-hand path or literal
// (translator.rs's add_condition).
func (t *Translator) translateConditionedPath(cp ConditionedPath) (algebra.GraphPattern, []algebra.Variable, []algebra.Expression, error) {
	left, err := t.translatePath(cp.LHS)
	if err != nil {
		return nil, nil, nil, err
	}

	pattern := t.patternFromTriples(left)
	projection := []algebra.Variable{left.finalVar}
	if left.value != nil {
		projection = append(projection, *left.value)
	}
	if left.timestamp != nil {
		projection = append(projection, *left.timestamp)
	}

	var filters []algebra.Expression
	filters = append(filters, left.filters...)

	if cp.Operator == nil {
		return t.maybeOptional(pattern, cp.LHS.Optional), projection, filters, nil
	}

	leftValueExpr, err := t.valueExprFor(left)
	if err != nil {
		return nil, nil, nil, err
	}

	if cp.RHS == nil {
		return nil, nil, nil, internalerrors.NewMalformedDSL("", fmt.Errorf("conditioned path has an operator but no right-hand side"))
	}

	switch {
	case cp.RHS.Path != nil:
		right, err := t.translatePath(*cp.RHS.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		pattern = algebra.Join{Left: pattern, Right: t.patternFromTriples(right)}
		if right.value != nil {
			projection = append(projection, *right.value)
		}
		rightValueExpr, err := t.valueExprFor(right)
		if err != nil {
			return nil, nil, nil, err
		}
		filters = append(filters, right.filters...)
		filters = append(filters, t.comparisonExpr(*cp.Operator, leftValueExpr, rightValueExpr))

	case cp.RHS.Literal != nil:
		litExpr, err := literalExpression(*cp.RHS.Literal)
		if err != nil {
			return nil, nil, nil, err
		}
		filters = append(filters, t.comparisonExpr(*cp.Operator, leftValueExpr, litExpr))

	default:
		return nil, nil, nil, internalerrors.NewMalformedDSL("", fmt.Errorf("right-hand side has neither a path nor a literal"))
	}

	return t.maybeOptional(pattern, cp.LHS.Optional), projection, filters, nil
}

func (t *Translator) maybeOptional(pattern algebra.GraphPattern, optional bool) algebra.GraphPattern {
	if !optional {
		return pattern
	}
	return algebra.LeftJoin{Left: algebra.Bgp{}, Right: pattern}
}

func (t *Translator) patternFromTriples(p *pathTranslation) algebra.GraphPattern {
	var pattern algebra.GraphPattern = algebra.Bgp{Patterns: p.triples}
	for _, e := range p.extra {
		pattern = algebra.Join{Left: pattern, Right: e}
	}
	return pattern
}

// valueExprFor returns the expression a comparison is made against: the
// path's terminal value variable if it synthesized a time-series shape,
// otherwise the path's final path-name variable (translator.rs's
// translate_path_or_literal comparing against a plain named/typed node).
func (t *Translator) valueExprFor(p *pathTranslation) (algebra.Expression, error) {
	if p.value != nil {
		return algebra.VariableExpr{Var: *p.value}, nil
	}
	return algebra.VariableExpr{Var: p.finalVar}, nil
}

func (t *Translator) comparisonExpr(op BooleanOperator, left, right algebra.Expression) algebra.Expression {
	switch op {
	case OpEQ:
		return algebra.ComparisonExpr{Op: algebra.OpEqual, Left: left, Right: right}
	case OpNEQ:
		return algebra.ComparisonExpr{Op: algebra.OpNotEqual, Left: left, Right: right}
	case OpLT:
		return algebra.ComparisonExpr{Op: algebra.OpLess, Left: left, Right: right}
	case OpLTEQ:
		return algebra.ComparisonExpr{Op: algebra.OpLessOrEqual, Left: left, Right: right}
	case OpGT:
		return algebra.ComparisonExpr{Op: algebra.OpGreater, Left: left, Right: right}
	case OpGTEQ:
		return algebra.ComparisonExpr{Op: algebra.OpGreaterOrEqual, Left: left, Right: right}
	case OpLIKE:
		return algebra.FunctionCallExpr{Function: algebra.NamedNode(t.dsl.LikeFunctionIRI), Args: []algebra.Expression{left, right}}
	default:
		return algebra.ComparisonExpr{Op: algebra.OpEqual, Left: left, Right: right}
	}
}

// translatePath implements translator.rs's translate_path/add_path_element:
// allocate one variable per path element (reusing glued variables), link
// consecutive elements with the configured connective predicate, apply
// name/type-name constraints, and synthesize the hasTimeseries/hasDataPoint/
// hasValue/hasTimestamp chain on the path's final element (SPEC_FULL.md
// §4.5's terminal shape synthesis).
func (t *Translator) translatePath(p Path) (*pathTranslation, error) {
	result := &pathTranslation{}

	firstVar, err := t.elementVariable(p.First)
	if err != nil {
		return nil, err
	}
	if err := t.applyConstraint(result, firstVar, p.First); err != nil {
		return nil, err
	}

	prev := firstVar
	for _, step := range p.Steps {
		iri, ok := t.dsl.ConnectiveMapping[string(step.Connective)]
		if !ok {
			return nil, internalerrors.NewMalformedDSL("", fmt.Errorf("unmapped connective %q", step.Connective))
		}
		nextVar, err := t.elementVariable(step.Element)
		if err != nil {
			return nil, err
		}
		mult := toAlgebraMultiplicity(step.Element.Multiplicity)
		if mult == algebra.PathOne {
			result.triples = append(result.triples, algebra.TriplePattern{
				Subject:   algebra.VariableTerm{Var: prev},
				Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(iri)},
				Object:    algebra.VariableTerm{Var: nextVar},
			})
		} else {
			result.extra = append(result.extra, algebra.Path{
				Subject: algebra.VariableTerm{Var: prev},
				Element: algebra.PathElement{Predicate: algebra.NamedNode(iri), Multiplicity: mult},
				Object:  algebra.VariableTerm{Var: nextVar},
			})
		}
		if err := t.applyConstraint(result, nextVar, step.Element); err != nil {
			return nil, err
		}
		prev = nextVar
	}

	result.finalVar = prev

	if err := t.synthesizeTimeSeriesShape(result, prev); err != nil {
		return nil, err
	}

	return result, nil
}

func toAlgebraMultiplicity(m Multiplicity) algebra.PathMultiplicity {
	switch m {
	case MultZeroOrMore:
		return algebra.PathZeroOrMore
	case MultOneOrMore:
		return algebra.PathOneOrMore
	case MultZeroOrOne:
		return algebra.PathZeroOrOne
	default:
		return algebra.PathOne
	}
}

// elementVariable resolves a path element to a variable: a glued variable
// is reused if already allocated, otherwise a fresh one is minted.
func (t *Translator) elementVariable(el PathElement) (algebra.Variable, error) {
	if el.Glue != nil {
		if v, ok := t.glue[el.Glue.ID]; ok {
			return v, nil
		}
		v := t.freshVariable()
		t.glue[el.Glue.ID] = v
		return v, nil
	}
	return t.freshVariable(), nil
}

func (t *Translator) freshVariable() algebra.Variable {
	v := algebra.MustVariable(fmt.Sprintf("dsl_v%d", t.counter))
	t.counter++
	return v
}

// applyConstraint implements translator.rs's add_element_constraint_to_variable:
// a Name constraint becomes a direct triple against the configured name
// predicate with the name as a literal object (or, if a NameTemplate is
// configured, with the substituted template as an IRI object; the template
// is substituted as one string and is not expanded into triple patterns);
// a TypeName constraint becomes an rdf:type triple; TypeNameAndName emits
// both.
func (t *Translator) applyConstraint(result *pathTranslation, v algebra.Variable, el PathElement) error {
	if el.Constraint == nil {
		return nil
	}
	c := el.Constraint

	if c.HasName() {
		if err := t.addNameConstraint(result, v, c.Name); err != nil {
			return err
		}
	}
	if c.HasTypeName() {
		if err := t.addTypeNameConstraint(result, v, c.TypeName); err != nil {
			return err
		}
	}
	return nil
}

func (t *Translator) addNameConstraint(result *pathTranslation, v algebra.Variable, name string) error {
	if t.dsl.NameTemplate == "" {
		result.triples = append(result.triples, algebra.TriplePattern{
			Subject:   algebra.VariableTerm{Var: v},
			Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(t.dsl.NamePredicate)},
			Object:    algebra.LiteralTerm{Literal: algebra.Literal{Value: name}},
		})
		return nil
	}
	iri, err := substituteTemplate(t.dsl.NameTemplate, v, name)
	if err != nil {
		return err
	}
	result.triples = append(result.triples, algebra.TriplePattern{
		Subject:   algebra.VariableTerm{Var: v},
		Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(t.dsl.NamePredicate)},
		Object:    algebra.NamedNodeTerm{IRI: algebra.NamedNode(iri)},
	})
	return nil
}

func (t *Translator) addTypeNameConstraint(result *pathTranslation, v algebra.Variable, typeName string) error {
	iri := typeName
	if t.dsl.TypeNameTemplate != "" {
		var err error
		iri, err = substituteTemplate(t.dsl.TypeNameTemplate, v, typeName)
		if err != nil {
			return err
		}
	}
	result.triples = append(result.triples, algebra.TriplePattern{
		Subject:   algebra.VariableTerm{Var: v},
		Predicate: algebra.FixedPredicate{IRI: rdfType},
		Object:    algebra.NamedNodeTerm{IRI: algebra.NamedNode(iri)},
	})
	return nil
}

// substituteTemplate implements translator.rs's fill_triples_template:
// REPLACE_VARIABLE_NAME is replaced with v's SPARQL rendering and
// REPLACE_STR_LITERAL with literal, per occurrence.
func substituteTemplate(template string, v algebra.Variable, literal string) (string, error) {
	out := strings.ReplaceAll(template, "REPLACE_VARIABLE_NAME", v.String())
	out = strings.ReplaceAll(out, "REPLACE_STR_LITERAL", literal)
	return out, nil
}

// synthesizeTimeSeriesShape implements translator.rs's
// add_value_and_timeseries_variable: expand `entityVar hasTimeseries ?ts`,
// `?ts hasDataPoint ?dp`, `?dp hasValue ?v`, `?dp hasTimestamp ?t` so the
// preprocessor/rewriter recognize this path's terminal entity as a
// time-series shape (SPEC_FULL.md §4.5).
func (t *Translator) synthesizeTimeSeriesShape(result *pathTranslation, entityVar algebra.Variable) error {
	tsVar := t.freshVariable()
	dpVar := t.freshVariable()
	valueVar := t.freshVariable()
	timestampVar := t.freshVariable()

	result.triples = append(result.triples,
		algebra.TriplePattern{
			Subject:   algebra.VariableTerm{Var: entityVar},
			Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(t.predicates.HasTimeseries)},
			Object:    algebra.VariableTerm{Var: tsVar},
		},
		algebra.TriplePattern{
			Subject:   algebra.VariableTerm{Var: tsVar},
			Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(t.predicates.HasDataPoint)},
			Object:    algebra.VariableTerm{Var: dpVar},
		},
		algebra.TriplePattern{
			Subject:   algebra.VariableTerm{Var: dpVar},
			Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(t.predicates.HasValue)},
			Object:    algebra.VariableTerm{Var: valueVar},
		},
		algebra.TriplePattern{
			Subject:   algebra.VariableTerm{Var: dpVar},
			Predicate: algebra.FixedPredicate{IRI: algebra.NamedNode(t.predicates.HasTimestamp)},
			Object:    algebra.VariableTerm{Var: timestampVar},
		},
	)
	result.value = &valueVar
	result.timestamp = &timestampVar
	t.lastSynthesizedTimestamp = append(t.lastSynthesizedTimestamp, timestampVar)
	t.lastSynthesizedValue = append(t.lastSynthesizedValue, valueVar)
	return nil
}

// timeBoundFilter implements the `from`/`to` datetime clauses (spec §4.5
// step 5): conjoined >=/<= comparisons against every path's synthesized
// timestamp variable.
func (t *Translator) timeBoundFilter(q Query) (algebra.Expression, error) {
	vars := t.timestampVarsOf(q)
	if len(vars) == 0 {
		return nil, nil
	}
	var combined algebra.Expression
	for _, v := range vars {
		var clause algebra.Expression
		if q.FromDatetime != nil && q.ToDatetime != nil {
			clause = algebra.AndExpr{
				Left:  algebra.ComparisonExpr{Op: algebra.OpGreaterOrEqual, Left: algebra.VariableExpr{Var: v}, Right: dateTimeLiteral(*q.FromDatetime)},
				Right: algebra.ComparisonExpr{Op: algebra.OpLessOrEqual, Left: algebra.VariableExpr{Var: v}, Right: dateTimeLiteral(*q.ToDatetime)},
			}
		} else if q.FromDatetime != nil {
			clause = algebra.ComparisonExpr{Op: algebra.OpGreaterOrEqual, Left: algebra.VariableExpr{Var: v}, Right: dateTimeLiteral(*q.FromDatetime)}
		} else {
			clause = algebra.ComparisonExpr{Op: algebra.OpLessOrEqual, Left: algebra.VariableExpr{Var: v}, Right: dateTimeLiteral(*q.ToDatetime)}
		}
		if combined == nil {
			combined = clause
		} else {
			combined = algebra.AndExpr{Left: combined, Right: clause}
		}
	}
	return combined, nil
}

// timestampVarsOf returns every timestamp variable synthesized while
// translating q's paths (mirrors translator.rs applying the from/to
// filters against every path's ?t once all paths are in the tree).
func (t *Translator) timestampVarsOf(q Query) []algebra.Variable {
	_ = q
	return t.lastSynthesizedTimestamp
}

func dateTimeLiteral(ts time.Time) algebra.Expression {
	return algebra.LiteralExpr{Literal: algebra.Literal{
		Value:    ts.UTC().Format(time.RFC3339),
		Datatype: xsdDateTime,
	}}
}

func literalExpression(l LiteralValue) (algebra.Expression, error) {
	switch {
	case l.Real != nil:
		return algebra.LiteralExpr{Literal: algebra.Literal{Value: fmt.Sprintf("%v", *l.Real), Datatype: xsdDouble}}, nil
	case l.Integer != nil:
		return algebra.LiteralExpr{Literal: algebra.Literal{Value: fmt.Sprintf("%d", *l.Integer), Datatype: xsdInteger}}, nil
	case l.Str != nil:
		return algebra.LiteralExpr{Literal: algebra.Literal{Value: *l.Str}}, nil
	case l.Boolean != nil:
		return algebra.LiteralExpr{Literal: algebra.Literal{Value: fmt.Sprintf("%v", *l.Boolean), Datatype: xsdBoolean}}, nil
	default:
		return nil, internalerrors.NewMalformedDSL("", fmt.Errorf("literal has no value"))
	}
}

// applyAggregation implements spec §4.5 step 6: bucket each value's
// timestamp into fixed-width windows via integer division of its
// nanosecond epoch offset, group by the bucket (plus any configured group
// variables), and convert the bucket index back to a datetime for
// projection. Grounded on translator.rs's aggregation handling
// (FLOOR(datetime_as_nanos(?t)/duration_ns) and the post-group Extend that
// turns the bucket back into a bucket_datetime).
func (t *Translator) applyAggregation(pattern algebra.GraphPattern, projection []algebra.Variable, agg Aggregation, group *GroupClause) (algebra.GraphPattern, []algebra.Variable, error) {
	if len(t.lastSynthesizedValue) == 0 || len(t.lastSynthesizedTimestamp) == 0 {
		return nil, nil, internalerrors.NewMalformedDSL("", fmt.Errorf("aggregation requires a time-series value and timestamp in scope"))
	}
	valueVar := t.lastSynthesizedValue[len(t.lastSynthesizedValue)-1]
	tVar := t.lastSynthesizedTimestamp[len(t.lastSynthesizedTimestamp)-1]

	bucketVar := t.freshVariable()
	nanosPerBucket := agg.Duration.Nanoseconds()
	pattern = algebra.Extend{
		Inner:    pattern,
		Variable: bucketVar,
		Expression: algebra.FunctionCallExpr{
			Function: "http://www.w3.org/2005/xpath-functions#floor",
			Args: []algebra.Expression{algebra.ArithmeticExpr{
				Op:   algebra.OpDivide,
				Left: algebra.FunctionCallExpr{Function: "https://hybridgraph.dev/ont#datetimeAsNanos", Args: []algebra.Expression{algebra.VariableExpr{Var: tVar}}},
				Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: fmt.Sprintf("%d", nanosPerBucket), Datatype: xsdInteger}},
			}},
		},
	}

	groupVars := []algebra.Variable{bucketVar}
	if group != nil {
		for _, name := range group.VarNames {
			groupVars = append(groupVars, algebra.MustVariable(name))
		}
	}

	resultVar := t.freshVariable()
	aggregateExpr, err := aggregateExpressionFor(agg.FunctionName, valueVar)
	if err != nil {
		return nil, nil, err
	}

	grouped := algebra.Group{
		Inner:     pattern,
		Variables: groupVars,
		Aggregates: []algebra.GroupAggregate{
			{Variable: resultVar, Aggregate: aggregateExpr},
		},
	}

	bucketDatetimeVar := t.freshVariable()
	extended := algebra.Extend{
		Inner:    grouped,
		Variable: bucketDatetimeVar,
		Expression: algebra.FunctionCallExpr{
			Function: "https://hybridgraph.dev/ont#nanosAsDatetime",
			Args: []algebra.Expression{
				algebra.ArithmeticExpr{Op: algebra.OpMultiply, Left: algebra.VariableExpr{Var: bucketVar}, Right: algebra.LiteralExpr{Literal: algebra.Literal{Value: fmt.Sprintf("%d", nanosPerBucket), Datatype: xsdInteger}}},
			},
		},
	}

	newProjection := []algebra.Variable{bucketDatetimeVar, resultVar}
	if group != nil {
		for _, name := range group.VarNames {
			newProjection = append(newProjection, algebra.MustVariable(name))
		}
	}

	return extended, newProjection, nil
}

func aggregateExpressionFor(fn string, v algebra.Variable) (algebra.AggregateExpression, error) {
	switch strings.ToLower(fn) {
	case "mean", "avg":
		return algebra.AvgAgg{Expr: algebra.VariableExpr{Var: v}}, nil
	case "min", "minimum":
		return algebra.MinAgg{Expr: algebra.VariableExpr{Var: v}}, nil
	case "max", "maximum":
		return algebra.MaxAgg{Expr: algebra.VariableExpr{Var: v}}, nil
	case "sum":
		return algebra.SumAgg{Expr: algebra.VariableExpr{Var: v}}, nil
	case "sample":
		return algebra.SampleAgg{Expr: algebra.VariableExpr{Var: v}}, nil
	case "count":
		return algebra.CountAgg{Expr: algebra.VariableExpr{Var: v}}, nil
	default:
		return nil, internalerrors.NewMalformedDSL("", fmt.Errorf("unknown aggregation function %q", fn))
	}
}
