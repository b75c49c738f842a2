package algebra

// GraphPattern is the closed sum type mirroring the SPARQL 1.1 algebra
// fragment this engine supports (spec §3): Bgp, Path, Join, LeftJoin,
// Filter, Union, Graph, Extend, Minus, Values, OrderBy, Project, Distinct,
// Reduced, Slice, Group, Service.
type GraphPattern interface {
	graphPattern()
}

// Bgp is a basic graph pattern: a conjunction of triple patterns.
type Bgp struct {
	Patterns []TriplePattern
}

// PathMultiplicity enumerates property path repetition operators.
type PathMultiplicity string

const (
	PathOne         PathMultiplicity = ""
	PathZeroOrMore  PathMultiplicity = "*"
	PathOneOrMore   PathMultiplicity = "+"
	PathZeroOrOne   PathMultiplicity = "?"
)

// PathElement is one step of a property path expression.
type PathElement struct {
	Predicate    NamedNode
	Inverse      bool
	Multiplicity PathMultiplicity
}

// Path is a property path pattern. Per spec Non-goals, property-path
// rewriting beyond blank-node desugaring is not supported; Path patterns
// are assumed already desugared to simple one-hop paths by the time the
// rewriter sees them (spec §4.2 "Values / Path").
type Path struct {
	Subject TermPattern
	Element PathElement
	Object  TermPattern
}

// Join is an inner join of two sub-patterns.
type Join struct{ Left, Right GraphPattern }

// LeftJoin is SPARQL OPTIONAL with an optional join filter.
type LeftJoin struct {
	Left, Right GraphPattern
	Expression  Expression // nil if no filter
}

// Filter restricts inner by expr.
type Filter struct {
	Expr  Expression
	Inner GraphPattern
}

// Union is the SPARQL UNION of two sub-patterns.
type Union struct{ Left, Right GraphPattern }

// Graph scopes inner to a named graph.
type Graph struct {
	Name  TermPattern
	Inner GraphPattern
}

// Extend binds the result of expression to variable, alongside inner's
// existing bindings.
type Extend struct {
	Inner      GraphPattern
	Variable   Variable
	Expression Expression
}

// Minus is SPARQL MINUS: left rows with no compatible mapping in right.
type Minus struct{ Left, Right GraphPattern }

// Values is an inline VALUES block.
type Values struct {
	Variables []Variable
	Bindings  [][]TermPattern // nil entries mean UNDEF
}

// OrderExpression is one ORDER BY key.
type OrderExpression struct {
	Expr       Expression
	Descending bool
}

// OrderBy sorts inner's solutions.
type OrderBy struct {
	Inner      GraphPattern
	Expression []OrderExpression
}

// Project restricts the visible variables of inner.
type Project struct {
	Inner     GraphPattern
	Variables []Variable
}

// Distinct deduplicates inner's solutions.
type Distinct struct{ Inner GraphPattern }

// Reduced permits (but does not require) deduplication of inner's solutions.
type Reduced struct{ Inner GraphPattern }

// Slice applies OFFSET/LIMIT.
type Slice struct {
	Inner  GraphPattern
	Start  int64
	Length *int64 // nil means unbounded
}

// GroupAggregate is one (output variable, aggregate expression) pair of a
// Group node.
type GroupAggregate struct {
	Variable  Variable
	Aggregate AggregateExpression
}

// Group partitions inner's solutions by variables and computes aggregates.
type Group struct {
	Inner      GraphPattern
	Variables  []Variable
	Aggregates []GroupAggregate
}

// Service is a federated SPARQL SERVICE clause. Per spec Non-goals
// (distributed multi-endpoint execution), Service patterns pass through
// unrewritten (spec §4.2 "Extend / ... / Service").
type Service struct {
	Endpoint TermPattern
	Inner    GraphPattern
	Silent   bool
}

func (Bgp) graphPattern()      {}
func (Path) graphPattern()     {}
func (Join) graphPattern()     {}
func (LeftJoin) graphPattern() {}
func (Filter) graphPattern()   {}
func (Union) graphPattern()    {}
func (Graph) graphPattern()    {}
func (Extend) graphPattern()   {}
func (Minus) graphPattern()    {}
func (Values) graphPattern()   {}
func (OrderBy) graphPattern()  {}
func (Project) graphPattern()  {}
func (Distinct) graphPattern() {}
func (Reduced) graphPattern()  {}
func (Slice) graphPattern()    {}
func (Group) graphPattern()    {}
func (Service) graphPattern()  {}

// Select is the top-level query form this engine accepts (spec §4.1:
// "Fails with OnlySelectSupported otherwise").
type Select struct {
	Pattern   GraphPattern
	Variables []Variable // the SELECT projection before any rewriting
}

func collectVarsInPattern(p GraphPattern, out map[Variable]struct{}) {
	if p == nil {
		return
	}
	switch n := p.(type) {
	case Bgp:
		for _, tp := range n.Patterns {
			if v, ok := VariableOf(tp.Subject); ok {
				out[v] = struct{}{}
			}
			if v, ok := VariableOf(tp.Object); ok {
				out[v] = struct{}{}
			}
			if vp, ok := tp.Predicate.(VariablePredicate); ok {
				out[vp.Var] = struct{}{}
			}
		}
	case Path:
		if v, ok := VariableOf(n.Subject); ok {
			out[v] = struct{}{}
		}
		if v, ok := VariableOf(n.Object); ok {
			out[v] = struct{}{}
		}
	case Join:
		collectVarsInPattern(n.Left, out)
		collectVarsInPattern(n.Right, out)
	case LeftJoin:
		collectVarsInPattern(n.Left, out)
		collectVarsInPattern(n.Right, out)
		if n.Expression != nil {
			collectVars(n.Expression, out)
		}
	case Filter:
		collectVarsInPattern(n.Inner, out)
		collectVars(n.Expr, out)
	case Union:
		collectVarsInPattern(n.Left, out)
		collectVarsInPattern(n.Right, out)
	case Graph:
		collectVarsInPattern(n.Inner, out)
	case Extend:
		collectVarsInPattern(n.Inner, out)
		out[n.Variable] = struct{}{}
		collectVars(n.Expression, out)
	case Minus:
		collectVarsInPattern(n.Left, out)
		collectVarsInPattern(n.Right, out)
	case Values:
		for _, v := range n.Variables {
			out[v] = struct{}{}
		}
	case OrderBy:
		collectVarsInPattern(n.Inner, out)
	case Project:
		collectVarsInPattern(n.Inner, out)
		for _, v := range n.Variables {
			out[v] = struct{}{}
		}
	case Distinct:
		collectVarsInPattern(n.Inner, out)
	case Reduced:
		collectVarsInPattern(n.Inner, out)
	case Slice:
		collectVarsInPattern(n.Inner, out)
	case Group:
		collectVarsInPattern(n.Inner, out)
		for _, v := range n.Variables {
			out[v] = struct{}{}
		}
		for _, a := range n.Aggregates {
			out[a.Variable] = struct{}{}
		}
	case Service:
		collectVarsInPattern(n.Inner, out)
	}
}

// UsedVariablesInPattern returns every variable referenced transitively by p.
func UsedVariablesInPattern(p GraphPattern) map[Variable]struct{} {
	out := make(map[Variable]struct{})
	collectVarsInPattern(p, out)
	return out
}
