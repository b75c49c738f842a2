package algebra

// TermPattern is a subject or object position in a triple pattern: a named
// node, a literal, a blank node, or a variable.
type TermPattern interface {
	termPattern()
}

// NamedNodeTerm is a fixed IRI term.
type NamedNodeTerm struct{ IRI NamedNode }

// LiteralTerm is a fixed literal term.
type LiteralTerm struct{ Literal Literal }

// BlankNodeTerm is a blank node term. The preprocessor replaces every
// occurrence with a VariableTerm before any other component sees it.
type BlankNodeTerm struct{ Node BlankNode }

// VariableTerm is a variable term.
type VariableTerm struct{ Var Variable }

func (NamedNodeTerm) termPattern()  {}
func (LiteralTerm) termPattern()    {}
func (BlankNodeTerm) termPattern()  {}
func (VariableTerm) termPattern()   {}

// VariableOf returns the variable carried by term, if any.
func VariableOf(term TermPattern) (Variable, bool) {
	if v, ok := term.(VariableTerm); ok {
		return v.Var, true
	}
	return "", false
}

// NamedNodePattern is a predicate position: a named node or a variable.
type NamedNodePattern interface {
	namedNodePattern()
}

// FixedPredicate is a predicate with a known IRI.
type FixedPredicate struct{ IRI NamedNode }

// VariablePredicate is a predicate bound to a variable.
type VariablePredicate struct{ Var Variable }

func (FixedPredicate) namedNodePattern()    {}
func (VariablePredicate) namedNodePattern() {}

// TriplePattern is one BGP triple.
type TriplePattern struct {
	Subject   TermPattern
	Predicate NamedNodePattern
	Object    TermPattern
}

// PredicateIRI returns the triple's predicate IRI and true, if the
// predicate position is a fixed (non-variable) IRI.
func (t TriplePattern) PredicateIRI() (NamedNode, bool) {
	if p, ok := t.Predicate.(FixedPredicate); ok {
		return p.IRI, true
	}
	return "", false
}
