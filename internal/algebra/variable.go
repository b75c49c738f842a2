// Package algebra provides a typed representation of the SPARQL 1.1 algebra
// fragment this engine rewrites: graph patterns, expressions, aggregate
// expressions, and the path breadcrumb used for scope comparisons.
package algebra

import (
	"fmt"
	"regexp"
)

// Variable is a validated SPARQL variable name (without the leading '?').
type Variable string

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewVariable validates name as a legal SPARQL variable name.
func NewVariable(name string) (Variable, error) {
	if !variableNamePattern.MatchString(name) {
		return "", fmt.Errorf("algebra: %q is not a legal SPARQL variable name", name)
	}
	return Variable(name), nil
}

// MustVariable panics if name is not a legal variable name. Used for
// constructing engine-internal synthetic variables whose names are known
// to be well-formed at compile time.
func MustVariable(name string) Variable {
	v, err := NewVariable(name)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the variable with its SPARQL sigil.
func (v Variable) String() string {
	return "?" + string(v)
}

// BlankNode is a SPARQL blank node label, pre-elimination by the
// preprocessor.
type BlankNode string

// NamedNode is an absolute IRI.
type NamedNode string

// Literal is an RDF literal: a lexical value plus an optional datatype IRI
// and/or language tag.
type Literal struct {
	Value    string
	Datatype NamedNode
	Language string
}
