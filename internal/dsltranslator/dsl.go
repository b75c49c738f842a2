// Package dsltranslator implements spec §4.5: compiling the path/condition
// DSL into SPARQL algebra over a configurable naming schema. Grounded on
// _examples/original_source/dsl/src/translator.rs's Translator, and on the
// teacher's template-substitution/per-target-syntax rewrite pattern in
// internal/sql/rewriter.go's TimeTravelRewriter/WarehouseRewriter.
//
// The DSL's own lexer/parser-combinator grammar is out of scope (spec §1);
// this package accepts an already-parsed Query value and only implements
// the translation from that AST into algebra.GraphPattern.
package dsltranslator

import "time"

// BooleanOperator is a condition's comparison operator (spec §4.5 step 4).
type BooleanOperator string

const (
	OpEQ   BooleanOperator = "="
	OpNEQ  BooleanOperator = "!="
	OpLT   BooleanOperator = "<"
	OpLTEQ BooleanOperator = "<="
	OpGT   BooleanOperator = ">"
	OpGTEQ BooleanOperator = ">="
	OpLIKE BooleanOperator = "like"
)

// Connective is a DSL path-joining token (spec §4.5: ".", "-", ":", ";",
// "/", "\\"), mapped to an IRI by the caller-supplied connective mapping.
type Connective string

// Multiplicity mirrors algebra.PathMultiplicity for DSL path elements.
type Multiplicity string

const (
	MultOne        Multiplicity = ""
	MultZeroOrMore Multiplicity = "*"
	MultOneOrMore  Multiplicity = "+"
	MultZeroOrOne  Multiplicity = "?"
)

// Glue names a variable shared across multiple paths (the DSL's "glued
// variable" feature), rather than minting a fresh one for this element.
type Glue struct {
	ID string
}

// ElementConstraint is a path element's type/name restriction.
type ElementConstraint struct {
	Name     string // non-empty for Name and TypeNameAndName
	TypeName string // non-empty for TypeName and TypeNameAndName
}

// HasName reports whether this constraint carries a name restriction.
func (c ElementConstraint) HasName() bool { return c.Name != "" }

// HasTypeName reports whether this constraint carries a type-name restriction.
func (c ElementConstraint) HasTypeName() bool { return c.TypeName != "" }

// PathElement is one node of a path expression: either a glued variable
// reference or a name/type-name constrained element.
type PathElement struct {
	Glue         *Glue
	Constraint   *ElementConstraint
	Multiplicity Multiplicity
}

// PathStep is one "connective + element" pair following a path's first
// element.
type PathStep struct {
	Connective Connective
	Element    PathElement
}

// Path is a sequence of path elements joined by connectives, with an
// optional flag (translated to a LeftJoin, spec §4.5 step 4).
type Path struct {
	First    PathElement
	Steps    []PathStep
	Optional bool
}

// LiteralValue is a DSL literal on the right-hand side of a condition.
type LiteralValue struct {
	Real    *float64
	Integer *int64
	Str     *string
	Boolean *bool
}

// PathOrLiteral is the right-hand side of a conditioned path: either
// another path or a literal constant.
type PathOrLiteral struct {
	Path    *Path
	Literal *LiteralValue
}

// ConditionedPath is one left-hand path plus an optional comparison
// against a right-hand path or literal (spec §4.5 step 4).
type ConditionedPath struct {
	LHS      Path
	Operator *BooleanOperator
	RHS      *PathOrLiteral
}

// TopLevelConnective joins the boolean result of entire conditioned paths
// together (SPEC_FULL.md feature supplement grounded on
// original_source/dsl/src/translator.rs's ParsedConditionedPath list: the
// DSL supports multiple conditioned paths, not just one).
type TopLevelConnective string

const (
	TopLevelAnd TopLevelConnective = "and"
	TopLevelOr  TopLevelConnective = "or"
)

// GraphPathPattern is a list of conditioned paths joined by a top-level
// boolean connective.
type GraphPathPattern struct {
	ConditionedPaths []ConditionedPath
	// Joins[i] connects ConditionedPaths[i] to ConditionedPaths[i+1]; has
	// length len(ConditionedPaths)-1.
	Joins []TopLevelConnective
}

// GroupClause names the variables a DSL aggregation groups by.
type GroupClause struct {
	VarNames []string
}

// Aggregation is a DSL `aggregate <fn> over <duration>` clause (spec §4.5
// step 6).
type Aggregation struct {
	FunctionName string // mean|avg, min|minimum, max|maximum, sum, sample, count
	Duration     time.Duration
}

// Query is the parsed DSL query this translator consumes.
type Query struct {
	GraphPattern GraphPathPattern
	FromDatetime *time.Time
	ToDatetime   *time.Time
	Group        *GroupClause
	Aggregation  *Aggregation
}
