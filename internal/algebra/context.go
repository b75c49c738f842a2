package algebra

import "strings"

// PathEntry is one token of a path breadcrumb (spec §3 "Path breadcrumb").
// Each token records two static properties used by the in-scope test:
// ExposesVariables (true for structural pattern positions whose bindings
// propagate up) and MaintainsFullDownwardScope (true for expression-embedded
// sub-expressions).
type PathEntry string

const (
	ProjectInner        PathEntry = "ProjectInner"
	FilterInner         PathEntry = "FilterInner"
	FilterExpression    PathEntry = "FilterExpression"
	LeftJoinLeft        PathEntry = "LeftJoinLeft"
	LeftJoinRight       PathEntry = "LeftJoinRight"
	LeftJoinExpression  PathEntry = "LeftJoinExpression"
	JoinLeft            PathEntry = "JoinLeft"
	JoinRight            PathEntry = "JoinRight"
	UnionLeft           PathEntry = "UnionLeft"
	UnionRight          PathEntry = "UnionRight"
	MinusLeft           PathEntry = "MinusLeft"
	MinusRight          PathEntry = "MinusRight"
	ExtendInner         PathEntry = "ExtendInner"
	ExtendExpression    PathEntry = "ExtendExpression"
	GroupInner          PathEntry = "GroupInner"
	GraphInner          PathEntry = "GraphInner"
	OrLeft              PathEntry = "OrLeft"
	OrRight             PathEntry = "OrRight"
	AndLeft             PathEntry = "AndLeft"
	AndRight            PathEntry = "AndRight"
	ExistsInner         PathEntry = "ExistsInner"
)

// structuralEntries are path positions whose bindings propagate up into
// the enclosing pattern's solution mappings (ExposesVariables = true).
var structuralEntries = map[PathEntry]bool{
	ProjectInner:  true,
	FilterInner:   true,
	LeftJoinLeft:  true,
	LeftJoinRight: true,
	JoinLeft:      true,
	JoinRight:     true,
	UnionLeft:     true,
	UnionRight:    true,
	MinusLeft:     true,
	ExtendInner:   true,
	GroupInner:    true,
	GraphInner:    true,
}

// ExposesVariables reports whether bindings made at this token propagate
// upward into the enclosing pattern's solution mappings.
func (e PathEntry) ExposesVariables() bool {
	return structuralEntries[e]
}

// MaintainsFullDownwardScope reports whether this token is an
// expression-embedded sub-expression position (the complement of a
// structural position).
func (e PathEntry) MaintainsFullDownwardScope() bool {
	return !structuralEntries[e]
}

// Context is an ordered breadcrumb of PathEntry tokens identifying where a
// sub-expression sits within the overall query tree (spec §3).
type Context struct {
	tokens []PathEntry
	// PathName mirrors the human-readable path_name original_source keeps
	// alongside the breadcrumb, used only for diagnostics (SPEC_FULL.md
	// feature supplement from query_context.rs).
	PathName string
}

// RootContext is the empty breadcrumb.
func RootContext() Context {
	return Context{}
}

// Push returns a new Context with entry appended.
func (c Context) Push(entry PathEntry) Context {
	tokens := make([]PathEntry, len(c.tokens)+1)
	copy(tokens, c.tokens)
	tokens[len(c.tokens)] = entry
	name := c.PathName
	if name == "" {
		name = string(entry)
	} else {
		name = name + "." + string(entry)
	}
	return Context{tokens: tokens, PathName: name}
}

// Tokens returns the breadcrumb's token sequence.
func (c Context) Tokens() []PathEntry {
	return c.tokens
}

// String renders the breadcrumb as a dotted path name.
func (c Context) String() string {
	if c.PathName != "" {
		return c.PathName
	}
	parts := make([]string, len(c.tokens))
	for i, t := range c.tokens {
		parts[i] = string(t)
	}
	return strings.Join(parts, ".")
}

// InScope tests whether two contexts compare in-scope (spec §3): after
// their common prefix, every token on the shorter side must expose
// variables upward, and every token on the longer side must maintain full
// downward scope.
func InScope(a, b Context) bool {
	shorter, longer := a.tokens, b.tokens
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	n := len(shorter)
	for i := 0; i < n; i++ {
		if shorter[i] != longer[i] {
			// Diverge before the common prefix ends: treat the
			// divergence point as the start of the "after prefix" region.
			n = i
			break
		}
	}
	for i := n; i < len(shorter); i++ {
		if !shorter[i].ExposesVariables() {
			return false
		}
	}
	for i := n; i < len(longer); i++ {
		if !longer[i].MaintainsFullDownwardScope() {
			return false
		}
	}
	return true
}
