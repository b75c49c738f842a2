// Package tsbackend declares the pluggable time-series backend driver
// contract (spec §6's "Time-series backend driver trait") and the wire
// query shape the combiner compiles a tracked internal/tsquery.Query tree
// into before handing it to a driver. Grounded on
// _examples/saurabh22suman-canonica-labs/internal/adapters/adapter.go's
// EngineAdapter interface and internal/router/router.go's registry.
package tsbackend

import (
	"context"
	"time"

	"github.com/hybridgraph/hybridgraph/internal/resultstream"
)

// ValueOperator is a value-condition comparison pushed down onto a
// time-series query (spec §4.3's ValueConditions pushdown).
type ValueOperator string

const (
	OpEqual          ValueOperator = "="
	OpNotEqual       ValueOperator = "!="
	OpLess           ValueOperator = "<"
	OpLessOrEqual    ValueOperator = "<="
	OpGreater        ValueOperator = ">"
	OpGreaterOrEqual ValueOperator = ">="
)

// ValueCondition is one pushed-down filter against a data point's value.
type ValueCondition struct {
	Operator ValueOperator
	Operand  float64
}

// AggregateFunction is a pushed-down group-by aggregate function (spec
// §4.3 step 5).
type AggregateFunction string

const (
	AggCount  AggregateFunction = "count"
	AggSum    AggregateFunction = "sum"
	AggAvg    AggregateFunction = "avg"
	AggMin    AggregateFunction = "min"
	AggMax    AggregateFunction = "max"
	AggSample AggregateFunction = "sample"
)

// Aggregate is one pushed-down group-by aggregate, naming the output
// column it binds.
type Aggregate struct {
	Function     AggregateFunction
	OutputColumn string
}

// TimeSeriesQuery is the backend-agnostic wire shape the combiner compiles
// a tracked query tree into (spec §6: `execute(query: TimeSeriesQuery) ->
// table`).
type TimeSeriesQuery struct {
	// Identifiers are the external time-series identifiers this query
	// covers, bound from the static result's external-id column.
	Identifiers []string

	// ValueColumn/TimestampColumn name the output columns the backend
	// should bind the data point's value/timestamp to.
	ValueColumn     string
	TimestampColumn string

	// Conditions are conjoined value-condition pushdowns (spec §4.3).
	Conditions []ValueCondition

	// From/To bound the timestamp range, inclusive, nil meaning unbounded.
	From *time.Time
	To   *time.Time

	// GroupByIdentifier requests one group per identifier in addition to
	// any GroupByColumns (spec §4.3's identifier-keyed group-by pushdown).
	GroupByIdentifier bool
	GroupByColumns    []string
	Aggregates        []Aggregate
}

// BackendCapabilities is the driver capability/pushdown-settings
// declaration spec §6 calls for: `allow_compound_timeseries_queries` and
// `pushdown_settings ⊆ {GroupBy, ValueConditions, ...}`.
type BackendCapabilities struct {
	AllowCompoundTimeSeriesQueries bool
	SupportsGroupByPushdown        bool
	SupportsValueConditionPushdown bool
}

// Backend is the pluggable time-series driver interface (spec §6).
type Backend interface {
	Execute(ctx context.Context, query *TimeSeriesQuery) (resultstream.ResultStream, error)
	Capabilities() BackendCapabilities
	Ping(ctx context.Context) error
}
