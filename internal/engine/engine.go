// Package engine wires the full query path together: parse/translate,
// preprocess, statically rewrite, and combine. It is the single entry
// point spec §6 names ("the Engine API") — everything else in this module
// is a component the Engine composes.
//
// Grounded on the teacher's internal/engines registry shape (one struct
// owning the transports and exposing a handful of top-level verbs) and
// internal/federation/executor.go's "stateless executor wrapping a
// per-call plan" lifecycle: a new Preprocessor/Rewriter pair is
// constructed per call, matching the teacher's per-request Planner.
package engine

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/combiner"
	"github.com/hybridgraph/hybridgraph/internal/config"
	"github.com/hybridgraph/hybridgraph/internal/dsltranslator"
	"github.com/hybridgraph/hybridgraph/internal/observability"
	"github.com/hybridgraph/hybridgraph/internal/preprocessor"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/rewriter"
	"github.com/hybridgraph/hybridgraph/internal/sparqlclient"
	"github.com/hybridgraph/hybridgraph/internal/sparqlparser"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// Engine is the hybrid query engine: one SPARQL endpoint plus at most one
// pluggable time-series backend (spec §6: "at most one active driver").
type Engine struct {
	cfg        *config.Config
	sparql     *sparqlclient.Client
	timeSeries tsbackend.Backend
	logger     observability.QueryLogger
	parser     *sparqlparser.Parser

	// timeSeriesSet records that SetTimeSeriesBackend has been called,
	// even with a nil driver.
	timeSeriesSet bool
}

// New constructs an Engine against endpoint using config.DefaultConfig()'s
// predicate/DSL/time-series settings. Use NewWithConfig to supply a loaded
// configuration (e.g. from internal/config.Load).
func New(endpoint string) *Engine {
	return NewWithConfig(config.DefaultConfig(), endpoint)
}

// NewWithConfig constructs an Engine from cfg, overriding cfg's configured
// SPARQL endpoint with endpoint.
func NewWithConfig(cfg *config.Config, endpoint string) *Engine {
	c := *cfg
	c.SPARQLEndpoint = endpoint
	return &Engine{
		cfg:    &c,
		sparql: sparqlclient.New(endpoint),
		logger: observability.NewNoopLogger(),
		parser: sparqlparser.NewParser(),
	}
}

// SetLogger installs a QueryLogger other than the default no-op, e.g. an
// observability.JSONLogger for audit trails.
func (e *Engine) SetLogger(logger observability.QueryLogger) {
	e.logger = logger
}

// SetTimeSeriesBackend installs driver as the engine's one active
// time-series backend. Returns ErrTimeSeriesBackendAlreadyDefined if one
// is already set (spec §6: "at most one active driver").
func (e *Engine) SetTimeSeriesBackend(driver tsbackend.Backend) error {
	if e.timeSeriesSet {
		return internalerrors.NewTimeSeriesBackendAlreadyDefined(fmt.Sprintf("%T", e.timeSeries))
	}
	e.timeSeries = driver
	e.timeSeriesSet = true
	return nil
}

// DoctorReport summarizes connectivity to the engine's dependencies, used
// by the CLI's doctor command and the gateway's /readyz endpoint.
type DoctorReport struct {
	SPARQLEndpoint    string
	SPARQLError       error
	TimeSeriesBackend string
	TimeSeriesError   error
}

// Doctor pings the configured SPARQL endpoint and, if one is set, the
// active time-series backend.
func (e *Engine) Doctor(ctx context.Context) DoctorReport {
	report := DoctorReport{SPARQLEndpoint: e.cfg.SPARQLEndpoint}
	report.SPARQLError = e.sparql.Ping(ctx)
	if e.timeSeries != nil {
		report.TimeSeriesBackend = fmt.Sprintf("%T", e.timeSeries)
		report.TimeSeriesError = e.timeSeries.Ping(ctx)
	}
	return report
}

// Table is the tabular result of a hybrid query (spec §6:
// `execute_hybrid_query(sparql) -> table`).
type Table struct {
	Schema *resultstream.ResultSchema
	Rows   []resultstream.Row
}

// ExecuteHybridQuery parses sparql, preprocesses and statically rewrites
// it, and executes the resulting static/time-series split through the
// combiner (spec §4's full pipeline).
func (e *Engine) ExecuteHybridQuery(ctx context.Context, sparql string) (*Table, error) {
	queryID := observability.NewQueryID()
	entry := observability.QueryLogEntry{QueryID: queryID, SPARQL: sparql, Engine: "hybrid"}

	parsed, err := e.parser.Parse(sparql)
	if err != nil {
		e.logFailure(ctx, entry, "parse", err)
		return nil, err
	}
	return e.runPipeline(ctx, entry, parsed)
}

// ExecuteDSLQuery translates dsl and runs it through the same pipeline as
// ExecuteHybridQuery. Per spec §1, the DSL's own lexer (parser
// combinators) is out of scope; dsl is a YAML document mirroring
// dsltranslator.Query's shape rather than the DSL's native surface
// syntax, which is how this engine accepts an already-parsed DSL AST as
// spec §4.5 expects while still taking a single string argument (spec
// §6: `execute_dsl_query(dsl) -> table`). Returns
// ErrDSLConfigurationMissing if name_predicate or connective_mapping has
// not been configured.
func (e *Engine) ExecuteDSLQuery(ctx context.Context, dsl string) (*Table, error) {
	if e.cfg.DSL.NamePredicate == "" {
		return nil, internalerrors.NewDSLConfigurationMissing("name_predicate")
	}
	if len(e.cfg.DSL.ConnectiveMapping) == 0 {
		return nil, internalerrors.NewDSLConfigurationMissing("connective_mapping")
	}

	queryID := observability.NewQueryID()
	entry := observability.QueryLogEntry{QueryID: queryID, SPARQL: dsl, Engine: "dsl"}

	var parsedDSL dsltranslator.Query
	if err := yaml.Unmarshal([]byte(dsl), &parsedDSL); err != nil {
		malformed := internalerrors.NewMalformedDSL(dsl, err)
		e.logFailure(ctx, entry, "parse", malformed)
		return nil, malformed
	}

	translator := dsltranslator.New(e.cfg.Predicates, e.cfg.DSL)
	translated, err := translator.Translate(parsedDSL)
	if err != nil {
		malformed := internalerrors.NewMalformedDSL(dsl, err)
		e.logFailure(ctx, entry, "translate", malformed)
		return nil, malformed
	}

	return e.runPipeline(ctx, entry, translated)
}

// Explanation is the result of rewriting a query without executing it
// (spec §6's explain surface, used by the CLI's explain command and the
// gateway's /query/explain endpoint).
type Explanation struct {
	StaticQuery          string
	TimeSeriesQueryCount int
	PushdownsAdmitted    int
	PushdownsRefused     int
	Direction            string
}

// ExplainHybridQuery parses, preprocesses, and statically rewrites sparql,
// stopping short of combiner execution. It never touches the configured
// time-series backend, so it succeeds even when none is set.
func (e *Engine) ExplainHybridQuery(ctx context.Context, sparql string) (*Explanation, error) {
	parsed, err := e.parser.Parse(sparql)
	if err != nil {
		return nil, err
	}
	return e.explain(parsed)
}

// ExplainDSLQuery is ExplainHybridQuery's DSL-as-YAML-document counterpart.
func (e *Engine) ExplainDSLQuery(ctx context.Context, dsl string) (*Explanation, error) {
	if e.cfg.DSL.NamePredicate == "" {
		return nil, internalerrors.NewDSLConfigurationMissing("name_predicate")
	}
	if len(e.cfg.DSL.ConnectiveMapping) == 0 {
		return nil, internalerrors.NewDSLConfigurationMissing("connective_mapping")
	}

	var parsedDSL dsltranslator.Query
	if err := yaml.Unmarshal([]byte(dsl), &parsedDSL); err != nil {
		return nil, internalerrors.NewMalformedDSL(dsl, err)
	}

	translator := dsltranslator.New(e.cfg.Predicates, e.cfg.DSL)
	translated, err := translator.Translate(parsedDSL)
	if err != nil {
		return nil, internalerrors.NewMalformedDSL(dsl, err)
	}
	return e.explain(translated)
}

func (e *Engine) explain(parsed *algebra.Select) (*Explanation, error) {
	pre := preprocessor.New(e.cfg.Predicates)
	preprocessed, constraintMap, err := pre.Preprocess(parsed)
	if err != nil {
		return nil, err
	}

	settings := tsquery.Settings{
		GroupBy:         e.cfg.TimeSeries.Pushdown.GroupBy,
		ValueConditions: e.cfg.TimeSeries.Pushdown.ValueConditions,
	}
	rw := rewriter.New(e.cfg.Predicates, settings, constraintMap)
	result, err := rw.Rewrite(preprocessed)
	if err != nil {
		return nil, err
	}

	return &Explanation{
		StaticQuery:          combiner.RenderSelect(result.Query),
		TimeSeriesQueryCount: len(result.TimeSeriesQueries),
		PushdownsAdmitted:    result.PushdownsAdmitted,
		PushdownsRefused:     result.PushdownsRefused,
		Direction:            result.Direction.String(),
	}, nil
}

func (e *Engine) runPipeline(ctx context.Context, entry observability.QueryLogEntry, parsed *algebra.Select) (*Table, error) {
	pre := preprocessor.New(e.cfg.Predicates)
	preprocessed, constraintMap, err := pre.Preprocess(parsed)
	if err != nil {
		e.logFailure(ctx, entry, "preprocess", err)
		return nil, err
	}

	settings := tsquery.Settings{
		GroupBy:         e.cfg.TimeSeries.Pushdown.GroupBy,
		ValueConditions: e.cfg.TimeSeries.Pushdown.ValueConditions,
	}
	rw := rewriter.New(e.cfg.Predicates, settings, constraintMap)
	result, err := rw.Rewrite(preprocessed)
	if err != nil {
		e.logFailure(ctx, entry, "rewrite", err)
		return nil, err
	}

	entry.PlannerDecision = "rewritten"
	entry.TimeSeriesQueryCount = len(result.TimeSeriesQueries)
	entry.PushdownsAdmitted = result.PushdownsAdmitted
	entry.PushdownsRefused = result.PushdownsRefused
	entry.ChangeDirection = result.Direction.String()

	if len(result.TimeSeriesQueries) > 0 && e.timeSeries == nil {
		missing := internalerrors.NewTimeSeriesBackendMissing()
		e.logFailure(ctx, entry, "execute", missing)
		return nil, missing
	}

	comb := &combiner.Combiner{
		SPARQL:     e.sparql,
		TimeSeries: e.timeSeries,
		Logger:     e.logger,
	}
	stream, err := comb.Execute(ctx, preprocessed.Pattern, preprocessed.Variables, result)
	if err != nil {
		e.logFailure(ctx, entry, "execute", err)
		return nil, err
	}

	rows, err := resultstream.CollectStream(ctx, stream)
	if err != nil {
		e.logFailure(ctx, entry, "execute", err)
		return nil, err
	}

	entry.Outcome = "success"
	_ = e.logger.LogQuery(ctx, entry)

	return &Table{Schema: stream.Schema(), Rows: rows}, nil
}

func (e *Engine) logFailure(ctx context.Context, entry observability.QueryLogEntry, stage string, err error) {
	entry.Outcome = "error"
	entry.Error = fmt.Sprintf("%s: %s", stage, err.Error())
	_ = e.logger.LogQuery(ctx, entry)
}
