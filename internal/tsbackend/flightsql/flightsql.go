// Package flightsql is the Arrow-Flight-SQL-shaped tsbackend.Backend
// adapter named in spec.md §1's out-of-scope external collaborators list
// ("a SQL-over-Arrow-Flight service"). The concrete Flight SQL RPC
// transport is an external collaborator the spec assumes exists (spec.md
// §1: "the concrete time-series drivers (Arrow-Flight-SQL, ...,
// Chrono/Arrow plumbing)... The design assumes these exist and expose the
// interfaces listed"); this package compiles a tsbackend.TimeSeriesQuery
// into SQL and an Arrow schema, executes it through an injected
// QueryExecutor, and decodes the returned Arrow record into a
// resultstream.ResultStream.
//
// Grounded on internal/adapters/trino/adapter.go's thin
// Adapter{config,db}/Execute/Ping/Close shape, generalized from a
// database/sql driver to an Arrow Flight SQL RPC client, and
// internal/sql/rewriter.go's SQL-text construction style.
package flightsql

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
)

// QueryExecutor is the injected Arrow-Flight-SQL RPC transport. A real
// implementation wraps a flightsql.Client's PreparedStatementQuery/DoGet
// round trip; that transport is out of scope per spec.md §1, so this
// adapter depends only on the narrow interface it needs.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, sql string) (arrow.Record, error)
}

// Adapter is the Flight-SQL-shaped tsbackend.Backend implementation.
type Adapter struct {
	name     string
	executor QueryExecutor
	caps     tsbackend.BackendCapabilities
}

// Config configures an Adapter.
type Config struct {
	// Name identifies this backend instance in diagnostics.
	Name string
	// Executor is the injected Flight SQL RPC client.
	Executor QueryExecutor
}

// New builds a Flight-SQL-shaped adapter. Because the backing service is a
// full SQL engine, it declares support for every pushdown and for compound
// (multi-identifier) queries.
func New(cfg Config) *Adapter {
	return &Adapter{
		name:     cfg.Name,
		executor: cfg.Executor,
		caps: tsbackend.BackendCapabilities{
			AllowCompoundTimeSeriesQueries: true,
			SupportsGroupByPushdown:        true,
			SupportsValueConditionPushdown: true,
		},
	}
}

func (a *Adapter) Capabilities() tsbackend.BackendCapabilities { return a.caps }

// Ping executes a trivial query to verify the Flight SQL service answers.
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := a.executor.ExecuteQuery(ctx, "SELECT 1")
	if err != nil {
		return internalerrors.NewTimeSeriesTransportError(a.name, err)
	}
	return nil
}

// Execute compiles query into a SQL SELECT, runs it through the injected
// executor, and decodes the Arrow record into a ResultStream.
func (a *Adapter) Execute(ctx context.Context, query *tsbackend.TimeSeriesQuery) (resultstream.ResultStream, error) {
	sql := compileSQL(query)

	record, err := a.executor.ExecuteQuery(ctx, sql)
	if err != nil {
		return nil, internalerrors.NewTimeSeriesTransportError(sql, err)
	}
	defer record.Release()

	return decodeRecord(record, query)
}

// compileSQL renders query as a parameterless SELECT against a
// data_points(identifier, timestamp, value) table shape, matching the
// output table schema spec §6 assumes a time-series backend exposes.
func compileSQL(query *tsbackend.TimeSeriesQuery) string {
	var b strings.Builder
	b.WriteString("SELECT identifier")
	if query.TimestampColumn != "" {
		fmt.Fprintf(&b, ", timestamp AS %s", query.TimestampColumn)
	}
	if query.ValueColumn != "" {
		fmt.Fprintf(&b, ", value AS %s", query.ValueColumn)
	}
	for _, agg := range query.Aggregates {
		fmt.Fprintf(&b, ", %s(value) AS %s", strings.ToUpper(string(agg.Function)), agg.OutputColumn)
	}
	b.WriteString(" FROM data_points WHERE identifier IN (")
	for i, id := range query.Identifiers {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", id)
	}
	b.WriteString(")")

	for _, cond := range query.Conditions {
		fmt.Fprintf(&b, " AND value %s %v", cond.Operator, cond.Operand)
	}
	if query.From != nil {
		fmt.Fprintf(&b, " AND timestamp >= %q", query.From.UTC().Format("2006-01-02T15:04:05.999999999Z"))
	}
	if query.To != nil {
		fmt.Fprintf(&b, " AND timestamp <= %q", query.To.UTC().Format("2006-01-02T15:04:05.999999999Z"))
	}

	if query.GroupByIdentifier || len(query.GroupByColumns) > 0 || len(query.Aggregates) > 0 {
		groupCols := []string{}
		if query.GroupByIdentifier {
			groupCols = append(groupCols, "identifier")
		}
		groupCols = append(groupCols, query.GroupByColumns...)
		if len(groupCols) > 0 {
			fmt.Fprintf(&b, " GROUP BY %s", strings.Join(groupCols, ", "))
		}
	}

	return b.String()
}

// decodeRecord walks an arrow.Record's columns into resultstream.Row
// values, using the Arrow field's type to decide the Go value kind.
func decodeRecord(record arrow.Record, query *tsbackend.TimeSeriesQuery) (resultstream.ResultStream, error) {
	schema := record.Schema()
	cols := make([]resultstream.ColumnDef, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = resultstream.ColumnDef{Name: f.Name, Kind: resultstream.ColumnLiteral, Datatype: f.Type.Name()}
	}

	rows := make([]resultstream.Row, record.NumRows())
	for r := range rows {
		rows[r] = resultstream.Row{}
	}

	for c := 0; c < int(record.NumCols()); c++ {
		col := record.Column(c)
		name := schema.Field(c).Name
		for r := 0; r < col.Len(); r++ {
			if col.IsNull(r) {
				rows[r][name] = nil
				continue
			}
			v, err := scalarAt(col, r)
			if err != nil {
				return nil, internalerrors.NewDatatypeMismatch(name, "arrow scalar", fmt.Sprintf("%v", err))
			}
			rows[r][name] = v
		}
	}

	return resultstream.NewSliceStream(&resultstream.ResultSchema{Columns: cols}, rows), nil
}

func scalarAt(col arrow.Array, row int) (interface{}, error) {
	switch arr := col.(type) {
	case *array.Float64:
		return arr.Value(row), nil
	case *array.Int64:
		return float64(arr.Value(row)), nil
	case *array.String:
		return arr.Value(row), nil
	case *array.Timestamp:
		return arr.Value(row).ToTime(arrow.Nanosecond), nil
	case *array.Boolean:
		return arr.Value(row), nil
	default:
		return nil, fmt.Errorf("unsupported arrow column type %s", col.DataType())
	}
}
