package flightsql

import (
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
)

type fakeExecutor struct {
	lastSQL string
	record  arrow.Record
	err     error
}

func (f *fakeExecutor) ExecuteQuery(ctx context.Context, sql string) (arrow.Record, error) {
	f.lastSQL = sql
	if f.err != nil {
		return nil, f.err
	}
	f.record.Retain()
	return f.record, nil
}

func buildRecord(t *testing.T) arrow.Record {
	t.Helper()
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "identifier", Type: arrow.BinaryTypes.String},
		{Name: "total", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"sensor-1", "sensor-2"}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{60, 100}, nil)
	return b.NewRecord()
}

func TestExecuteCompilesSQLAndDecodesRecord(t *testing.T) {
	record := buildRecord(t)
	defer record.Release()
	exec := &fakeExecutor{record: record}
	a := New(Config{Name: "test", Executor: exec})

	stream, err := a.Execute(context.Background(), &tsbackend.TimeSeriesQuery{
		Identifiers:       []string{"sensor-1", "sensor-2"},
		ValueColumn:       "value",
		GroupByIdentifier: true,
		Aggregates:        []tsbackend.Aggregate{{Function: tsbackend.AggSum, OutputColumn: "total"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(exec.lastSQL, "SUM(value) AS total") {
		t.Fatalf("expected compiled SQL to project the aggregate, got %q", exec.lastSQL)
	}
	if !strings.Contains(exec.lastSQL, "GROUP BY identifier") {
		t.Fatalf("expected compiled SQL to group by identifier, got %q", exec.lastSQL)
	}

	rows, err := resultstream.CollectStream(context.Background(), stream)
	if err != nil {
		t.Fatalf("CollectStream: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["identifier"] != "sensor-1" || rows[0]["total"].(float64) != 60 {
		t.Fatalf("unexpected row 0: %+v", rows[0])
	}
}

func TestCapabilitiesDeclaresFullPushdownSupport(t *testing.T) {
	a := New(Config{Name: "test", Executor: &fakeExecutor{}})
	caps := a.Capabilities()
	if !caps.AllowCompoundTimeSeriesQueries || !caps.SupportsGroupByPushdown || !caps.SupportsValueConditionPushdown {
		t.Fatalf("expected full pushdown support, got %+v", caps)
	}
}

func TestPingPropagatesTransportError(t *testing.T) {
	a := New(Config{Name: "test", Executor: &fakeExecutor{err: context.DeadlineExceeded}})
	if err := a.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to surface the executor error")
	}
}

func TestCompileSQLAppliesValueConditionAndTimeBounds(t *testing.T) {
	sql := compileSQL(&tsbackend.TimeSeriesQuery{
		Identifiers:     []string{"sensor-1"},
		ValueColumn:     "value",
		TimestampColumn: "timestamp",
		Conditions:      []tsbackend.ValueCondition{{Operator: tsbackend.OpGreater, Operand: 15}},
	})
	if !strings.Contains(sql, "AND value > 15") {
		t.Fatalf("expected value condition in SQL, got %q", sql)
	}
}
