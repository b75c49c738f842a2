package memframe

import (
	"context"
	"testing"
	"time"

	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func fixtures() []DataPoint {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []DataPoint{
		{Identifier: "sensor-1", Timestamp: base, Value: 10},
		{Identifier: "sensor-1", Timestamp: base.Add(time.Minute), Value: 20},
		{Identifier: "sensor-1", Timestamp: base.Add(2 * time.Minute), Value: 30},
		{Identifier: "sensor-2", Timestamp: base, Value: 100},
	}
}

func TestExecuteReturnsAllPointsForIdentifier(t *testing.T) {
	b := openTestBackend(t)
	if err := b.LoadFixtures(fixtures()); err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}

	stream, err := b.Execute(context.Background(), &tsbackend.TimeSeriesQuery{
		Identifiers:     []string{"sensor-1"},
		ValueColumn:     "value",
		TimestampColumn: "timestamp",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := resultstream.CollectStream(context.Background(), stream)
	if err != nil {
		t.Fatalf("CollectStream: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0]["value"].(float64) != 10 {
		t.Fatalf("expected rows sorted by timestamp ascending, got %v", rows[0]["value"])
	}
}

func TestExecuteAppliesValueCondition(t *testing.T) {
	b := openTestBackend(t)
	if err := b.LoadFixtures(fixtures()); err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}

	stream, err := b.Execute(context.Background(), &tsbackend.TimeSeriesQuery{
		Identifiers:     []string{"sensor-1"},
		ValueColumn:     "value",
		TimestampColumn: "timestamp",
		Conditions:      []tsbackend.ValueCondition{{Operator: tsbackend.OpGreater, Operand: 15}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := resultstream.CollectStream(context.Background(), stream)
	if err != nil {
		t.Fatalf("CollectStream: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows > 15, got %d", len(rows))
	}
}

func TestExecuteAppliesTimeBounds(t *testing.T) {
	b := openTestBackend(t)
	if err := b.LoadFixtures(fixtures()); err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	from := base.Add(30 * time.Second)

	stream, err := b.Execute(context.Background(), &tsbackend.TimeSeriesQuery{
		Identifiers:     []string{"sensor-1"},
		ValueColumn:     "value",
		TimestampColumn: "timestamp",
		From:            &from,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := resultstream.CollectStream(context.Background(), stream)
	if err != nil {
		t.Fatalf("CollectStream: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after the From bound, got %d", len(rows))
	}
}

func TestExecuteAggregatesPerIdentifier(t *testing.T) {
	b := openTestBackend(t)
	if err := b.LoadFixtures(fixtures()); err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}

	stream, err := b.Execute(context.Background(), &tsbackend.TimeSeriesQuery{
		Identifiers:       []string{"sensor-1", "sensor-2"},
		ValueColumn:       "value",
		TimestampColumn:   "timestamp",
		GroupByIdentifier: true,
		Aggregates:        []tsbackend.Aggregate{{Function: tsbackend.AggSum, OutputColumn: "total"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := resultstream.CollectStream(context.Background(), stream)
	if err != nil {
		t.Fatalf("CollectStream: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	totals := map[string]float64{}
	for _, r := range rows {
		totals[r["identifier"].(string)] = r["total"].(float64)
	}
	if totals["sensor-1"] != 60 {
		t.Fatalf("expected sensor-1 total 60, got %v", totals["sensor-1"])
	}
	if totals["sensor-2"] != 100 {
		t.Fatalf("expected sensor-2 total 100, got %v", totals["sensor-2"])
	}
}

func TestExecuteWithPartitionBucketingMatchesUnbucketed(t *testing.T) {
	b, err := Open(Options{Bucketing: PartitionBucketing{PrefixLength: 7}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	if err := b.LoadFixtures(fixtures()); err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}

	stream, err := b.Execute(context.Background(), &tsbackend.TimeSeriesQuery{
		Identifiers:     []string{"sensor-1", "sensor-2"},
		ValueColumn:     "value",
		TimestampColumn: "timestamp",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows, err := resultstream.CollectStream(context.Background(), stream)
	if err != nil {
		t.Fatalf("CollectStream: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows across both buckets, got %d", len(rows))
	}
}

func TestCapabilitiesDeclaresFullPushdownSupport(t *testing.T) {
	b := openTestBackend(t)
	caps := b.Capabilities()
	if !caps.AllowCompoundTimeSeriesQueries || !caps.SupportsGroupByPushdown || !caps.SupportsValueConditionPushdown {
		t.Fatalf("expected full pushdown support, got %+v", caps)
	}
}

func TestPingSucceedsOnOpenStore(t *testing.T) {
	b := openTestBackend(t)
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
