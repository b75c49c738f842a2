// Package memframe is the in-memory reference implementation of
// tsbackend.Backend: a badger-backed key/value store of data points,
// queried by identifier and optional value/time conditions, with an
// optional partition-by-identifier-prefix bucketing mode. Grounded on
// _examples/wbrown-janus-datalog/datalog/storage/badger_store.go's
// BadgerStore (Open/Update/View/iterator shape) and SPEC_FULL.md's feature
// supplement from
// original_source/hybrid/src/timeseries_database/timeseries_sql_rewrite/partitioning_support.rs.
package memframe

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	internalerrors "github.com/hybridgraph/hybridgraph/internal/errors"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
)

// DataPoint is one fixture record loaded into the backend.
type DataPoint struct {
	Identifier string
	Timestamp  time.Time
	Value      float64
}

// PartitionBucketing buckets identifiers by a prefix length so that
// Execute can fan out scans across buckets in parallel
// instead of one linear scan over every identifier (SPEC_FULL.md feature
// supplement from partitioning_support.rs).
type PartitionBucketing struct {
	// PrefixLength is the number of leading bytes of an identifier used as
	// its bucket key. Zero disables bucketing (a single implicit bucket).
	PrefixLength int
}

func (p PartitionBucketing) bucketOf(identifier string) string {
	if p.PrefixLength <= 0 || len(identifier) < p.PrefixLength {
		return identifier
	}
	return identifier[:p.PrefixLength]
}

// Backend is the badger-backed reference time-series backend.
type Backend struct {
	db         *badger.DB
	bucketing  PartitionBucketing
	concurrency int
}

// Options configures a new Backend.
type Options struct {
	// Path is the badger data directory. Empty uses badger's in-memory mode.
	Path        string
	Bucketing   PartitionBucketing
	Concurrency int
}

// Open creates a Backend, using badger's in-memory mode when opts.Path is
// empty (mirrors the teacher's BadgerStore.Open but tuned for a small
// reference fixture store rather than a production datom index).
func Open(opts Options) (*Backend, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("memframe: opening badger: %w", err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Backend{db: db, bucketing: opts.Bucketing, concurrency: concurrency}, nil
}

// Close releases the underlying badger store.
func (b *Backend) Close() error {
	return b.db.Close()
}

// key encodes (identifier, timestamp) into a lexicographically sortable
// badger key: identifier, a NUL separator, then the big-endian nanosecond
// timestamp, so a per-identifier range scan is a contiguous key range.
func key(identifier string, ts time.Time) []byte {
	buf := make([]byte, 0, len(identifier)+1+8)
	buf = append(buf, []byte(identifier)...)
	buf = append(buf, 0)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(ts.UnixNano()))
	return append(buf, tsBuf[:]...)
}

func encodeValue(v float64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	return buf[:]
}

func decodeValue(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// LoadFixtures writes points into the store in one transaction, each under
// its identifier/timestamp key; it does no bucketing of its own.
func (b *Backend) LoadFixtures(points []DataPoint) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, p := range points {
			if err := txn.Set(key(p.Identifier, p.Timestamp), encodeValue(p.Value)); err != nil {
				return fmt.Errorf("memframe: writing fixture: %w", err)
			}
		}
		return nil
	})
}

// Capabilities declares this reference backend's pushdown support — both
// GroupBy and ValueConditions pushdown, and compound (multi-identifier)
// query support.
func (b *Backend) Capabilities() tsbackend.BackendCapabilities {
	return tsbackend.BackendCapabilities{
		AllowCompoundTimeSeriesQueries: true,
		SupportsGroupByPushdown:        true,
		SupportsValueConditionPushdown: true,
	}
}

// Ping verifies the badger store is usable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.View(func(txn *badger.Txn) error { return nil })
}

// Execute scans the requested identifiers' data points, applying value
// conditions and time bounds, optionally grouping/aggregating, and returns
// the result as a resultstream.ResultStream. When bucketing is enabled,
// buckets are scanned concurrently via errgroup, matching SPEC_FULL.md's
// note that partitioning "materially changes concurrency characteristics".
func (b *Backend) Execute(ctx context.Context, q *tsbackend.TimeSeriesQuery) (resultstream.ResultStream, error) {
	buckets := b.groupByBucket(q.Identifiers)

	type bucketResult struct {
		rows []resultstream.Row
	}
	results := make([]bucketResult, len(buckets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, bucket := range buckets {
		i, bucket := i, bucket
		g.Go(func() error {
			rows, err := b.scanIdentifiers(gctx, bucket, q)
			if err != nil {
				return err
			}
			results[i] = bucketResult{rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, internalerrors.NewTimeSeriesTransportError(fmt.Sprintf("%v", q.Identifiers), err)
	}

	var rows []resultstream.Row
	for _, r := range results {
		rows = append(rows, r.rows...)
	}

	if len(q.Aggregates) > 0 || q.GroupByIdentifier || len(q.GroupByColumns) > 0 {
		rows = aggregate(rows, q)
	}

	sort.Slice(rows, func(i, j int) bool {
		ti, _ := rows[i][q.TimestampColumn].(time.Time)
		tj, _ := rows[j][q.TimestampColumn].(time.Time)
		return ti.Before(tj)
	})

	return resultstream.NewSliceStream(schemaFor(q), rows), nil
}

func schemaFor(q *tsbackend.TimeSeriesQuery) *resultstream.ResultSchema {
	cols := []resultstream.ColumnDef{
		{Name: "identifier", Kind: resultstream.ColumnLiteral},
	}
	if q.TimestampColumn != "" {
		cols = append(cols, resultstream.ColumnDef{Name: q.TimestampColumn, Kind: resultstream.ColumnLiteral, Datatype: "dateTime"})
	}
	if q.ValueColumn != "" {
		cols = append(cols, resultstream.ColumnDef{Name: q.ValueColumn, Kind: resultstream.ColumnLiteral, Datatype: "double"})
	}
	for _, a := range q.Aggregates {
		cols = append(cols, resultstream.ColumnDef{Name: a.OutputColumn, Kind: resultstream.ColumnLiteral, Datatype: "double"})
	}
	return &resultstream.ResultSchema{Columns: cols}
}

// groupByBucket partitions identifiers into the buckets PartitionBucketing
// assigns them to; with bucketing disabled, every identifier shares one
// bucket and the scan is sequential inside scanIdentifiers.
func (b *Backend) groupByBucket(identifiers []string) [][]string {
	if b.bucketing.PrefixLength <= 0 {
		return [][]string{identifiers}
	}
	byBucket := make(map[string][]string)
	var order []string
	for _, id := range identifiers {
		bk := b.bucketing.bucketOf(id)
		if _, ok := byBucket[bk]; !ok {
			order = append(order, bk)
		}
		byBucket[bk] = append(byBucket[bk], id)
	}
	sort.Strings(order)
	out := make([][]string, len(order))
	for i, bk := range order {
		out[i] = byBucket[bk]
	}
	return out
}

func (b *Backend) scanIdentifiers(ctx context.Context, identifiers []string, q *tsbackend.TimeSeriesQuery) ([]resultstream.Row, error) {
	var rows []resultstream.Row
	err := b.db.View(func(txn *badger.Txn) error {
		for _, id := range identifiers {
			if err := ctx.Err(); err != nil {
				return err
			}
			prefix := append([]byte(id), 0)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				ts := time.Unix(0, int64(binary.BigEndian.Uint64(item.Key()[len(prefix):]))).UTC()
				if q.From != nil && ts.Before(*q.From) {
					continue
				}
				if q.To != nil && ts.After(*q.To) {
					continue
				}

				var value float64
				if err := item.Value(func(val []byte) error {
					value = decodeValue(val)
					return nil
				}); err != nil {
					return err
				}

				if !satisfiesConditions(value, q.Conditions) {
					continue
				}

				row := resultstream.Row{"identifier": id}
				if q.TimestampColumn != "" {
					row[q.TimestampColumn] = ts
				}
				if q.ValueColumn != "" {
					row[q.ValueColumn] = value
				}
				rows = append(rows, row)
			}
		}
		return nil
	})
	return rows, err
}

func satisfiesConditions(value float64, conditions []tsbackend.ValueCondition) bool {
	for _, c := range conditions {
		switch c.Operator {
		case tsbackend.OpEqual:
			if value != c.Operand {
				return false
			}
		case tsbackend.OpNotEqual:
			if value == c.Operand {
				return false
			}
		case tsbackend.OpLess:
			if !(value < c.Operand) {
				return false
			}
		case tsbackend.OpLessOrEqual:
			if !(value <= c.Operand) {
				return false
			}
		case tsbackend.OpGreater:
			if !(value > c.Operand) {
				return false
			}
		case tsbackend.OpGreaterOrEqual:
			if !(value >= c.Operand) {
				return false
			}
		}
	}
	return true
}

// aggregate implements the pushed-down group-by (spec §4.3 step 5): group
// rows by identifier (if requested) and the query's GroupByColumns, then apply each requested
// aggregate function over the value column.
func aggregate(rows []resultstream.Row, q *tsbackend.TimeSeriesQuery) []resultstream.Row {
	type groupKey string
	groups := make(map[groupKey][]resultstream.Row)
	var order []groupKey

	for _, row := range rows {
		k := groupKeyOf(row, q)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]resultstream.Row, 0, len(order))
	for _, k := range order {
		members := groups[k]
		result := resultstream.Row{}
		if q.GroupByIdentifier {
			result["identifier"] = members[0]["identifier"]
		}
		for _, col := range q.GroupByColumns {
			result[col] = members[0][col]
		}
		if q.TimestampColumn != "" {
			result[q.TimestampColumn] = members[0][q.TimestampColumn]
		}
		for _, a := range q.Aggregates {
			result[a.OutputColumn] = applyAggregate(a.Function, members, q.ValueColumn)
		}
		out = append(out, result)
	}
	return out
}

func groupKeyOf(row resultstream.Row, q *tsbackend.TimeSeriesQuery) string {
	key := ""
	if q.GroupByIdentifier {
		key += fmt.Sprintf("id=%v;", row["identifier"])
	}
	for _, col := range q.GroupByColumns {
		key += fmt.Sprintf("%s=%v;", col, row[col])
	}
	return key
}

func applyAggregate(fn tsbackend.AggregateFunction, rows []resultstream.Row, valueColumn string) float64 {
	if len(rows) == 0 {
		return 0
	}
	switch fn {
	case tsbackend.AggCount:
		return float64(len(rows))
	case tsbackend.AggSample:
		v, _ := rows[0][valueColumn].(float64)
		return v
	case tsbackend.AggMin:
		min, _ := rows[0][valueColumn].(float64)
		for _, r := range rows[1:] {
			v, _ := r[valueColumn].(float64)
			if v < min {
				min = v
			}
		}
		return min
	case tsbackend.AggMax:
		max, _ := rows[0][valueColumn].(float64)
		for _, r := range rows[1:] {
			v, _ := r[valueColumn].(float64)
			if v > max {
				max = v
			}
		}
		return max
	case tsbackend.AggSum, tsbackend.AggAvg:
		var sum float64
		for _, r := range rows {
			v, _ := r[valueColumn].(float64)
			sum += v
		}
		if fn == tsbackend.AggAvg {
			return sum / float64(len(rows))
		}
		return sum
	default:
		return 0
	}
}
