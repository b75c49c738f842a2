// Package observability provides structured logging for the hybrid query
// engine. Every query must emit: query_id, the change direction chosen at
// the root, the number of time-series queries emitted, the engine's pushdown
// decisions, execution time, and error (if any).
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QueryLogEntry contains all required fields for query logging.
type QueryLogEntry struct {
	// QueryID is the unique identifier for this query. Generated with
	// NewQueryID if the caller does not supply one.
	QueryID string

	// SPARQL is the original (or DSL-translated) SPARQL text.
	SPARQL string

	// ChangeDirection is the root rewrite's change-direction tag:
	// "no_change", "relaxed", or "constrained".
	ChangeDirection string

	// PlannerDecision is a brief human-readable rendering of the plan,
	// e.g. a Context path name (see internal/algebra.Context.String).
	PlannerDecision string

	// TimeSeriesQueryCount is the number of time-series queries the
	// rewriter emitted.
	TimeSeriesQueryCount int

	// PushdownsAdmitted/PushdownsRefused count group-by and expression
	// pushdown decisions made while rewriting.
	PushdownsAdmitted int
	PushdownsRefused  int

	// Engine is the time-series backend name used, if any.
	Engine string

	// ExecutionTime is how long the query took end to end.
	ExecutionTime time.Duration

	// Outcome is the result status: "success", "error", "rejected".
	Outcome string

	// Error contains the error message if the query failed.
	Error string

	// InvariantViolated names the violated invariant, if any.
	InvariantViolated string
}

// NewQueryID generates a fresh query identifier.
func NewQueryID() string {
	return uuid.NewString()
}

// Validate checks that all required fields are present.
func (e *QueryLogEntry) Validate() error {
	if e.QueryID == "" {
		return fmt.Errorf("observability: query_id is required")
	}
	if e.ExecutionTime < 0 {
		return fmt.Errorf("observability: execution_time cannot be negative")
	}
	return nil
}

// QueryLogger is the interface for query logging.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry QueryLogEntry) error
	GetAuditSummary() *AuditSummary
}

// AuditSummary represents aggregated audit statistics.
type AuditSummary struct {
	AcceptedCount       int                   `json:"accepted_count"`
	RejectedCount       int                   `json:"rejected_count"`
	TopRejectionReasons []RejectionReasonStat `json:"top_rejection_reasons"`
	AveragePushdownRate float64               `json:"average_pushdown_rate"`
}

// RejectionReasonStat represents rejection reason statistics.
type RejectionReasonStat struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// jsonLogOutput is the structured format for JSON logs.
type jsonLogOutput struct {
	Timestamp            string `json:"timestamp"`
	Level                string `json:"level"`
	QueryID              string `json:"query_id"`
	ChangeDirection      string `json:"change_direction,omitempty"`
	PlannerDecision      string `json:"planner_decision,omitempty"`
	TimeSeriesQueryCount int    `json:"time_series_query_count"`
	PushdownsAdmitted    int    `json:"pushdowns_admitted"`
	PushdownsRefused     int    `json:"pushdowns_refused"`
	Engine               string `json:"engine,omitempty"`
	ExecutionTimeMs      int64  `json:"execution_time_ms"`
	Outcome              string `json:"outcome,omitempty"`
	Error                string `json:"error,omitempty"`
	InvariantViolated    string `json:"invariant_violated,omitempty"`
}

// JSONLogger implements QueryLogger with JSON output.
type JSONLogger struct {
	writer  io.Writer
	entries []QueryLogEntry
	mu      sync.RWMutex
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		entries: make([]QueryLogEntry, 0),
	}
}

func toJSONOutput(entry QueryLogEntry) jsonLogOutput {
	level := "info"
	if entry.Error != "" {
		level = "error"
	}
	return jsonLogOutput{
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		Level:                level,
		QueryID:              entry.QueryID,
		ChangeDirection:      entry.ChangeDirection,
		PlannerDecision:      entry.PlannerDecision,
		TimeSeriesQueryCount: entry.TimeSeriesQueryCount,
		PushdownsAdmitted:    entry.PushdownsAdmitted,
		PushdownsRefused:     entry.PushdownsRefused,
		Engine:               entry.Engine,
		ExecutionTimeMs:      entry.ExecutionTime.Milliseconds(),
		Outcome:              entry.Outcome,
		Error:                entry.Error,
		InvariantViolated:    entry.InvariantViolated,
	}
}

// LogQuery logs a query execution event as JSON.
func (l *JSONLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(toJSONOutput(entry))
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// GetAuditSummary returns aggregated audit statistics.
func (l *JSONLogger) GetAuditSummary() *AuditSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := &AuditSummary{
		TopRejectionReasons: []RejectionReasonStat{},
	}

	rejectionReasons := make(map[string]int)
	var totalQueries, pushdownTotal, pushdownAdmitted int

	for _, entry := range l.entries {
		if entry.Error == "" {
			summary.AcceptedCount++
		} else {
			summary.RejectedCount++
			rejectionReasons[entry.Error]++
		}
		totalQueries++
		pushdownTotal += entry.PushdownsAdmitted + entry.PushdownsRefused
		pushdownAdmitted += entry.PushdownsAdmitted
	}

	for reason, count := range rejectionReasons {
		summary.TopRejectionReasons = append(summary.TopRejectionReasons, RejectionReasonStat{
			Reason: reason,
			Count:  count,
		})
	}
	sort.Slice(summary.TopRejectionReasons, func(i, j int) bool {
		return summary.TopRejectionReasons[i].Count > summary.TopRejectionReasons[j].Count
	})
	if len(summary.TopRejectionReasons) > 5 {
		summary.TopRejectionReasons = summary.TopRejectionReasons[:5]
	}

	if pushdownTotal > 0 {
		summary.AveragePushdownRate = float64(pushdownAdmitted) / float64(pushdownTotal)
	}

	return summary
}

// NoopLogger discards all logs. Used in tests and when logging is disabled.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	return nil
}

func (l *NoopLogger) GetAuditSummary() *AuditSummary {
	return &AuditSummary{TopRejectionReasons: []RejectionReasonStat{}}
}
