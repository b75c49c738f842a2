package combiner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hybridgraph/hybridgraph/internal/algebra"
	"github.com/hybridgraph/hybridgraph/internal/observability"
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/rewriter"
	"github.com/hybridgraph/hybridgraph/internal/sparqlclient"
	"github.com/hybridgraph/hybridgraph/internal/tsbackend"
	"github.com/hybridgraph/hybridgraph/internal/tsquery"
)

// SPARQLClient is the subset of sparqlclient.Client the combiner needs,
// letting tests substitute a fake endpoint.
type SPARQLClient interface {
	Execute(ctx context.Context, sparql string) (*sparqlclient.Results, error)
}

// Combiner is the spec §4.4 executor: it owns no per-query state and is
// safe to reuse across queries, matching internal/federation/executor.go's
// stateless-executor shape.
type Combiner struct {
	SPARQL     SPARQLClient
	TimeSeries tsbackend.Backend
	Logger     observability.QueryLogger
}

// Execute runs the full spec §4.4 procedure: static query, identifier
// binding, concurrent time-series execution, join, and re-evaluation of
// the original algebra tree's remaining dynamic nodes.
func (c *Combiner) Execute(ctx context.Context, original algebra.GraphPattern, originalVariables []algebra.Variable, result *rewriter.Result) (resultstream.ResultStream, error) {
	sparqlText := RenderSelect(result.Query)

	staticResults, err := c.SPARQL.Execute(ctx, sparqlText)
	if err != nil {
		return nil, fmt.Errorf("combiner: executing static query: %w", err)
	}
	base := staticFrame(staticResults)

	for _, candidate := range result.GroupPushdownPending {
		counts := computeIdentifierTupleCounts(base, candidate)
		candidate.Confirm(counts)
	}

	var allLeaves []*compiledLeaf
	for i, q := range result.TimeSeriesQueries {
		compiled, err := compile(q, base)
		if err != nil {
			return nil, fmt.Errorf("combiner: compiling time-series query %d: %w", i, err)
		}
		allLeaves = append(allLeaves, compiled...)
	}

	leafFrames := make([]*frame, len(allLeaves))
	g, gctx := errgroup.WithContext(ctx)
	for i, leaf := range allLeaves {
		i, leaf := i, leaf
		g.Go(func() error {
			f, err := executeLeaf(gctx, c.TimeSeries, leaf)
			if err != nil {
				return fmt.Errorf("combiner: executing time-series query for %s: %w", leaf.basic.IdentifierVariable, err)
			}
			leafFrames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	joined := base
	for _, f := range leafFrames {
		joined = innerJoin(joined, f)
	}

	out, err := evaluate(original, joined)
	if err != nil {
		return nil, err
	}
	if len(originalVariables) > 0 {
		out = project(out, originalVariables)
	}

	return resultstream.NewSliceStream(out.schema, out.rows), nil
}

func computeIdentifierTupleCounts(base *frame, candidate *rewriter.GroupPushdownCandidate) *tsquery.IdentifierTupleCounts {
	idValues := identifierValues(base, string(candidate.Identifier))

	staticVars := candidate.Partition.StaticGroupingVariables
	if len(staticVars) == 0 {
		return &tsquery.IdentifierTupleCounts{
			DistinctIdentifierValues: len(idValues),
			DistinctGroupingTuples:   len(idValues),
		}
	}

	names := make([]string, len(staticVars))
	for i, v := range staticVars {
		names[i] = string(v)
	}
	seen := make(map[string]bool)
	for _, r := range base.rows {
		seen[rowKey(r, names)] = true
	}

	return &tsquery.IdentifierTupleCounts{
		DistinctIdentifierValues: len(idValues),
		DistinctGroupingTuples:   len(seen),
	}
}
