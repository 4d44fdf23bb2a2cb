// Package pipeline wires the full run: intake, context retrieval,
// parallel analysis, attribution, consensus, and guardrail validation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/attribution"
	"github.com/quantfabric/analystd/internal/consensus"
	"github.com/quantfabric/analystd/internal/core"
	"github.com/quantfabric/analystd/internal/guardrail"
	"github.com/quantfabric/analystd/internal/ingest"
	"github.com/quantfabric/analystd/internal/orchestrator"
	"github.com/quantfabric/analystd/internal/store"
)

// Retriever is the memory boundary the pipeline needs: per-chunk
// context lookup and promoted-event writeback.
type Retriever interface {
	Retrieve(ctx context.Context, queries []string) []string
	Remember(ctx context.Context, content string, metadata map[string]string) error
}

// Analyzer is the multi-provider analysis stage.
type Analyzer interface {
	Analyze(ctx context.Context, chunks []core.Chunk, contexts []string) (*orchestrator.Result, error)
}

// Report summarizes one pipeline run.
type Report struct {
	RunID        string
	Fetched      int
	Ingested     int
	Deduplicated int
	// ProvidersOK / ProvidersFailed count provider outcomes.
	ProvidersOK     int
	ProvidersFailed int
	Decisions       int
	Events          int
	Promoted        int
	Eligible        int
	Rejected        int
	Duration        time.Duration
}

// Runner executes pipeline runs.
type Runner struct {
	source      ingest.Source
	snapshots   *store.SnapshotStore
	retriever   Retriever
	analyzer    Analyzer
	attribution *attribution.Service
	aggregator  *consensus.Aggregator
	events      *store.EventStore
	decisions   *store.DecisionStore
	validator   *guardrail.Validator
	metrics     *Metrics
	logger      *zap.Logger
}

// Deps collects the Runner's collaborators.
type Deps struct {
	Source      ingest.Source
	Snapshots   *store.SnapshotStore
	Retriever   Retriever
	Analyzer    Analyzer
	Attribution *attribution.Service
	Aggregator  *consensus.Aggregator
	Events      *store.EventStore
	Decisions   *store.DecisionStore
	Validator   *guardrail.Validator
	Metrics     *Metrics
	Logger      *zap.Logger
}

// NewRunner creates a Runner. All dependencies except Metrics and
// Logger are required.
func NewRunner(deps Deps) (*Runner, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("source is required")
	case deps.Snapshots == nil:
		return nil, fmt.Errorf("snapshot store is required")
	case deps.Retriever == nil:
		return nil, fmt.Errorf("retriever is required")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("analyzer is required")
	case deps.Attribution == nil:
		return nil, fmt.Errorf("attribution service is required")
	case deps.Aggregator == nil:
		return nil, fmt.Errorf("consensus aggregator is required")
	case deps.Events == nil:
		return nil, fmt.Errorf("event store is required")
	case deps.Decisions == nil:
		return nil, fmt.Errorf("decision store is required")
	case deps.Validator == nil:
		return nil, fmt.Errorf("guardrail validator is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{
		source:      deps.Source,
		snapshots:   deps.Snapshots,
		retriever:   deps.Retriever,
		analyzer:    deps.Analyzer,
		attribution: deps.Attribution,
		aggregator:  deps.Aggregator,
		events:      deps.Events,
		decisions:   deps.Decisions,
		validator:   deps.Validator,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}, nil
}

// Run executes one full pipeline pass. Already-ingested chunks are
// deduplicated at intake and never reach the providers; a run where
// everything deduplicates ends before any provider call.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := r.logger.With(zap.String("run_id", report.RunID))
	defer func() {
		report.Duration = time.Since(started)
		r.metrics.RunDuration.Observe(report.Duration.Seconds())
	}()

	chunks, err := r.source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetching chunks: %w", err)
	}
	report.Fetched = len(chunks)
	if len(chunks) == 0 {
		logger.Info("no chunks fetched, nothing to do")
		return report, nil
	}

	fresh := make([]core.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		inserted, err := r.snapshots.Upsert(ctx, chunk)
		if err != nil {
			return report, fmt.Errorf("persisting chunk %s: %w", chunk.SourceID, err)
		}
		if inserted {
			fresh = append(fresh, chunk)
			r.metrics.ChunksIngested.Inc()
		} else {
			r.metrics.ChunksDeduplicated.Inc()
		}
	}
	report.Ingested = len(fresh)
	report.Deduplicated = report.Fetched - report.Ingested
	if len(fresh) == 0 {
		logger.Info("all chunks already ingested",
			zap.Int("deduplicated", report.Deduplicated))
		return report, nil
	}

	queries := make([]string, len(fresh))
	for i, chunk := range fresh {
		queries[i] = chunk.Content
	}
	contexts := r.retriever.Retrieve(ctx, queries)

	result, err := r.analyzer.Analyze(ctx, fresh, contexts)
	if err != nil {
		// Includes total provider failure: nothing is attributed or
		// promoted from a run with zero validated results.
		return report, fmt.Errorf("analysis stage: %w", err)
	}

	run := r.attribution.NewRun(fresh)
	var decisions []core.Decision
	for _, outcome := range result.Outcomes {
		if outcome.Failed() {
			report.ProvidersFailed++
			r.metrics.ProviderFailures.WithLabelValues(outcome.Provider).Inc()
			continue
		}
		report.ProvidersOK++
		persisted, err := r.attribution.PersistBatch(ctx, run, outcome.Decisions)
		if err != nil {
			return report, fmt.Errorf("attributing %s decisions: %w", outcome.Provider, err)
		}
		decisions = append(decisions, persisted...)
		r.metrics.DecisionsPersisted.WithLabelValues(outcome.Provider).
			Add(float64(len(persisted)))
	}
	report.Decisions = len(decisions)

	events := r.aggregator.Aggregate(decisions)
	report.Events = len(events)
	if err := r.events.SaveRun(ctx, report.RunID, events); err != nil {
		return report, fmt.Errorf("saving consensus events: %w", err)
	}
	promoted := consensus.Promoted(events)
	report.Promoted = len(promoted)
	r.metrics.EventsPromoted.Add(float64(len(promoted)))

	if err := r.validateDecisions(ctx, decisions, report, logger); err != nil {
		return report, err
	}

	r.rememberPromoted(ctx, promoted, logger)

	logger.Info("pipeline run complete",
		zap.Int("fetched", report.Fetched),
		zap.Int("ingested", report.Ingested),
		zap.Int("decisions", report.Decisions),
		zap.Int("promoted", report.Promoted),
		zap.Int("eligible", report.Eligible),
	)
	return report, nil
}

// validateDecisions runs the guardrail over every persisted decision
// and records the verdicts.
func (r *Runner) validateDecisions(ctx context.Context, decisions []core.Decision, report *Report, logger *zap.Logger) error {
	for _, verdict := range r.validator.ValidateAll(ctx, decisions) {
		if err := r.decisions.SetGuardrailOutcome(ctx, verdict.DecisionID, verdict.Eligible, verdict.Reason); err != nil {
			return fmt.Errorf("recording guardrail outcome: %w", err)
		}
		if verdict.Eligible {
			report.Eligible++
		} else {
			report.Rejected++
			r.metrics.GuardrailRejects.WithLabelValues(verdict.Reason).Inc()
			logger.Info("decision rejected by guardrail",
				zap.String("decision_id", verdict.DecisionID),
				zap.String("reason", verdict.Reason))
		}
	}
	return nil
}

// rememberPromoted writes promoted events into memory so future runs
// retrieve them as historical context. Memory writes degrade, never
// fail the run.
func (r *Runner) rememberPromoted(ctx context.Context, promoted []core.ConsensusEvent, logger *zap.Logger) {
	for _, ev := range promoted {
		content := fmt.Sprintf("%s %s (confidence %d): %s",
			ev.Ticker, ev.Signal, ev.Confidence, ev.Description)
		metadata := map[string]string{
			"ticker": ev.Ticker,
			"signal": string(ev.Signal),
		}
		if err := r.retriever.Remember(ctx, content, metadata); err != nil {
			logger.Warn("failed to write promoted event to memory",
				zap.String("key", ev.Key),
				zap.Error(err))
		}
	}
}
