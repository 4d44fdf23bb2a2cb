package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/attribution"
	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/consensus"
	"github.com/quantfabric/analystd/internal/core"
	"github.com/quantfabric/analystd/internal/guardrail"
	"github.com/quantfabric/analystd/internal/orchestrator"
	"github.com/quantfabric/analystd/internal/store"
)

type fakeSource struct {
	chunks []core.Chunk
	err    error
}

func (f *fakeSource) Fetch(context.Context) ([]core.Chunk, error) {
	return f.chunks, f.err
}

type fakeRetriever struct {
	contexts   []string
	remembered []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, queries []string) []string {
	if f.contexts != nil {
		return f.contexts
	}
	return make([]string, len(queries))
}

func (f *fakeRetriever) Remember(_ context.Context, content string, _ map[string]string) error {
	f.remembered = append(f.remembered, content)
	return nil
}

type fakeAnalyzer struct {
	result *orchestrator.Result
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, chunks []core.Chunk, contexts []string) (*orchestrator.Result, error) {
	f.calls++
	return f.result, f.err
}

type harness struct {
	runner    *Runner
	source    *fakeSource
	retriever *fakeRetriever
	analyzer  *fakeAnalyzer
	decisions *store.DecisionStore
	events    *store.EventStore
	snapshots *store.SnapshotStore
}

func newHarness(t *testing.T, source *fakeSource, analyzer *fakeAnalyzer) *harness {
	t.Helper()

	db, err := store.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)

	snapshots := store.NewSnapshotStore(db, zap.NewNop())
	decisions := store.NewDecisionStore(db)
	events := store.NewEventStore(db)

	attr, err := attribution.NewService(decisions, zap.NewNop())
	require.NoError(t, err)
	agg, err := consensus.New(config.ConsensusConfig{MinProviders: 2}, nil)
	require.NoError(t, err)
	validator, err := guardrail.New(
		config.GuardrailConfig{MinPrice: 1, MaxPrice: 10000, MinMarketCap: 1e9},
		guardrail.NewStaticTable(map[string]guardrail.Quote{
			"AAPL": {Price: 189.5, MarketCap: 2.9e12},
			"XLF":  {Price: 38.2, MarketCap: 5e10},
		}),
		nil,
	)
	require.NoError(t, err)

	retriever := &fakeRetriever{}
	runner, err := NewRunner(Deps{
		Source:      source,
		Snapshots:   snapshots,
		Retriever:   retriever,
		Analyzer:    analyzer,
		Attribution: attr,
		Aggregator:  agg,
		Events:      events,
		Decisions:   decisions,
		Validator:   validator,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)

	return &harness{
		runner:    runner,
		source:    source,
		retriever: retriever,
		analyzer:  analyzer,
		decisions: decisions,
		events:    events,
		snapshots: snapshots,
	}
}

func chunk(sourceID, content string) core.Chunk {
	return core.Chunk{
		SourceID:    sourceID,
		ContentHash: "hash-" + sourceID,
		Sender:      "crew@morningbrew.com",
		Subject:     "Markets",
		Content:     content,
		Date:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		IngestedAt:  time.Now().UTC(),
	}
}

func decision(id, sourceID, provider, ticker string, signal core.Signal, confidence int) core.Decision {
	return core.Decision{
		ID:            id,
		SourceID:      sourceID,
		Ticker:        ticker,
		Signal:        signal,
		Confidence:    confidence,
		Reasoning:     "reasoning for " + ticker,
		ModelProvider: provider,
		ModelName:     provider + "-model",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestRunEndToEnd(t *testing.T) {
	chunks := []core.Chunk{chunk("news_a_11111111", "Financials under pressure.")}
	analyzer := &fakeAnalyzer{result: &orchestrator.Result{Outcomes: []orchestrator.Outcome{
		{Provider: "openai", Model: "gpt-4o", Decisions: []core.Decision{
			decision("d1", "news_a_11111111", "openai", "XLF", core.SignalSell, 80),
		}},
		{Provider: "anthropic", Model: "claude", Decisions: []core.Decision{
			decision("d2", "news_a_11111111", "anthropic", "XLF", core.SignalSell, 70),
		}},
		{Provider: "gemini", Model: "g", Decisions: []core.Decision{
			decision("d3", "news_a_11111111", "gemini", "FAKE", core.SignalBuy, 90),
		}},
	}}}

	h := newHarness(t, &fakeSource{chunks: chunks}, analyzer)
	ctx := context.Background()

	report, err := h.runner.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 3, report.ProvidersOK)
	assert.Equal(t, 3, report.Decisions)
	assert.Equal(t, 2, report.Events)
	assert.Equal(t, 1, report.Promoted)
	assert.Equal(t, 2, report.Eligible)
	assert.Equal(t, 1, report.Rejected)
	assert.NotEmpty(t, report.RunID)

	// Decisions persisted with guardrail verdicts applied.
	rows, err := h.decisions.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byID := make(map[string]store.DecisionRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	assert.True(t, byID["d1"].Eligible)
	assert.True(t, byID["d2"].Eligible)
	assert.False(t, byID["d3"].Eligible)
	assert.Equal(t, guardrail.ReasonTickerNotFound, byID["d3"].RejectReason)

	// The promoted XLF|SELL event landed in the event log and in memory.
	promoted, err := h.events.List(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, "XLF|SELL", promoted[0].Key)
	assert.Equal(t, "anthropic,openai", promoted[0].Supporters)

	require.Len(t, h.retriever.remembered, 1)
	assert.Contains(t, h.retriever.remembered[0], "XLF SELL")
}

func TestRunEmptyFetch(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := newHarness(t, &fakeSource{}, analyzer)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
	assert.Zero(t, analyzer.calls)
}

func TestRunFullyDeduplicatedBatchSkipsAnalysis(t *testing.T) {
	chunks := []core.Chunk{chunk("news_a_11111111", "Same news again.")}
	analyzer := &fakeAnalyzer{result: &orchestrator.Result{}}
	h := newHarness(t, &fakeSource{chunks: chunks}, analyzer)
	ctx := context.Background()

	_, err := h.snapshots.Upsert(ctx, chunks[0])
	require.NoError(t, err)

	report, err := h.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 0, report.Ingested)
	assert.Equal(t, 1, report.Deduplicated)
	assert.Zero(t, analyzer.calls)
}

func TestRunSecondPassIsNoOp(t *testing.T) {
	chunks := []core.Chunk{chunk("news_a_11111111", "Fresh news.")}
	analyzer := &fakeAnalyzer{result: &orchestrator.Result{Outcomes: []orchestrator.Outcome{
		{Provider: "openai", Model: "gpt-4o", Decisions: []core.Decision{
			decision("d1", "news_a_11111111", "openai", "AAPL", core.SignalBuy, 80),
		}},
	}}}
	h := newHarness(t, &fakeSource{chunks: chunks}, analyzer)
	ctx := context.Background()

	_, err := h.runner.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, analyzer.calls)

	report, err := h.runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deduplicated)
	assert.Equal(t, 1, analyzer.calls, "replayed batch must not reach providers")
}

func TestRunTotalProviderFailureAborts(t *testing.T) {
	chunks := []core.Chunk{chunk("news_a_11111111", "News.")}
	analyzer := &fakeAnalyzer{err: orchestrator.ErrTotalProviderFailure}
	h := newHarness(t, &fakeSource{chunks: chunks}, analyzer)
	ctx := context.Background()

	_, err := h.runner.Run(ctx)
	require.ErrorIs(t, err, orchestrator.ErrTotalProviderFailure)

	// Nothing attributed, nothing promoted.
	rows, err := h.decisions.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
	events, err := h.events.List(ctx, 10, false)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRunPartialProviderFailureStillPromotes(t *testing.T) {
	chunks := []core.Chunk{chunk("news_a_11111111", "News.")}
	analyzer := &fakeAnalyzer{result: &orchestrator.Result{Outcomes: []orchestrator.Outcome{
		{Provider: "openai", Model: "gpt-4o", Decisions: []core.Decision{
			decision("d1", "news_a_11111111", "openai", "AAPL", core.SignalBuy, 80),
		}},
		{Provider: "anthropic", Model: "claude", Err: errors.New("connection refused")},
		{Provider: "gemini", Model: "g", Decisions: []core.Decision{
			decision("d2", "news_a_11111111", "gemini", "AAPL", core.SignalBuy, 90),
		}},
	}}}
	h := newHarness(t, &fakeSource{chunks: chunks}, analyzer)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProvidersFailed)
	assert.Equal(t, 2, report.ProvidersOK)
	assert.Equal(t, 1, report.Promoted)
}

func TestRunSourceError(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	h := newHarness(t, &fakeSource{err: errors.New("imap down")}, analyzer)

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, analyzer.calls)
}
