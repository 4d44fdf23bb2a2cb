package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/core"
	"github.com/quantfabric/analystd/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.DecisionStore, *store.EventStore) {
	t.Helper()

	db, err := store.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	decisions := store.NewDecisionStore(db)
	events := store.NewEventStore(db)

	srv, err := New(config.ServerConfig{Host: "localhost", Port: 9180},
		decisions, events, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	return srv, decisions, events
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestListDecisions(t *testing.T) {
	srv, decisions, _ := newTestServer(t)
	ctx := context.Background()

	d := core.Decision{
		ID:            "d1",
		SourceID:      "news_a_11111111",
		Ticker:        "AAPL",
		Signal:        core.SignalBuy,
		Confidence:    80,
		Reasoning:     "strong quarter",
		ModelProvider: "openai",
		ModelName:     "gpt-4o",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, decisions.Insert(ctx, d))
	require.NoError(t, decisions.SetGuardrailOutcome(ctx, "d1", true, ""))

	rec := get(t, srv, "/api/v1/decisions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "d1", body[0].ID)
	assert.Equal(t, "BUY", body[0].Signal)
	assert.Equal(t, "openai", body[0].ModelProvider)
	assert.True(t, body[0].Eligible)
}

func TestListDecisionsBadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, q := range []string{"?limit=0", "?limit=-5", "?limit=9999", "?limit=abc"} {
		rec := get(t, srv, "/api/v1/decisions"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListEventsPromotedFilter(t *testing.T) {
	srv, _, events := newTestServer(t)
	ctx := context.Background()

	err := events.SaveRun(ctx, "run-1", []core.ConsensusEvent{
		{Key: "XLF|SELL", Ticker: "XLF", Signal: core.SignalSell, Confidence: 75,
			SupportingProviders: []string{"anthropic", "openai"}, Promoted: true},
		{Key: "NVDA|BUY", Ticker: "NVDA", Signal: core.SignalBuy, Confidence: 90,
			SupportingProviders: []string{"gemini"}, Promoted: false},
	})
	require.NoError(t, err)

	rec := get(t, srv, "/api/v1/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = get(t, srv, "/api/v1/events?promoted=true")
	require.Equal(t, http.StatusOK, rec.Code)
	var promoted []EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &promoted))
	require.Len(t, promoted, 1)
	assert.Equal(t, "XLF|SELL", promoted[0].Key)
	assert.Equal(t, []string{"anthropic", "openai"}, promoted[0].Supporters)
}

func TestMetricsEndpoint(t *testing.T) {
	db, err := store.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "analystd", Name: "chunks_ingested_total", Help: "h",
	})
	reg.MustRegister(counter)
	counter.Add(3)

	srv, err := New(config.ServerConfig{Host: "localhost", Port: 9180},
		store.NewDecisionStore(db), store.NewEventStore(db), reg, zap.NewNop())
	require.NoError(t, err)

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "analystd_chunks_ingested_total 3")
}

func TestNewValidation(t *testing.T) {
	db, err := store.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)

	_, err = New(config.ServerConfig{}, nil, store.NewEventStore(db), nil, zap.NewNop())
	require.Error(t, err)
	_, err = New(config.ServerConfig{}, store.NewDecisionStore(db), nil, nil, zap.NewNop())
	require.Error(t, err)
	_, err = New(config.ServerConfig{}, store.NewDecisionStore(db), store.NewEventStore(db), nil, nil)
	require.Error(t, err)
}
