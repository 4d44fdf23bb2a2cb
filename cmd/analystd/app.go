package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/attribution"
	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/consensus"
	"github.com/quantfabric/analystd/internal/embeddings"
	"github.com/quantfabric/analystd/internal/guardrail"
	"github.com/quantfabric/analystd/internal/ingest"
	"github.com/quantfabric/analystd/internal/logging"
	"github.com/quantfabric/analystd/internal/memory"
	"github.com/quantfabric/analystd/internal/orchestrator"
	"github.com/quantfabric/analystd/internal/pipeline"
	"github.com/quantfabric/analystd/internal/providers"
	"github.com/quantfabric/analystd/internal/server"
	"github.com/quantfabric/analystd/internal/store"
	"github.com/quantfabric/analystd/internal/vectorstore"
)

// app holds the wired components shared by the run and serve commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	decisions *store.DecisionStore
	events    *store.EventStore
	snapshots *store.SnapshotStore
	retriever *memory.Retriever
}

// newApp loads configuration and wires storage, memory, and logging.
// Provider clients are created separately because serve does not need
// them.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	embedder, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("creating embedding service: %w", err)
	}

	vectors, err := vectorStore(cfg, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  prometheus.NewRegistry(),
		decisions: store.NewDecisionStore(db),
		events:    store.NewEventStore(db),
		snapshots: store.NewSnapshotStore(db, logger),
		retriever: memory.NewRetriever(cfg.Memory, vectors, embedder, logger),
	}, nil
}

// newRunner wires the full pipeline on top of the app, including the
// provider clients.
func (a *app) newRunner(inputPath string) (*pipeline.Runner, error) {
	provs, err := providers.NewAll(a.cfg.Providers, a.cfg.Orchestrator.Temperature, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating providers: %w", err)
	}

	analyzer, err := orchestrator.New(a.cfg.Orchestrator, provs, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	attr, err := attribution.NewService(a.decisions, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating attribution service: %w", err)
	}

	aggregator, err := consensus.New(a.cfg.Consensus, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating consensus aggregator: %w", err)
	}

	validator, err := newValidator(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	return pipeline.NewRunner(pipeline.Deps{
		Source:      ingest.NewFileSource(inputPath),
		Snapshots:   a.snapshots,
		Retriever:   a.retriever,
		Analyzer:    analyzer,
		Attribution: attr,
		Aggregator:  aggregator,
		Events:      a.events,
		Decisions:   a.decisions,
		Validator:   validator,
		Metrics:     pipeline.NewMetrics(a.registry),
		Logger:      a.logger,
	})
}

func (a *app) newServer() (*server.Server, error) {
	return server.New(a.cfg.Server, a.decisions, a.events, a.registry, a.logger)
}

func vectorStore(cfg *config.Config, embedder vectorstore.Embedder, logger *zap.Logger) (vectorstore.Store, error) {
	return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       cfg.VectorStore.Path,
		Collection: cfg.VectorStore.Collection,
		Compress:   cfg.VectorStore.Compress,
	}, embedder, logger)
}

func newValidator(cfg *config.Config, logger *zap.Logger) (*guardrail.Validator, error) {
	var (
		data *guardrail.StaticTable
		err  error
	)
	if cfg.Guardrails.FactsPath != "" {
		data, err = guardrail.LoadStaticTable(cfg.Guardrails.FactsPath)
		if err != nil {
			return nil, fmt.Errorf("loading market facts: %w", err)
		}
	} else {
		// No facts wired: every ticker is unknown and every decision is
		// rejected rather than waved through unverified.
		logger.Warn("no market facts configured, guardrail will reject all decisions")
		data = guardrail.NewStaticTable(nil)
	}
	return guardrail.New(cfg.Guardrails, data, logger)
}
