// Package attribution binds validated decisions to the chunks and
// models that produced them and persists them with referential
// integrity: a decision row never lands without its snapshot row.
package attribution

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/core"
	"github.com/quantfabric/analystd/internal/store"
)

// ErrReferentialIntegrity is returned when a decision references a
// source that was not part of the persisted batch.
var ErrReferentialIntegrity = errors.New("decision references unknown source")

// Run scopes attribution to one ingest batch: only decisions that
// reference a chunk of this batch may be persisted through it.
type Run struct {
	sources map[string]core.Chunk
}

// Service persists attributed decisions.
type Service struct {
	decisions *store.DecisionStore
	logger    *zap.Logger
}

// NewService creates an attribution Service.
func NewService(decisions *store.DecisionStore, logger *zap.Logger) (*Service, error) {
	if decisions == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{decisions: decisions, logger: logger}, nil
}

// NewRun builds the batch scope from the persisted chunks.
func (s *Service) NewRun(chunks []core.Chunk) *Run {
	sources := make(map[string]core.Chunk, len(chunks))
	for _, c := range chunks {
		sources[c.SourceID] = c
	}
	return &Run{sources: sources}
}

// Persist writes one decision. The decision must carry full provenance
// (id, provider, model) and reference a chunk of the run; violations
// reject the decision without writing anything.
func (s *Service) Persist(ctx context.Context, run *Run, d core.Decision) error {
	if err := s.check(run, d); err != nil {
		return err
	}
	if err := s.decisions.Insert(ctx, d); err != nil {
		return fmt.Errorf("persisting decision %s: %w", d.ID, err)
	}
	return nil
}

// PersistBatch writes a provider's decisions in their original order.
// A rejected decision writes nothing and is fatal for that decision
// only; the rest of the batch still persists. Storage errors abort.
// Returns the decisions actually written.
func (s *Service) PersistBatch(ctx context.Context, run *Run, decisions []core.Decision) ([]core.Decision, error) {
	persisted := make([]core.Decision, 0, len(decisions))
	for _, d := range decisions {
		if err := s.check(run, d); err != nil {
			s.logger.Warn("decision rejected at attribution",
				zap.String("decision_id", d.ID),
				zap.String("source_id", d.SourceID),
				zap.Error(err))
			continue
		}
		if err := s.decisions.Insert(ctx, d); err != nil {
			return persisted, fmt.Errorf("persisting decision %s: %w", d.ID, err)
		}
		persisted = append(persisted, d)
	}
	return persisted, nil
}

func (s *Service) check(run *Run, d core.Decision) error {
	if d.ID == "" {
		return fmt.Errorf("decision has no id")
	}
	if d.ModelProvider == "" || d.ModelName == "" {
		return fmt.Errorf("decision %s has incomplete model provenance", d.ID)
	}
	if _, ok := run.sources[d.SourceID]; !ok {
		return fmt.Errorf("%w: %q", ErrReferentialIntegrity, d.SourceID)
	}
	return nil
}
