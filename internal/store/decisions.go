package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quantfabric/analystd/internal/core"
)

// DecisionStore persists validated decisions append-only.
type DecisionStore struct {
	db *gorm.DB
}

// NewDecisionStore creates a DecisionStore.
func NewDecisionStore(db *gorm.DB) *DecisionStore {
	return &DecisionStore{db: db}
}

// Insert writes one decision row. Core fields are never updated after
// this call.
func (s *DecisionStore) Insert(ctx context.Context, d core.Decision) error {
	row := DecisionRow{
		ID:            d.ID,
		SourceID:      d.SourceID,
		Ticker:        d.Ticker,
		Signal:        string(d.Signal),
		Confidence:    d.Confidence,
		Reasoning:     d.Reasoning,
		ModelProvider: d.ModelProvider,
		ModelName:     d.ModelName,
		CreatedAt:     d.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting decision %s: %w", d.ID, err)
	}
	return nil
}

// SetGuardrailOutcome records the validator verdict for a decision.
// This touches only the guardrail columns; the decision itself stays
// immutable.
func (s *DecisionStore) SetGuardrailOutcome(ctx context.Context, id string, eligible bool, reason string) error {
	result := s.db.WithContext(ctx).Model(&DecisionRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"eligible": eligible, "reject_reason": reason})
	if result.Error != nil {
		return fmt.Errorf("recording guardrail outcome for %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("decision %s not found", id)
	}
	return nil
}

// List returns the most recent decisions, newest first.
func (s *DecisionStore) List(ctx context.Context, limit int) ([]DecisionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []DecisionRow
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	return rows, nil
}

// EventStore persists per-run consensus events.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates an EventStore.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// SaveRun writes all events derived in one run.
func (s *EventStore) SaveRun(ctx context.Context, runID string, events []core.ConsensusEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]EventRow, len(events))
	for i, ev := range events {
		rows[i] = EventRow{
			RunID:       runID,
			Key:         ev.Key,
			Ticker:      ev.Ticker,
			Signal:      string(ev.Signal),
			Description: ev.Description,
			Confidence:  ev.Confidence,
			Supporters:  strings.Join(ev.SupportingProviders, ","),
			Promoted:    ev.Promoted,
			CreatedAt:   now,
		}
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("saving consensus events for run %s: %w", runID, err)
	}
	return nil
}

// List returns recent events, optionally only promoted ones.
func (s *EventStore) List(ctx context.Context, limit int, promotedOnly bool) ([]EventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("created_at DESC, key").Limit(limit)
	if promotedOnly {
		q = q.Where("promoted = ?", true)
	}
	var rows []EventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing consensus events: %w", err)
	}
	return rows, nil
}
