package store

import (
	"time"
)

// Snapshot is one ingested chunk row. The composite primary key
// (date, source_id) is the idempotency constraint: re-ingesting the
// same logical document conflicts and becomes a no-op.
type Snapshot struct {
	SourceID   string    `gorm:"column:source_id;primaryKey"`
	Date       time.Time `gorm:"column:date;primaryKey"`
	ChunkHash  string    `gorm:"column:chunk_hash;not null"`
	Sender     string    `gorm:"column:sender"`
	Subject    string    `gorm:"column:subject"`
	Content    string    `gorm:"column:content"`
	IngestedAt time.Time `gorm:"column:ingested_at"`
}

// TableName implements gorm's Tabler.
func (Snapshot) TableName() string { return "newsletter_snapshots" }

// DecisionRow is one persisted provider decision. Core fields are
// append-only; only the guardrail columns are written after insert.
type DecisionRow struct {
	ID            string    `gorm:"column:id;primaryKey"`
	SourceID      string    `gorm:"column:source_id;index;not null"`
	Ticker        string    `gorm:"column:ticker;not null"`
	Signal        string    `gorm:"column:signal;not null"`
	Confidence    int       `gorm:"column:confidence;not null"`
	Reasoning     string    `gorm:"column:reasoning"`
	ModelProvider string    `gorm:"column:model_provider;not null"`
	ModelName     string    `gorm:"column:model_name;not null"`
	CreatedAt     time.Time `gorm:"column:created_at"`

	// Guardrail outcome, written after validation. A rejected decision
	// stays stored for audit but never becomes execution-eligible.
	Eligible     bool   `gorm:"column:eligible"`
	RejectReason string `gorm:"column:reject_reason"`
}

// TableName implements gorm's Tabler.
func (DecisionRow) TableName() string { return "decisions" }

// EventRow is one consensus event computed for a run, promoted or not.
// Events are derived data, persisted per run for audit and the read API.
type EventRow struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string    `gorm:"column:run_id;index;not null"`
	Key         string    `gorm:"column:key;not null"`
	Ticker      string    `gorm:"column:ticker"`
	Signal      string    `gorm:"column:signal"`
	Description string    `gorm:"column:description"`
	Confidence  int       `gorm:"column:confidence"`
	Supporters  string    `gorm:"column:supporters"` // comma-joined, sorted
	Promoted    bool      `gorm:"column:promoted"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName implements gorm's Tabler.
func (EventRow) TableName() string { return "consensus_events" }
