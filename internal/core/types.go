// Package core defines the domain model shared across the analysis pipeline:
// ingested chunks, provider decisions, and cross-provider consensus events.
package core

import (
	"fmt"
	"time"
)

// Signal is a trading action recommended by a provider.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// ParseSignal converts a raw string into a Signal.
func ParseSignal(s string) (Signal, error) {
	switch Signal(s) {
	case SignalBuy, SignalSell, SignalHold:
		return Signal(s), nil
	default:
		return "", fmt.Errorf("invalid signal %q: must be one of BUY, SELL, HOLD", s)
	}
}

// Chunk is one ingested unit of source text with provenance metadata.
//
// SourceID is deterministic over (date, sender, subject) so that
// re-ingesting the same logical document maps to the same identity.
// Chunks are immutable after intake.
type Chunk struct {
	SourceID    string    `json:"source_id"`
	ContentHash string    `json:"chunk_hash"`
	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
	Date        time.Time `json:"date"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// RawDecision is the pre-validation shape of a provider response entry.
//
// Provider output is untrusted JSON; it only becomes a Decision after
// passing through Validate at the provider-call edge.
type RawDecision struct {
	Signal     string `json:"signal"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
	Ticker     string `json:"ticker"`
	SourceID   string `json:"source_id"`
}

// Decision is one provider's validated, attributable judgment about a
// ticker, tied to a source chunk. Immutable once persisted.
type Decision struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	Ticker        string    `json:"ticker"`
	Signal        Signal    `json:"signal"`
	Confidence    int       `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	ModelProvider string    `json:"model_provider"`
	ModelName     string    `json:"model_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConsensusEvent is a derived cluster of decisions across providers.
// Recomputed each run; never independently authored.
type ConsensusEvent struct {
	Key                 string   `json:"key"`
	Ticker              string   `json:"ticker"`
	Signal              Signal   `json:"signal"`
	Description         string   `json:"description"`
	Confidence          int      `json:"confidence"`
	SupportingProviders []string `json:"supporting_providers"`
	Promoted            bool     `json:"promoted"`
}
