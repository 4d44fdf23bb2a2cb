// Package guardrail runs pre-execution sanity checks on promoted
// decisions against a market-data source. A decision that fails any
// check is marked ineligible with a machine-readable reason; market
// data being unreachable also rejects, never waves through.
package guardrail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/core"
)

// Reason codes, stable identifiers for downstream filtering.
const (
	ReasonTickerNotFound  = "TICKER_NOT_FOUND"
	ReasonPriceOutOfBand  = "PRICE_OUT_OF_BAND"
	ReasonLowLiquidity    = "LOW_LIQUIDITY"
	ReasonDataUnavailable = "MARKET_DATA_UNAVAILABLE"
)

// Quote is the market snapshot for one ticker.
type Quote struct {
	Exists    bool
	Price     float64
	MarketCap float64
}

// MarketData is the quote source boundary. Lookup returns an error only
// for infrastructure failures; an unknown ticker is a successful lookup
// with Exists=false.
type MarketData interface {
	Lookup(ctx context.Context, ticker string) (Quote, error)
}

// Verdict is the outcome of validating one decision.
type Verdict struct {
	DecisionID string
	Eligible   bool
	// Reason is the first failed check's code, empty when eligible.
	Reason string
}

// Validator applies the check chain.
type Validator struct {
	data         MarketData
	minPrice     float64
	maxPrice     float64
	minMarketCap float64
	logger       *zap.Logger
}

// New creates a Validator.
func New(cfg config.GuardrailConfig, data MarketData, logger *zap.Logger) (*Validator, error) {
	if data == nil {
		return nil, fmt.Errorf("market data source is required")
	}
	if cfg.MinPrice < 0 || cfg.MaxPrice <= cfg.MinPrice {
		return nil, fmt.Errorf("invalid price band [%v, %v]", cfg.MinPrice, cfg.MaxPrice)
	}
	if cfg.MinMarketCap < 0 {
		return nil, fmt.Errorf("min market cap cannot be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		data:         data,
		minPrice:     cfg.MinPrice,
		maxPrice:     cfg.MaxPrice,
		minMarketCap: cfg.MinMarketCap,
		logger:       logger,
	}, nil
}

// Validate checks one decision. The chain short-circuits on the first
// failure: existence, then price band, then liquidity. A market-data
// error rejects with MARKET_DATA_UNAVAILABLE rather than passing an
// unverified decision through.
func (v *Validator) Validate(ctx context.Context, d core.Decision) Verdict {
	quote, err := v.data.Lookup(ctx, d.Ticker)
	if err != nil {
		v.logger.Warn("market data lookup failed",
			zap.String("ticker", d.Ticker),
			zap.Error(err),
		)
		return Verdict{DecisionID: d.ID, Reason: ReasonDataUnavailable}
	}

	switch {
	case !quote.Exists:
		return Verdict{DecisionID: d.ID, Reason: ReasonTickerNotFound}
	case quote.Price < v.minPrice || quote.Price > v.maxPrice:
		return Verdict{DecisionID: d.ID, Reason: ReasonPriceOutOfBand}
	case quote.MarketCap < v.minMarketCap:
		return Verdict{DecisionID: d.ID, Reason: ReasonLowLiquidity}
	}
	return Verdict{DecisionID: d.ID, Eligible: true}
}

// ValidateAll checks a batch and returns one verdict per decision, in
// input order.
func (v *Validator) ValidateAll(ctx context.Context, decisions []core.Decision) []Verdict {
	verdicts := make([]Verdict, len(decisions))
	for i, d := range decisions {
		verdicts[i] = v.Validate(ctx, d)
	}
	return verdicts
}
