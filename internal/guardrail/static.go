package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// StaticTable is a MarketData source backed by a fixed fact table,
// loaded from JSON. It serves environments with no live feed wired:
// unknown tickers simply do not exist.
type StaticTable struct {
	quotes map[string]Quote
}

type staticFact struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
}

// NewStaticTable builds a table from in-memory facts keyed by ticker.
func NewStaticTable(quotes map[string]Quote) *StaticTable {
	normalized := make(map[string]Quote, len(quotes))
	for ticker, q := range quotes {
		q.Exists = true
		normalized[strings.ToUpper(ticker)] = q
	}
	return &StaticTable{quotes: normalized}
}

// LoadStaticTable reads a JSON array of ticker facts from path.
func LoadStaticTable(path string) (*StaticTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts file: %w", err)
	}
	var facts []staticFact
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("parsing facts file %s: %w", path, err)
	}
	quotes := make(map[string]Quote, len(facts))
	for _, f := range facts {
		if f.Ticker == "" {
			return nil, fmt.Errorf("facts file %s: entry with empty ticker", path)
		}
		quotes[f.Ticker] = Quote{Price: f.Price, MarketCap: f.MarketCap}
	}
	return NewStaticTable(quotes), nil
}

// Lookup implements MarketData. It never fails; an absent ticker is a
// valid answer.
func (t *StaticTable) Lookup(_ context.Context, ticker string) (Quote, error) {
	q, ok := t.quotes[strings.ToUpper(ticker)]
	if !ok {
		return Quote{}, nil
	}
	return q, nil
}
