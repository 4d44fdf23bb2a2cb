// Package consensus groups equivalent decisions across providers and
// promotes the ones independently reached by enough of them. The whole
// computation is a pure function of its input so identical decision
// sets always yield identical events.
package consensus

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/core"
)

// Aggregator computes cross-provider consensus events.
type Aggregator struct {
	minProviders int
	logger       *zap.Logger
}

// New creates an Aggregator.
func New(cfg config.ConsensusConfig, logger *zap.Logger) (*Aggregator, error) {
	if cfg.MinProviders < 1 {
		return nil, fmt.Errorf("min_providers must be at least 1, got %d", cfg.MinProviders)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{minProviders: cfg.MinProviders, logger: logger}, nil
}

// Key is the equivalence class of a decision: same ticker, same signal.
// Confidence and reasoning never enter the key, so providers agreeing
// on the call while disagreeing on the wording still cluster together.
func Key(d core.Decision) string {
	return d.Ticker + "|" + string(d.Signal)
}

// Aggregate clusters the decisions and returns one event per cluster,
// sorted by key. An event is promoted when at least minProviders
// DISTINCT providers contributed to its cluster; multiple decisions
// from one provider count once.
//
// The merged event takes the longest reasoning in the cluster as its
// description (ties broken lexicographically), the rounded mean
// confidence, and the sorted set of supporting providers.
func (a *Aggregator) Aggregate(decisions []core.Decision) []core.ConsensusEvent {
	clusters := make(map[string][]core.Decision)
	for _, d := range decisions {
		k := Key(d)
		clusters[k] = append(clusters[k], d)
	}

	events := make([]core.ConsensusEvent, 0, len(clusters))
	for k, members := range clusters {
		events = append(events, a.merge(k, members))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })

	promoted := 0
	for _, ev := range events {
		if ev.Promoted {
			promoted++
		}
	}
	a.logger.Info("consensus computed",
		zap.Int("decisions", len(decisions)),
		zap.Int("clusters", len(events)),
		zap.Int("promoted", promoted),
	)
	return events
}

// Promoted filters an event list down to the promoted ones.
func Promoted(events []core.ConsensusEvent) []core.ConsensusEvent {
	var out []core.ConsensusEvent
	for _, ev := range events {
		if ev.Promoted {
			out = append(out, ev)
		}
	}
	return out
}

func (a *Aggregator) merge(key string, members []core.Decision) core.ConsensusEvent {
	providers := make(map[string]struct{}, len(members))
	sum := 0
	description := ""
	for _, d := range members {
		providers[d.ModelProvider] = struct{}{}
		sum += d.Confidence
		if longerReasoning(d.Reasoning, description) {
			description = d.Reasoning
		}
	}

	supporting := make([]string, 0, len(providers))
	for p := range providers {
		supporting = append(supporting, p)
	}
	sort.Strings(supporting)

	return core.ConsensusEvent{
		Key:                 key,
		Ticker:              members[0].Ticker,
		Signal:              members[0].Signal,
		Description:         description,
		Confidence:          int(math.Round(float64(sum) / float64(len(members)))),
		SupportingProviders: supporting,
		Promoted:            len(providers) >= a.minProviders,
	}
}

// longerReasoning reports whether candidate should replace current as
// the event description. Longer wins; equal lengths fall back to the
// lexicographically smaller string so map iteration order cannot leak
// into the output.
func longerReasoning(candidate, current string) bool {
	if len(candidate) != len(current) {
		return len(candidate) > len(current)
	}
	return candidate < current
}
