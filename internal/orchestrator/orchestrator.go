// Package orchestrator fans one chunk batch out to every configured
// provider concurrently, enforces the decision schema at the response
// edge, and isolates per-provider failures so one bad backend never
// costs the others' results.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/core"
	"github.com/quantfabric/analystd/internal/providers"
)

// ErrTotalProviderFailure is returned when every provider failed; the
// orchestrator never fabricates partial output.
var ErrTotalProviderFailure = errors.New("all providers failed")

// Outcome is one provider's terminal result: either validated decisions
// or a failure marker. Exactly one of Decisions / Err is meaningful.
type Outcome struct {
	Provider  string
	Model     string
	Decisions []core.Decision
	Err       error
	// Attempts counts provider submissions, including repair resubmits.
	Attempts int
	// TimedOut marks a failure caused by the pipeline deadline.
	TimedOut bool
}

// Failed reports whether the provider ended in failure.
func (o Outcome) Failed() bool { return o.Err != nil }

// Result is the joined fan-out outcome, one entry per provider in
// configuration order.
type Result struct {
	Outcomes []Outcome
}

// Decisions returns all validated decisions in provider order, with
// each provider's own output order preserved.
func (r *Result) Decisions() []core.Decision {
	var out []core.Decision
	for _, o := range r.Outcomes {
		out = append(out, o.Decisions...)
	}
	return out
}

// Failures returns the outcomes of failed providers.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Orchestrator coordinates parallel provider analysis.
type Orchestrator struct {
	providers  []providers.Provider
	timeout    time.Duration
	maxRepairs int
	logger     *zap.Logger
	nowFunc    func() time.Time
}

// New creates an Orchestrator.
func New(cfg config.OrchestratorConfig, provs []providers.Provider, logger *zap.Logger) (*Orchestrator, error) {
	if len(provs) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		providers:  provs,
		timeout:    cfg.Timeout.Duration(),
		maxRepairs: cfg.MaxRepairs,
		logger:     logger,
		nowFunc:    time.Now,
	}, nil
}

// Analyze submits the batch to every provider concurrently and joins
// the results.
//
// Each provider runs independently: a timeout, transport error, or
// exhausted repair loop marks that provider failed without cancelling,
// delaying, or invalidating the others. One pipeline-level deadline
// bounds the whole stage; providers still outstanding at expiry are
// cancelled and marked failed-by-timeout, while completed results are
// kept. The call returns once every provider has resolved, and returns
// ErrTotalProviderFailure when none produced a validated result.
func (o *Orchestrator) Analyze(ctx context.Context, chunks []core.Chunk, contexts []string) (*Result, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty chunk batch")
	}
	if len(contexts) != len(chunks) {
		return nil, fmt.Errorf("context count %d does not match chunk count %d", len(contexts), len(chunks))
	}

	known := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		known[c.SourceID] = struct{}{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// One goroutine per provider writing only its own slot: fan-out with
	// no shared mutable accumulator.
	outcomes := make([]Outcome, len(o.providers))
	var wg sync.WaitGroup
	for i, p := range o.providers {
		wg.Add(1)
		go func(i int, p providers.Provider) {
			defer wg.Done()
			outcomes[i] = o.analyzeProvider(ctx, p, chunks, contexts, known)
		}(i, p)
	}
	wg.Wait()

	failed := 0
	for _, out := range outcomes {
		if out.Failed() {
			failed++
			o.logger.Warn("provider failed",
				zap.String("provider", out.Provider),
				zap.Int("attempts", out.Attempts),
				zap.Bool("timed_out", out.TimedOut),
				zap.Error(out.Err),
			)
		} else {
			o.logger.Info("provider completed",
				zap.String("provider", out.Provider),
				zap.Int("decisions", len(out.Decisions)),
				zap.Int("attempts", out.Attempts),
			)
		}
	}

	if failed == len(outcomes) {
		reasons := make([]string, len(outcomes))
		for i, out := range outcomes {
			reasons[i] = fmt.Sprintf("%s: %v", out.Provider, out.Err)
		}
		return nil, fmt.Errorf("%w: %s", ErrTotalProviderFailure, strings.Join(reasons, "; "))
	}
	return &Result{Outcomes: outcomes}, nil
}

// analyzeProvider runs one provider through the bounded self-correction
// loop: submit, validate, and on schema violations resubmit with the
// errors appended, at most maxRepairs times.
func (o *Orchestrator) analyzeProvider(ctx context.Context, p providers.Provider, chunks []core.Chunk, contexts []string, known map[string]struct{}) Outcome {
	outcome := Outcome{Provider: p.Name(), Model: p.ModelName()}

	req := providers.Request{Chunks: chunks, Contexts: contexts}
	var lastErrs core.ValidationErrors

	for attempt := 0; attempt <= o.maxRepairs; attempt++ {
		outcome.Attempts = attempt + 1

		raws, err := p.Analyze(ctx, req)
		if err != nil {
			// No partial response is accepted after cancellation.
			if ctx.Err() != nil {
				outcome.TimedOut = true
				outcome.Err = fmt.Errorf("cancelled by pipeline deadline: %w", ctx.Err())
				return outcome
			}
			// An unparseable body is a schema failure and goes through the
			// same repair loop as a field violation. Transport errors are
			// terminal: retrying a dead backend wastes the deadline.
			if errors.Is(err, providers.ErrUnparseable) {
				lastErrs = core.ValidationErrors{{Field: "response", Message: err.Error()}}
				req.RepairHints = []string{err.Error()}
				continue
			}
			outcome.Err = err
			return outcome
		}

		decisions, errs := o.validateBatch(p, raws, known)
		if len(errs) == 0 {
			outcome.Decisions = decisions
			return outcome
		}

		lastErrs = errs
		req.RepairHints = make([]string, len(errs))
		for i, e := range errs {
			req.RepairHints[i] = e.Error()
		}
	}

	outcome.Err = fmt.Errorf("schema validation failed after %d repair attempts: %s",
		o.maxRepairs, lastErrs.Error())
	return outcome
}

// validateBatch enforces the decision schema on a full provider
// response. Any violation invalidates the response as a whole so the
// repair prompt sees every problem at once.
func (o *Orchestrator) validateBatch(p providers.Provider, raws []core.RawDecision, known map[string]struct{}) ([]core.Decision, core.ValidationErrors) {
	var all core.ValidationErrors
	decisions := make([]core.Decision, 0, len(raws))

	for i, raw := range raws {
		d, errs := core.ValidateRaw(raw, known)
		if len(errs) > 0 {
			for _, e := range errs {
				all = append(all, core.FieldError{
					Field:   fmt.Sprintf("decision[%d].%s", i, e.Field),
					Message: e.Message,
				})
			}
			continue
		}
		d.ID = uuid.NewString()
		d.ModelProvider = p.Name()
		d.ModelName = p.ModelName()
		d.CreatedAt = o.nowFunc().UTC()
		decisions = append(decisions, d)
	}

	if len(all) > 0 {
		return nil, all
	}
	return decisions, nil
}
