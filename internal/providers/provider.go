// Package providers implements the generative-model boundary: one
// client per configured backend, all speaking the same analysis
// contract (batch of chunks + historical context in, raw decision
// records out).
package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/core"
)

// Request is one analysis submission: the chunk batch, per-chunk
// historical context, and any validation errors from a previous attempt
// for the self-correction loop.
type Request struct {
	Chunks   []core.Chunk
	Contexts []string

	// RepairHints carries the schema violations of the previous
	// response so the provider can correct itself. Empty on the first
	// attempt.
	RepairHints []string
}

// Provider is one independent generative-model backend.
type Provider interface {
	// Name is the provider identity used in attribution and consensus.
	Name() string
	// ModelName is the concrete model the provider queries.
	ModelName() string
	// Analyze submits the batch and returns raw decision records, or an
	// error when the backend fails or returns unparseable output.
	Analyze(ctx context.Context, req Request) ([]core.RawDecision, error)
}

// New creates a provider from config. temperature applies to every
// call; values outside (0,1] fall back to 0.2.
func New(cfg config.ProviderConfig, temperature float64, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		model    llms.Model
		jsonMode bool
		err      error
	)
	switch cfg.Type {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey.Value()),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
		jsonMode = true
	case "openai-compatible":
		// DeepSeek and other OpenAI-wire providers.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %s: base_url is required for openai-compatible", cfg.Name)
		}
		model, err = openai.New(
			openai.WithToken(cfg.APIKey.Value()),
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
		)
		jsonMode = true
	case "anthropic":
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey.Value()),
			anthropic.WithModel(cfg.Model),
		)
	case "googleai":
		model, err = googleai.New(context.Background(),
			googleai.WithAPIKey(cfg.APIKey.Value()),
			googleai.WithDefaultModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Name, err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if temperature <= 0 || temperature > 1 {
		temperature = 0.2
	}

	return &chatProvider{
		name:        cfg.Name,
		model:       cfg.Model,
		llm:         model,
		jsonMode:    jsonMode,
		temperature: temperature,
		limiter:     limiter,
		logger:      logger.Named(cfg.Name),
	}, nil
}

// NewAll creates every configured provider. Providers without an API
// key are skipped with a warning rather than failing startup.
func NewAll(cfgs []config.ProviderConfig, temperature float64, logger *zap.Logger) ([]Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.APIKey.Value() == "" {
			logger.Warn("skipping provider without api key", zap.String("provider", cfg.Name))
			continue
		}
		p, err := New(cfg, temperature, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
