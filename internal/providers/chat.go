package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantfabric/analystd/internal/core"
)

// chatProvider adapts a langchaingo chat model to the Provider interface.
type chatProvider struct {
	name        string
	model       string
	llm         llms.Model
	jsonMode    bool
	temperature float64
	limiter     *rate.Limiter
	logger      *zap.Logger
}

func (p *chatProvider) Name() string      { return p.name }
func (p *chatProvider) ModelName() string { return p.model }

func (p *chatProvider) Analyze(ctx context.Context, req Request) ([]core.RawDecision, error) {
	if len(req.Chunks) == 0 {
		return nil, fmt.Errorf("empty chunk batch")
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, buildUserPrompt(req)),
	}

	opts := []llms.CallOption{llms.WithTemperature(p.temperature)}
	if p.jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := p.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider %s: empty response", p.name)
	}

	raw := resp.Choices[0].Content
	decisions, err := parseDecisions(raw)
	if err != nil {
		p.logger.Debug("unparseable provider output",
			zap.Int("response_bytes", len(raw)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	return decisions, nil
}
