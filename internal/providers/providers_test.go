package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/core"
)

func TestParseDecisions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "clean array",
			raw:  `[{"signal":"BUY","confidence":85,"reasoning":"r","ticker":"AAPL","source_id":"s1"}]`,
			want: 1,
		},
		{
			name: "fenced array",
			raw: "```json\n" +
				`[{"signal":"SELL","confidence":40,"reasoning":"r","ticker":"TSLA","source_id":"s1"},` +
				`{"signal":"HOLD","confidence":55,"reasoning":"r","ticker":"MSFT","source_id":"s2"}]` +
				"\n```",
			want: 2,
		},
		{
			name: "lead-in prose before array",
			raw:  `Here are my decisions: [{"signal":"BUY","confidence":70,"reasoning":"r","ticker":"NVDA","source_id":"s1"}]`,
			want: 1,
		},
		{
			name: "single bare object",
			raw:  `{"signal":"BUY","confidence":90,"reasoning":"r","ticker":"AAPL","source_id":"s1"}`,
			want: 1,
		},
		{
			name: "empty array",
			raw:  `[]`,
			want: 0,
		},
		{name: "empty body", raw: "   ", wantErr: true},
		{name: "no json", raw: "I cannot analyze this.", wantErr: true},
		{name: "malformed array", raw: `[{"signal":}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decisions, err := parseDecisions(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, decisions, tt.want)
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	req := Request{
		Chunks: []core.Chunk{
			{SourceID: "news_a_11111111", Content: "Apple beats estimates.", Date: time.Now()},
			{SourceID: "news_b_22222222", Content: "Tesla recalls vehicles.", Date: time.Now()},
		},
		Contexts: []string{"- prior AAPL rally", ""},
	}

	prompt := buildUserPrompt(req)
	assert.Contains(t, prompt, "news_a_11111111")
	assert.Contains(t, prompt, "news_b_22222222")
	assert.Contains(t, prompt, "prior AAPL rally")
	assert.NotContains(t, prompt, "previous response violated")

	req.RepairHints = []string{"confidence: must be an integer in [0,100], got 150"}
	prompt = buildUserPrompt(req)
	assert.Contains(t, prompt, "previous response violated")
	assert.Contains(t, prompt, "got 150")
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.ProviderConfig{Name: "x", Type: "ollama", Model: "m", APIKey: "k"}, 0.2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestNewOpenAICompatibleRequiresBaseURL(t *testing.T) {
	_, err := New(config.ProviderConfig{Name: "deepseek", Type: "openai-compatible", Model: "deepseek-chat", APIKey: "k"}, 0.2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestNewAllSkipsProvidersWithoutKeys(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{Name: "openai", Type: "openai", Model: "gpt-4o", APIKey: "sk-test"},
		{Name: "anthropic", Type: "anthropic", Model: "claude-3-5-sonnet-20240620"}, // no key
	}

	providers, err := NewAll(cfgs, 0.2, nil)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "openai", providers[0].Name())
	assert.Equal(t, "gpt-4o", providers[0].ModelName())
}
