package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/analystd/internal/config"
)

func TestNewService(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.EmbeddingsConfig
		wantErr    bool
		errMessage string
	}{
		{
			name: "valid OpenAI configuration",
			cfg: config.EmbeddingsConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "text-embedding-3-small",
				APIKey:  "sk-test123",
			},
		},
		{
			name: "valid TEI configuration without key",
			cfg: config.EmbeddingsConfig{
				BaseURL: "http://localhost:8080/v1",
				Model:   "BAAI/bge-base-en-v1.5",
			},
		},
		{
			name:       "empty base URL",
			cfg:        config.EmbeddingsConfig{Model: "text-embedding-3-small"},
			wantErr:    true,
			errMessage: "base URL required",
		},
		{
			name:       "empty model",
			cfg:        config.EmbeddingsConfig{BaseURL: "https://api.openai.com/v1"},
			wantErr:    true,
			errMessage: "model required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewService(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errMessage)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestEmbedValidation(t *testing.T) {
	service, err := NewService(config.EmbeddingsConfig{
		BaseURL: "http://localhost:8080/v1",
		Model:   "BAAI/bge-base-en-v1.5",
	})
	require.NoError(t, err)

	_, err = service.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = service.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
