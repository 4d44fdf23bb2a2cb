// Package config provides configuration loading for analystd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Each pipeline component receives its own section as an
// explicit value at construction time; nothing reads ambient global state.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete analystd configuration.
type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Logging      LoggingConfig      `koanf:"logging"`
	Embeddings   EmbeddingsConfig   `koanf:"embeddings"`
	VectorStore  VectorStoreConfig  `koanf:"vectorstore"`
	Memory       MemoryConfig       `koanf:"memory"`
	Providers    []ProviderConfig   `koanf:"providers"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Consensus    ConsensusConfig    `koanf:"consensus"`
	Guardrails   GuardrailConfig    `koanf:"guardrails"`
	Server       ServerConfig       `koanf:"server"`
}

// DatabaseConfig holds relational store configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `koanf:"path"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// EmbeddingsConfig holds the embedding boundary configuration.
// The endpoint must be OpenAI-compatible (OpenAI itself or TEI).
type EmbeddingsConfig struct {
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	APIKey    Secret `koanf:"api_key"`
	Dimension int    `koanf:"dimension"`
}

// VectorStoreConfig holds the embedded vector database configuration.
type VectorStoreConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
}

// MemoryConfig holds context retrieval parameters.
type MemoryConfig struct {
	// TopK is the number of historical records fetched per query.
	TopK int `koanf:"top_k"`
	// Threshold is the minimum cosine similarity for a match, in [-1,1].
	Threshold float32 `koanf:"threshold"`
}

// ProviderConfig describes one generative-model backend.
type ProviderConfig struct {
	// Name is the provider identity used in attribution and consensus
	// (e.g. "openai", "anthropic", "gemini", "deepseek").
	Name string `koanf:"name"`
	// Type selects the client implementation: "openai", "anthropic",
	// "googleai", or "openai-compatible" for OpenAI-wire providers
	// served at a custom BaseURL.
	Type    string `koanf:"type"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	// RequestsPerSecond caps the request rate to this provider (0 = unlimited).
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// OrchestratorConfig holds fan-out parameters.
type OrchestratorConfig struct {
	// Timeout is the pipeline-level deadline for the whole analysis stage.
	Timeout Duration `koanf:"timeout"`
	// MaxRepairs bounds the schema self-correction loop per provider.
	MaxRepairs int `koanf:"max_repairs"`
	// Temperature is passed to every provider call.
	Temperature float64 `koanf:"temperature"`
}

// ConsensusConfig holds promotion parameters.
type ConsensusConfig struct {
	// MinProviders is the number of distinct providers required to
	// promote an event to the shared timeline.
	MinProviders int `koanf:"min_providers"`
}

// GuardrailConfig holds pre-execution sanity thresholds.
type GuardrailConfig struct {
	MinPrice     float64 `koanf:"min_price"`
	MaxPrice     float64 `koanf:"max_price"`
	MinMarketCap float64 `koanf:"min_market_cap"`
	// FactsPath is an optional JSON file of ticker facts for the
	// market-data boundary when no live feed is wired.
	FactsPath string `koanf:"facts_path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Default returns a Config populated with defaults. The retrieval
// defaults (top_k=3, threshold=0.5) and repair bound (2) match the
// production values the pipeline was tuned with.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "analystd.db"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Embeddings: EmbeddingsConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			Dimension: 768,
		},
		VectorStore: VectorStoreConfig{
			Path:       "vectorstore",
			Collection: "memories",
		},
		Memory: MemoryConfig{TopK: 3, Threshold: 0.5},
		Orchestrator: OrchestratorConfig{
			Timeout:     Duration(60 * time.Second),
			MaxRepairs:  2,
			Temperature: 0.2,
		},
		Consensus: ConsensusConfig{MinProviders: 2},
		Guardrails: GuardrailConfig{
			MinPrice:     1.0,
			MaxPrice:     10000.0,
			MinMarketCap: 250_000_000,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9180,
			ShutdownTimeout: Duration(10 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Memory.TopK <= 0 {
		return fmt.Errorf("%w: memory.top_k must be positive", ErrInvalidConfig)
	}
	if c.Memory.Threshold < -1 || c.Memory.Threshold > 1 {
		return fmt.Errorf("%w: memory.threshold must be in [-1,1]", ErrInvalidConfig)
	}
	if c.Orchestrator.Timeout.Duration() <= 0 {
		return fmt.Errorf("%w: orchestrator.timeout must be positive", ErrInvalidConfig)
	}
	if c.Orchestrator.MaxRepairs < 0 {
		return fmt.Errorf("%w: orchestrator.max_repairs cannot be negative", ErrInvalidConfig)
	}
	if c.Consensus.MinProviders < 1 {
		return fmt.Errorf("%w: consensus.min_providers must be at least 1", ErrInvalidConfig)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("%w: providers[%d].name is required", ErrInvalidConfig, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate provider name %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Model == "" {
			return fmt.Errorf("%w: providers[%d].model is required", ErrInvalidConfig, i)
		}
	}
	return nil
}
