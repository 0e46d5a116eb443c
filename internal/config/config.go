// Package config provides configuration loading for queryd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables. All knobs have working defaults except credentials.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates an invalid configuration value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete queryd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Auth       AuthConfig       `koanf:"auth"`
	Logging    LoggingConfig    `koanf:"logging"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Generation GenerationConfig `koanf:"generation"`
	Agent      AgentConfig      `koanf:"agent"`
	Cache      CacheConfig      `koanf:"cache"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// AuthConfig holds the bearer token checked on the query endpoint.
type AuthConfig struct {
	Token Secret `koanf:"token"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	ChunkSize     int      `koanf:"chunk_size"`
	ChunkOverlap  int      `koanf:"chunk_overlap"`
	TopK          int      `koanf:"top_k"`
	FetchTimeout  Duration `koanf:"fetch_timeout"`
	QAConcurrency int      `koanf:"qa_concurrency"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	BatchSize   int      `koanf:"batch_size"`
	Concurrency int      `koanf:"concurrency"`
	Timeout     Duration `koanf:"timeout"`
}

// ProviderConfig identifies one generation provider endpoint.
type ProviderConfig struct {
	// Provider is the provider type: "openai" or "googleai".
	// "openai" also covers OpenAI-compatible endpoints (Groq etc.) via BaseURL.
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	BaseURL  string   `koanf:"base_url"`
	APIKey   Secret   `koanf:"api_key"`
	Timeout  Duration `koanf:"timeout"`
}

// GenerationConfig holds the ordered generation fallback chain.
// Primary is tried first; Fallbacks are tried in order on retryable failure.
type GenerationConfig struct {
	Primary   ProviderConfig   `koanf:"primary"`
	Fallbacks []ProviderConfig `koanf:"fallbacks"`
}

// AgentConfig holds reasoning agent configuration.
type AgentConfig struct {
	LLM         ProviderConfig `koanf:"llm"`
	MaxSteps    int            `koanf:"max_steps"`
	ToolTimeout Duration       `koanf:"tool_timeout"`
}

// CacheConfig holds persistent cache locations.
type CacheConfig struct {
	// IndexDir stores the vector index per document fingerprint.
	IndexDir string `koanf:"index_dir"`
	// EmbeddingDir stores embedding vectors per content hash.
	EmbeddingDir string `koanf:"embedding_dir"`
	// Compress enables gzip compression of persisted index data.
	Compress bool `koanf:"compress"`
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 5000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.TopK == 0 {
		cfg.Ingest.TopK = 15
	}
	if cfg.Ingest.FetchTimeout == 0 {
		cfg.Ingest.FetchTimeout = Duration(30 * time.Second)
	}
	if cfg.Ingest.QAConcurrency == 0 {
		cfg.Ingest.QAConcurrency = 4
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.BatchSize == 0 {
		cfg.Embeddings.BatchSize = 100
	}
	if cfg.Embeddings.Concurrency == 0 {
		cfg.Embeddings.Concurrency = 4
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(60 * time.Second)
	}
	if cfg.Generation.Primary.Provider == "" {
		cfg.Generation.Primary.Provider = "openai"
	}
	if cfg.Generation.Primary.Model == "" {
		cfg.Generation.Primary.Model = "gpt-4.1-nano"
	}
	if cfg.Generation.Primary.Timeout == 0 {
		cfg.Generation.Primary.Timeout = Duration(60 * time.Second)
	}
	for i := range cfg.Generation.Fallbacks {
		if cfg.Generation.Fallbacks[i].Timeout == 0 {
			cfg.Generation.Fallbacks[i].Timeout = Duration(60 * time.Second)
		}
	}
	if cfg.Agent.LLM.Provider == "" {
		cfg.Agent.LLM = cfg.Generation.Primary
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 8
	}
	if cfg.Agent.ToolTimeout == 0 {
		cfg.Agent.ToolTimeout = Duration(15 * time.Second)
	}
	if cfg.Cache.IndexDir == "" {
		cfg.Cache.IndexDir = "./index_cache"
	}
	if cfg.Cache.EmbeddingDir == "" {
		cfg.Cache.EmbeddingDir = "./embed_cache"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size)", ErrInvalidConfig)
	}
	if c.Ingest.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	if c.Ingest.QAConcurrency <= 0 {
		return fmt.Errorf("%w: qa_concurrency must be positive", ErrInvalidConfig)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive", ErrInvalidConfig)
	}
	if c.Embeddings.Concurrency <= 0 {
		return fmt.Errorf("%w: embedding concurrency must be positive", ErrInvalidConfig)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("%w: agent max_steps must be positive", ErrInvalidConfig)
	}
	if err := validateProvider(c.Generation.Primary); err != nil {
		return fmt.Errorf("generation.primary: %w", err)
	}
	for i, p := range c.Generation.Fallbacks {
		if err := validateProvider(p); err != nil {
			return fmt.Errorf("generation.fallbacks[%d]: %w", i, err)
		}
	}
	if err := validateProvider(c.Agent.LLM); err != nil {
		return fmt.Errorf("agent.llm: %w", err)
	}
	return nil
}

func validateProvider(p ProviderConfig) error {
	switch p.Provider {
	case "openai", "googleai":
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, p.Provider)
	}
	if p.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	return nil
}
