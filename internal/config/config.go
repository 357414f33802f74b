// Package config provides configuration for memloom. Settings come from
// three layers, lowest precedence first: built-in defaults, an optional YAML
// file, and environment variables with the MEMLOOM_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the memloom process.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Query   QueryConfig   `yaml:"query"`
}

// StorageConfig selects and locates the backing stores.
type StorageConfig struct {
	// LogPath is the SQLite DSN for the append-only audit log (default: ./data/memloom_log.db).
	LogPath string `yaml:"log_path"`

	// GraphPath is the SQLite DSN for the relationship graph (default: ./data/memloom_graph.db).
	GraphPath string `yaml:"graph_path"`

	// VectorBackend selects the vector index: "chromem" (embedded) or
	// "postgres" (pgvector). Default: chromem.
	VectorBackend string `yaml:"vector_backend"`

	// PostgresDSN is the connection string for the pgvector backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimension is the vector size the index is created with
	// (default: 768, matching nomic-embed-text).
	EmbeddingDimension int `yaml:"embedding_dimension"`
}

// LLMConfig configures the Ollama clients.
type LLMConfig struct {
	OllamaURL         string  `yaml:"ollama_url"`          // default: http://localhost:11434
	Model             string  `yaml:"model"`               // completion model (default: tinyllama)
	EmbeddingModel    string  `yaml:"embedding_model"`     // default: nomic-embed-text
	TimeoutSeconds    int     `yaml:"timeout_seconds"`     // per-request timeout (default: 30)
	RequestsPerSecond float64 `yaml:"requests_per_second"` // completion rate cap (default: 4)
	EmbedCacheBytes   int64   `yaml:"embed_cache_bytes"`   // embedding cache size (default: 64 MiB)
}

// QueryConfig carries the ranker defaults.
type QueryConfig struct {
	TopK             int     `yaml:"top_k"`             // default: 3
	RecencyWeight    float64 `yaml:"recency_weight"`    // default: 0.3
	ConfidenceWeight float64 `yaml:"confidence_weight"` // default: 0.1
}

// LoadConfig builds the configuration from defaults and environment
// variables. Pass a non-empty path to overlay a YAML file between the two
// (env vars still win).
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.VectorBackend {
	case "chromem", "postgres":
	default:
		return fmt.Errorf("config: unknown vector backend %q (want chromem or postgres)", c.Storage.VectorBackend)
	}
	if c.Storage.VectorBackend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres vector backend requires a DSN")
	}
	if c.Query.RecencyWeight < 0 || c.Query.ConfidenceWeight < 0 ||
		c.Query.RecencyWeight+c.Query.ConfidenceWeight > 1 {
		return fmt.Errorf("config: query weights must be non-negative and sum to at most 1")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			LogPath:            "./data/memloom_log.db",
			GraphPath:          "./data/memloom_graph.db",
			VectorBackend:      "chromem",
			EmbeddingDimension: 768,
		},
		LLM: LLMConfig{
			OllamaURL:         "http://localhost:11434",
			Model:             "tinyllama",
			EmbeddingModel:    "nomic-embed-text",
			TimeoutSeconds:    30,
			RequestsPerSecond: 4,
			EmbedCacheBytes:   64 << 20,
		},
		Query: QueryConfig{
			TopK:             3,
			RecencyWeight:    0.3,
			ConfidenceWeight: 0.1,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Storage.LogPath = getEnv("MEMLOOM_LOG_PATH", cfg.Storage.LogPath)
	cfg.Storage.GraphPath = getEnv("MEMLOOM_GRAPH_PATH", cfg.Storage.GraphPath)
	cfg.Storage.VectorBackend = getEnv("MEMLOOM_VECTOR_BACKEND", cfg.Storage.VectorBackend)
	cfg.Storage.PostgresDSN = getEnv("MEMLOOM_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.EmbeddingDimension = getEnvInt("MEMLOOM_EMBEDDING_DIMENSION", cfg.Storage.EmbeddingDimension)

	cfg.LLM.OllamaURL = getEnv("MEMLOOM_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.Model = getEnv("MEMLOOM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("MEMLOOM_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.TimeoutSeconds = getEnvInt("MEMLOOM_LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.RequestsPerSecond = getEnvFloat("MEMLOOM_LLM_REQUESTS_PER_SECOND", cfg.LLM.RequestsPerSecond)

	cfg.Query.TopK = getEnvInt("MEMLOOM_QUERY_TOP_K", cfg.Query.TopK)
	cfg.Query.RecencyWeight = getEnvFloat("MEMLOOM_QUERY_RECENCY_WEIGHT", cfg.Query.RecencyWeight)
	cfg.Query.ConfidenceWeight = getEnvFloat("MEMLOOM_QUERY_CONFIDENCE_WEIGHT", cfg.Query.ConfidenceWeight)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
