// Package config loads collab configuration from YAML with environment
// overrides for the secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all collab configuration.
type Config struct {
	// LLM configuration (generation).
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Storage configuration.
	Storage StorageConfig `yaml:"storage"`

	// Retrieval configuration.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generative model.
type LLMConfig struct {
	Provider string `yaml:"provider"` // ollama, genai
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"` // ollama only
	APIKey   string `yaml:"api_key"`  // genai only; GEMINI_API_KEY overrides
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama, genai
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// StorageConfig configures durable storage.
type StorageConfig struct {
	// Dir is the data directory; the database, action log, debug logs and
	// session histories all live under it.
	Dir string `yaml:"dir"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK              int    `yaml:"top_k"`
	DefaultCollection string `yaml:"default_collection"`
}

// LoggingConfig configures debug logging (the action log is always on).
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"`
}

// Default returns the baseline configuration: local Ollama for both
// generation and embeddings, data under ./data.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "qwen2.5:1.5b",
			Endpoint: "http://localhost:11434",
			Timeout:  "120s",
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			Endpoint: "http://localhost:11434",
		},
		Storage: StorageConfig{
			Dir: "data",
		},
		Retrieval: RetrievalConfig{
			TopK:              3,
			DefaultCollection: "pdf_collection",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist. Environment variables override API keys.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
		cfg.Embedding.APIKey = key
	}
	if dir := os.Getenv("COLLAB_DATA_DIR"); dir != "" {
		cfg.Storage.Dir = dir
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.DefaultCollection == "" {
		cfg.Retrieval.DefaultCollection = "pdf_collection"
	}

	return cfg, nil
}

// DefaultPath returns the conventional config location.
func DefaultPath() string {
	return filepath.Join("collab.yaml")
}

// Save writes the configuration back to path.
func Save(cfg Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
