// Package llm provides the generative model client. The core makes a single
// blocking Generate call per turn with no retry or backoff; failures
// propagate to the caller as turn failures.
package llm

import (
	"context"
	"fmt"
	"time"

	"collab/internal/config"
	"collab/internal/logging"
)

// Client is the narrow contract with the generative model.
type Client interface {
	// Generate produces a completion for the prompt. Blocking; bound it
	// with the context.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the client name for diagnostics.
	Name() string
}

// NewClient creates a generation client from configuration.
func NewClient(cfg config.LLMConfig) (Client, error) {
	logging.Get(logging.CategoryLLM).Info("creating LLM client: provider=%s model=%s", cfg.Provider, cfg.Model)

	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid llm timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaClient(cfg.Endpoint, cfg.Model, timeout), nil
	case "genai":
		return NewGenAIClient(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
}
