// Package embedding generates vector embeddings for semantic search.
// Two backends are supported: Ollama (local) and Google GenAI (cloud).
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"collab/internal/config"
	"collab/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the engine name for diagnostics.
	Name() string
}

// NewEngine creates an embedding engine from configuration.
func NewEngine(cfg config.EmbeddingConfig) (Engine, error) {
	logging.Get(logging.CategoryEmbedding).Info("creating embedding engine: provider=%s model=%s", cfg.Provider, cfg.Model)

	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaEngine(cfg.Endpoint, cfg.Model), nil
	case "genai":
		return NewGenAIEngine(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
}

// CosineSimilarity returns the cosine similarity of two vectors: 1 for
// identical direction, 0 for orthogonal. Mismatched dimensions are an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Result is one similarity search hit.
type Result struct {
	Index      int
	Similarity float64
}

// TopK returns the indices of the k corpus vectors most similar to the query,
// ordered by descending cosine similarity. Vectors with mismatched dimensions
// are skipped.
func TopK(query []float32, corpus [][]float32, k int) []Result {
	if k <= 0 {
		k = 3
	}

	results := make([]Result, 0, len(corpus))
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, Result{Index: i, Similarity: sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
