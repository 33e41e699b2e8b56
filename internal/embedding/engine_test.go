package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"collab/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "Identical", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, want: 1},
		{name: "Orthogonal", a: []float32{1, 0, 0}, b: []float32{0, 1, 0}, want: 0},
		{name: "Opposite", a: []float32{1, 0, 0}, b: []float32{-1, 0, 0}, want: -1},
		{name: "ZeroVector", a: []float32{0, 0, 0}, b: []float32{1, 1, 1}, want: 0},
		{name: "LengthMismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},        // orthogonal
		{1, 0},        // identical
		{0.7, 0.7},    // diagonal
		{1, 0, 0},     // wrong dimensions, skipped
	}

	results := TopK(query, corpus, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("best match index = %d, want 1", results[0].Index)
	}
	if results[1].Index != 2 {
		t.Errorf("second match index = %d, want 2", results[1].Index)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not ordered by descending similarity")
	}
}

func TestOllamaEngineEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Prompt != "gatos" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "test-model")
	vec, err := engine.Embed(context.Background(), "gatos")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("embedding length = %d, want 3", len(vec))
	}
}

func TestOllamaEngineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "missing")
	if _, err := engine.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestNewEngineUnknownProvider(t *testing.T) {
	if _, err := NewEngine(config.EmbeddingConfig{Provider: "chroma"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
