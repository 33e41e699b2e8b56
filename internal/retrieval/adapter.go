// Package retrieval is the thin façade over the vector store, the embedding
// engine and the generative model. The routing core only ever talks to this
// adapter; the collaborators behind it are opaque.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"collab/internal/embedding"
	"collab/internal/llm"
	"collab/internal/logging"
	"collab/internal/store"
	"collab/internal/types"
)

// embedConcurrency bounds parallel embedding calls during indexing so a
// local Ollama server is not flooded.
const embedConcurrency = 4

// Adapter bundles the external collaborators behind a narrow contract.
type Adapter struct {
	store  *store.LocalStore
	engine embedding.Engine
	client llm.Client
	topK   int
}

// NewAdapter constructs the façade. topK <= 0 falls back to 3.
func NewAdapter(s *store.LocalStore, engine embedding.Engine, client llm.Client, topK int) *Adapter {
	if topK <= 0 {
		topK = 3
	}
	s.SetEmbeddingEngine(engine)
	return &Adapter{store: s, engine: engine, client: client, topK: topK}
}

// Index embeds the chunks (bounded parallelism) and persists them under
// their collection. Any embedding failure aborts the whole batch; nothing is
// stored partially.
func (a *Adapter) Index(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := a.engine.Embed(gctx, c.Content)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d of %s: %w", c.Seq, c.Source, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := a.store.StoreChunks(chunks, vectors); err != nil {
		return err
	}
	logging.Get(logging.CategoryIngest).Info("indexed %d chunks", len(chunks))
	return nil
}

// Retrieve returns the top-k chunks of the collection for the query.
func (a *Adapter) Retrieve(ctx context.Context, query, collection string) ([]types.Chunk, error) {
	chunks, err := a.store.SearchChunks(ctx, query, collection, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	return chunks, nil
}

// Generate runs a single completion on the generative model. No retry, no
// backoff; the failure propagates to the caller.
func (a *Adapter) Generate(ctx context.Context, prompt string) (string, error) {
	answer, err := a.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return answer, nil
}

// AskWithContext answers a question grounded on the collection: the top-k
// chunks are stuffed into the prompt ahead of the question.
func (a *Adapter) AskWithContext(ctx context.Context, question, collection string) (string, error) {
	chunks, err := a.Retrieve(ctx, question, collection)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	prompt := fmt.Sprintf(`Responda usando o contexto abaixo (trechos dos PDFs):
CONTEXT:
%s

PERGUNTA:
%s
`, strings.Join(texts, "\n\n"), question)

	return a.Generate(ctx, prompt)
}
