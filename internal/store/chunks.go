// Chunk store: ingested document text with embeddings, grouped into named
// collections. Search is brute-force cosine over the collection, which is
// plenty for per-team PDF libraries.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"collab/internal/embedding"
	"collab/internal/logging"
	"collab/internal/types"
)

// StoreChunks persists chunks (with their embeddings) under a collection in
// one transaction. Chunks and embeddings must be index-aligned; pass a nil
// embeddings slice to store keyword-only chunks.
func (s *LocalStore) StoreChunks(chunks []types.Chunk, embeddings [][]float32) error {
	if embeddings != nil && len(embeddings) != len(chunks) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO chunks (collection, source, seq, content, embedding) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		var embJSON any
		if embeddings != nil {
			data, err := json.Marshal(embeddings[i])
			if err != nil {
				return fmt.Errorf("failed to serialize embedding %d: %w", i, err)
			}
			embJSON = string(data)
		}
		if _, err := stmt.Exec(c.Collection, c.Source, c.Seq, c.Content, embJSON); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to persist chunks: %w", err)
	}
	logging.Get(logging.CategoryStore).Debug("stored %d chunks", len(chunks))
	return nil
}

// SearchChunks returns the k chunks of the collection most similar to the
// query, ordered by descending cosine similarity. Chunks without embeddings
// are ignored.
func (s *LocalStore) SearchChunks(ctx context.Context, query string, collection string, k int) ([]types.Chunk, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT collection, source, seq, content, embedding FROM chunks WHERE collection = ? AND embedding IS NOT NULL",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var candidates []types.Chunk
	var vectors [][]float32
	for rows.Next() {
		var c types.Chunk
		var embJSON string
		if err := rows.Scan(&c.Collection, &c.Source, &c.Seq, &c.Content, &embJSON); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		candidates = append(candidates, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hits := embedding.TopK(queryVec, vectors, k)
	results := make([]types.Chunk, 0, len(hits))
	for _, hit := range hits {
		c := candidates[hit.Index]
		c.Similarity = hit.Similarity
		results = append(results, c)
	}

	logging.Get(logging.CategoryStore).Debug("search %q in %s: %d candidates, %d hits", query, collection, len(candidates), len(results))
	return results, nil
}

// CountChunks returns the number of chunks stored under a collection.
func (s *LocalStore) CountChunks(collection string) (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
