// Package memory retrieves historical context for new chunks and writes
// promoted findings back as memories for future runs.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quantfabric/analystd/internal/config"
	"github.com/quantfabric/analystd/internal/vectorstore"
)

// Retriever fetches related historical records for a batch of queries.
type Retriever struct {
	embedder  vectorstore.Embedder
	store     vectorstore.Store
	topK      int
	threshold float32
	logger    *zap.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(cfg config.MemoryConfig, store vectorstore.Store, embedder vectorstore.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		topK:      cfg.TopK,
		threshold: cfg.Threshold,
		logger:    logger,
	}
}

// Retrieve returns one context string per query, order-preserving.
//
// All queries are embedded in a single batched call. For each
// embedding, the top-K records above the similarity threshold are
// joined into a context string ("" when nothing matched). Missing
// context degrades decision quality but must never block new decisions,
// so every failure path returns empty context instead of an error.
func (r *Retriever) Retrieve(ctx context.Context, queries []string) []string {
	contexts := make([]string, len(queries))
	if len(queries) == 0 {
		return contexts
	}

	vectors, err := r.embedder.EmbedDocuments(ctx, queries)
	if err != nil || len(vectors) != len(queries) {
		r.logger.Warn("context retrieval degraded: batch embedding failed, continuing with empty context",
			zap.Int("queries", len(queries)),
			zap.Error(err),
		)
		return contexts
	}

	for i, vector := range vectors {
		results, err := r.store.SearchVector(ctx, vector, r.topK, r.threshold)
		if err != nil {
			r.logger.Warn("context retrieval degraded: similarity search failed for query",
				zap.Int("query_index", i),
				zap.Error(err),
			)
			continue
		}
		contexts[i] = joinContext(results)
	}
	return contexts
}

// joinContext formats matched records as one bullet line per memory.
func joinContext(results []vectorstore.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, res := range results {
		if res.Content == "" {
			continue
		}
		parts = append(parts, "- "+res.Content)
	}
	return strings.Join(parts, "\n")
}

// Remember stores a new memory. Content is unique: the document ID is a
// content hash, so re-remembering identical content overwrites the same
// record instead of duplicating it.
func (r *Retriever) Remember(ctx context.Context, content string, metadata map[string]string) error {
	if content == "" {
		return fmt.Errorf("memory content cannot be empty")
	}

	sum := sha256.Sum256([]byte(content))
	doc := vectorstore.Document{
		ID:       "mem_" + hex.EncodeToString(sum[:])[:32],
		Content:  content,
		Metadata: metadata,
	}
	if _, err := r.store.AddDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		return fmt.Errorf("storing memory: %w", err)
	}
	return nil
}
