// Package vectorstore defines the similarity-search boundary and its
// embedded chromem-go implementation.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
//
// EmbedDocuments is order-preserving: output vectors correspond 1:1, in
// order, to the input texts regardless of provider-internal batching.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts in one call.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the similarity-search boundary.
//
// Similarity is cosine similarity (1 - cosine distance), in [-1,1];
// results come back in descending similarity order, bounded by k, and
// only matches above the given threshold are returned.
type Store interface {
	// AddDocuments embeds and stores documents, returning their IDs.
	// Re-adding a document with an existing ID overwrites it in place,
	// which gives callers content-level idempotency via content-hash IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SearchVector finds up to k stored documents whose similarity to
	// the given vector exceeds threshold, ordered by descending
	// similarity.
	SearchVector(ctx context.Context, vector []float32, k int, threshold float32) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count() int
}
