package vectorstore

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text content of the document.
	Content string

	// Metadata contains additional key-value pairs (source_id, run_id).
	Metadata map[string]string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Similarity is the cosine similarity to the query, in [-1,1].
	Similarity float32

	// Metadata contains the document metadata.
	Metadata map[string]string
}
