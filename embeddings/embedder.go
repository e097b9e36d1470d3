package embeddings

import "context"

// Embedder is a minimal interface for computing vector embeddings
// for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Fingerprinter is implemented by embedders that can identify their model
// provenance. Stores use it to reject mixing vectors from different models
// in one collection.
type Fingerprinter interface {
	Fingerprint() uint64
}

// Dimensioner is implemented by embedders with a static output vector length.
type Dimensioner interface {
	Dimension() int
}
