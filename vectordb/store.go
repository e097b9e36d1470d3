package vectordb

import (
	"context"

	"github.com/viant/textvec/schema"
	"github.com/viant/textvec/vectorstores"
)

// VectorStore defines saving and querying documents using vector embeddings.
// Collections are opened-or-created on first AddDocuments; read operations on
// a never-created collection fail with ErrCollectionNotFound.
type VectorStore interface {
	// AddDocuments embeds docs in passage mode and upserts them by
	// identifier, generating surrogates where absent. Returns the final
	// identifiers in input order.
	AddDocuments(ctx context.Context, collection string, docs []schema.Document, opts ...vectorstores.Option) ([]string, error)

	// SimilaritySearch embeds query in query mode and returns up to
	// numDocuments results, highest score first, ties broken by insertion
	// order.
	SimilaritySearch(ctx context.Context, collection string, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error)

	// Remove deletes matching records; absent ids are silently ignored.
	Remove(ctx context.Context, collection string, ids []string, opts ...vectorstores.Option) error

	// Drop destroys the collection and all its records.
	Drop(ctx context.Context, collection string) error
}

// Persister is implemented by stores that can flush collections to storage.
type Persister interface {
	Persist(ctx context.Context) error
}
