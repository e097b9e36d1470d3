// Package service is the orchestration surface of the embedding and
// retrieval core: it validates arguments, sequences the embedder and the
// vector store, and holds no state of its own beyond its collaborators.
package service

import (
	"context"
	"fmt"

	"github.com/viant/textvec/embeddings"
	"github.com/viant/textvec/matching"
	"github.com/viant/textvec/matching/option"
	"github.com/viant/textvec/schema"
	"github.com/viant/textvec/vectordb"
	"github.com/viant/textvec/vectordb/mem"
	"github.com/viant/textvec/vectorstores"
)

// Option configures a Service.
type Option func(*Service)

// WithEmbedder sets the embedder.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Service) { s.embedder = embedder }
}

// WithStore sets the vector store; defaults to an in-memory store.
func WithStore(store vectordb.VectorStore) Option {
	return func(s *Service) { s.store = store }
}

// Service coordinates embedding and retrieval.
type Service struct {
	embedder embeddings.Embedder
	store    vectordb.VectorStore
}

// New creates a service. An embedder is required; the store defaults to an
// in-memory one.
func New(opts ...Option) (*Service, error) {
	ret := &Service{}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", vectordb.ErrInvalidArgument)
	}
	if ret.store == nil {
		ret.store = mem.NewStore(mem.WithEmbedder(ret.embedder))
	}
	return ret, nil
}

// Store exposes the underlying vector store.
func (s *Service) Store() vectordb.VectorStore {
	return s.store
}

// EmbedDocuments embeds texts in passage mode.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embedder.EmbedDocuments(ctx, texts)
}

// EmbedQuery embeds text in query mode.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.EmbedQuery(ctx, text)
}

// Add embeds and upserts the request documents, returning the final
// identifiers in input order.
func (s *Service) Add(ctx context.Context, request AddRequest) ([]string, error) {
	if request.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", vectordb.ErrInvalidArgument)
	}
	if len(request.Metadata) > 0 && len(request.Metadata) != len(request.Documents) {
		return nil, fmt.Errorf("%w: %d metadata entries for %d documents",
			vectordb.ErrInvalidArgument, len(request.Metadata), len(request.Documents))
	}
	if len(request.IDs) > 0 && len(request.IDs) != len(request.Documents) {
		return nil, fmt.Errorf("%w: %d ids for %d documents",
			vectordb.ErrInvalidArgument, len(request.IDs), len(request.Documents))
	}
	docs := make([]schema.Document, len(request.Documents))
	for i, text := range request.Documents {
		docs[i] = schema.Document{PageContent: text}
		if len(request.IDs) > 0 {
			docs[i].ID = request.IDs[i]
		}
		if len(request.Metadata) > 0 {
			docs[i].Metadata = request.Metadata[i]
		}
	}
	ids, err := s.store.AddDocuments(ctx, request.Collection, docs,
		vectorstores.WithEmbedder(s.embedder))
	if err != nil {
		return nil, err
	}
	if request.Logf != nil {
		request.Logf("added %d documents to %s", len(ids), request.Collection)
	}
	return ids, nil
}

// Search validates the request, embeds the query in query mode and returns
// ranked results, highest score first.
func (s *Service) Search(ctx context.Context, request SearchRequest) ([]SearchResult, error) {
	if request.Collection == "" || request.Query == "" {
		return nil, fmt.Errorf("%w: collection and query are required", vectordb.ErrInvalidArgument)
	}
	if request.TopK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", vectordb.ErrInvalidArgument, request.TopK)
	}
	opts := []vectorstores.Option{
		vectorstores.WithEmbedder(s.embedder),
		vectorstores.WithOffset(request.Offset),
	}
	if request.HasMinScore {
		opts = append(opts, vectorstores.WithMinScore(request.MinScore))
	}
	if len(request.Include) > 0 || len(request.Exclude) > 0 {
		opts = append(opts, vectorstores.WithFilter(matching.New(
			option.WithMetadataKey(request.MetadataKey),
			option.WithInclusionPatterns(request.Include...),
			option.WithExclusionPatterns(request.Exclude...),
		)))
	}
	docs, err := s.store.SimilaritySearch(ctx, request.Collection, request.Query, request.TopK, opts...)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(docs))
	for i, doc := range docs {
		results[i] = SearchResult{
			ID:       doc.ID,
			Score:    doc.Score,
			Content:  doc.PageContent,
			Metadata: doc.Metadata,
		}
	}
	if request.Logf != nil {
		request.Logf("search %q in %s matched %d of topK %d", request.Query, request.Collection, len(results), request.TopK)
	}
	return results, nil
}

// Remove deletes the requested ids; absent ids are silently ignored.
func (s *Service) Remove(ctx context.Context, request RemoveRequest) error {
	if request.Collection == "" {
		return fmt.Errorf("%w: collection is required", vectordb.ErrInvalidArgument)
	}
	if err := s.store.Remove(ctx, request.Collection, request.IDs); err != nil {
		return err
	}
	if request.Logf != nil {
		request.Logf("removed %d ids from %s", len(request.IDs), request.Collection)
	}
	return nil
}
