// Package mem provides an in-memory vector store keyed by collection name.
// Collections are created implicitly on first insertion; a process restart
// discards them unless a base URL is configured for snapshots.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/viant/textvec/embeddings"
	"github.com/viant/textvec/schema"
	store "github.com/viant/textvec/vectordb"
	"github.com/viant/textvec/vectorstores"
)

const defaultCacheSize = 128

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithBaseURL enables collection snapshots under the supplied URL.
func WithBaseURL(baseURL string) StoreOption {
	return func(s *Store) { s.baseURL = baseURL }
}

// WithEmbedder sets the default embedder; per-call options override it.
func WithEmbedder(embedder embeddings.Embedder) StoreOption {
	return func(s *Store) { s.embedder = embedder }
}

// WithQueryCacheSize bounds the per-collection query vector cache.
func WithQueryCacheSize(size int) StoreOption {
	return func(s *Store) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// Store is an in-memory vector store. All methods are safe for concurrent
// use; operations on distinct collections never block each other.
type Store struct {
	baseURL     string
	embedder    embeddings.Embedder
	cacheSize   int
	collections map[string]*Collection
	sync.RWMutex
}

// NewStore creates an in-memory store.
func NewStore(options ...StoreOption) *Store {
	ret := &Store{
		collections: make(map[string]*Collection),
		cacheSize:   defaultCacheSize,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// BaseURL returns the snapshot base URL, empty when snapshots are disabled.
func (s *Store) BaseURL() string {
	return s.baseURL
}

// AddDocuments embeds docs in passage mode and upserts them into collection,
// creating it when absent. Identifiers come from each document, the WithIDs
// option, or a generated surrogate, in that order of precedence per position.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", store.ErrInvalidArgument)
	}
	options := vectorstores.NewOptions(opts...)
	embedder := s.resolveEmbedder(&options)
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", store.ErrInvalidArgument)
	}
	if len(options.Metadata) > 0 && len(options.Metadata) != len(docs) {
		return nil, fmt.Errorf("%w: %d metadata entries for %d documents in collection %q",
			store.ErrInvalidArgument, len(options.Metadata), len(docs), collection)
	}
	if len(options.IDs) > 0 && len(options.IDs) != len(docs) {
		return nil, fmt.Errorf("%w: %d ids for %d documents in collection %q",
			store.ErrInvalidArgument, len(options.IDs), len(docs), collection)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if err := s.preflightDimension(collection, embedder); err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	records := make([]*store.Record, len(docs))
	for i := range docs {
		id := docs[i].ID
		if len(options.IDs) > 0 && options.IDs[i] != "" {
			id = options.IDs[i]
		}
		if id == "" {
			id = uuid.NewString()
		}
		metadata := docs[i].Metadata
		if len(options.Metadata) > 0 {
			metadata = options.Metadata[i]
		}
		ids[i] = id
		records[i] = &store.Record{
			ID:          id,
			Vector:      vectors[i],
			PageContent: docs[i].PageContent,
			Metadata:    metadata,
		}
	}

	fingerprint, hasFingerprint := modelFingerprint(embedder)
	target, err := s.getCollection(ctx, collection, true)
	if err != nil {
		return nil, err
	}
	if err := target.upsert(records, fingerprint, hasFingerprint); err != nil {
		return nil, err
	}
	return ids, nil
}

// SimilaritySearch embeds query in query mode and returns up to numDocuments
// results, highest score first. A never-created collection fails with
// ErrCollectionNotFound.
func (s *Store) SimilaritySearch(ctx context.Context, collection string, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, fmt.Errorf("%w: numDocuments must be positive, got %d", store.ErrInvalidArgument, numDocuments)
	}
	options := vectorstores.NewOptions(opts...)
	embedder := s.resolveEmbedder(&options)
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", store.ErrInvalidArgument)
	}
	target, err := s.getCollection(ctx, collection, false)
	if err != nil {
		return nil, err
	}

	fingerprint, hasFingerprint := modelFingerprint(embedder)
	if actual, ok := embedder.(embeddings.Dimensioner); ok {
		if err := target.checkModel(fingerprint, hasFingerprint, actual.Dimension()); err != nil {
			return nil, err
		}
	}
	vector, cached := target.cache.Get(query, fingerprint)
	if !cached {
		if vector, err = embedder.EmbedQuery(ctx, query); err != nil {
			return nil, err
		}
		target.cache.Put(query, vector, fingerprint)
	}
	if err := target.checkModel(fingerprint, hasFingerprint, len(vector)); err != nil {
		return nil, err
	}
	return target.search(vector, numDocuments, &options), nil
}

// Remove deletes matching records from collection; absent ids are silently
// ignored.
func (s *Store) Remove(ctx context.Context, collection string, ids []string, opts ...vectorstores.Option) error {
	target, err := s.getCollection(ctx, collection, false)
	if err != nil {
		return err
	}
	target.remove(ids)
	return nil
}

// Drop destroys the collection. Dropping an absent collection is a no-op.
func (s *Store) Drop(ctx context.Context, collection string) error {
	s.Lock()
	delete(s.collections, collection)
	s.Unlock()
	if s.baseURL != "" {
		return s.deleteSnapshot(ctx, collection)
	}
	return nil
}

// getCollection returns the named collection, creating it when create is set.
// With snapshots enabled, a collection absent from memory is loaded from its
// snapshot before being reported missing.
func (s *Store) getCollection(ctx context.Context, name string, create bool) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", store.ErrInvalidArgument)
	}
	s.RLock()
	ret, ok := s.collections[name]
	s.RUnlock()
	if ok {
		return ret, nil
	}
	s.Lock()
	defer s.Unlock()
	if ret, ok = s.collections[name]; ok {
		return ret, nil
	}
	ret = newCollection(name, s.cacheSize)
	if s.baseURL != "" {
		loaded, err := s.loadSnapshot(ctx, ret)
		if err != nil {
			return nil, err
		}
		if loaded {
			s.collections[name] = ret
			return ret, nil
		}
	}
	if !create {
		return nil, fmt.Errorf("%w: %q", store.ErrCollectionNotFound, name)
	}
	s.collections[name] = ret
	return ret, nil
}

// preflightDimension rejects an embedder whose static output length cannot
// match an existing collection, before any embedding work happens. Unknown
// collections and embedders without a static dimension pass through.
func (s *Store) preflightDimension(collection string, embedder embeddings.Embedder) error {
	actual, ok := embedder.(embeddings.Dimensioner)
	if !ok {
		return nil
	}
	s.RLock()
	existing := s.collections[collection]
	s.RUnlock()
	if existing == nil {
		return nil
	}
	return existing.checkModel(0, false, actual.Dimension())
}

func (s *Store) resolveEmbedder(options *vectorstores.Options) embeddings.Embedder {
	if options.Embedder != nil {
		return options.Embedder
	}
	return s.embedder
}

func modelFingerprint(embedder embeddings.Embedder) (uint64, bool) {
	if actual, ok := embedder.(embeddings.Fingerprinter); ok {
		return actual.Fingerprint(), true
	}
	return 0, false
}
