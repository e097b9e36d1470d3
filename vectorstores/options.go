package vectorstores

import (
	"github.com/viant/textvec/embeddings"
	"github.com/viant/textvec/schema"
)

// Filter decides whether a matched document is included in search results.
type Filter interface {
	Match(doc *schema.Document) bool
}

// Option applies configuration to Options.
type Option func(*Options)

// Options collects optional parameters for vector store operations.
type Options struct {
	Embedder embeddings.Embedder
	// Metadata aligns 1:1 by position with the documents passed to
	// AddDocuments; a length mismatch is rejected before any mutation.
	Metadata []map[string]interface{}
	// IDs aligns 1:1 by position with the documents passed to AddDocuments
	// and overrides per-document identifiers.
	IDs []string
	// Offset skips the first N results in ranked order.
	Offset int
	// MinScore drops results scoring below the threshold when HasMinScore
	// is set. Similarity scores may be negative, so zero is a meaningful
	// threshold.
	MinScore    float32
	HasMinScore bool
	// Filter post-filters search results.
	Filter Filter
}

// NewOptions applies opts and returns the resolved Options.
func NewOptions(opts ...Option) Options {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithEmbedder sets the embedder to use.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(o *Options) { o.Embedder = e }
}

// WithMetadata sets positional metadata for AddDocuments.
func WithMetadata(metadata ...map[string]interface{}) Option {
	return func(o *Options) { o.Metadata = metadata }
}

// WithIDs sets positional identifiers for AddDocuments.
func WithIDs(ids ...string) Option {
	return func(o *Options) { o.IDs = ids }
}

// WithOffset skips the first N results in ranked order.
func WithOffset(offset int) Option {
	return func(o *Options) {
		if offset > 0 {
			o.Offset = offset
		}
	}
}

// WithMinScore drops results scoring below the threshold.
func WithMinScore(score float32) Option {
	return func(o *Options) {
		o.MinScore = score
		o.HasMinScore = true
	}
}

// WithFilter post-filters search results.
func WithFilter(filter Filter) Option {
	return func(o *Options) { o.Filter = filter }
}
