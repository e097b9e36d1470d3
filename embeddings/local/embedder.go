// Package local embeds text with an in-process model: tokenization,
// batched inference and L2 normalization, with no network dependency.
package local

import (
	"context"

	"github.com/viant/vec/search"

	"github.com/viant/textvec/model"
	"github.com/viant/textvec/tokenizer"
)

const defaultBatchSize = 16

// Option configures an Embedder.
type Option func(*Embedder)

// WithBatchSize sets how many texts are embedded per pipeline batch.
func WithBatchSize(size int) Option {
	return func(e *Embedder) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithEngine overrides the default inference engine.
func WithEngine(engine *model.Engine) Option {
	return func(e *Embedder) {
		e.engine = engine
	}
}

// Embedder implements embeddings.Embedder over a local model. Documents are
// embedded in passage mode, queries in query mode; the asymmetry is defined
// by the model.
type Embedder struct {
	tokenizer *tokenizer.Tokenizer
	engine    *model.Engine
	batchSize int
}

// New creates a local embedder over the supplied model.
func New(m *model.Model, opts ...Option) *Embedder {
	ret := &Embedder{
		tokenizer: tokenizer.New(m.Vocabulary()),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.engine == nil {
		ret.engine = model.NewEngine(m)
	}
	return ret
}

// EmbedDocuments embeds documents in passage mode, in input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	return e.Stream(docs, model.ModePassage).Collect(ctx)
}

// EmbedQuery embeds a single query in query mode.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text}, model.ModeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Stream returns a lazy, restartable sequence of normalized vectors over
// texts in the supplied mode.
func (e *Embedder) Stream(texts []string, mode model.Mode) *Stream {
	return &Stream{embedder: e, texts: texts, mode: mode}
}

// Dimension returns the model output vector length.
func (e *Embedder) Dimension() int {
	return e.engine.Model().Dimension()
}

// Fingerprint identifies the model provenance.
func (e *Embedder) Fingerprint() uint64 {
	return e.engine.Model().Fingerprint()
}

// embedBatch runs one batch through tokenizer, engine and normalization.
func (e *Embedder) embedBatch(ctx context.Context, texts []string, mode model.Mode) ([][]float32, error) {
	maxLength := e.engine.Model().MaxSequence() - 1
	batch, err := e.tokenizer.Encode(texts, maxLength)
	if err != nil {
		return nil, err
	}
	vectors, err := e.engine.Infer(ctx, batch, mode)
	if err != nil {
		return nil, err
	}
	for _, vector := range vectors {
		normalize(vector)
	}
	return vectors, nil
}

// normalize scales vector to unit L2 norm in place. A zero vector stays zero
// rather than dividing by zero; it is a degenerate-input edge case.
func normalize(vector []float32) {
	magnitude := search.Float32s(vector).Magnitude()
	if magnitude == 0 {
		return
	}
	for i := range vector {
		vector[i] /= magnitude
	}
}
