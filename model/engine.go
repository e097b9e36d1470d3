package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/viant/textvec/tokenizer"
)

// ErrInference indicates the numeric backend rejected a malformed tensor
// shape. It is fatal for the batch and never retried; shape invariants are
// load-time guarantees, so hitting it indicates a programming error.
var ErrInference = errors.New("model: inference failed")

// Mode selects the embedding flavor. Queries and passages are embedded
// asymmetrically: each mode injects its own instruction token, so the same
// text may legitimately produce different vectors per mode.
type Mode int

const (
	// ModePassage embeds stored documents.
	ModePassage Mode = iota
	// ModeQuery embeds search queries.
	ModeQuery
)

func (m Mode) token() int32 {
	if m == ModeQuery {
		return tokenizer.QueryID
	}
	return tokenizer.PassageID
}

const (
	defaultMaxBatchSize = 32
	defaultWorkers      = 4
)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxBatchSize caps the number of sequences per inference call; larger
// inputs are split and results concatenated in original order.
func WithMaxBatchSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.maxBatchSize = size
		}
	}
}

// WithWorkers sets the number of parallel inference workers.
func WithWorkers(count int) Option {
	return func(e *Engine) {
		if count > 0 {
			e.workers = count
		}
	}
}

// Engine runs batched inference over a shared read-only model.
type Engine struct {
	model        *Model
	maxBatchSize int
	workers      int
}

// NewEngine creates an inference engine.
func NewEngine(model *Model, opts ...Option) *Engine {
	ret := &Engine{
		model:        model,
		maxBatchSize: defaultMaxBatchSize,
		workers:      defaultWorkers,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Model returns the underlying model.
func (e *Engine) Model() *Model {
	return e.model
}

// Infer produces one raw (unnormalized) vector per batch row. Rows are
// validated up front; oversized batches are split across a bounded worker
// pool and re-sequenced into input order. The context is checked between
// sub-batches so bulk callers can cancel.
func (e *Engine) Infer(ctx context.Context, batch *tokenizer.Batch, mode Mode) ([][]float32, error) {
	if batch == nil || batch.Size() == 0 {
		return nil, nil
	}
	if err := e.validate(batch); err != nil {
		return nil, err
	}
	out := make([][]float32, batch.Size())
	limiter := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	var inferErr error
	var once sync.Once

	for start := 0; start < batch.Size(); start += e.maxBatchSize {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		default:
		}
		end := start + e.maxBatchSize
		if end > batch.Size() {
			end = batch.Size()
		}
		wg.Add(1)
		limiter <- struct{}{}
		go func(lo, hi int) {
			defer wg.Done()
			defer func() { <-limiter }()
			for row := lo; row < hi; row++ {
				vector, err := e.inferRow(batch.TokenIDs[row], batch.Mask[row], mode)
				if err != nil {
					once.Do(func() { inferErr = fmt.Errorf("%w: row %d: %v", ErrInference, row, err) })
					return
				}
				out[row] = vector
			}
		}(start, end)
	}
	wg.Wait()
	if inferErr != nil {
		return nil, inferErr
	}
	return out, nil
}

func (e *Engine) validate(batch *tokenizer.Batch) error {
	vocabSize := int32(e.model.Vocabulary().Size())
	for row, ids := range batch.TokenIDs {
		if len(ids) != len(batch.Mask[row]) {
			return fmt.Errorf("%w: row %d: token/mask length mismatch %d vs %d",
				ErrInference, row, len(ids), len(batch.Mask[row]))
		}
		if len(ids)+1 > e.model.MaxSequence() {
			return fmt.Errorf("%w: row %d: sequence length %d exceeds model maximum %d",
				ErrInference, row, len(ids)+1, e.model.MaxSequence())
		}
		for _, id := range ids {
			if id < 0 || id >= vocabSize {
				return fmt.Errorf("%w: row %d: token id %d out of vocabulary range %d",
					ErrInference, row, id, vocabSize)
			}
		}
	}
	return nil
}

// inferRow injects the mode token after [CLS], adds positional state, pools
// and projects. All arithmetic is float64-accumulated for stability.
func (e *Engine) inferRow(ids []int32, mask []int32, mode Mode) ([]float32, error) {
	m := e.model
	dim := m.Dimension()

	// effective sequence: [CLS] [mode] body...
	effIDs := make([]int32, 0, len(ids)+1)
	effMask := make([]int32, 0, len(ids)+1)
	effIDs = append(effIDs, ids[0], mode.token())
	effMask = append(effMask, mask[0], 1)
	effIDs = append(effIDs, ids[1:]...)
	effMask = append(effMask, mask[1:]...)

	pooled := make([]float64, dim)
	var count float64
	for t, id := range effIDs {
		if effMask[t] == 0 {
			continue
		}
		emb := m.embedding[id]
		pos := m.position[t]
		// first-token pooling covers the [CLS]+mode prefix so the
		// query/passage asymmetry survives pooling
		if m.Pooling() == PoolingFirst && t > 1 {
			break
		}
		for d := 0; d < dim; d++ {
			pooled[d] += float64(emb[d] + pos[d])
		}
		count++
	}
	if count == 0 {
		return make([]float32, dim), nil
	}
	if m.Pooling() == PoolingMean {
		for d := range pooled {
			pooled[d] /= count
		}
	}
	out := make([]float32, dim)
	for d := 0; d < dim; d++ {
		var sum float64
		for k := 0; k < dim; k++ {
			sum += pooled[k] * float64(m.projection[k][d])
		}
		out[d] = float32(math.Tanh(sum))
	}
	return out, nil
}
