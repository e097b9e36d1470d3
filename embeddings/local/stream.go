package local

import (
	"context"
	"io"

	"github.com/viant/textvec/model"
)

// Stream is a pull-based sequence of normalized vectors. Consumers retrieve
// one vector at a time without materializing the full result set; output
// order always matches input order. The engine may still fan sub-batches out
// to parallel workers internally. A Stream is not safe for concurrent use.
type Stream struct {
	embedder *Embedder
	texts    []string
	mode     model.Mode

	offset int
	buffer [][]float32
	pos    int
}

// Next returns the next vector, embedding one batch on demand. It returns
// io.EOF once all texts are consumed. The context is checked per batch so
// long runs can be cancelled between batches.
func (s *Stream) Next(ctx context.Context) ([]float32, error) {
	if s.pos < len(s.buffer) {
		vector := s.buffer[s.pos]
		s.pos++
		return vector, nil
	}
	if s.offset >= len(s.texts) {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	end := s.offset + s.embedder.batchSize
	if end > len(s.texts) {
		end = len(s.texts)
	}
	buffer, err := s.embedder.embedBatch(ctx, s.texts[s.offset:end], s.mode)
	if err != nil {
		return nil, err
	}
	s.offset = end
	s.buffer = buffer
	s.pos = 1
	return buffer[0], nil
}

// Reset restarts the stream from the first text.
func (s *Stream) Reset() {
	s.offset = 0
	s.buffer = nil
	s.pos = 0
}

// Collect drains the stream into a slice.
func (s *Stream) Collect(ctx context.Context) ([][]float32, error) {
	ret := make([][]float32, 0, len(s.texts))
	for {
		vector, err := s.Next(ctx)
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return nil, err
		}
		ret = append(ret, vector)
	}
}
