package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/bintly"
	"github.com/viant/textvec/tokenizer"
)

// Save writes the model weights to the supplied URL as a bintly-encoded blob:
// header (id, geometry, pooling, vocabulary checksum) followed by the weight
// matrices.
func (m *Model) Save(ctx context.Context, URL string) error {
	writers := bintly.NewWriters()
	writer := writers.Get()
	defer writers.Put(writer)

	writer.String(m.cfg.ID)
	writer.Int(m.cfg.Dimension)
	writer.Int(m.cfg.MaxSequence)
	writer.String(string(m.cfg.Pooling))
	writer.String(strconv.FormatUint(m.vocab.Checksum(), 16))
	if err := encodeMatrix(writer, m.embedding); err != nil {
		return err
	}
	if err := encodeMatrix(writer, m.position); err != nil {
		return err
	}
	if err := encodeMatrix(writer, m.projection); err != nil {
		return err
	}

	fs := afs.New()
	if ok, _ := fs.Exists(ctx, URL); ok {
		_ = fs.Delete(ctx, URL)
	}
	if err := fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(writer.Bytes())); err != nil {
		return fmt.Errorf("failed to save model %v: %w", URL, err)
	}
	return nil
}

// Load reads weights previously written by Save. The supplied vocabulary must
// match the one the weights were built with; a checksum disagreement is
// rejected so a loaded model can never mix provenance.
func Load(ctx context.Context, URL string, vocab *tokenizer.Vocabulary) (*Model, error) {
	fs := afs.New()
	reader, err := fs.OpenURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %v: %w", URL, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %v: %w", URL, err)
	}

	readers := bintly.NewReaders()
	stream := readers.Get()
	defer readers.Put(stream)
	if err := stream.FromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to decode model %v: %w", URL, err)
	}

	var cfg Config
	var pooling, checksumHex string
	stream.String(&cfg.ID)
	stream.Int(&cfg.Dimension)
	stream.Int(&cfg.MaxSequence)
	stream.String(&pooling)
	stream.String(&checksumHex)
	cfg.Pooling = Pooling(pooling)

	checksum, err := strconv.ParseUint(checksumHex, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode model %v: invalid vocabulary checksum: %w", URL, err)
	}
	if vocab == nil || vocab.Checksum() != checksum {
		return nil, fmt.Errorf("model %v: vocabulary checksum mismatch", URL)
	}

	ret := &Model{cfg: cfg, vocab: vocab}
	if ret.embedding, err = decodeMatrix(stream); err != nil {
		return nil, fmt.Errorf("failed to decode model %v: %w", URL, err)
	}
	if ret.position, err = decodeMatrix(stream); err != nil {
		return nil, fmt.Errorf("failed to decode model %v: %w", URL, err)
	}
	if ret.projection, err = decodeMatrix(stream); err != nil {
		return nil, fmt.Errorf("failed to decode model %v: %w", URL, err)
	}
	if len(ret.embedding) != vocab.Size() {
		return nil, fmt.Errorf("model %v: embedding table has %d rows, vocabulary has %d tokens",
			URL, len(ret.embedding), vocab.Size())
	}
	ret.fingerprint = weightSeed(cfg, vocab)
	return ret, nil
}

func encodeMatrix(writer *bintly.Writer, matrix [][]float32) error {
	writer.Int(len(matrix))
	if len(matrix) == 0 {
		return nil
	}
	writer.Int(len(matrix[0]))
	for _, row := range matrix {
		if len(row) != len(matrix[0]) {
			return fmt.Errorf("ragged weight matrix: %d vs %d", len(row), len(matrix[0]))
		}
		for _, value := range row {
			writer.Float32(value)
		}
	}
	return nil
}

func decodeMatrix(stream *bintly.Reader) ([][]float32, error) {
	var rows, cols int
	stream.Int(&rows)
	if rows < 0 {
		return nil, fmt.Errorf("invalid matrix row count %d", rows)
	}
	if rows == 0 {
		return nil, nil
	}
	stream.Int(&cols)
	if cols <= 0 {
		return nil, fmt.Errorf("invalid matrix column count %d", cols)
	}
	ret := make([][]float32, rows)
	for i := range ret {
		row := make([]float32, cols)
		for j := range row {
			stream.Float32(&row[j])
		}
		ret[i] = row
	}
	return ret, nil
}
