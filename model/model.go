package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/minio/highwayhash"
	"github.com/viant/textvec/tokenizer"
)

// Pooling selects how token states are reduced to a single vector.
type Pooling string

const (
	// PoolingMean averages token states, excluding padding.
	PoolingMean Pooling = "mean"
	// PoolingFirst uses the [CLS] token state.
	PoolingFirst Pooling = "first"
)

const (
	defaultDimension   = 64
	defaultMaxSequence = 128
)

var fingerprintKey = []byte("textvec0fingerprint0textvec0fing")

// Config describes a model. ID drives deterministic weight initialization:
// the same ID and vocabulary always reproduce identical weights.
type Config struct {
	ID          string
	Dimension   int
	MaxSequence int
	Pooling     Pooling
}

func (c *Config) init() {
	if c.Dimension <= 0 {
		c.Dimension = defaultDimension
	}
	if c.MaxSequence <= 0 {
		c.MaxSequence = defaultMaxSequence
	}
	if c.Pooling == "" {
		c.Pooling = PoolingMean
	}
}

// Model holds immutable inference weights: a token embedding table, a
// positional table and a square projection. It is shared read-only by all
// engines constructed over it.
type Model struct {
	cfg         Config
	vocab       *tokenizer.Vocabulary
	embedding   [][]float32
	position    [][]float32
	projection  [][]float32
	fingerprint uint64
}

// New builds a model with weights derived deterministically from cfg.ID and
// the vocabulary checksum.
func New(cfg Config, vocab *tokenizer.Vocabulary) (*Model, error) {
	cfg.init()
	if vocab == nil {
		return nil, fmt.Errorf("model %q: vocabulary is required", cfg.ID)
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	seed := weightSeed(cfg, vocab)
	rnd := rand.New(rand.NewSource(int64(seed)))
	scale := float32(1.0 / math.Sqrt(float64(cfg.Dimension)))
	ret := &Model{
		cfg:        cfg,
		vocab:      vocab,
		embedding:  randomMatrix(rnd, vocab.Size(), cfg.Dimension, scale),
		position:   randomMatrix(rnd, cfg.MaxSequence, cfg.Dimension, scale/4),
		projection: randomMatrix(rnd, cfg.Dimension, cfg.Dimension, scale),
	}
	ret.fingerprint = seed
	return ret, nil
}

// ID returns the model identifier.
func (m *Model) ID() string {
	return m.cfg.ID
}

// Dimension returns the output vector length; every vector produced by this
// model has exactly this length.
func (m *Model) Dimension() int {
	return m.cfg.Dimension
}

// MaxSequence returns the maximum token sequence length.
func (m *Model) MaxSequence() int {
	return m.cfg.MaxSequence
}

// Pooling returns the pooling strategy.
func (m *Model) Pooling() Pooling {
	return m.cfg.Pooling
}

// Vocabulary returns the vocabulary the model was built with.
func (m *Model) Vocabulary() *tokenizer.Vocabulary {
	return m.vocab
}

// Fingerprint identifies model provenance: id, geometry, pooling and
// vocabulary. Collections record the fingerprint of the first writer and
// reject vectors from any other model.
func (m *Model) Fingerprint() uint64 {
	return m.fingerprint
}

func weightSeed(cfg Config, vocab *tokenizer.Vocabulary) uint64 {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0
	}
	_, _ = h.Write([]byte(cfg.ID))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(cfg.Dimension))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(cfg.MaxSequence))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(cfg.Pooling))
	binary.LittleEndian.PutUint64(buf[:], vocab.Checksum())
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func randomMatrix(rnd *rand.Rand, rows, cols int, scale float32) [][]float32 {
	ret := make([][]float32, rows)
	for i := range ret {
		row := make([]float32, cols)
		for j := range row {
			row[j] = (rnd.Float32()*2 - 1) * scale
		}
		ret[i] = row
	}
	return ret
}
