package local

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/viant/textvec/model"
	"github.com/viant/textvec/tokenizer"
)

func testEmbedder(t *testing.T, opts ...Option) *Embedder {
	t.Helper()
	vocab := tokenizer.NewVocabulary("red", "green", "blue", "fast", "slow")
	m, err := model.New(model.Config{ID: "unit-test", Dimension: 24, MaxSequence: 32}, vocab)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	return New(m, opts...)
}

func TestEmbedder_EmbedDocuments_UnitNorm(t *testing.T) {
	e := testEmbedder(t)
	ctx := context.Background()
	vectors, err := e.EmbedDocuments(ctx, []string{"red fast", "green slow", "blue"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, vector := range vectors {
		if len(vector) != e.Dimension() {
			t.Fatalf("vector %d has length %d, want %d", i, len(vector), e.Dimension())
		}
		var sum float64
		for _, v := range vector {
			sum += float64(v) * float64(v)
		}
		if norm := math.Sqrt(sum); math.Abs(norm-1) > 1e-5 {
			t.Fatalf("vector %d has norm %v, want 1.0", i, norm)
		}
	}
}

func TestEmbedder_Determinism(t *testing.T) {
	e := testEmbedder(t)
	ctx := context.Background()
	first, err := e.EmbedDocuments(ctx, []string{"red green blue"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	second, err := e.EmbedDocuments(ctx, []string{"red green blue"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	for d := range first[0] {
		if first[0][d] != second[0][d] {
			t.Fatalf("dimension %d differs across identical runs", d)
		}
	}
}

func TestEmbedder_QueryPassageAsymmetry(t *testing.T) {
	e := testEmbedder(t)
	ctx := context.Background()
	asPassage, err := e.EmbedDocuments(ctx, []string{"red fast"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	asQuery, err := e.EmbedQuery(ctx, "red fast")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	same := true
	for d := range asQuery {
		if asPassage[0][d] != asQuery[d] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("query and passage embeddings of the same text are identical")
	}
}

func TestStream_LazyOrderAndReset(t *testing.T) {
	e := testEmbedder(t, WithBatchSize(2))
	ctx := context.Background()
	texts := []string{"red", "green", "blue", "fast", "slow"}

	want, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}

	stream := e.Stream(texts, model.ModePassage)
	for pass := 0; pass < 2; pass++ {
		for i := range texts {
			vector, err := stream.Next(ctx)
			if err != nil {
				t.Fatalf("pass %d: Next(%d) failed: %v", pass, i, err)
			}
			for d := range vector {
				if vector[d] != want[i][d] {
					t.Fatalf("pass %d: vector %d dim %d out of order", pass, i, d)
				}
			}
		}
		if _, err := stream.Next(ctx); err != io.EOF {
			t.Fatalf("pass %d: expected io.EOF, got %v", pass, err)
		}
		stream.Reset()
	}
}

func TestStream_Cancelled(t *testing.T) {
	e := testEmbedder(t, WithBatchSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := e.Stream([]string{"red", "green"}, model.ModePassage)
	if _, err := stream.Next(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	vector := make([]float32, 8)
	normalize(vector)
	for d, v := range vector {
		if v != 0 {
			t.Fatalf("dimension %d of zero vector changed to %v", d, v)
		}
	}
}
