package sqlitevec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/viant/sqlite-vec/vector"

	"github.com/viant/textvec/embeddings/local"
	"github.com/viant/textvec/model"
	"github.com/viant/textvec/schema"
	"github.com/viant/textvec/tokenizer"
	store "github.com/viant/textvec/vectordb"
	"github.com/viant/textvec/vectorstores"
)

func testEmbedder(t *testing.T, id string) *local.Embedder {
	t.Helper()
	vocab := tokenizer.NewVocabulary("cats", "dogs", "cars", "love", "racing")
	m, err := model.New(model.Config{ID: id, Dimension: 16, MaxSequence: 32}, vocab)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	return local.New(m)
}

// fixedEmbedder reports a static dimension, returns constant unit vectors and
// counts embedding calls.
type fixedEmbedder struct {
	dim   int
	calls int
}

func (e *fixedEmbedder) embed() []float32 {
	out := make([]float32, e.dim)
	out[0] = 1
	return out
}

func (e *fixedEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(docs))
	for i := range docs {
		out[i] = e.embed()
	}
	return out, nil
}

func (e *fixedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return e.embed(), nil
}

func (e *fixedEmbedder) Dimension() int { return e.dim }

func openStore(t *testing.T, dsn string, embedder *local.Embedder) *Store {
	t.Helper()
	s, err := NewStore(WithDSN(dsn), WithEmbedder(embedder))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AddSearchRemove(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-test"))

	docs := []schema.Document{
		{PageContent: "cats"},
		{PageContent: "dogs"},
		{PageContent: "cars"},
	}
	ids, err := s.AddDocuments(ctx, "t", docs, vectorstores.WithIDs("1", "2", "3"))
	if err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	if len(ids) != 3 || ids[1] != "2" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	results, err := s.SimilaritySearch(ctx, "t", "cats", 3)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(results) != 3 || results[0].ID != "1" {
		t.Fatalf("expected exact text to rank first, got %+v", results)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by descending score")
		}
	}

	if err := s.Remove(ctx, "t", []string{"2", "absent"}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	results, err = s.SimilaritySearch(ctx, "t", "cats", 3)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after delete, got %d", len(results))
	}
	for _, result := range results {
		if result.ID == "2" {
			t.Fatalf("deleted id returned: %+v", result)
		}
	}
}

func TestStore_CollectionNotFound(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-missing"))
	if _, err := s.SimilaritySearch(ctx, "never", "cats", 1); !errors.Is(err, store.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestStore_UpsertKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-upsert"))
	if _, err := s.AddDocuments(ctx, "u", []schema.Document{
		{ID: "1", PageContent: "cats", Metadata: map[string]interface{}{"rev": 1}},
		{ID: "2", PageContent: "dogs"},
	}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	if _, err := s.AddDocuments(ctx, "u", []schema.Document{
		{ID: "1", PageContent: "racing", Metadata: map[string]interface{}{"author": "x"}},
	}); err != nil {
		t.Fatalf("re-add failed: %v", err)
	}
	results, err := s.SimilaritySearch(ctx, "u", "racing", 10)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records after upsert, got %d", len(results))
	}
	for _, result := range results {
		if result.ID != "1" {
			continue
		}
		if result.PageContent != "racing" {
			t.Fatalf("upsert not reflected: %+v", result)
		}
		if _, ok := result.Metadata["rev"]; ok {
			t.Fatalf("metadata merged instead of overwritten: %+v", result.Metadata)
		}
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := t.TempDir() + "/vec.sqlite"
	embedder := testEmbedder(t, "sqlite-durable")

	s := openStore(t, dsn, embedder)
	if _, err := s.AddDocuments(ctx, "d", []schema.Document{{ID: "1", PageContent: "cats love racing"}}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openStore(t, dsn, embedder)
	results, err := reopened.SimilaritySearch(ctx, "d", "cats love racing", 1)
	if err != nil {
		t.Fatalf("SimilaritySearch after reopen failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "1" {
		t.Fatalf("unexpected results after reopen: %+v", results)
	}

	// provenance survives reopen
	if _, err := reopened.SimilaritySearch(ctx, "d", "cats", 1,
		vectorstores.WithEmbedder(testEmbedder(t, "sqlite-other"))); !errors.Is(err, store.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestStore_MetadataMismatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-args"))
	_, err := s.AddDocuments(ctx, "m", []schema.Document{
		{PageContent: "cats"}, {PageContent: "dogs"}, {PageContent: "cars"},
	}, vectorstores.WithMetadata(map[string]interface{}{"a": 1}, map[string]interface{}{"b": 2}))
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := s.SimilaritySearch(ctx, "m", "cats", 1); !errors.Is(err, store.ErrCollectionNotFound) {
		t.Fatalf("expected unchanged store, got %v", err)
	}
}

func TestStore_EmbeddingBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	embedder := testEmbedder(t, "sqlite-blob")
	s := openStore(t, t.TempDir()+"/vec.sqlite", embedder)
	if _, err := s.AddDocuments(ctx, "b", []schema.Document{{ID: "1", PageContent: "cats love racing"}}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	expected, err := embedder.EmbedDocuments(ctx, []string{"cats love racing"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	var blob []byte
	if err := s.DB().QueryRowContext(ctx,
		`SELECT embedding FROM textvec_records WHERE collection = 'b' AND id = '1'`).Scan(&blob); err != nil {
		t.Fatalf("blob read failed: %v", err)
	}
	decoded, err := vector.DecodeEmbedding(blob)
	if err != nil {
		t.Fatalf("DecodeEmbedding failed: %v", err)
	}
	if len(decoded) != len(expected[0]) {
		t.Fatalf("decoded length %d, want %d", len(decoded), len(expected[0]))
	}
	for i := range decoded {
		if decoded[i] != expected[0][i] {
			t.Fatalf("element %d differs: %v vs %v", i, decoded[i], expected[0][i])
		}
	}
}

func TestStore_DimensionPreflightBeforeEmbedding(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-preflight"))
	if _, err := s.AddDocuments(ctx, "p", []schema.Document{{ID: "1", PageContent: "cats"}}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	wrong := &fixedEmbedder{dim: 8}
	if _, err := s.AddDocuments(ctx, "p", []schema.Document{{ID: "2", PageContent: "dogs"}},
		vectorstores.WithEmbedder(wrong)); !errors.Is(err, store.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.SimilaritySearch(ctx, "p", "cats", 1,
		vectorstores.WithEmbedder(wrong)); !errors.Is(err, store.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if wrong.calls != 0 {
		t.Fatalf("embedder invoked %d times despite dimension mismatch", wrong.calls)
	}
}

func TestStore_ConcurrentAddsAllocateDistinctSeq(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-seq"))
	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				doc := schema.Document{ID: fmt.Sprintf("w%d-%d", worker, i), PageContent: "cats love racing"}
				if _, err := s.AddDocuments(ctx, "c", []schema.Document{doc}); err != nil {
					t.Errorf("AddDocuments failed: %v", err)
				}
			}
		}(worker)
	}
	wg.Wait()

	rows, err := s.DB().QueryContext(ctx, `SELECT seq FROM textvec_records WHERE collection = 'c' ORDER BY seq`)
	if err != nil {
		t.Fatalf("seq query failed: %v", err)
	}
	defer rows.Close()
	seen := map[int64]bool{}
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if seen[seq] {
			t.Fatalf("duplicate seq %d", seq)
		}
		seen[seq] = true
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows failed: %v", err)
	}
	if len(seen) != 12 {
		t.Fatalf("expected 12 records with distinct seq, got %d", len(seen))
	}
}

func TestStore_AdoptsFirstFingerprintedWriter(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/vec.sqlite", testEmbedder(t, "sqlite-adopt"))
	if _, err := s.AddDocuments(ctx, "a", []schema.Document{{ID: "1", PageContent: "cats"}},
		vectorstores.WithEmbedder(&fixedEmbedder{dim: 16})); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	// the first fingerprinted writer stamps the collection
	if _, err := s.AddDocuments(ctx, "a", []schema.Document{{ID: "2", PageContent: "dogs"}}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	if _, err := s.SimilaritySearch(ctx, "a", "cats", 1); err != nil {
		t.Fatalf("SimilaritySearch with adopted model failed: %v", err)
	}
	if _, err := s.SimilaritySearch(ctx, "a", "cats", 1,
		vectorstores.WithEmbedder(testEmbedder(t, "sqlite-intruder"))); !errors.Is(err, store.ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}
