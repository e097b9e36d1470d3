// Package sqlitevec is a SQLite-backed VectorStore. Rows persist across
// process restarts; similarity scoring runs in Go over decoded embedding
// blobs with the same ranking semantics as the in-memory store.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/sqlite-vec/vector"
	"github.com/viant/vec/search"
	_ "modernc.org/sqlite"

	"github.com/viant/textvec/embeddings"
	"github.com/viant/textvec/schema"
	store "github.com/viant/textvec/vectordb"
	"github.com/viant/textvec/vectorstores"
)

// Option configures the sqlite store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the SQLite DSN to open (e.g. /path/to/db.sqlite).
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithEmbedder sets the default embedder; per-call options override it.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Store) { s.embedder = embedder }
}

// Store is a SQLite backed vector store.
type Store struct {
	db            *sql.DB
	dsn           string
	embedder      embeddings.Embedder
	openedLocally bool
}

// NewStore opens and initializes a SQLite store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("sqlitevec: dsn required")
		}
		db, err := sql.Open("sqlite", withPragmas(s.dsn))
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		s.db = db
		s.openedLocally = true
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// withPragmas appends WAL and busy-timeout pragmas plus immediate transaction
// locking unless the DSN already carries them or targets an in-memory
// database. Immediate locking makes concurrent write transactions queue at
// BEGIN instead of failing on lock upgrade mid-transaction.
func withPragmas(dsn string) string {
	lower := strings.ToLower(dsn)
	if dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return dsn
	}
	for _, pragma := range []string{"journal_mode(WAL)", "busy_timeout(5000)"} {
		key := strings.ToLower(pragma[:strings.Index(pragma, "(")])
		if strings.Contains(lower, "_pragma="+key) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + pragma
	}
	if !strings.Contains(lower, "_txlock=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_txlock=immediate"
	}
	return dsn
}

// Close closes the underlying DB if Store opened it.
func (s *Store) Close() error {
	if s.openedLocally && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS textvec_collections(
	name TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL DEFAULT '',
	has_fingerprint INTEGER NOT NULL DEFAULT 0,
	dimension INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS textvec_records(
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	content TEXT NOT NULL,
	meta TEXT,
	embedding BLOB NOT NULL,
	seq INTEGER NOT NULL,
	PRIMARY KEY(collection, id)
)`,
		`CREATE INDEX IF NOT EXISTS textvec_records_seq ON textvec_records(collection, seq)`,
	}
	for _, statement := range ddl {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("sqlitevec: schema: %w", err)
		}
	}
	return nil
}

// AddDocuments embeds and upserts documents. The whole request commits in one
// transaction, so an add either fully records or fully fails.
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

	if err := s.preflightDimension(ctx, collection, embedder); err != nil {
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
	fingerprint, hasFingerprint := modelFingerprint(embedder)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.checkCollection(ctx, tx, collection, len(vectors[0]), fingerprint, hasFingerprint, true); err != nil {
		return nil, err
	}
	// seq is allocated inside the INSERT under the write lock, so concurrent
	// adds on one collection cannot observe the same high-water mark.
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO textvec_records(collection, id, content, meta, embedding, seq)
VALUES(?,?,?,?,?,(SELECT COALESCE(MAX(seq), -1) + 1 FROM textvec_records WHERE collection = ?))
ON CONFLICT(collection, id) DO UPDATE SET
	content=excluded.content,
	meta=excluded.meta,
	embedding=excluded.embedding`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, len(docs))
	for i := range docs {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: inconsistent vector lengths %d vs %d",
				store.ErrDimensionMismatch, len(vectors[i]), len(vectors[0]))
		}
		id := docs[i].ID
		if len(options.IDs) > 0 && options.IDs[i] != "" {
			id = options.IDs[i]
		}
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		metadata := docs[i].Metadata
		if len(options.Metadata) > 0 {
			metadata = options.Metadata[i]
		}
		var metaJSON []byte
		if len(metadata) > 0 {
			if metaJSON, err = json.Marshal(metadata); err != nil {
				return nil, fmt.Errorf("failed to encode metadata for id %q: %w", id, err)
			}
		}
		blob, err := vector.EncodeEmbedding(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding for id %q: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, id, docs[i].PageContent,
			string(metaJSON), blob, collection); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// SimilaritySearch embeds query in query mode and scores every stored record
// of the collection in Go.
func (s *Store) SimilaritySearch(ctx context.Context, collection string, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, fmt.Errorf("%w: numDocuments must be positive, got %d", store.ErrInvalidArgument, numDocuments)
	}
	options := vectorstores.NewOptions(opts...)
	embedder := s.resolveEmbedder(&options)
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", store.ErrInvalidArgument)
	}
	if err := s.preflightDimension(ctx, collection, embedder); err != nil {
		return nil, err
	}
	qvec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	fingerprint, hasFingerprint := modelFingerprint(embedder)
	if err := s.checkCollection(ctx, s.db, collection, len(qvec), fingerprint, hasFingerprint, false); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, meta, embedding FROM textvec_records WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	query32 := search.Float32s(qvec)
	type scored struct {
		doc   schema.Document
		score float32
	}
	var candidates []scored
	for rows.Next() {
		var id, content string
		var metaJSON sql.NullString
		var blob []byte
		if err := rows.Scan(&id, &content, &metaJSON, &blob); err != nil {
			return nil, err
		}
		stored, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("record %q in collection %q: %w", id, collection, err)
		}
		score := 1 - query32.CosineDistanceWithMagnitudesNeon(stored, 1, 1)
		if options.HasMinScore && score < options.MinScore {
			continue
		}
		doc := schema.Document{ID: id, PageContent: content, Score: score}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("record %q in collection %q: invalid metadata: %w", id, collection, err)
			}
		}
		candidates = append(candidates, scored{doc: doc, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	docs := make([]schema.Document, 0, numDocuments)
	skipped := 0
	for _, candidate := range candidates {
		if options.Filter != nil && !options.Filter.Match(&candidate.doc) {
			continue
		}
		if skipped < options.Offset {
			skipped++
			continue
		}
		docs = append(docs, candidate.doc)
		if len(docs) >= numDocuments {
			break
		}
	}
	return docs, nil
}

// Remove deletes matching records; absent ids are silently ignored.
func (s *Store) Remove(ctx context.Context, collection string, ids []string, opts ...vectorstores.Option) error {
	if err := s.checkCollection(ctx, s.db, collection, 0, 0, false, false); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM textvec_records WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	return err
}

// Drop destroys the collection and all its records.
func (s *Store) Drop(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM textvec_records WHERE collection = ?`, collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM textvec_collections WHERE name = ?`, collection); err != nil {
		return err
	}
	return tx.Commit()
}

// Persist is a no-op; data is persisted on each write.
func (s *Store) Persist(ctx context.Context) error { return nil }

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// checkCollection enforces the collection existence, dimension and model
// provenance invariants, registering the collection when create is set.
func (s *Store) checkCollection(ctx context.Context, q querier, collection string, dimension int, fingerprint uint64, hasFingerprint, create bool) error {
	if collection == "" {
		return fmt.Errorf("%w: collection name is required", store.ErrInvalidArgument)
	}
	var storedFingerprint string
	var storedHas int
	var storedDimension int
	err := q.QueryRowContext(ctx,
		`SELECT fingerprint, has_fingerprint, dimension FROM textvec_collections WHERE name = ?`, collection).
		Scan(&storedFingerprint, &storedHas, &storedDimension)
	if errors.Is(err, sql.ErrNoRows) {
		if !create {
			return fmt.Errorf("%w: %q", store.ErrCollectionNotFound, collection)
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO textvec_collections(name, fingerprint, has_fingerprint, dimension) VALUES(?,?,?,?)`,
			collection, strconv.FormatUint(fingerprint, 16), boolToInt(hasFingerprint), dimension)
		return err
	}
	if err != nil {
		return err
	}
	if dimension != 0 && storedDimension != dimension {
		return fmt.Errorf("%w: collection %q expects dimension %d, got %d",
			store.ErrDimensionMismatch, collection, storedDimension, dimension)
	}
	if storedHas == 1 && hasFingerprint && storedFingerprint != strconv.FormatUint(fingerprint, 16) {
		return fmt.Errorf("%w: collection %q was built with a different model",
			store.ErrModelMismatch, collection)
	}
	// a collection created by a non-fingerprinting embedder adopts the first
	// fingerprinted writer
	if create && hasFingerprint && storedHas == 0 {
		if _, err := q.ExecContext(ctx,
			`UPDATE textvec_collections SET fingerprint = ?, has_fingerprint = 1 WHERE name = ?`,
			strconv.FormatUint(fingerprint, 16), collection); err != nil {
			return err
		}
	}
	return nil
}

// preflightDimension rejects an embedder whose static output length cannot
// match an existing collection, before any embedding work happens. Unknown
// collections and embedders without a static dimension pass through.
func (s *Store) preflightDimension(ctx context.Context, collection string, embedder embeddings.Embedder) error {
	actual, ok := embedder.(embeddings.Dimensioner)
	if !ok {
		return nil
	}
	err := s.checkCollection(ctx, s.db, collection, actual.Dimension(), 0, false, false)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return nil
	}
	return err
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

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
