package mem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/vec/search"

	"github.com/viant/textvec/schema"
	store "github.com/viant/textvec/vectordb"
	"github.com/viant/textvec/vectorstores"
)

// Collection holds records in insertion order with an identifier index.
// Reads run concurrently; writes serialize against reads and other writes.
// Collections are independent: operations on one never block another.
type Collection struct {
	name string
	sync.RWMutex
	records []*store.Record
	index   map[string]int

	dimension      int
	fingerprint    uint64
	hasFingerprint bool

	cache *MRUCache
}

func newCollection(name string, cacheSize int) *Collection {
	return &Collection{
		name:  name,
		index: make(map[string]int),
		cache: NewMRUCache(cacheSize),
	}
}

// upsert validates every record against the collection's established
// dimension and model provenance before applying anything, so an add either
// fully records or fully fails.
func (c *Collection) upsert(records []*store.Record, fingerprint uint64, hasFingerprint bool) error {
	c.Lock()
	defer c.Unlock()

	dimension := c.dimension
	if dimension == 0 && len(records) > 0 {
		dimension = len(records[0].Vector)
	}
	for _, record := range records {
		if len(record.Vector) != dimension {
			return fmt.Errorf("%w: collection %q expects dimension %d, got %d for id %q",
				store.ErrDimensionMismatch, c.name, dimension, len(record.Vector), record.ID)
		}
	}
	if c.hasFingerprint && hasFingerprint && c.fingerprint != fingerprint {
		return fmt.Errorf("%w: collection %q was built with a different model",
			store.ErrModelMismatch, c.name)
	}

	for _, record := range records {
		if at, ok := c.index[record.ID]; ok {
			// overwrite keeps the original insertion position
			c.records[at] = record
			continue
		}
		c.index[record.ID] = len(c.records)
		c.records = append(c.records, record)
	}
	c.dimension = dimension
	if hasFingerprint && !c.hasFingerprint {
		c.fingerprint = fingerprint
		c.hasFingerprint = true
	}
	return nil
}

// checkModel rejects a query embedded with a different model than the
// collection was built with.
func (c *Collection) checkModel(fingerprint uint64, hasFingerprint bool, dimension int) error {
	c.RLock()
	defer c.RUnlock()
	if c.hasFingerprint && hasFingerprint && c.fingerprint != fingerprint {
		return fmt.Errorf("%w: collection %q was built with a different model",
			store.ErrModelMismatch, c.name)
	}
	if c.dimension != 0 && dimension != c.dimension {
		return fmt.Errorf("%w: collection %q expects dimension %d, got %d",
			store.ErrDimensionMismatch, c.name, c.dimension, dimension)
	}
	return nil
}

// search scans every record, scoring by inner product of normalized vectors.
// Results come back highest score first; equal scores keep insertion order.
func (c *Collection) search(vector []float32, numDocuments int, options *vectorstores.Options) []schema.Document {
	c.RLock()
	defer c.RUnlock()

	type scored struct {
		at    int
		score float32
	}
	query := search.Float32s(vector)
	candidates := make([]scored, 0, len(c.records))
	for at, record := range c.records {
		// stored and query vectors are unit length, so cosine reduces
		// to the inner product
		score := 1 - query.CosineDistanceWithMagnitudesNeon(record.Vector, 1, 1)
		if options.HasMinScore && score < options.MinScore {
			continue
		}
		candidates = append(candidates, scored{at: at, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	docs := make([]schema.Document, 0, numDocuments)
	skipped := 0
	for _, candidate := range candidates {
		record := c.records[candidate.at]
		if options.Filter != nil {
			doc := record.Document(candidate.score)
			if !options.Filter.Match(&doc) {
				continue
			}
		}
		if skipped < options.Offset {
			skipped++
			continue
		}
		docs = append(docs, record.Document(candidate.score))
		if len(docs) >= numDocuments {
			break
		}
	}
	return docs
}

// remove deletes matching records; absent ids are ignored.
func (c *Collection) remove(ids []string) {
	c.Lock()
	defer c.Unlock()
	removed := make(map[int]bool, len(ids))
	for _, id := range ids {
		if at, ok := c.index[id]; ok {
			removed[at] = true
			delete(c.index, id)
		}
	}
	if len(removed) == 0 {
		return
	}
	kept := make([]*store.Record, 0, len(c.records)-len(removed))
	for at, record := range c.records {
		if removed[at] {
			continue
		}
		kept = append(kept, record)
	}
	c.records = kept
	for at, record := range c.records {
		c.index[record.ID] = at
	}
}

// size returns the number of stored records.
func (c *Collection) size() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.records)
}
