package mem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/bintly"
	store "github.com/viant/textvec/vectordb"
)

// snapshot layout: header (collection name, model fingerprint, dimension,
// record count) followed by the records. One blob per collection.

// Persist flushes every collection to its snapshot. It is a no-op unless the
// store was built with WithBaseURL.
func (s *Store) Persist(ctx context.Context) error {
	if s.baseURL == "" {
		return nil
	}
	s.RLock()
	collections := make([]*Collection, 0, len(s.collections))
	for _, collection := range s.collections {
		collections = append(collections, collection)
	}
	s.RUnlock()
	for _, collection := range collections {
		if err := s.persistCollection(ctx, collection); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) persistCollection(ctx context.Context, c *Collection) error {
	c.RLock()
	defer c.RUnlock()

	writers := bintly.NewWriters()
	writer := writers.Get()
	defer writers.Put(writer)

	writer.String(c.name)
	flag := int16(0)
	if c.hasFingerprint {
		flag = 1
	}
	writer.Int16(flag)
	writer.String(fmt.Sprintf("%016x", c.fingerprint))
	writer.Int(c.dimension)
	writer.Int(len(c.records))
	for _, record := range c.records {
		if err := record.EncodeBinary(writer); err != nil {
			return fmt.Errorf("failed to encode record %q in collection %q: %w", record.ID, c.name, err)
		}
	}

	fs := afs.New()
	URL := s.snapshotURL(c.name)
	if ok, _ := fs.Exists(ctx, URL); ok {
		_ = fs.Delete(ctx, URL)
	}
	if err := fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(writer.Bytes())); err != nil {
		return fmt.Errorf("failed to persist collection %q: %w", c.name, err)
	}
	return nil
}

// loadSnapshot populates c from its snapshot, reporting whether one existed.
func (s *Store) loadSnapshot(ctx context.Context, c *Collection) (bool, error) {
	fs := afs.New()
	URL := s.snapshotURL(c.name)
	if ok, _ := fs.Exists(ctx, URL); !ok {
		return false, nil
	}
	reader, err := fs.OpenURL(ctx, URL)
	if err != nil {
		return false, fmt.Errorf("failed to open snapshot %v: %w", URL, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot %v: %w", URL, err)
	}

	readers := bintly.NewReaders()
	stream := readers.Get()
	defer readers.Put(stream)
	if err := stream.FromBytes(data); err != nil {
		return false, fmt.Errorf("failed to decode snapshot %v: %w", URL, err)
	}

	var name, fingerprintHex string
	var flag int16
	var dimension, count int
	stream.String(&name)
	stream.Int16(&flag)
	stream.String(&fingerprintHex)
	stream.Int(&dimension)
	stream.Int(&count)
	if count < 0 || dimension < 0 {
		return false, fmt.Errorf("snapshot %v: corrupted header", URL)
	}
	fingerprint, err := strconv.ParseUint(fingerprintHex, 16, 64)
	if err != nil {
		return false, fmt.Errorf("snapshot %v: invalid fingerprint: %w", URL, err)
	}

	c.Lock()
	defer c.Unlock()
	c.dimension = dimension
	c.fingerprint = fingerprint
	c.hasFingerprint = flag == 1
	c.records = make([]*store.Record, 0, count)
	c.index = make(map[string]int, count)
	for i := 0; i < count; i++ {
		record := &store.Record{}
		if err := record.DecodeBinary(stream); err != nil {
			return false, fmt.Errorf("snapshot %v: record %d: %w", URL, i, err)
		}
		if len(record.Vector) != dimension {
			return false, fmt.Errorf("snapshot %v: record %q has dimension %d, header says %d",
				URL, record.ID, len(record.Vector), dimension)
		}
		c.index[record.ID] = len(c.records)
		c.records = append(c.records, record)
	}
	return true, nil
}

func (s *Store) deleteSnapshot(ctx context.Context, name string) error {
	fs := afs.New()
	URL := s.snapshotURL(name)
	if ok, _ := fs.Exists(ctx, URL); !ok {
		return nil
	}
	return fs.Delete(ctx, URL)
}

func (s *Store) snapshotURL(name string) string {
	builder := strings.Builder{}
	builder.WriteString("collection_")
	builder.WriteString(name)
	builder.WriteString(".vec")
	return url.Join(s.baseURL, builder.String())
}
