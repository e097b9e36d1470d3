package vectordb

import (
	"fmt"
	"sort"
	"time"

	"github.com/viant/bintly"
	"github.com/viant/textvec/schema"
)

// Record is the stored form of a document: identifier, normalized vector,
// text and metadata.
type Record struct {
	ID          string
	Vector      []float32
	PageContent string
	Metadata    map[string]interface{}
}

// Document returns a read-only document view of the record with the supplied
// score. Callers must not mutate the returned Metadata.
func (r *Record) Document(score float32) schema.Document {
	return schema.Document{
		ID:          r.ID,
		PageContent: r.PageContent,
		Metadata:    r.Metadata,
		Score:       score,
	}
}

// Metadata value tags. Metadata is a tagged union: string, integer, float,
// bool, time, list or map of the same.
const (
	tagString = int16(iota)
	tagInt
	tagFloat32
	tagFloat64
	tagBool
	tagTime
	tagList
	tagMap
)

// EncodeBinary encodes the record to a binary stream.
func (r *Record) EncodeBinary(stream *bintly.Writer) error {
	stream.String(r.ID)
	stream.String(r.PageContent)
	stream.Int(len(r.Vector))
	for _, value := range r.Vector {
		stream.Float32(value)
	}
	return encodeMap(stream, r.Metadata)
}

// DecodeBinary decodes the record from a binary stream.
func (r *Record) DecodeBinary(stream *bintly.Reader) error {
	stream.String(&r.ID)
	stream.String(&r.PageContent)
	var size int
	stream.Int(&size)
	if size < 0 {
		return fmt.Errorf("invalid vector length %d", size)
	}
	r.Vector = make([]float32, size)
	for i := range r.Vector {
		stream.Float32(&r.Vector[i])
	}
	metadata, err := decodeMap(stream)
	if err != nil {
		return err
	}
	r.Metadata = metadata
	return nil
}

func encodeMap(stream *bintly.Writer, aMap map[string]interface{}) error {
	keys := make([]string, 0, len(aMap))
	for key := range aMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	stream.Int(len(keys))
	for _, key := range keys {
		stream.String(key)
		if err := encodeValue(stream, aMap[key]); err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
	}
	return nil
}

func encodeValue(stream *bintly.Writer, value interface{}) error {
	switch actual := value.(type) {
	case string:
		stream.Int16(tagString)
		stream.String(actual)
	case int:
		stream.Int16(tagInt)
		stream.Int(actual)
	case int32:
		stream.Int16(tagInt)
		stream.Int(int(actual))
	case int64:
		stream.Int16(tagInt)
		stream.Int(int(actual))
	case float32:
		stream.Int16(tagFloat32)
		stream.Float32(actual)
	case float64:
		stream.Int16(tagFloat64)
		stream.Float64(actual)
	case bool:
		stream.Int16(tagBool)
		flag := int16(0)
		if actual {
			flag = 1
		}
		stream.Int16(flag)
	case time.Time:
		stream.Int16(tagTime)
		stream.Time(actual)
	case []interface{}:
		stream.Int16(tagList)
		stream.Int(len(actual))
		for i, item := range actual {
			if err := encodeValue(stream, item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	case map[string]interface{}:
		stream.Int16(tagMap)
		return encodeMap(stream, actual)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	return nil
}

func decodeMap(stream *bintly.Reader) (map[string]interface{}, error) {
	var size int
	stream.Int(&size)
	if size < 0 {
		return nil, fmt.Errorf("invalid metadata size %d", size)
	}
	if size == 0 {
		return nil, nil
	}
	ret := make(map[string]interface{}, size)
	for i := 0; i < size; i++ {
		var key string
		stream.String(&key)
		value, err := decodeValue(stream)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", key, err)
		}
		ret[key] = value
	}
	return ret, nil
}

func decodeValue(stream *bintly.Reader) (interface{}, error) {
	var tag int16
	stream.Int16(&tag)
	switch tag {
	case tagString:
		var value string
		stream.String(&value)
		return value, nil
	case tagInt:
		var value int
		stream.Int(&value)
		return value, nil
	case tagFloat32:
		var value float32
		stream.Float32(&value)
		return value, nil
	case tagFloat64:
		var value float64
		stream.Float64(&value)
		return value, nil
	case tagBool:
		var flag int16
		stream.Int16(&flag)
		return flag == 1, nil
	case tagTime:
		var value time.Time
		stream.Time(&value)
		return value, nil
	case tagList:
		var size int
		stream.Int(&size)
		if size < 0 {
			return nil, fmt.Errorf("invalid list size %d", size)
		}
		ret := make([]interface{}, size)
		for i := range ret {
			item, err := decodeValue(stream)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			ret[i] = item
		}
		return ret, nil
	case tagMap:
		return decodeMap(stream)
	default:
		return nil, fmt.Errorf("unsupported metadata tag %d", tag)
	}
}
