package tokenizer

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
)

// Reserved token identifiers. The 256 byte-fallback tokens follow the
// specials, the optional word list follows the byte-fallback block.
const (
	PadID     = int32(0)
	UnkID     = int32(1)
	ClsID     = int32(2)
	SepID     = int32(3)
	QueryID   = int32(4)
	PassageID = int32(5)

	byteBase     = int32(6)
	wordBase     = byteBase + 256
	specialCount = int(wordBase)
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Vocabulary maps tokens to identifiers. It is immutable after construction
// and safe for concurrent use.
type Vocabulary struct {
	tokens   []string
	index    map[string]int32
	checksum uint64
}

// NewVocabulary builds a vocabulary from the supplied word list. Duplicate
// and empty words are ignored.
func NewVocabulary(words ...string) *Vocabulary {
	tokens := make([]string, 0, specialCount+len(words))
	tokens = append(tokens, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "[QRY]", "[PSG]")
	for i := 0; i < 256; i++ {
		tokens = append(tokens, fmt.Sprintf("<0x%02X>", i))
	}
	index := make(map[string]int32, specialCount+len(words))
	for i, token := range tokens {
		index[token] = int32(i)
	}
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if _, ok := index[word]; ok {
			continue
		}
		index[word] = int32(len(tokens))
		tokens = append(tokens, word)
	}
	ret := &Vocabulary{tokens: tokens, index: index}
	ret.checksum = checksum(tokens)
	return ret
}

// LoadVocabulary reads a word list (one word per line, '#' comments) from the
// supplied URL.
func LoadVocabulary(ctx context.Context, URL string) (*Vocabulary, error) {
	fs := afs.New()
	reader, err := fs.OpenURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary %v: %w", URL, err)
	}
	defer reader.Close()
	var words []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %v: %w", URL, err)
	}
	return NewVocabulary(words...), nil
}

// Size returns the number of tokens, including specials and byte fallback.
func (v *Vocabulary) Size() int {
	return len(v.tokens)
}

// Lookup returns the identifier for a token.
func (v *Vocabulary) Lookup(token string) (int32, bool) {
	id, ok := v.index[token]
	return id, ok
}

// Token returns the token text for an identifier.
func (v *Vocabulary) Token(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}

// Checksum identifies the vocabulary content; it participates in the model
// fingerprint used for collection provenance checks.
func (v *Vocabulary) Checksum() uint64 {
	return v.checksum
}

func checksum(tokens []string) uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0
	}
	for _, token := range tokens {
		_, _ = h.Write([]byte(token))
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}
