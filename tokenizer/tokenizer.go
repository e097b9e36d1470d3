package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrTokenization indicates malformed input text, such as an invalid UTF-8
// byte sequence.
var ErrTokenization = errors.New("tokenizer: malformed input text")

// Batch holds encoded token sequences with attention masks. All rows share
// MaxLength; mask is 1 for real tokens and 0 for padding.
type Batch struct {
	TokenIDs  [][]int32
	Mask      [][]int32
	MaxLength int
}

// Size returns the number of sequences in the batch.
func (b *Batch) Size() int {
	return len(b.TokenIDs)
}

// Tokenizer encodes raw text into padded token-id sequences. It is a pure
// function of its input and immutable vocabulary and is safe for concurrent
// use.
type Tokenizer struct {
	vocab *Vocabulary
}

// New creates a tokenizer over the supplied vocabulary.
func New(vocab *Vocabulary) *Tokenizer {
	return &Tokenizer{vocab: vocab}
}

// Vocabulary returns the tokenizer vocabulary.
func (t *Tokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}

// Encode converts texts into token-id sequences framed as [CLS] body [SEP],
// truncated to maxLength and padded with [PAD]. Out-of-vocabulary words fall
// back to byte tokens, so encoding never loses determinism.
func (t *Tokenizer) Encode(texts []string, maxLength int) (*Batch, error) {
	if maxLength < 2 {
		return nil, fmt.Errorf("%w: maxLength %d is too small", ErrTokenization, maxLength)
	}
	batch := &Batch{
		TokenIDs:  make([][]int32, len(texts)),
		Mask:      make([][]int32, len(texts)),
		MaxLength: maxLength,
	}
	for i, text := range texts {
		if !utf8.ValidString(text) {
			return nil, fmt.Errorf("%w: invalid UTF-8 at input %d", ErrTokenization, i)
		}
		body := t.tokenize(text)
		if len(body) > maxLength-2 {
			body = body[:maxLength-2]
		}
		ids := make([]int32, 0, maxLength)
		ids = append(ids, ClsID)
		ids = append(ids, body...)
		ids = append(ids, SepID)
		mask := make([]int32, maxLength)
		for j := range ids {
			mask[j] = 1
		}
		for len(ids) < maxLength {
			ids = append(ids, PadID)
		}
		batch.TokenIDs[i] = ids
		batch.Mask[i] = mask
	}
	return batch, nil
}

func (t *Tokenizer) tokenize(text string) []int32 {
	var ids []int32
	for _, word := range split(text) {
		if id, ok := t.vocab.Lookup(word); ok {
			ids = append(ids, id)
			continue
		}
		// byte fallback keeps unknown words deterministic
		for i := 0; i < len(word); i++ {
			ids = append(ids, byteBase+int32(word[i]))
		}
	}
	return ids
}

// split lowercases and breaks text into words and single punctuation tokens.
func split(text string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}
