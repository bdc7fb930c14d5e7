// Package tokenizer counts and slices text in model tokens.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// DefaultEncoding matches the OpenAI chat and embedding models in use.
const DefaultEncoding = "cl100k_base"

// Tokenizer encodes text to tokens and back. Decode(Encode(s)) == s.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads a BPE encoding. The first load may download the ranks file.
func NewTiktoken(encoding string) (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return tiktokenTokenizer{enc: enc}, nil
}

func (t tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Runes treats every rune as one token. It over-counts, which keeps budgets safe.
type Runes struct{}

func (Runes) Encode(text string) []int {
	rs := []rune(text)
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = int(r)
	}
	return out
}

func (Runes) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}

// NewOrFallback returns the tiktoken encoding, or Runes when it cannot be loaded.
func NewOrFallback(encoding string, logger *zap.Logger) Tokenizer {
	tok, err := NewTiktoken(encoding)
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken unavailable, counting runes instead", zap.Error(err))
		}
		return Runes{}
	}
	return tok
}

// Count returns the number of tokens in text.
func Count(t Tokenizer, text string) int {
	return len(t.Encode(text))
}

// Truncate cuts text to at most limit tokens.
func Truncate(t Tokenizer, text string, limit int) string {
	tokens := t.Encode(text)
	if len(tokens) <= limit {
		return text
	}
	if limit <= 0 {
		return ""
	}
	return t.Decode(tokens[:limit])
}
