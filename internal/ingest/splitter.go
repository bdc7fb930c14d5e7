package ingest

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-router/internal/tokenizer"
)

// Splitter cuts text into overlapping windows measured in tokens.
type Splitter struct {
	tok     tokenizer.Tokenizer
	size    int
	overlap int
}

func NewSplitter(tok tokenizer.Tokenizer, size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{tok: tok, size: size, overlap: overlap}, nil
}

// Split returns the windows of text in order. Consecutive windows share
// overlap tokens. Blank windows are dropped.
func (s *Splitter) Split(text string) []string {
	tokens := s.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	step := s.size - s.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + s.size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := strings.TrimSpace(strings.ToValidUTF8(s.tok.Decode(tokens[start:end]), ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
