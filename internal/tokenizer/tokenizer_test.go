package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunesRoundTrip(t *testing.T) {
	text := "Résumé of the SSO setup ✓"
	tok := Runes{}
	assert.Equal(t, text, tok.Decode(tok.Encode(text)))
	assert.Equal(t, len([]rune(text)), Count(tok, text))
}

func TestTruncate(t *testing.T) {
	tok := Runes{}
	assert.Equal(t, "abc", Truncate(tok, "abcdef", 3))
	assert.Equal(t, "abc", Truncate(tok, "abc", 10))
	assert.Equal(t, "", Truncate(tok, "abc", 0))
}
