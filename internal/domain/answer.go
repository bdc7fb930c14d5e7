package domain

// RefusalText is returned whenever there is no context to answer from.
const RefusalText = "I don't know."

// RetrievedChunk is one passage returned by the vector store.
type RetrievedChunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float32 `json:"score"`
}

// Answer is the text handed back to the customer together with its citations.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// RefusalAnswer returns the fixed refusal with no sources.
func RefusalAnswer() Answer {
	return Answer{Text: RefusalText, Sources: []string{}}
}

// IsRefusal reports whether the answer is the fixed refusal.
func (a Answer) IsRefusal() bool {
	return a.Text == RefusalText
}

// ChunkSources returns the non-empty chunk sources, deduplicated in first-seen order.
func ChunkSources(chunks []RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Source == "" {
			continue
		}
		if _, ok := seen[chunk.Source]; ok {
			continue
		}
		seen[chunk.Source] = struct{}{}
		out = append(out, chunk.Source)
	}
	return out
}
