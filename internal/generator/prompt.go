package generator

import (
	"strings"

	"github.com/spec-kit/ticket-router/internal/domain"
)

const systemPrompt = `You answer customer support questions using ONLY the context supplied with the question.

Context:
- If the context is empty, or does not address the question, answer exactly: I don't know.
- Never add facts from your own knowledge or assumptions beyond the context.

Relevance:
- Answer the question that was asked. Leave out context details that do not bear on it.

Citations:
- Cite inline, right after the statement a source supports, not in a list at the end.
- Use the form (Source: <url>) with a URL from the provided source list.
- When facts come from different sources, cite each one where it is used.

Code:
- Put code, commands and configuration snippets in fenced markdown code blocks.

Output:
- "answer": the answer text with its inline citations.
- "sources": every source URL you cited, copied exactly from the source list.`

func userPrompt(question string, sources []string, context string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nSource urls:\n")
	if len(sources) == 0 {
		b.WriteString("(none)\n")
	}
	for _, s := range sources {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\nContext:\n")
	b.WriteString(context)
	return b.String()
}

func formatChunk(chunk domain.RetrievedChunk) string {
	if chunk.Source == "" {
		return chunk.Text
	}
	return "[Source: " + chunk.Source + "]\n" + chunk.Text
}

const chunkSeparator = "\n\n---\n\n"

func responseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"answer", "sources"},
		"properties": map[string]any{
			"answer": map[string]any{
				"type":        "string",
				"description": "Answer grounded in the context, with inline (Source: <url>) citations",
			},
			"sources": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Source URLs cited in the answer",
			},
		},
	}
}
