package generator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/llm/llmtest"
	"github.com/spec-kit/ticket-router/internal/tokenizer"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

func answerReply(t *testing.T, text string, sources ...string) llmtest.Reply {
	t.Helper()
	if sources == nil {
		sources = []string{}
	}
	b, err := json.Marshal(map[string]any{"answer": text, "sources": sources})
	require.NoError(t, err)
	return llmtest.Reply{Content: string(b)}
}

func newGenerator(t *testing.T, client *llmtest.Client, budget int) *Generator {
	t.Helper()
	g, err := New(client, tokenizer.Runes{}, budget, nil)
	require.NoError(t, err)
	return g
}

var ssoChunks = []domain.RetrievedChunk{
	{Text: "Okta SAML setup: add the ACS URL.", Source: "https://docs.example.com/sso/okta"},
	{Text: "Group mapping is configured per IdP.", Source: "https://docs.example.com/sso/groups"},
	{Text: "More Okta notes.", Source: "https://docs.example.com/sso/okta"},
	{Text: "Unsourced tip."},
}

func TestGenerateEmptyChunksRefusesWithoutCall(t *testing.T) {
	client := llmtest.NewClient()
	g := newGenerator(t, client, 0)

	for _, chunks := range [][]domain.RetrievedChunk{nil, {}} {
		answer, err := g.Generate(context.Background(), "What is the meaning of life?", chunks)
		require.NoError(t, err)
		assert.Equal(t, "I don't know.", answer.Text)
		assert.Empty(t, answer.Sources)
	}
	assert.Equal(t, 0, client.Calls())
}

func TestGenerateFiltersSourcesToChunks(t *testing.T) {
	client := llmtest.NewClient(answerReply(t,
		"Add the ACS URL in Okta (Source: https://docs.example.com/sso/okta).",
		"https://docs.example.com/sso/okta",
		"https://evil.example.com/made-up",
		"https://docs.example.com/sso/okta",
	))
	answer, err := newGenerator(t, client, 0).Generate(context.Background(), "How do I set up Okta SSO?", ssoChunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs.example.com/sso/okta"}, answer.Sources)
	assert.Contains(t, answer.Text, "(Source: https://docs.example.com/sso/okta)")
}

func TestGenerateSourcesFollowChunkOrder(t *testing.T) {
	client := llmtest.NewClient(answerReply(t, "Both apply.",
		"https://docs.example.com/sso/groups",
		"https://docs.example.com/sso/okta",
	))
	answer, err := newGenerator(t, client, 0).Generate(context.Background(), "q", ssoChunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs.example.com/sso/okta", "https://docs.example.com/sso/groups"}, answer.Sources)
}

func TestGenerateInlineCitationCounts(t *testing.T) {
	client := llmtest.NewClient(answerReply(t, "Map groups per IdP (Source: https://docs.example.com/sso/groups)."))
	answer, err := newGenerator(t, client, 0).Generate(context.Background(), "q", ssoChunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs.example.com/sso/groups"}, answer.Sources)
}

func TestGenerateInlineCitationMatchesExactURL(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{Text: "Overview.", Source: "https://d/x"},
		{Text: "Details.", Source: "https://d/x/y"},
	}
	client := llmtest.NewClient(answerReply(t, "See the details (Source: https://d/x/y)."))
	answer, err := newGenerator(t, client, 0).Generate(context.Background(), "q", chunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://d/x/y"}, answer.Sources)
}

func TestInlineCitations(t *testing.T) {
	cited := inlineCitations("A (Source: https://a/1). B (Sources: https://b/2, https://c/3). Not https://d/4.")
	assert.Equal(t, map[string]struct{}{
		"https://a/1": {},
		"https://b/2": {},
		"https://c/3": {},
	}, cited)
}

func TestGenerateNoCitationsReturnsAllChunkSources(t *testing.T) {
	client := llmtest.NewClient(answerReply(t, "Configure the ACS URL."))
	answer, err := newGenerator(t, client, 0).Generate(context.Background(), "q", ssoChunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs.example.com/sso/okta", "https://docs.example.com/sso/groups"}, answer.Sources)
}

func TestGenerateModelRefusal(t *testing.T) {
	for _, text := range []string{"I don't know.", "I don't know", "  i don’t know. "} {
		client := llmtest.NewClient(answerReply(t, text, "https://docs.example.com/sso/okta"))
		answer, err := newGenerator(t, client, 0).Generate(context.Background(), "q", ssoChunks)
		require.NoError(t, err)
		assert.Equal(t, domain.RefusalAnswer(), answer, "reply %q", text)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply llmtest.Reply
		code  string
	}{
		{"transport", llmtest.Reply{Err: errors.New("connection reset")}, apperrors.CodeGenerationFailed},
		{"not json", llmtest.Reply{Content: "Sure! Here is the answer."}, apperrors.CodeSchemaViolation},
		{"missing sources", llmtest.Reply{Content: `{"answer":"x"}`}, apperrors.CodeSchemaViolation},
		{"wrong type", llmtest.Reply{Content: `{"answer":"x","sources":"https://docs.example.com/sso/okta"}`}, apperrors.CodeSchemaViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGenerator(t, llmtest.NewClient(tt.reply), 0).Generate(context.Background(), "q", ssoChunks)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestGeneratePromptCarriesContextAndSources(t *testing.T) {
	client := llmtest.NewClient(answerReply(t, "ok"))
	_, err := newGenerator(t, client, 0).Generate(context.Background(), "How do I set up Okta SSO?", ssoChunks)
	require.NoError(t, err)

	req := client.Requests[0]
	assert.Equal(t, schemaName, req.SchemaName)
	assert.Contains(t, req.User, "Question: How do I set up Okta SSO?")
	assert.Contains(t, req.User, "Okta SAML setup: add the ACS URL.")
	assert.Contains(t, req.User, "Unsourced tip.")
	assert.Equal(t, 1, strings.Count(req.User, "- https://docs.example.com/sso/okta\n"))
	assert.Contains(t, req.System, "(Source: <url>)")
}

func TestContextBudget(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{Text: strings.Repeat("a", 40), Source: "s1"},
		{Text: strings.Repeat("b", 40), Source: "s2"},
	}
	g := newGenerator(t, llmtest.NewClient(), 70)
	used, text := g.buildContext(chunks)
	require.Len(t, used, 1)
	assert.NotContains(t, text, "b")

	g = newGenerator(t, llmtest.NewClient(), 10)
	used, text = g.buildContext(chunks)
	require.Len(t, used, 1)
	assert.Len(t, []rune(text), 10)

	client := llmtest.NewClient(answerReply(t, "ok", "s2"))
	g = newGenerator(t, client, 70)
	answer, err := g.Generate(context.Background(), "q", chunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, answer.Sources)
}
