package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityRank(t *testing.T) {
	assert.Equal(t, 0, PriorityP0.Rank())
	assert.Equal(t, 1, PriorityP1.Rank())
	assert.Equal(t, 2, PriorityP2.Rank())
	assert.Equal(t, -1, Priority("P3").Rank())
	assert.False(t, Priority("high").Valid())
}

func TestClassificationViolations(t *testing.T) {
	valid := Classification{
		Subject:   "Lineage missing",
		Body:      "body",
		TopicTags: []TopicTag{TagLineage},
		Sentiment: SentimentNeutral,
		Priority:  PriorityP1,
	}
	assert.Empty(t, valid.Violations())

	tests := []struct {
		name   string
		mutate func(*Classification)
		want   string
	}{
		{"empty tags", func(c *Classification) { c.TopicTags = nil }, "topic_tags: must contain at least one tag"},
		{"unknown tag", func(c *Classification) { c.TopicTags = []TopicTag{"Billing"} }, `topic_tags.0: unknown tag "Billing"`},
		{"bad sentiment", func(c *Classification) { c.Sentiment = "Happy" }, `sentiment: unknown value "Happy"`},
		{"bad priority", func(c *Classification) { c.Priority = "" }, `priority: unknown value ""`},
		{"blank subject", func(c *Classification) { c.Subject = "  " }, "subject: must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Contains(t, c.Violations(), tt.want)
		})
	}
}

func TestDedupeTagsKeepsFirstOccurrence(t *testing.T) {
	got := DedupeTags([]TopicTag{TagSSO, TagConnector, TagSSO, TagHowTo, TagConnector})
	assert.Equal(t, []TopicTag{TagSSO, TagConnector, TagHowTo}, got)
}

func TestNewTicketAssignsULID(t *testing.T) {
	a := NewTicket("", Classification{Subject: "s"})
	b := NewTicket("", Classification{Subject: "s"})
	assert.Len(t, a.ID, 26)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Less(t, a.ID, b.ID)

	kept := NewTicket("TICKET-245", Classification{})
	assert.Equal(t, "TICKET-245", kept.ID)
}

func TestChunkSources(t *testing.T) {
	chunks := []RetrievedChunk{
		{Text: "a", Source: "https://docs/x"},
		{Text: "b"},
		{Text: "c", Source: "https://docs/y"},
		{Text: "d", Source: "https://docs/x"},
	}
	assert.Equal(t, []string{"https://docs/x", "https://docs/y"}, ChunkSources(chunks))
	assert.Empty(t, ChunkSources(nil))
}

func TestRefusalAnswer(t *testing.T) {
	a := RefusalAnswer()
	assert.Equal(t, "I don't know.", a.Text)
	assert.Empty(t, a.Sources)
	assert.True(t, a.IsRefusal())
}

func TestPipelineStateRAGTransitions(t *testing.T) {
	s := NewPipelineState("q")
	require.NoError(t, s.ApplyClassification(ClassificationResult{Ticket: Ticket{ID: "1", Body: "q"}}))
	require.NoError(t, s.ApplyRoute(RouteDecision{Route: RouteRAG, Collection: "docs"}))
	require.Error(t, s.ApplyRoute(RouteDecision{Route: RouteRAG}))
	require.Error(t, s.ApplyHandoff(Answer{}))
	require.NoError(t, s.ApplyRetrieval(RetrievalResult{Collection: "docs", Chunks: []RetrievedChunk{{Text: "x"}}}))
	require.NoError(t, s.ApplyGeneration(GenerationResult{Answer: Answer{Text: "ok"}}))

	assert.Equal(t, StageGenerated, s.Stage)
	assert.Equal(t, "q", s.Question)
	assert.NotNil(t, s.Ticket)
	assert.Len(t, s.Context, 1)

	s.Fail(errors.New("late"))
	assert.Equal(t, StageGenerated, s.Stage)
	assert.NoError(t, s.Err)
}

func TestPipelineStateHandoffTransitions(t *testing.T) {
	s := NewPipelineState("q")
	require.Error(t, s.ApplyRoute(HandoffDecision()))
	require.NoError(t, s.ApplyClassification(ClassificationResult{}))
	require.NoError(t, s.ApplyRoute(HandoffDecision()))
	require.Error(t, s.ApplyRetrieval(RetrievalResult{}))
	require.NoError(t, s.ApplyHandoff(Answer{Text: "routed"}))
	assert.Equal(t, StageHandedOff, s.Stage)
	assert.Empty(t, s.Context)
}

func TestPipelineStateFail(t *testing.T) {
	s := NewPipelineState("q")
	s.Fail(errors.New("boom"))
	assert.Equal(t, StageFailed, s.Stage)
	assert.EqualError(t, s.Err, "boom")
	assert.True(t, s.Stage.Terminal())
	assert.Error(t, s.ApplyClassification(ClassificationResult{}))
}
