package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

func TestBuildListQuery(t *testing.T) {
	tag := domain.TagSSO
	route := domain.RouteRAG
	query, args := buildListQuery(TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusAnswered, domain.TicketStatusHandedOff},
		Priorities: []domain.Priority{domain.PriorityP0},
		Tag:        &tag,
		Route:      &route,
		Limit:      5,
		Offset:     -3,
	})

	assert.Contains(t, query, "status IN ($1,$2)")
	assert.Contains(t, query, "priority IN ($3)")
	assert.Contains(t, query, "$4 = ANY(topic_tags)")
	assert.Contains(t, query, "route=$5")
	assert.Contains(t, query, "LIMIT 5 OFFSET 0")
	assert.Equal(t, []any{domain.TicketStatusAnswered, domain.TicketStatusHandedOff, domain.PriorityP0, "SSO", route}, args)

	query, args = buildListQuery(TicketFilter{})
	assert.Contains(t, query, "WHERE 1=1 ORDER BY")
	assert.Contains(t, query, "LIMIT 20 OFFSET 0")
	assert.Empty(t, args)
}

func newMemoryRepo(t *testing.T) *memoryTicketRepository {
	t.Helper()
	repo := NewMemoryTicketRepository().(*memoryTicketRepository)
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo
}

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)

	record := &domain.TicketRecord{Body: "How do I connect Snowflake?"}
	require.NoError(t, repo.Create(ctx, record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, domain.TicketStatusPending, record.Status)
	assert.Error(t, repo.Create(ctx, &domain.TicketRecord{ID: record.ID, Body: "dup"}))

	record.ApplyTicket(domain.Ticket{
		Subject:   "Snowflake connection",
		TopicTags: []domain.TopicTag{domain.TagConnector},
		Sentiment: domain.SentimentCurious,
		Priority:  domain.PriorityP1,
	})
	record.Status = domain.TicketStatusHandedOff
	record.Route = domain.RouteHandoff
	record.Body = "overwritten"
	require.NoError(t, repo.Update(ctx, record))

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "How do I connect Snowflake?", got.Body)
	assert.Equal(t, []domain.TopicTag{domain.TagConnector}, got.TopicTags)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	got.TopicTags[0] = domain.TagSSO
	again, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TagConnector, again.TopicTags[0])

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.True(t, apperrors.Is(repo.Update(ctx, &domain.TicketRecord{ID: "missing"}), apperrors.CodeNotFound))
}

func TestMemoryRepositoryFilters(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t)

	seed := []domain.TicketRecord{
		{ID: "A", Body: "a", Status: domain.TicketStatusAnswered, Priority: domain.PriorityP0, Route: domain.RouteRAG, TopicTags: []domain.TopicTag{domain.TagSSO}},
		{ID: "B", Body: "b", Status: domain.TicketStatusHandedOff, Priority: domain.PriorityP2, Route: domain.RouteHandoff, TopicTags: []domain.TopicTag{domain.TagConnector}},
		{ID: "C", Body: "c"},
		{ID: "D", Body: "d", Status: domain.TicketStatusAnswered, Priority: domain.PriorityP2, Route: domain.RouteRAG, TopicTags: []domain.TopicTag{domain.TagHowTo, domain.TagSSO}},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	ids := func(records []domain.TicketRecord) []string {
		out := make([]string, len(records))
		for i, r := range records {
			out[i] = r.ID
		}
		return out
	}

	all, err := repo.ListWithFilter(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "C", "B", "A"}, ids(all))

	tag := domain.TagSSO
	bySSO, err := repo.ListWithFilter(ctx, TicketFilter{Tag: &tag})
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A"}, ids(bySSO))

	p2, err := repo.ListWithFilter(ctx, TicketFilter{Priorities: []domain.Priority{domain.PriorityP2}, Statuses: []domain.TicketStatus{domain.TicketStatusAnswered}})
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, ids(p2))

	page, err := repo.ListWithFilter(ctx, TicketFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, ids(page))

	empty, err := repo.ListWithFilter(ctx, TicketFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	pending, err := repo.ListUnclassified(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids(pending))
}
