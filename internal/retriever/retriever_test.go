package retriever

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/llm/llmtest"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

type fakeStore struct {
	chunks     []domain.RetrievedChunk
	err        error
	calls      int
	collection string
	k          int
}

func (s *fakeStore) Search(_ context.Context, collection string, _ []float32, k int) ([]domain.RetrievedChunk, error) {
	s.calls++
	s.collection = collection
	s.k = k
	return s.chunks, s.err
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]domain.RetrievedChunk
}

func (c *memoryCache) Get(_ context.Context, key string) ([]domain.RetrievedChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, key string, chunks []domain.RetrievedChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string][]domain.RetrievedChunk{}
	}
	c.items[key] = chunks
}

func TestRetrieveKeepsStoreOrder(t *testing.T) {
	store := &fakeStore{chunks: []domain.RetrievedChunk{
		{Text: "low", Source: "b", Score: 0.2},
		{Text: "high", Source: "a", Score: 0.9},
	}}
	r := NewVectorRetriever(&llmtest.Embedder{}, store, nil)

	chunks, err := r.Retrieve(context.Background(), "developer", "How do I paginate the REST API?", 0)
	require.NoError(t, err)
	assert.Equal(t, store.chunks, chunks)
	assert.Equal(t, "developer", store.collection)
	assert.Equal(t, DefaultTopK, store.k)
}

func TestRetrieveHonoursK(t *testing.T) {
	store := &fakeStore{}
	r := NewVectorRetriever(&llmtest.Embedder{}, store, nil, WithTopK(6))

	_, err := r.Retrieve(context.Background(), "docs", "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 6, store.k)

	_, err = r.Retrieve(context.Background(), "docs", "q", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, store.k)
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	r := NewVectorRetriever(&llmtest.Embedder{}, &fakeStore{}, nil)
	chunks, err := r.Retrieve(context.Background(), "docs", "q", 4)
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestRetrieveUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		embedder *llmtest.Embedder
		store    *fakeStore
	}{
		{"store down", &llmtest.Embedder{}, &fakeStore{err: errors.New("connection refused")}},
		{"embedder down", &llmtest.Embedder{Err: errors.New("401")}, &fakeStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewVectorRetriever(tt.embedder, tt.store, nil)
			_, err := r.Retrieve(context.Background(), "docs", "q", 4)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeRetrievalUnavailable))
			assert.Equal(t, "docs", apperrors.ToDomainError(err).Details["collection"])
		})
	}
}

func TestRetrieveReadThroughCache(t *testing.T) {
	store := &fakeStore{chunks: []domain.RetrievedChunk{{Text: "x", Source: "s"}}}
	embedder := &llmtest.Embedder{}
	cache := &memoryCache{}
	r := NewVectorRetriever(embedder, store, nil, WithCache(cache))

	for i := 0; i < 3; i++ {
		chunks, err := r.Retrieve(context.Background(), "docs", "same question", 4)
		require.NoError(t, err)
		assert.Equal(t, store.chunks, chunks)
	}
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 1, embedder.Calls())

	_, err := r.Retrieve(context.Background(), "developer", "same question", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestRetrieveDoesNotCacheFailures(t *testing.T) {
	store := &fakeStore{err: errors.New("down")}
	cache := &memoryCache{}
	r := NewVectorRetriever(&llmtest.Embedder{}, store, nil, WithCache(cache))

	_, err := r.Retrieve(context.Background(), "docs", "q", 4)
	require.Error(t, err)
	assert.Empty(t, cache.items)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("docs", 4, "hello")
	assert.Equal(t, a, cacheKey("docs", 4, "hello"))
	assert.NotEqual(t, a, cacheKey("docs", 5, "hello"))
	assert.NotEqual(t, a, cacheKey("developer", 4, "hello"))
	assert.NotEqual(t, a, cacheKey("docs", 4, "hello!"))
	assert.Contains(t, a, "ticket-router:retrieval:docs:4:")
}

func TestRedisCacheFailuresDegradeToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewRedisCache(client, time.Minute, nil)
	store := &fakeStore{chunks: []domain.RetrievedChunk{{Text: "x"}}}
	r := NewVectorRetriever(&llmtest.Embedder{}, store, nil, WithCache(cache))

	chunks, err := r.Retrieve(context.Background(), "docs", "q", 4)
	require.NoError(t, err)
	assert.Equal(t, store.chunks, chunks)
}
