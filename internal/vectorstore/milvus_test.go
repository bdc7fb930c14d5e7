package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/domain"
)

type fakeMilvus struct {
	results    []client.SearchResult
	searchErr  error
	exists     bool
	created    *entity.Schema
	indexed    string
	loaded     []string
	inserted   []entity.Column
	flushed    []string
	lastTopK   int
	lastFields []string
}

func (f *fakeMilvus) Search(_ context.Context, _ string, _ []string, _ string, outputFields []string,
	_ []entity.Vector, _ string, _ entity.MetricType, topK int,
	_ entity.SearchParam, _ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.lastTopK = topK
	f.lastFields = outputFields
	return f.results, f.searchErr
}

func (f *fakeMilvus) HasCollection(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *entity.Schema, _ int32, _ ...client.CreateCollectionOption) error {
	f.created = schema
	return nil
}

func (f *fakeMilvus) CreateIndex(_ context.Context, _ string, fieldName string, _ entity.Index, _ bool, _ ...client.IndexOption) error {
	f.indexed = fieldName
	return nil
}

func (f *fakeMilvus) LoadCollection(_ context.Context, name string, _ bool, _ ...client.LoadCollectionOption) error {
	f.loaded = append(f.loaded, name)
	return nil
}

func (f *fakeMilvus) Insert(_ context.Context, _ string, _ string, columns ...entity.Column) (entity.Column, error) {
	f.inserted = columns
	return nil, nil
}

func (f *fakeMilvus) Flush(_ context.Context, name string, _ bool, _ ...client.FlushOption) error {
	f.flushed = append(f.flushed, name)
	return nil
}

func (f *fakeMilvus) Close() error { return nil }

func TestSearchKeepsStoreOrder(t *testing.T) {
	fake := &fakeMilvus{results: []client.SearchResult{{
		ResultCount: 2,
		Fields: client.ResultSet{
			entity.NewColumnVarChar(fieldContent, []string{"Configure SAML in settings", "Map groups to roles"}),
			entity.NewColumnVarChar(fieldSource, []string{"https://docs/sso", "https://docs/roles"}),
		},
		Scores: []float32{0.91, 0.74},
	}}}
	store := newMilvusStore(fake, 32, nil)

	chunks, err := store.Search(context.Background(), "docs", []float32{0.1, 0.2}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, fake.lastTopK)
	assert.Equal(t, []string{fieldContent, fieldSource}, fake.lastFields)
	assert.Equal(t, []domain.RetrievedChunk{
		{Text: "Configure SAML in settings", Source: "https://docs/sso", Score: 0.91},
		{Text: "Map groups to roles", Source: "https://docs/roles", Score: 0.74},
	}, chunks)
}

func TestSearchEmptyIsNotAnError(t *testing.T) {
	store := newMilvusStore(&fakeMilvus{}, 0, nil)
	chunks, err := store.Search(context.Background(), "docs", []float32{1}, 4)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSearchPropagatesFailures(t *testing.T) {
	store := newMilvusStore(&fakeMilvus{searchErr: errors.New("connection refused")}, 0, nil)
	_, err := store.Search(context.Background(), "docs", []float32{1}, 4)
	assert.ErrorContains(t, err, "connection refused")

	store = newMilvusStore(&fakeMilvus{results: []client.SearchResult{{Err: errors.New("shard down")}}}, 0, nil)
	_, err = store.Search(context.Background(), "docs", []float32{1}, 4)
	assert.ErrorContains(t, err, "shard down")
}

func TestEnsureCollectionCreatesOnce(t *testing.T) {
	fake := &fakeMilvus{}
	store := newMilvusStore(fake, 0, nil)
	require.NoError(t, store.EnsureCollection(context.Background(), "developer", 8))
	require.NotNil(t, fake.created)
	assert.Equal(t, "developer", fake.created.CollectionName)
	assert.Len(t, fake.created.Fields, 4)
	assert.Equal(t, fieldVector, fake.indexed)
	assert.Equal(t, []string{"developer"}, fake.loaded)

	existing := &fakeMilvus{exists: true}
	store = newMilvusStore(existing, 0, nil)
	require.NoError(t, store.EnsureCollection(context.Background(), "docs", 8))
	assert.Nil(t, existing.created)
	assert.Equal(t, []string{"docs"}, existing.loaded)
}

func TestInsert(t *testing.T) {
	fake := &fakeMilvus{}
	store := newMilvusStore(fake, 0, nil)
	err := store.Insert(context.Background(), "docs", []Document{
		{Text: "a", Source: "s1", Vector: []float32{1, 0}},
		{Text: "b", Source: "s2", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.Len(t, fake.inserted, 3)
	assert.Equal(t, 2, fake.inserted[0].Len())
	assert.Equal(t, []string{"docs"}, fake.flushed)

	err = store.Insert(context.Background(), "docs", []Document{
		{Vector: []float32{1, 0}},
		{Vector: []float32{1}},
	})
	assert.Error(t, err)

	assert.NoError(t, store.Insert(context.Background(), "docs", nil))
}

func TestTruncateRespectsRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "h", truncate("hé", 2))
	assert.Equal(t, "hé", truncate("hé", 3))
}
