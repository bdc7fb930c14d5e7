// Package retriever fetches the chunks a generated answer is grounded on.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/llm"
	"github.com/spec-kit/ticket-router/internal/vectorstore"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// DefaultTopK is used when neither the caller nor the configuration sets k.
const DefaultTopK = 4

// Retriever returns up to k chunks from a named collection, best match first.
type Retriever interface {
	Retrieve(ctx context.Context, collection, question string, k int) ([]domain.RetrievedChunk, error)
}

// VectorRetriever embeds the question and searches the vector store.
type VectorRetriever struct {
	embedder llm.Embedder
	store    vectorstore.Searcher
	cache    Cache
	topK     int
	logger   *zap.Logger
}

// Option customizes a VectorRetriever.
type Option func(*VectorRetriever)

// WithCache enables read-through caching of search results.
func WithCache(c Cache) Option {
	return func(r *VectorRetriever) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithTopK sets the default k.
func WithTopK(k int) Option {
	return func(r *VectorRetriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

func NewVectorRetriever(embedder llm.Embedder, store vectorstore.Searcher, logger *zap.Logger, opts ...Option) *VectorRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &VectorRetriever{
		embedder: embedder,
		store:    store,
		cache:    noCache{},
		topK:     DefaultTopK,
		logger:   logger.Named("retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the store's ranking unchanged. An empty result is not an
// error; an unreachable embedder or store is.
func (r *VectorRetriever) Retrieve(ctx context.Context, collection, question string, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		k = r.topK
	}
	key := cacheKey(collection, k, question)
	if chunks, ok := r.cache.Get(ctx, key); ok {
		r.logger.Debug("cache hit", zap.String("collection", collection), zap.Int("chunks", len(chunks)))
		return chunks, nil
	}

	start := time.Now()
	vectors, err := r.embedder.Embed(ctx, []string{strings.TrimSpace(question)})
	if err != nil {
		r.logger.Warn("embedding failed", zap.String("collection", collection), zap.Error(err))
		return nil, apperrors.NewRetrievalUnavailableError(collection, err)
	}
	if len(vectors) != 1 {
		return nil, apperrors.NewRetrievalUnavailableError(collection, fmt.Errorf("embedder returned %d vectors for one query", len(vectors)))
	}

	chunks, err := r.store.Search(ctx, collection, vectors[0], k)
	if err != nil {
		r.logger.Warn("vector search failed", zap.String("collection", collection), zap.Error(err))
		return nil, apperrors.NewRetrievalUnavailableError(collection, err)
	}
	if chunks == nil {
		chunks = []domain.RetrievedChunk{}
	}
	r.cache.Set(ctx, key, chunks)

	r.logger.Info("chunks retrieved",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return chunks, nil
}
