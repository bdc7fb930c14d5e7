package retriever

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
)

const cacheKeyPrefix = "ticket-router:retrieval:"

// Cache stores search results. Implementations swallow their own failures:
// a broken cache degrades to a miss, never to a retrieval error.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.RetrievedChunk, bool)
	Set(ctx context.Context, key string, chunks []domain.RetrievedChunk)
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]domain.RetrievedChunk, bool) { return nil, false }

func (noCache) Set(context.Context, string, []domain.RetrievedChunk) {}

func cacheKey(collection string, k int, question string) string {
	sum := sha1.Sum([]byte(question))
	return cacheKeyPrefix + collection + ":" + strconv.Itoa(k) + ":" + hex.EncodeToString(sum[:])
}

// RedisCache keeps JSON encoded results in Redis with a fixed TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger.Named("retrieval_cache")}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.RetrievedChunk, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var chunks []domain.RetrievedChunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return chunks, true
}

func (c *RedisCache) Set(ctx context.Context, key string, chunks []domain.RetrievedChunk) {
	raw, err := json.Marshal(chunks)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}
