package vectorstore

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/config"
	"github.com/spec-kit/ticket-router/internal/domain"
)

const (
	fieldID      = "id"
	fieldContent = "content"
	fieldSource  = "source"
	fieldVector  = "vector"

	maxContentLength = 65535
	maxSourceLength  = 2048
)

// Document is one chunk to be written to a collection.
type Document struct {
	Text   string
	Source string
	Vector []float32
}

// Searcher finds the nearest chunks to a query vector.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievedChunk, error)
}

// Writer creates collections and stores chunks.
type Writer interface {
	EnsureCollection(ctx context.Context, collection string, dim int) error
	Insert(ctx context.Context, collection string, docs []Document) error
}

// milvusAPI is the subset of client.Client the store uses.
type milvusAPI interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Insert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Close() error
}

const healthProbeCollection = "ticket_router_health"

// MilvusStore implements Searcher and Writer on a Milvus deployment.
type MilvusStore struct {
	api      milvusAPI
	searchEf int
	logger   *zap.Logger
}

// NewMilvusStore dials Milvus.
func NewMilvusStore(ctx context.Context, cfg config.VectorDBConfig, logger *zap.Logger) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", cfg.Address, err)
	}
	return newMilvusStore(c, cfg.SearchEf, logger), nil
}

func newMilvusStore(api milvusAPI, searchEf int, logger *zap.Logger) *MilvusStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if searchEf <= 0 {
		searchEf = 64
	}
	return &MilvusStore{api: api, searchEf: searchEf, logger: logger.Named("milvus")}
}

// Search returns up to k chunks in the order Milvus ranks them.
func (s *MilvusStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	ef := s.searchEf
	if ef < k {
		ef = k
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}
	results, err := s.api.Search(ctx, collection, nil, "",
		[]string{fieldContent, fieldSource},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search %s: %w", collection, err)
	}

	chunks := make([]domain.RetrievedChunk, 0, k)
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("milvus search %s: %w", collection, r.Err)
		}
		content := r.Fields.GetColumn(fieldContent)
		if content == nil {
			return nil, fmt.Errorf("milvus search %s: missing %s field", collection, fieldContent)
		}
		source := r.Fields.GetColumn(fieldSource)
		for i := 0; i < r.ResultCount; i++ {
			text, err := content.GetAsString(i)
			if err != nil {
				return nil, fmt.Errorf("read %s[%d]: %w", fieldContent, i, err)
			}
			chunk := domain.RetrievedChunk{Text: text}
			if source != nil {
				if src, err := source.GetAsString(i); err == nil {
					chunk.Source = src
				}
			}
			if i < len(r.Scores) {
				chunk.Score = r.Scores[i]
			}
			chunks = append(chunks, chunk)
		}
	}
	s.logger.Debug("search", zap.String("collection", collection), zap.Int("k", k), zap.Int("hits", len(chunks)))
	return chunks, nil
}

// EnsureCollection creates, indexes and loads the collection when it does not exist yet.
func (s *MilvusStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := s.api.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(collection).
			WithDescription("support documentation chunks").
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true)).
			WithField(entity.NewField().WithName(fieldContent).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxContentLength)).
			WithField(entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxSourceLength)).
			WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
		if err := s.api.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("build index params: %w", err)
		}
		if err := s.api.CreateIndex(ctx, collection, fieldVector, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", collection, err)
		}
		s.logger.Info("collection created", zap.String("collection", collection), zap.Int("dim", dim))
	}
	if err := s.api.LoadCollection(ctx, collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", collection, err)
	}
	return nil
}

// Insert writes docs and flushes so they are searchable right away.
func (s *MilvusStore) Insert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	dim := len(docs[0].Vector)
	texts := make([]string, len(docs))
	sources := make([]string, len(docs))
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		if len(d.Vector) != dim {
			return fmt.Errorf("document %d has dimension %d, want %d", i, len(d.Vector), dim)
		}
		texts[i] = truncate(d.Text, maxContentLength)
		sources[i] = truncate(d.Source, maxSourceLength)
		vectors[i] = d.Vector
	}
	if _, err := s.api.Insert(ctx, collection, "",
		entity.NewColumnVarChar(fieldContent, texts),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnFloatVector(fieldVector, dim, vectors),
	); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	if err := s.api.Flush(ctx, collection, false); err != nil {
		return fmt.Errorf("flush %s: %w", collection, err)
	}
	s.logger.Info("documents inserted", zap.String("collection", collection), zap.Int("count", len(docs)))
	return nil
}

// Ping checks that Milvus answers a metadata round trip.
func (s *MilvusStore) Ping(ctx context.Context) error {
	_, err := s.api.HasCollection(ctx, healthProbeCollection)
	return err
}

// Close releases the connection.
func (s *MilvusStore) Close() error {
	return s.api.Close()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
