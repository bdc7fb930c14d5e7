// Package app assembles the router's components from configuration. The API
// server and the supportctl tool share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/api/http/handlers"
	"github.com/spec-kit/ticket-router/internal/classifier"
	"github.com/spec-kit/ticket-router/internal/config"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/generator"
	"github.com/spec-kit/ticket-router/internal/ingest"
	"github.com/spec-kit/ticket-router/internal/llm"
	"github.com/spec-kit/ticket-router/internal/observability"
	"github.com/spec-kit/ticket-router/internal/persistence"
	"github.com/spec-kit/ticket-router/internal/pipeline"
	"github.com/spec-kit/ticket-router/internal/repository"
	"github.com/spec-kit/ticket-router/internal/retriever"
	"github.com/spec-kit/ticket-router/internal/router"
	"github.com/spec-kit/ticket-router/internal/service"
	"github.com/spec-kit/ticket-router/internal/tokenizer"
	"github.com/spec-kit/ticket-router/internal/vectorstore"
	"github.com/spec-kit/ticket-router/internal/worker"
)

// Components holds every long-lived collaborator built from a Config.
type Components struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Milvus     *vectorstore.MilvusStore
	Tokenizer  tokenizer.Tokenizer
	Embedder   llm.Embedder
	Classifier *classifier.Classifier
	Routes     *router.Table
	Pipeline   *pipeline.Pipeline
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Tickets    *service.TicketService
	Batch      *service.BatchService
	Eval       *service.EvalService

	notifications *worker.NotificationWorker
}

// Build connects to the configured backends and wires the pipeline and the
// services around it. Close releases everything Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				c.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.TicketRepo = repository.NewTicketRepository(pg.PoolHandle())
	} else {
		logger.Info("ticket records kept in memory")
		c.TicketRepo = repository.NewMemoryTicketRepository()
	}

	c.Redis = persistence.NewRedis(cfg.Redis, logger)

	chat, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("llm client: %w", err)
	}
	c.Embedder = llm.NewOpenAIEmbedder(cfg.Embedding)
	c.Tokenizer = tokenizer.NewOrFallback(tokenizer.DefaultEncoding, logger)

	milvus, err := vectorstore.NewMilvusStore(ctx, cfg.VectorDB, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	c.Milvus = milvus

	if c.Routes, err = router.Load(cfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("route table: %w", err)
	}
	if c.Classifier, err = classifier.New(chat, logger); err != nil {
		c.Close()
		return nil, fmt.Errorf("classifier: %w", err)
	}
	gen, err := generator.New(chat, c.Tokenizer, cfg.RAG.ContextTokenBudget, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("generator: %w", err)
	}

	retrieverOpts := []retriever.Option{retriever.WithTopK(cfg.RAG.TopK)}
	if c.Redis.Enabled() {
		retrieverOpts = append(retrieverOpts, retriever.WithCache(retriever.NewRedisCache(c.Redis.Client, cfg.RAG.CacheTTL(), logger)))
	}

	c.Pipeline = pipeline.New(pipeline.Dependencies{
		Classifier: c.Classifier,
		Router:     c.Routes,
		Retriever:  retriever.NewVectorRetriever(c.Embedder, milvus, logger, retrieverOpts...),
		Generator:  gen,
		TopK:       cfg.RAG.TopK,
		Metrics:    c.Metrics,
		Logger:     logger,
	})

	c.Dispatcher = events.NewInMemoryDispatcher(logger)
	c.notifications = worker.StartNotificationWorker(c.Dispatcher, service.NewNotificationService(logger, cfg.Notification), 0, logger)

	c.Tickets = service.NewTicketService(service.TicketDependencies{
		Pipeline:   c.Pipeline,
		TicketRepo: c.TicketRepo,
		Dispatcher: c.Dispatcher,
		Logger:     logger,
	})
	c.Batch = service.NewBatchService(service.BatchDependencies{
		Classifier: c.Classifier,
		TicketRepo: c.TicketRepo,
		Dispatcher: c.Dispatcher,
		Metrics:    c.Metrics,
		Workers:    cfg.Batch.Workers,
		Logger:     logger,
	})
	c.Eval = service.NewEvalService(service.EvalDependencies{
		Pipeline: c.Pipeline,
		Workers:  cfg.Batch.Workers,
		Logger:   logger,
	})
	return c, nil
}

// Ingestor builds the document ingestion job on top of the shared components.
func (c *Components) Ingestor() (*ingest.Ingestor, error) {
	splitter, err := ingest.NewSplitter(c.Tokenizer, c.Config.Ingest.ChunkSize, c.Config.Ingest.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Dependencies{
		Fetcher:   ingest.NewLoader(c.Config.Ingest.FetchTimeout()),
		Splitter:  splitter,
		Embedder:  c.Embedder,
		Store:     c.Milvus,
		Dimension: c.Config.Embedding.Dimensions,
		Logger:    c.Logger,
	}), nil
}

// HealthDependencies lists the readiness checks for the API. Backends that are
// not configured are reported as disabled.
func (c *Components) HealthDependencies() []handlers.Dependency {
	milvus := handlers.Dependency{Name: "milvus"}
	if c.Milvus != nil {
		milvus.Check = c.Milvus
	}
	postgres := handlers.Dependency{Name: "postgres", Optional: true}
	if c.Postgres.Enabled() {
		postgres.Check = c.Postgres
	}
	redis := handlers.Dependency{Name: "redis", Optional: true}
	if c.Redis.Enabled() {
		redis.Check = c.Redis
	}
	return []handlers.Dependency{milvus, postgres, redis}
}

// Close stops the notification worker and closes backend connections. It is
// safe on a partially built value.
func (c *Components) Close() {
	c.notifications.Stop()
	if c.Milvus != nil {
		if err := c.Milvus.Close(); err != nil {
			c.Logger.Warn("close milvus", zap.Error(err))
		}
	}
	c.Redis.Close()
	c.Postgres.Close()
}
