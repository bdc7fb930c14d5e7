// Package pipeline runs one question through classification, routing and
// either retrieval-augmented generation or a human handoff.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/handoff"
	"github.com/spec-kit/ticket-router/internal/observability"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

type Classifier interface {
	Classify(ctx context.Context, question string) (domain.Ticket, error)
}

type Router interface {
	Route(tags []domain.TopicTag) domain.RouteDecision
}

type Retriever interface {
	Retrieve(ctx context.Context, collection, question string, k int) ([]domain.RetrievedChunk, error)
}

type Generator interface {
	Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (domain.Answer, error)
}

// Dependencies bundles the stages and ambient services of a Pipeline.
type Dependencies struct {
	Classifier Classifier
	Router     Router
	Retriever  Retriever
	Generator  Generator
	TopK       int
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Pipeline is safe for concurrent use; each Run owns its own state.
type Pipeline struct {
	deps   Dependencies
	logger *zap.Logger
}

func New(deps Dependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, logger: logger.Named("pipeline")}
}

// Run drives one question to a terminal stage. Every stage is attempted at
// most once. Failures come back as PipelineResult.Error, never as a Go error.
func (p *Pipeline) Run(ctx context.Context, question string) (result domain.PipelineResult) {
	state := domain.NewPipelineState(question)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", zap.Any("panic", r), zap.Stack("stack"))
			result = p.fail(ctx, state, "pipeline", apperrors.NewInternalError(fmt.Errorf("panic: %v", r)))
		}
		p.deps.Metrics.RecordRun(string(state.Stage))
		p.logger.Info("pipeline finished",
			zap.String("stage", string(state.Stage)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	stageStart := time.Now()
	ticket, err := p.deps.Classifier.Classify(ctx, question)
	p.deps.Metrics.ObserveStage("classify", stageStart)
	if err != nil {
		return p.fail(ctx, state, "classification", err)
	}
	if err := state.ApplyClassification(domain.ClassificationResult{Ticket: ticket}); err != nil {
		return p.fail(ctx, state, "classification", apperrors.NewInternalError(err))
	}

	decision := p.deps.Router.Route(ticket.TopicTags)
	if err := state.ApplyRoute(decision); err != nil {
		return p.fail(ctx, state, "routing", apperrors.NewInternalError(err))
	}
	p.deps.Metrics.RecordRoute(string(decision.Route), decision.Collection)
	p.logger.Debug("route decided",
		zap.String("ticket_id", ticket.ID),
		zap.String("route", string(decision.Route)),
		zap.String("collection", decision.Collection),
		zap.String("matched_tag", string(decision.MatchedTag)),
	)

	if decision.Route != domain.RouteRAG {
		if err := state.ApplyHandoff(handoff.Message(ticket.TopicTags)); err != nil {
			return p.fail(ctx, state, "handoff", apperrors.NewInternalError(err))
		}
		return domain.PipelineResult{State: state}
	}

	stageStart = time.Now()
	chunks, err := p.deps.Retriever.Retrieve(ctx, decision.Collection, question, p.deps.TopK)
	p.deps.Metrics.ObserveStage("retrieve", stageStart)
	if err != nil {
		return p.fail(ctx, state, "retrieval", err)
	}
	p.deps.Metrics.ObserveChunks(decision.Collection, len(chunks))
	if err := state.ApplyRetrieval(domain.RetrievalResult{Collection: decision.Collection, Chunks: chunks}); err != nil {
		return p.fail(ctx, state, "retrieval", apperrors.NewInternalError(err))
	}

	stageStart = time.Now()
	answer, err := p.deps.Generator.Generate(ctx, question, chunks)
	p.deps.Metrics.ObserveStage("generate", stageStart)
	if err != nil {
		return p.fail(ctx, state, "generation", err)
	}
	if err := state.ApplyGeneration(domain.GenerationResult{Answer: answer}); err != nil {
		return p.fail(ctx, state, "generation", apperrors.NewInternalError(err))
	}
	return domain.PipelineResult{State: state}
}

// fail moves state to Failed and converts err into the result's message.
// Cancellation and deadlines become TIMEOUT regardless of the stage's own code,
// except for a blank question, which is rejected before any call is made.
func (p *Pipeline) fail(ctx context.Context, state *domain.PipelineState, stage string, err error) domain.PipelineResult {
	if !apperrors.Is(err, apperrors.CodeEmptyInput) && (apperrors.IsContextError(err) || ctx.Err() != nil) {
		cause := err
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		err = apperrors.NewTimeoutError(stage, cause)
	}
	state.Fail(err)

	domainErr := apperrors.ToDomainError(err)
	fields := []zap.Field{zap.String("stage", stage), zap.String("code", domainErr.Code), zap.Error(err)}
	if state.Ticket != nil {
		fields = append(fields, zap.String("ticket_id", state.Ticket.ID))
	}
	if domainErr.HTTPStatus >= 500 {
		p.logger.Error("pipeline failed", fields...)
	} else {
		p.logger.Warn("pipeline failed", fields...)
	}
	return domain.PipelineResult{Error: err.Error(), Code: domainErr.Code}
}
