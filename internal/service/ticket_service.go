package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

// Analyzer runs a question through the pipeline.
type Analyzer interface {
	Run(ctx context.Context, question string) domain.PipelineResult
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	pipeline   Analyzer
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Pipeline   Analyzer
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketSubmitInput describes a ticket queued for later classification.
type TicketSubmitInput struct {
	Subject string
	Body    string
}

// Analysis is the outcome of one analyze call. Record is nil when nothing was stored.
type Analysis struct {
	Result domain.PipelineResult
	Record *domain.TicketRecord
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		pipeline:   deps.Pipeline,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("ticket_service"),
	}
}

// Analyze runs the pipeline for a question and records the handled ticket on the
// dashboard store. Storage problems are logged and never change the pipeline result.
func (s *TicketService) Analyze(ctx context.Context, question string, source events.Source) Analysis {
	result := s.pipeline.Run(ctx, question)
	if result.Failed() {
		return s.recordFailure(ctx, question, source, result)
	}

	state := result.State
	record := recordFromState(state)
	if err := s.tickets.Create(ctx, record); err != nil {
		s.logger.Warn("unable to record analyzed ticket", zap.String("ticket_id", record.ID), zap.Error(err))
		record = nil
	}

	ticket := state.Ticket
	s.publishEvent(ctx, events.NewEvent(events.EventTicketClassified, ticket.ID, source, classifiedPayload(*ticket)))
	switch state.Stage {
	case domain.StageHandedOff:
		s.publishEvent(ctx, events.NewEvent(events.EventTicketHandedOff, ticket.ID, source, events.TicketHandedOffPayload{
			Subject:   ticket.Subject,
			TopicTags: ticket.TagStrings(),
			Priority:  ticket.Priority,
			Message:   state.Answer.Text,
		}))
	case domain.StageGenerated:
		s.publishEvent(ctx, events.NewEvent(events.EventTicketAnswered, ticket.ID, source, events.TicketAnsweredPayload{
			Collection: state.Route.Collection,
			Sources:    state.Answer.Sources,
			Refused:    state.Answer.IsRefusal(),
		}))
	}
	return Analysis{Result: result, Record: record}
}

func (s *TicketService) recordFailure(ctx context.Context, question string, source events.Source, result domain.PipelineResult) Analysis {
	if result.Code == apperrors.CodeEmptyInput {
		return Analysis{Result: result}
	}
	record := &domain.TicketRecord{
		Body:   question,
		Status: domain.TicketStatusFailed,
		Error:  result.Error,
	}
	if err := s.tickets.Create(ctx, record); err != nil {
		s.logger.Warn("unable to record failed ticket", zap.Error(err))
		record = nil
	}
	ticketID := ""
	if record != nil {
		ticketID = record.ID
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketFailed, ticketID, source, events.TicketFailedPayload{
		Code:    result.Code,
		Message: result.Error,
	}))
	return Analysis{Result: result, Record: record}
}

// Submit stores a ticket as pending so the bulk job can classify it later.
func (s *TicketService) Submit(ctx context.Context, input TicketSubmitInput) (*domain.TicketRecord, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewEmptyInputError()
	}
	record := &domain.TicketRecord{
		Subject: strings.TrimSpace(input.Subject),
		Body:    input.Body,
		Status:  domain.TicketStatusPending,
	}
	if err := s.tickets.Create(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("ticket submitted", zap.String("ticket_id", record.ID))
	return record, nil
}

// List returns recorded tickets for the dashboard.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.TicketRecord, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// Get fetches one recorded ticket.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.TicketRecord, error) {
	return s.tickets.GetByID(ctx, id)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func recordFromState(state *domain.PipelineState) *domain.TicketRecord {
	record := &domain.TicketRecord{
		ID:   state.Ticket.ID,
		Body: state.Ticket.Body,
	}
	record.ApplyTicket(*state.Ticket)
	record.Route = state.Route.Route
	record.Collection = state.Route.Collection
	record.Answer = state.Answer.Text
	record.Sources = append([]string{}, state.Answer.Sources...)
	if state.Stage == domain.StageHandedOff {
		record.Status = domain.TicketStatusHandedOff
	} else {
		record.Status = domain.TicketStatusAnswered
	}
	return record
}

func classifiedPayload(ticket domain.Ticket) events.TicketClassifiedPayload {
	return events.TicketClassifiedPayload{
		Subject:   ticket.Subject,
		TopicTags: ticket.TagStrings(),
		Sentiment: ticket.Sentiment,
		Priority:  ticket.Priority,
	}
}
