package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-router/internal/classifier"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/observability"
	"github.com/spec-kit/ticket-router/internal/repository"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const defaultBatchWorkers = 4

// TicketClassifier classifies a single ticket, keeping its id.
type TicketClassifier interface {
	ClassifyTicket(ctx context.Context, in classifier.Input) (domain.Ticket, error)
}

// BatchTicket is one entry of a bulk classification input file.
type BatchTicket struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClassifiedTicket is one entry of a bulk classification output file.
type ClassifiedTicket struct {
	ID        string   `json:"id"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	TopicTags []string `json:"topic_tags"`
	Sentiment string   `json:"sentiment"`
	Priority  string   `json:"priority"`
}

// BatchFailure reports one ticket the job could not classify.
type BatchFailure struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// BatchReport summarizes a bulk classification run.
type BatchReport struct {
	Total      int            `json:"total"`
	Classified int            `json:"classified"`
	Failures   []BatchFailure `json:"failures"`
}

// BatchService classifies many tickets with a bounded number of concurrent model calls.
type BatchService struct {
	classifier TicketClassifier
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	workers    int
	logger     *zap.Logger
}

// BatchDependencies bundles collaborators for the batch service.
type BatchDependencies struct {
	Classifier TicketClassifier
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Workers    int
	Logger     *zap.Logger
}

// NewBatchService constructs the service.
func NewBatchService(deps BatchDependencies) *BatchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	return &BatchService{
		classifier: deps.Classifier,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		workers:    workers,
		logger:     logger.Named("batch_service"),
	}
}

// ClassifyTickets classifies every ticket. Output keeps input order and holds only
// the tickets that succeeded; the rest are listed in the report.
func (b *BatchService) ClassifyTickets(ctx context.Context, tickets []BatchTicket) ([]ClassifiedTicket, BatchReport) {
	results := make([]*domain.Ticket, len(tickets))
	errs := make([]error, len(tickets))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, in := range tickets {
		i, in := i, in
		g.Go(func() error {
			ticket, err := b.classifier.ClassifyTicket(ctx, classifier.Input{ID: in.ID, Subject: in.Subject, Body: in.Body})
			if err != nil {
				errs[i] = err
				b.metrics.RecordBatchTicket("failed")
				return nil
			}
			results[i] = &ticket
			b.metrics.RecordBatchTicket("classified")
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{Total: len(tickets), Failures: []BatchFailure{}}
	out := make([]ClassifiedTicket, 0, len(tickets))
	for i, in := range tickets {
		if errs[i] != nil {
			report.Failures = append(report.Failures, failureOf(in.ID, errs[i]))
			continue
		}
		out = append(out, augment(in, *results[i]))
	}
	report.Classified = len(out)
	b.logger.Info("batch classified",
		zap.Int("total", report.Total),
		zap.Int("classified", report.Classified),
		zap.Int("failed", len(report.Failures)),
	)
	return out, report
}

// ClassifyFile reads a JSON array of tickets from inPath and writes the augmented
// tickets to outPath.
func (b *BatchService) ClassifyFile(ctx context.Context, inPath, outPath string) (BatchReport, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return BatchReport{}, fmt.Errorf("read tickets: %w", err)
	}
	var tickets []BatchTicket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return BatchReport{}, apperrors.NewValidationError("tickets file must be a JSON array of {id, subject, body}", map[string]any{"path": inPath, "error": err.Error()})
	}

	classified, report := b.ClassifyTickets(ctx, tickets)
	encoded, err := json.MarshalIndent(classified, "", "  ")
	if err != nil {
		return report, err
	}
	if err := os.WriteFile(outPath, append(encoded, '\n'), 0o644); err != nil {
		return report, fmt.Errorf("write classified tickets: %w", err)
	}
	return report, nil
}

// ClassifyStored classifies up to limit pending tickets from the dashboard store
// and writes the classification back.
func (b *BatchService) ClassifyStored(ctx context.Context, limit int) (BatchReport, error) {
	records, err := b.tickets.ListUnclassified(ctx, limit)
	if err != nil {
		return BatchReport{}, err
	}
	byID := make(map[string]domain.TicketRecord, len(records))
	tickets := make([]BatchTicket, len(records))
	for i, record := range records {
		byID[record.ID] = record
		tickets[i] = BatchTicket{ID: record.ID, Subject: record.Subject, Body: record.Body}
	}

	classified, report := b.ClassifyTickets(ctx, tickets)
	for _, c := range classified {
		record := byID[c.ID]
		ticket := ticketOf(c)
		record.ApplyTicket(ticket)
		record.Status = domain.TicketStatusClassified
		if err := b.tickets.Update(ctx, &record); err != nil {
			b.logger.Warn("unable to store classification", zap.String("ticket_id", c.ID), zap.Error(err))
			report.Classified--
			report.Failures = append(report.Failures, failureOf(c.ID, err))
			continue
		}
		if b.dispatcher != nil {
			_ = b.dispatcher.Publish(ctx, events.NewEvent(events.EventTicketClassified, c.ID, events.SourceBatch, classifiedPayload(ticket)))
		}
	}
	return report, nil
}

// augment keeps the caller's subject and body. The id is the ticket's, which is
// the caller's when given and a fresh ULID otherwise.
func augment(in BatchTicket, ticket domain.Ticket) ClassifiedTicket {
	subject := in.Subject
	if subject == "" {
		subject = ticket.Subject
	}
	return ClassifiedTicket{
		ID:        ticket.ID,
		Subject:   subject,
		Body:      in.Body,
		TopicTags: ticket.TagStrings(),
		Sentiment: string(ticket.Sentiment),
		Priority:  string(ticket.Priority),
	}
}

func ticketOf(c ClassifiedTicket) domain.Ticket {
	tags := make([]domain.TopicTag, len(c.TopicTags))
	for i, tag := range c.TopicTags {
		tags[i] = domain.TopicTag(tag)
	}
	return domain.Ticket{
		ID:        c.ID,
		Subject:   c.Subject,
		Body:      c.Body,
		TopicTags: tags,
		Sentiment: domain.Sentiment(c.Sentiment),
		Priority:  domain.Priority(c.Priority),
	}
}

func failureOf(id string, err error) BatchFailure {
	return BatchFailure{ID: id, Code: apperrors.ToDomainError(err).Code, Error: err.Error()}
}
