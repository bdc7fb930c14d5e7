package handlers

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/yuin/goldmark"

	"github.com/spec-kit/ticket-router/internal/api/dto"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/repository"
	"github.com/spec-kit/ticket-router/internal/service"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const maxClassifyLimit = 500

// TicketsHandler serves the analyze endpoint and the staff dashboard.
type TicketsHandler struct {
	tickets *service.TicketService
	batch   *service.BatchService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, batchService *service.BatchService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, batch: batchService}
}

// Analyze POST /v1/tickets/analyze.
func (h *TicketsHandler) Analyze(c *fiber.Ctx) error {
	var req dto.AnalyzeTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	analysis := h.tickets.Analyze(c.UserContext(), req.Question, events.SourceAPI)
	result := analysis.Result
	if result.Failed() {
		return apperrors.FromCode(result.Code, result.Error)
	}
	return c.JSON(fiber.Map{"data": analyzeResponse(result.State)})
}

// Submit POST /v1/tickets.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.tickets.Submit(c.UserContext(), service.TicketSubmitInput{Subject: req.Subject, Body: req.Body})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(record)})
}

// ListTickets GET /v1/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	records, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(records))
	for i := range records {
		items = append(items, ticketSummary(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	record, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(record)})
}

// Classify POST /v1/tickets/classify runs the bulk job over pending stored tickets.
func (h *TicketsHandler) Classify(c *fiber.Ctx) error {
	var req dto.ClassifyTicketsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.Limit < 0 || req.Limit > maxClassifyLimit {
		return apperrors.NewValidationError("limit out of range", map[string]any{"max": maxClassifyLimit})
	}
	report, err := h.batch.ClassifyStored(c.UserContext(), req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(part)))
	}
	for _, part := range splitList(c.Query("priority")) {
		priority := domain.Priority(strings.ToUpper(part))
		if !priority.Valid() {
			return filter, apperrors.NewValidationError("unknown priority", map[string]any{"priority": part})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if tagStr := strings.TrimSpace(c.Query("tag")); tagStr != "" {
		tag := domain.TopicTag(tagStr)
		if !tag.Valid() {
			return filter, apperrors.NewValidationError("unknown topic tag", map[string]any{"tag": tagStr})
		}
		filter.Tag = &tag
	}
	if routeStr := strings.TrimSpace(c.Query("route")); routeStr != "" {
		route := domain.RouteName(routeStr)
		if !route.Valid() {
			return filter, apperrors.NewValidationError("unknown route", map[string]any{"route": routeStr})
		}
		filter.Route = &route
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func analyzeResponse(state *domain.PipelineState) dto.AnalyzeTicketResponse {
	ticket := state.Ticket
	resp := dto.AnalyzeTicketResponse{
		TicketID:  ticket.ID,
		Subject:   ticket.Subject,
		Body:      ticket.Body,
		TopicTags: ticket.TagStrings(),
		Sentiment: ticket.Sentiment,
		Priority:  ticket.Priority,
		Stage:     state.Stage,
		Sources:   []string{},
	}
	if state.Route != nil {
		resp.Route = state.Route.Route
		resp.Collection = state.Route.Collection
	}
	if state.Answer != nil {
		resp.Answer = state.Answer.Text
		resp.AnswerHTML = renderMarkdown(state.Answer.Text)
		resp.Sources = append(resp.Sources, state.Answer.Sources...)
	}
	return resp
}

func ticketSummary(record *domain.TicketRecord) dto.TicketSummary {
	tags := make([]string, len(record.TopicTags))
	for i, tag := range record.TopicTags {
		tags[i] = string(tag)
	}
	sources := record.Sources
	if sources == nil {
		sources = []string{}
	}
	return dto.TicketSummary{
		ID:         record.ID,
		Subject:    record.Subject,
		Body:       record.Body,
		TopicTags:  tags,
		Sentiment:  record.Sentiment,
		Priority:   record.Priority,
		Status:     record.Status,
		Route:      record.Route,
		Collection: record.Collection,
		Answer:     record.Answer,
		Sources:    sources,
		Error:      record.Error,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

// renderMarkdown converts answer markdown to HTML. Raw HTML in the answer is not passed through.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return html.EscapeString(md)
	}
	return buf.String()
}
