// Package mcp exposes the ticket pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/classifier"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/service"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const serverName = "ticket-router"

// Analyzer runs a question through the pipeline and records it.
type Analyzer interface {
	Analyze(ctx context.Context, question string, source events.Source) service.Analysis
}

// TicketClassifier classifies a ticket without answering it.
type TicketClassifier interface {
	ClassifyTicket(ctx context.Context, in classifier.Input) (domain.Ticket, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	analyzer   Analyzer
	classifier TicketClassifier
	logger     *zap.Logger
}

func NewHandlers(analyzer Analyzer, c TicketClassifier, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{analyzer: analyzer, classifier: c, logger: logger.Named("mcp")}
}

// AnalyzeRequest represents the arguments for analyze_ticket.
type AnalyzeRequest struct {
	Question string `json:"question"`
}

// ClassifyRequest represents the arguments for classify_ticket.
type ClassifyRequest struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// TicketResult is the classification part of a tool response.
type TicketResult struct {
	ID        string   `json:"id"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	TopicTags []string `json:"topic_tags"`
	Sentiment string   `json:"sentiment"`
	Priority  string   `json:"priority"`
}

// AnalyzeResult is the analyze_ticket response.
type AnalyzeResult struct {
	Ticket     TicketResult `json:"ticket"`
	Route      string       `json:"route"`
	Collection string       `json:"collection,omitempty"`
	Answer     string       `json:"answer"`
	Sources    []string     `json:"sources"`
}

var (
	analyzeToolDef = mcp.NewTool("analyze_ticket",
		mcp.WithDescription("Classify a support question and either answer it from the documentation with cited sources or route it to a human team"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The customer's question, verbatim")),
	)
	classifyToolDef = mcp.NewTool("classify_ticket",
		mcp.WithDescription("Classify a support ticket into topic tags, sentiment and priority without answering it"),
		mcp.WithString("body", mcp.Required(), mcp.Description("Ticket body, verbatim")),
		mcp.WithString("subject", mcp.Description("Ticket subject, if any")),
		mcp.WithString("id", mcp.Description("Existing ticket id to keep")),
	)
)

// NewServer creates an MCP server with the ticket tools registered.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(true))
	s.AddTool(analyzeToolDef, h.HandleAnalyze)
	s.AddTool(classifyToolDef, h.HandleClassify)
	return s
}

// Run serves the tools on stdin/stdout until the input closes.
func Run(h *Handlers, version string) error {
	return server.ServeStdio(NewServer(h, version))
}

// HandleAnalyze handles the analyze_ticket tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnalyzeRequest](req)
	if err != nil {
		return errorResult(apperrors.NewValidationError(err.Error(), nil)), nil
	}

	result := h.analyzer.Analyze(ctx, input.Question, events.SourceMCP).Result
	if result.Failed() {
		return errorResult(apperrors.FromCode(result.Code, result.Error)), nil
	}
	state := result.State
	out := AnalyzeResult{
		Ticket:     ticketResult(*state.Ticket),
		Route:      string(state.Route.Route),
		Collection: state.Route.Collection,
		Answer:     state.Answer.Text,
		Sources:    append([]string{}, state.Answer.Sources...),
	}
	return successResult(out)
}

// HandleClassify handles the classify_ticket tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(apperrors.NewValidationError(err.Error(), nil)), nil
	}
	ticket, err := h.classifier.ClassifyTicket(ctx, classifier.Input{ID: input.ID, Subject: input.Subject, Body: input.Body})
	if err != nil {
		h.logger.Warn("classify_ticket failed", zap.Error(err))
		return errorResult(err), nil
	}
	return successResult(ticketResult(ticket))
}

func ticketResult(t domain.Ticket) TicketResult {
	return TicketResult{
		ID:        t.ID,
		Subject:   t.Subject,
		Body:      t.Body,
		TopicTags: t.TagStrings(),
		Sentiment: string(t.Sentiment),
		Priority:  string(t.Priority),
	}
}

// decode unmarshals MCP request arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// errorResult renders err as {"error":{code,message,status}}. Internal errors hide their cause.
func errorResult(err error) *mcp.CallToolResult {
	domainErr := apperrors.ToDomainError(err)
	errorObj := map[string]any{
		"code":    domainErr.Code,
		"message": domainErr.Message,
		"status":  domainErr.HTTPStatus,
	}
	if domainErr.Code != apperrors.CodeInternal && len(domainErr.Details) > 0 {
		errorObj["details"] = domainErr.Details
	}
	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
