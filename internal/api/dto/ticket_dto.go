package dto

import (
	"time"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// AnalyzeTicketRequest payload.
type AnalyzeTicketRequest struct {
	Question string `json:"question"`
}

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClassifyTicketsRequest payload.
type ClassifyTicketsRequest struct {
	Limit int `json:"limit"`
}

// AnalyzeTicketResponse is the internal and external view of one handled question.
type AnalyzeTicketResponse struct {
	TicketID   string           `json:"ticket_id"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	TopicTags  []string         `json:"topic_tags"`
	Sentiment  domain.Sentiment `json:"sentiment"`
	Priority   domain.Priority  `json:"priority"`
	Stage      domain.Stage     `json:"stage"`
	Route      domain.RouteName `json:"route"`
	Collection string           `json:"collection,omitempty"`
	Answer     string           `json:"answer"`
	AnswerHTML string           `json:"answer_html"`
	Sources    []string         `json:"sources"`
}

// TicketSummary response.
type TicketSummary struct {
	ID         string              `json:"id"`
	Subject    string              `json:"subject"`
	Body       string              `json:"body"`
	TopicTags  []string            `json:"topic_tags"`
	Sentiment  domain.Sentiment    `json:"sentiment,omitempty"`
	Priority   domain.Priority     `json:"priority,omitempty"`
	Status     domain.TicketStatus `json:"status"`
	Route      domain.RouteName    `json:"route,omitempty"`
	Collection string              `json:"collection,omitempty"`
	Answer     string              `json:"answer,omitempty"`
	Sources    []string            `json:"sources"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}
