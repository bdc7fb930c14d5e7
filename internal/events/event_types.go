package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketClassified EventType = "ticket_classified"
	EventTicketAnswered   EventType = "ticket_answered"
	EventTicketHandedOff  EventType = "ticket_handed_off"
	EventTicketFailed     EventType = "ticket_failed"
)

// Source identifies the surface that triggered an event.
type Source string

const (
	SourceAPI   Source = "api"
	SourceBatch Source = "batch"
	SourceMCP   Source = "mcp"
	SourceCLI   Source = "cli"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Source    Source      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID string, source Source, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	Subject   string           `json:"subject"`
	TopicTags []string         `json:"topic_tags"`
	Sentiment domain.Sentiment `json:"sentiment"`
	Priority  domain.Priority  `json:"priority"`
}

// TicketAnsweredPayload payload.
type TicketAnsweredPayload struct {
	Collection string   `json:"collection"`
	Sources    []string `json:"sources"`
	Refused    bool     `json:"refused"`
}

// TicketHandedOffPayload payload.
type TicketHandedOffPayload struct {
	Subject   string          `json:"subject"`
	TopicTags []string        `json:"topic_tags"`
	Priority  domain.Priority `json:"priority"`
	Message   string          `json:"message"`
}

// TicketFailedPayload payload.
type TicketFailedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
