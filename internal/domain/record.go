package domain

import "time"

// TicketStatus enumerates lifecycle states of a recorded ticket.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusClassified TicketStatus = "CLASSIFIED"
	TicketStatusAnswered   TicketStatus = "ANSWERED"
	TicketStatusHandedOff  TicketStatus = "HANDED_OFF"
	TicketStatusFailed     TicketStatus = "FAILED"
)

// TicketRecord is the dashboard view of a ticket and how it was handled.
type TicketRecord struct {
	ID         string
	Subject    string
	Body       string
	TopicTags  []TopicTag
	Sentiment  Sentiment
	Priority   Priority
	Status     TicketStatus
	Route      RouteName
	Collection string
	Answer     string
	Sources    []string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ApplyTicket copies classification fields onto the record. The body is left untouched.
func (r *TicketRecord) ApplyTicket(t Ticket) {
	r.Subject = t.Subject
	r.TopicTags = append([]TopicTag(nil), t.TopicTags...)
	r.Sentiment = t.Sentiment
	r.Priority = t.Priority
}

// Classified reports whether classification fields are present.
func (r TicketRecord) Classified() bool {
	return len(r.TopicTags) > 0
}
