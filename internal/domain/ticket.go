package domain

import (
	"fmt"
	"strings"
	"time"
)

// TopicTag enumerates the fixed topic vocabulary used by the classifier.
type TopicTag string

const (
	TagHowTo         TopicTag = "How-to"
	TagProduct       TopicTag = "Product"
	TagConnector     TopicTag = "Connector"
	TagLineage       TopicTag = "Lineage"
	TagAPISDK        TopicTag = "API/SDK"
	TagSSO           TopicTag = "SSO"
	TagGlossary      TopicTag = "Glossary"
	TagBestPractices TopicTag = "Best practices"
	TagSensitiveData TopicTag = "Sensitive data"
)

// TopicTags lists the vocabulary in its canonical order.
var TopicTags = []TopicTag{
	TagHowTo, TagProduct, TagConnector, TagLineage, TagAPISDK,
	TagSSO, TagGlossary, TagBestPractices, TagSensitiveData,
}

func (t TopicTag) Valid() bool {
	for _, known := range TopicTags {
		if t == known {
			return true
		}
	}
	return false
}

// Sentiment enumerates the customer's emotional tone.
type Sentiment string

const (
	SentimentFrustrated Sentiment = "Frustrated"
	SentimentCurious    Sentiment = "Curious"
	SentimentAngry      Sentiment = "Angry"
	SentimentNeutral    Sentiment = "Neutral"
)

var Sentiments = []Sentiment{SentimentFrustrated, SentimentCurious, SentimentAngry, SentimentNeutral}

func (s Sentiment) Valid() bool {
	for _, known := range Sentiments {
		if s == known {
			return true
		}
	}
	return false
}

// Priority enumerates urgency. P0 is the most urgent.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

var Priorities = []Priority{PriorityP0, PriorityP1, PriorityP2}

func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities from most urgent (0) to least urgent. Unknown values rank -1.
func (p Priority) Rank() int {
	for i, known := range Priorities {
		if p == known {
			return i
		}
	}
	return -1
}

// Classification is the structured output of one classifier call.
type Classification struct {
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	TopicTags []TopicTag `json:"topic_tags"`
	Sentiment Sentiment  `json:"sentiment"`
	Priority  Priority   `json:"priority"`
}

// Violations lists every field outside the classification contract.
func (c Classification) Violations() []string {
	var out []string
	if strings.TrimSpace(c.Subject) == "" {
		out = append(out, "subject: must not be empty")
	}
	if len(c.TopicTags) == 0 {
		out = append(out, "topic_tags: must contain at least one tag")
	}
	for i, tag := range c.TopicTags {
		if !tag.Valid() {
			out = append(out, fmt.Sprintf("topic_tags.%d: unknown tag %q", i, tag))
		}
	}
	if !c.Sentiment.Valid() {
		out = append(out, fmt.Sprintf("sentiment: unknown value %q", c.Sentiment))
	}
	if !c.Priority.Valid() {
		out = append(out, fmt.Sprintf("priority: unknown value %q", c.Priority))
	}
	return out
}

// DedupeTags collapses repeated tags, keeping the first occurrence.
func DedupeTags(tags []TopicTag) []TopicTag {
	seen := make(map[TopicTag]struct{}, len(tags))
	out := make([]TopicTag, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Ticket is a classified support question.
type Ticket struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	TopicTags []TopicTag `json:"topic_tags"`
	Sentiment Sentiment  `json:"sentiment"`
	Priority  Priority   `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewTicket assembles a ticket from a classification. An empty id is replaced by a fresh ULID.
func NewTicket(id string, c Classification) Ticket {
	if id == "" {
		id = NewTicketID()
	}
	return Ticket{
		ID:        id,
		Subject:   c.Subject,
		Body:      c.Body,
		TopicTags: append([]TopicTag(nil), c.TopicTags...),
		Sentiment: c.Sentiment,
		Priority:  c.Priority,
		CreatedAt: time.Now().UTC(),
	}
}

// TagStrings returns the tags as plain strings.
func (t Ticket) TagStrings() []string {
	out := make([]string, len(t.TopicTags))
	for i, tag := range t.TopicTags {
		out[i] = string(tag)
	}
	return out
}
