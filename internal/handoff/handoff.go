// Package handoff builds the reply for tickets routed to a human team.
package handoff

import (
	"strings"

	"github.com/spec-kit/ticket-router/internal/domain"
)

const unknownTopic = "an unrecognized topic"

// Message returns the canned handoff answer naming the ticket's topics. It never has sources.
func Message(tags []domain.TopicTag) domain.Answer {
	topic := unknownTopic
	if len(tags) > 0 {
		names := make([]string, len(tags))
		for i, tag := range tags {
			names[i] = string(tag)
		}
		topic = strings.Join(names, ", ")
	}
	return domain.Answer{
		Text:    "This ticket has been classified to " + topic + " and routed to the appropriate team.",
		Sources: []string{},
	}
}
