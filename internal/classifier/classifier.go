package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/llm"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const schemaName = "ticket_classification"

// Input is a ticket to classify. Body is preserved byte for byte.
type Input struct {
	ID      string
	Subject string
	Body    string
}

// Classifier turns a free-text question into a classified ticket with one model call.
type Classifier struct {
	client    llm.Client
	validator *llm.Validator
	schema    map[string]any
	logger    *zap.Logger
}

func New(client llm.Client, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema := responseSchema()
	validator, err := llm.NewValidator(schema)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		client:    client,
		validator: validator,
		schema:    schema,
		logger:    logger.Named("classifier"),
	}, nil
}

// Classify classifies a raw question and assigns a new ticket id.
func (c *Classifier) Classify(ctx context.Context, question string) (domain.Ticket, error) {
	return c.ClassifyTicket(ctx, Input{Body: question})
}

// ClassifyTicket classifies an existing ticket, keeping its id when set.
func (c *Classifier) ClassifyTicket(ctx context.Context, in Input) (domain.Ticket, error) {
	if strings.TrimSpace(in.Body) == "" {
		return domain.Ticket{}, apperrors.NewEmptyInputError()
	}

	start := time.Now()
	raw, err := c.client.Complete(ctx, llm.Request{
		System:            systemPrompt,
		User:              userPrompt(in.Subject, in.Body),
		SchemaName:        schemaName,
		SchemaDescription: "Subject, verbatim body, topic tags, sentiment and priority of a support ticket",
		Schema:            llm.ProviderSchema(c.schema),
	})
	if err != nil {
		c.logger.Warn("classification call failed", zap.String("ticket_id", in.ID), zap.Error(err))
		return domain.Ticket{}, apperrors.NewClassificationError(err)
	}

	classification, err := c.decode(raw)
	if err != nil {
		c.logger.Warn("classification rejected", zap.String("ticket_id", in.ID), zap.Error(err))
		return domain.Ticket{}, err
	}
	if classification.Body != in.Body {
		c.logger.Debug("model altered the body, restoring input", zap.String("ticket_id", in.ID))
	}
	classification.Body = in.Body

	ticket := domain.NewTicket(in.ID, classification)
	c.logger.Info("ticket classified",
		zap.String("ticket_id", ticket.ID),
		zap.Strings("topic_tags", ticket.TagStrings()),
		zap.String("sentiment", string(ticket.Sentiment)),
		zap.String("priority", string(ticket.Priority)),
		zap.Duration("duration", time.Since(start)),
	)
	return ticket, nil
}

func (c *Classifier) decode(raw string) (domain.Classification, error) {
	doc := []byte(llm.ExtractJSON(raw))
	violations, err := c.validator.Violations(doc)
	if err != nil {
		return domain.Classification{}, apperrors.NewSchemaViolationError(nil, err)
	}
	if len(violations) > 0 {
		return domain.Classification{}, apperrors.NewSchemaViolationError(violations, nil)
	}

	var out domain.Classification
	if err := json.Unmarshal(doc, &out); err != nil {
		return domain.Classification{}, apperrors.NewSchemaViolationError(nil, fmt.Errorf("decode classification: %w", err))
	}
	out.TopicTags = domain.DedupeTags(out.TopicTags)
	if violations := out.Violations(); len(violations) > 0 {
		return domain.Classification{}, apperrors.NewSchemaViolationError(violations, nil)
	}
	return out, nil
}
