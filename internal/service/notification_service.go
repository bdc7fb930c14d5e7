package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/config"
	"github.com/spec-kit/ticket-router/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		logger: logger.Named("notifications"),
		cfg:    cfg,
	}
}

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTicketClassified,
		events.EventTicketAnswered,
		events.EventTicketHandedOff,
		events.EventTicketFailed,
	}
}

// Handle routes an event to its notification.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketClassified:
		n.logger.Debug("TicketClassified", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
		return nil
	case events.EventTicketAnswered:
		n.logger.Info("TicketAnswered", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
		return nil
	case events.EventTicketHandedOff:
		n.logger.Info("TicketHandedOff", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
		n.sendEmailNotificationStub(ctx, event)
		return n.sendWebhook(ctx, event)
	case events.EventTicketFailed:
		n.logger.Warn("TicketFailed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
		return nil
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

// sendWebhook posts the event as JSON to the team routing webhook.
func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	timeout := webhookTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	agent := fiber.Post(url).JSON(event).Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("webhook %s: %w", url, err)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", url, errs[0])
	}
	if status >= fiber.StatusBadRequest {
		return fmt.Errorf("webhook %s: status %d: %s", url, status, strings.TrimSpace(string(body)))
	}
	n.logger.Debug("webhook delivered",
		zap.String("url", url),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)),
		zap.Int("status", status))
	return nil
}
