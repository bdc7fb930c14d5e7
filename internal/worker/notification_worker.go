package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/events"
)

const defaultQueueSize = 128

// Notifier reacts to ticket events.
type Notifier interface {
	EventTypes() []events.EventType
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker delivers events to a Notifier off the request path.
type NotificationWorker struct {
	notifier Notifier
	queue    chan events.Event
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// StartNotificationWorker subscribes the notifier's events on the dispatcher and
// starts the delivery goroutine. Stop drains the queue.
func StartNotificationWorker(dispatcher events.Dispatcher, notifier Notifier, queueSize int, logger *zap.Logger) *NotificationWorker {
	if dispatcher == nil || notifier == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &NotificationWorker{
		notifier: notifier,
		queue:    make(chan events.Event, queueSize),
		logger:   logger.Named("notification_worker"),
	}
	for _, eventType := range notifier.EventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// enqueue never blocks the publisher; events are dropped when the queue is full.
func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
	}
	return nil
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.notifier.Handle(context.Background(), event); err != nil {
			w.logger.Warn("notification failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// Stop stops accepting events and waits for queued ones to be delivered.
func (w *NotificationWorker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}
