package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-router/internal/events"
)

type recordingNotifier struct {
	mu       sync.Mutex
	received []events.Event
}

func (r *recordingNotifier) EventTypes() []events.EventType {
	return []events.EventType{events.EventTicketHandedOff}
}

func (r *recordingNotifier) Handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, event)
	return nil
}

func TestNotificationWorkerDeliversSubscribedEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	notifier := &recordingNotifier{}
	w := StartNotificationWorker(dispatcher, notifier, 8, nil)
	require.NotNil(t, w)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketHandedOff, "T1", events.SourceAPI, nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketAnswered, "T2", events.SourceAPI, nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketHandedOff, "T3", events.SourceAPI, nil)))
	w.Stop()
	w.Stop()

	require.Len(t, notifier.received, 2)
	assert.Equal(t, "T1", notifier.received[0].TicketID)
	assert.Equal(t, "T3", notifier.received[1].TicketID)

	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketHandedOff, "T4", events.SourceAPI, nil)))
	assert.Len(t, notifier.received, 2)
}

func TestStartNotificationWorkerWithoutDispatcher(t *testing.T) {
	assert.Nil(t, StartNotificationWorker(nil, &recordingNotifier{}, 0, nil))
	var w *NotificationWorker
	w.Stop()
}
