package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var got []string
	d.Subscribe(EventTicketHandedOff, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.TicketID)
		return errors.New("webhook down")
	})
	d.Subscribe(EventTicketHandedOff, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketAnswered, func(context.Context, Event) error {
		t.Fatal("unexpected delivery")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketHandedOff, "T1", SourceAPI, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"first:T1", "second:T1"}, got)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventTicketFailed, "T2", SourceBatch, TicketFailedPayload{Code: "TIMEOUT"})
	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, EventTicketFailed, e.Type)
	assert.Equal(t, SourceBatch, e.Source)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, TicketFailedPayload{Code: "TIMEOUT"}, e.Payload)
}
