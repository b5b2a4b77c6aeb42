package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/store"
)

type stubStore struct {
	nextID int64
	events []store.DomainEvent
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (store.DomainEvent, error) {
	s.nextID++
	ev := store.DomainEvent{
		ID:          s.nextID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

type captureNotifier struct {
	events []store.DomainEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	st := &stubStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{Store: st, Notifiers: []events.Notifier{notifier}}

	payload := map[string]any{"orderId": "ord-1"}
	ev, err := bus.Emit(context.Background(), events.TopicOrderDelivered, "ord-1", payload)
	require.NoError(t, err)
	require.Len(t, st.events, 1)
	require.Equal(t, events.TopicOrderDelivered, st.events[0].Topic)
	require.JSONEq(t, `{"orderId":"ord-1"}`, string(st.events[0].Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &decoded))
	require.Equal(t, "ord-1", decoded["orderId"])
}

func TestEmitNotifierFailureDoesNotDropEvent(t *testing.T) {
	st := &stubStore{}
	failing := &captureNotifier{err: errors.New("push gateway down")}
	bus := events.Bus{Store: st, Notifiers: []events.Notifier{failing}}

	_, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "ord-2", nil)
	require.Error(t, err)
	// The event is persisted even when fan-out fails.
	require.Len(t, st.events, 1)
	require.JSONEq(t, `{}`, string(st.events[0].Payload))
}

func TestEmitRequiresAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "", nil)
	require.Error(t, err)
}
