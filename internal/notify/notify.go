// Package notify delivers fire-and-forget push notifications. Domain events
// are translated into queue tasks; a worker posts them to the configured
// push gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/queue"
	"github.com/noah-isme/backend-khana/internal/store"
)

// TaskKind is the queue kind carrying push notification tasks.
const TaskKind = "notify.push"

// Message is the payload the worker posts to the push gateway.
type Message struct {
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// QueueNotifier turns domain events into queued push tasks. It satisfies
// events.Notifier; enqueue failures surface to the bus, which logs them
// without failing the emitting operation.
type QueueNotifier struct {
	Q      queue.Queue
	Topics map[string]struct{}
}

// NewQueueNotifier builds a notifier restricted to the given topics. An
// empty list subscribes to every topic.
func NewQueueNotifier(q queue.Queue, topics ...string) *QueueNotifier {
	n := &QueueNotifier{Q: q}
	if len(topics) > 0 {
		n.Topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			n.Topics[t] = struct{}{}
		}
	}
	return n
}

// Notify enqueues the event for asynchronous dispatch. The event id keys the
// dedup guard, so a replayed event enqueues once.
func (n *QueueNotifier) Notify(ctx context.Context, event store.DomainEvent) error {
	if n.Topics != nil {
		if _, ok := n.Topics[event.Topic]; !ok {
			return nil
		}
	}
	msg := Message{
		Topic:       event.Topic,
		AggregateID: event.AggregateID,
		Payload:     json.RawMessage(event.Payload),
		OccurredAt:  event.OccurredAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}
	return n.Q.Enqueue(ctx, queue.Task{
		Kind:           TaskKind,
		Payload:        payload,
		IdempotencyKey: fmt.Sprintf("event:%d", event.ID),
	})
}

var _ events.Notifier = (*QueueNotifier)(nil)

// Dispatcher posts notification messages to the push gateway.
type Dispatcher struct {
	gatewayURL string
	client     *http.Client
	log        zerolog.Logger
}

// NewDispatcher wires an HTTP dispatcher with a hard timeout per post.
func NewDispatcher(gatewayURL string, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		gatewayURL: gatewayURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// Dispatch posts one message. Non-2xx responses are errors so the queue can
// retry with backoff.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if d.gatewayURL == "" {
		// No gateway configured: drop silently, the event is still persisted.
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encode push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.count("error")
		return fmt.Errorf("notify: push gateway: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.count("rejected")
		return fmt.Errorf("notify: push gateway returned %d", resp.StatusCode)
	}
	d.count("ok")
	return nil
}

// Worker consumes queued notification tasks.
type Worker struct {
	Q          queue.Queue
	Dispatcher *Dispatcher
	Log        zerolog.Logger
}

// Run processes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.Q.Run(ctx, TaskKind, func(ctx context.Context, t queue.Task) error {
		var msg Message
		if err := json.Unmarshal(t.Payload, &msg); err != nil {
			// Malformed payloads never become valid; drop instead of retrying.
			w.Log.Error().Err(err).Str("key", t.IdempotencyKey).Msg("drop malformed notification task")
			return nil
		}
		err := w.Dispatcher.Dispatch(ctx, msg)
		if err != nil {
			w.Log.Warn().Err(err).Str("topic", msg.Topic).Msg("push dispatch failed")
		}
		return err
	})
}

func (d *Dispatcher) count(result string) {
	if obs.NotifyDispatchTotal != nil {
		obs.NotifyDispatchTotal.WithLabelValues(result).Inc()
	}
}
