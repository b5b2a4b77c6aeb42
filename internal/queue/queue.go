// Package queue implements a small Redis-backed delayed task queue used for
// fire-and-forget notification dispatch.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task is one job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	Delay          time.Duration
}

type message struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
}

// Queue publishes and consumes tasks over a Redis sorted set keyed by
// availability time. Tasks sharing an idempotency key are enqueued at most
// once within the dedup window.
type Queue struct {
	R           *redis.Client
	Prefix      string
	DedupTTL    time.Duration
	MaxAttempts int
	RetryBase   time.Duration
}

// Enqueue inserts the task, deduplicating on the idempotency key.
func (q Queue) Enqueue(ctx context.Context, t Task) error {
	if q.R == nil {
		return errors.New("queue: redis client not configured")
	}
	if t.Kind == "" {
		return errors.New("queue: task kind is required")
	}
	msg := message{
		Kind:        t.Kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		MaxAttempts: q.MaxAttempts,
		AvailableAt: time.Now().Add(t.Delay).UnixNano(),
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 10
	}
	if msg.Key != "" {
		ttl := q.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := q.R.SetNX(ctx, q.dedupKey(t.Kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.R.ZAdd(ctx, q.queueKey(t.Kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// Handler processes one task; returning an error schedules a retry.
type Handler func(ctx context.Context, t Task) error

// Run consumes tasks of one kind until the context is cancelled. Failed
// tasks are retried with exponential backoff and parked on a dead-letter
// list once their attempt budget is spent.
func (q Queue) Run(ctx context.Context, kind string, handler Handler) error {
	if q.R == nil {
		return errors.New("queue: redis client not configured")
	}
	if handler == nil {
		return errors.New("queue: handler not configured")
	}
	queueKey := q.queueKey(kind)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		msg, ok, err := q.popDue(ctx, queueKey)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		msg.Attempt++
		taskErr := handler(ctx, Task{Kind: kind, Payload: msg.Payload, IdempotencyKey: msg.Key})
		if taskErr != nil {
			q.retryOrPark(ctx, queueKey, msg)
			continue
		}
		if msg.Key != "" {
			_ = q.R.Del(ctx, q.dedupKey(kind, msg.Key)).Err()
		}
	}
}

func (q Queue) popDue(ctx context.Context, queueKey string) (message, bool, error) {
	res, err := q.R.ZPopMin(ctx, queueKey, 1).Result()
	if err != nil {
		if err == redis.Nil {
			return message{}, false, nil
		}
		return message{}, false, err
	}
	if len(res) == 0 {
		return message{}, false, nil
	}
	raw, _ := res[0].Member.(string)
	var msg message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// malformed member, drop it
		return message{}, false, nil
	}
	now := time.Now().UnixNano()
	if msg.AvailableAt > now {
		// not due yet, push back and wait
		_ = q.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
		return message{}, false, nil
	}
	return msg, true, nil
}

func (q Queue) retryOrPark(ctx context.Context, queueKey string, msg message) {
	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		raw, err := json.Marshal(msg)
		if err != nil {
			return
		}
		_ = q.R.LPush(ctx, q.dlqKey(msg.Kind), raw).Err()
		if msg.Key != "" {
			_ = q.R.Del(ctx, q.dedupKey(msg.Kind, msg.Key)).Err()
		}
		return
	}
	msg.AvailableAt = time.Now().Add(q.backoff(msg.Attempt)).UnixNano()
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = q.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

func (q Queue) backoff(attempt int) time.Duration {
	base := q.RetryBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if d > time.Minute {
		d = time.Minute
	}
	// up to 20% jitter to spread thundering retries
	return d + time.Duration(rand.Int63n(int64(d)/5+1))
}

func (q Queue) queueKey(kind string) string {
	return fmt.Sprintf("%s:queue:%s", q.prefix(), kind)
}

func (q Queue) dlqKey(kind string) string {
	return fmt.Sprintf("%s:queue:%s:dlq", q.prefix(), kind)
}

func (q Queue) dedupKey(kind, key string) string {
	return fmt.Sprintf("%s:queue:dedup:%s:%s", q.prefix(), kind, key)
}

func (q Queue) prefix() string {
	if q.Prefix == "" {
		return "khana"
	}
	return q.Prefix
}
