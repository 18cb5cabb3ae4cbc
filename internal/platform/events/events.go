// Package events publishes lifecycle events for downstream consumers
// (dashboards, audit, analytics). Publishing is best-effort: callers log a
// failed publish and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event names.
const (
	SosCreated               = "sos.created"
	SosAccepted              = "sos.accepted"
	SosOperationCompleted    = "sos.operation_completed"
	SosOperationCancelled    = "sos.operation_cancelled"
	SosCancelled             = "sos.cancelled"
	HospitalRequestSubmitted = "hospital_request.submitted"
	HospitalRequestApproved  = "hospital_request.approved"
	HospitalRequestRejected  = "hospital_request.rejected"
)

const DefaultStream = "rescue:events"

// Event describes one state change.
type Event struct {
	Name        string         `json:"name"`
	AggregateID uuid.UUID      `json:"aggregate_id"`
	ActorID     uuid.UUID      `json:"actor_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// RedisStreamPublisher appends events to a Redis stream as a JSON "data"
// field plus a unix "timestamp" field.
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Name, err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"name":      e.Name,
			"data":      string(data),
			"timestamp": e.OccurredAt.Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Recent returns up to n of the latest events, newest first.
func (p *RedisStreamPublisher) Recent(ctx context.Context, n int64) ([]Event, error) {
	msgs, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", p.stream, err)
	}
	out := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", m.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
