// Package redissink publishes progress events onto a Redis stream so
// out-of-process consumers (a WebSocket gateway, another service) can
// follow a plan execution. It is an ordinary Progress Bus subscriber; the
// bus's drop-newest policy still bounds how far a slow Redis can fall
// behind the scheduler.
package redissink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"veritas.app/relay/internal/domain"
	"veritas.app/relay/internal/progress"
)

// maxStreamLen caps the stream with MAXLEN ~ so it cannot grow until
// Redis runs out of memory.
const maxStreamLen = 100_000

type Sink struct {
	client *redis.Client
	stream string
	log    *slog.Logger
}

// New constructs a Sink publishing to stream. A nil logger falls back to
// slog.Default.
func New(client *redis.Client, stream string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{client: client, stream: stream, log: log}
}

// Attach subscribes the sink to bus. Events that fail to publish are
// logged and dropped; a Redis outage must not disturb the scheduler or
// other subscribers.
func (s *Sink) Attach(ctx context.Context, bus *progress.Bus) *progress.Subscription {
	return bus.Subscribe(ctx, func(ctx context.Context, event domain.ProgressEvent) {
		if err := s.publish(ctx, event); err != nil {
			s.log.Warn("progress event publish failed",
				"stream", s.stream,
				"event_kind", event.EventKind,
				"error", err)
		}
	})
}

func (s *Sink) publish(ctx context.Context, event domain.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}

	fields := map[string]any{
		"event_id":   event.EventID,
		"event_kind": string(event.EventKind),
		"step_id":    event.StepID,
		"payload":    string(payload),
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("publish progress event (stream=%s): %w", s.stream, err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.client.Close()
}
