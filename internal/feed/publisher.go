// Package feed publishes the running pipeline log to a redis stream and reads it back for
// live subscribers.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lighthouse.app/cityintel/internal/model"
)

type Kind string

const (
	KindLog   Kind = "log"
	KindStage Kind = "stage"
)

// Event is one feed record. Entry is set for KindLog events only.
type Event struct {
	Kind    Kind
	CycleID int64
	Stage   model.Stage
	Entry   *model.LogEntry
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type redisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *redisPublisher) Publish(ctx context.Context, ev Event) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: Fields(ev),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published feed event", "kind", ev.Kind, "cycle_id", ev.CycleID, "stage", ev.Stage.String())
	return nil
}

// Close is a no-op. The client is shared and owned by the caller.
func (p *redisPublisher) Close() error {
	return nil
}

// Fields flattens an event into stream field values.
func Fields(ev Event) map[string]any {
	fields := map[string]any{
		"kind":     string(ev.Kind),
		"cycle_id": ev.CycleID,
		"stage":    ev.Stage.String(),
	}
	if ev.Entry != nil {
		fields["source"] = ev.Entry.Source
		fields["message"] = ev.Entry.Message
		fields["type"] = string(ev.Entry.Type)
		fields["timestamp"] = ev.Entry.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. Used when redis is not configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }

func parseCycleID(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}
