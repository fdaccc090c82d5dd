package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is a decoded stream entry as delivered to SSE clients.
type Message struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	CycleID   int64  `json:"cycle_id"`
	Stage     string `json:"stage"`
	Source    string `json:"source,omitempty"`
	Text      string `json:"message,omitempty"`
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Reader interface {
	// Read blocks up to block for entries after lastID. It returns nil, nil when nothing arrived.
	Read(ctx context.Context, lastID string, block time.Duration) ([]Message, error)
}

type RedisReader struct {
	client *redis.Client
	stream string
	count  int64
}

func NewRedisReader(client *redis.Client, stream string) *RedisReader {
	return &RedisReader{client: client, stream: stream, count: 100}
}

func (r *RedisReader) Read(ctx context.Context, lastID string, block time.Duration) ([]Message, error) {
	if lastID == "" {
		lastID = "$"
	}

	res, err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{r.stream, lastID},
		Block:   block,
		Count:   r.count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var out []Message
	for _, stream := range res {
		for _, msg := range stream.Messages {
			out = append(out, Decode(msg))
		}
	}
	return out, nil
}

// Decode maps a raw stream message to a Message. Missing fields stay empty.
func Decode(msg redis.XMessage) Message {
	str := func(key string) string {
		s, _ := msg.Values[key].(string)
		return s
	}
	return Message{
		ID:        msg.ID,
		Kind:      str("kind"),
		CycleID:   parseCycleID(msg.Values["cycle_id"]),
		Stage:     str("stage"),
		Source:    str("source"),
		Text:      str("message"),
		Type:      str("type"),
		Timestamp: str("timestamp"),
	}
}
