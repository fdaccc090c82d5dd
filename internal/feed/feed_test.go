package feed_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"lighthouse.app/cityintel/internal/feed"
	"lighthouse.app/cityintel/internal/model"
)

var _ = Describe("Fields", func() {
	It("flattens a log event", func() {
		ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		fields := feed.Fields(feed.Event{
			Kind:    feed.KindLog,
			CycleID: 42,
			Stage:   model.StageAnalyze,
			Entry: &model.LogEntry{
				Timestamp: ts,
				Source:    "Orchestrator",
				Message:   "Analyzing payloads...",
				Type:      model.LogInfo,
			},
		})

		Expect(fields).To(HaveKeyWithValue("kind", "log"))
		Expect(fields).To(HaveKeyWithValue("cycle_id", int64(42)))
		Expect(fields).To(HaveKeyWithValue("stage", "analyze"))
		Expect(fields).To(HaveKeyWithValue("source", "Orchestrator"))
		Expect(fields).To(HaveKeyWithValue("type", "info"))
		Expect(fields).To(HaveKeyWithValue("timestamp", "2025-03-01T12:00:00Z"))
	})

	It("omits entry fields for stage events", func() {
		fields := feed.Fields(feed.Event{Kind: feed.KindStage, CycleID: 7, Stage: model.StageCards})

		Expect(fields).To(HaveLen(3))
		Expect(fields).To(HaveKeyWithValue("stage", "cards"))
	})
})

var _ = Describe("Decode", func() {
	It("reads the flat stream values redis returns", func() {
		msg := feed.Decode(redis.XMessage{
			ID: "1700000000000-0",
			Values: map[string]any{
				"kind":     "log",
				"cycle_id": "42",
				"stage":    "fetch",
				"source":   "System",
				"message":  "Pipeline stopped by user.",
				"type":     "warning",
			},
		})

		Expect(msg.ID).To(Equal("1700000000000-0"))
		Expect(msg.CycleID).To(Equal(int64(42)))
		Expect(msg.Stage).To(Equal("fetch"))
		Expect(msg.Text).To(Equal("Pipeline stopped by user."))
		Expect(msg.Type).To(Equal("warning"))
	})

	It("tolerates a malformed cycle id", func() {
		msg := feed.Decode(redis.XMessage{ID: "1-0", Values: map[string]any{"cycle_id": "abc"}})
		Expect(msg.CycleID).To(BeZero())
		Expect(msg.Kind).To(BeEmpty())
	})
})

var _ = Describe("NoopPublisher", func() {
	It("accepts events without side effects", func() {
		p := feed.NewNoopPublisher()
		Expect(p.Publish(context.Background(), feed.Event{Kind: feed.KindStage})).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})
})

var _ = Describe("RedisPublisher", func() {
	It("leaves the shared client open on Close", func() {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
		p := feed.NewRedisPublisher(client, "lighthouse:feed", 100, nil)

		Expect(p.Close()).To(Succeed())
		Expect(client.Close()).To(Succeed())
	})
})
