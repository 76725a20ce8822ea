package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/membridge/membridge/internal/nats"
	"github.com/membridge/membridge/internal/pipeline"
)

// Consumer pulls conversation snapshots from NATS and feeds them to the
// delivery scheduler.
type Consumer struct {
	js        jetstream.JetStream
	scheduler *pipeline.Scheduler
}

// NewConsumer creates a snapshot consumer bound to the scheduler.
func NewConsumer(js jetstream.JetStream, scheduler *pipeline.Scheduler) *Consumer {
	return &Consumer{js: js, scheduler: scheduler}
}

// Start runs the consume loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := inats.EnsureConsumer(ctx, c.js, inats.StreamTurns, "snapshot-ingest", "membridge.turns.>")
	if err != nil {
		return err
	}

	slog.Info("snapshot consumer started")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("ingest: fetching snapshots", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleSnapshot(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleSnapshot(ctx context.Context, msg jetstream.Msg) {
	var evt inats.SnapshotEvent
	if err := json.Unmarshal(msg.Data(), &evt); err != nil {
		slog.Error("ingest: unmarshaling snapshot", "error", err)
		_ = msg.Nak()
		return
	}

	if evt.SessionID == "" || len(evt.Turns) == 0 {
		slog.Warn("ingest: dropping empty snapshot")
		_ = msg.Ack()
		return
	}

	c.scheduler.EnqueueSnapshot(ctx, evt.SessionID, evt.Turns)
	_ = msg.Ack()

	slog.Debug("ingest: snapshot enqueued", "session_id", evt.SessionID, "turns", len(evt.Turns))
}
