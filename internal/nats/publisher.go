package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishSnapshot publishes a conversation snapshot for ingestion.
func (p *Publisher) PublishSnapshot(ctx context.Context, evt SnapshotEvent) error {
	return p.publish(ctx, SubjectSnapshot, evt)
}

// PublishDelivered publishes a batch-delivery event.
func (p *Publisher) PublishDelivered(ctx context.Context, evt DeliveredEvent) error {
	return p.publish(ctx, SubjectDelivered, evt)
}

// DeliveredSink adapts the publisher to the scheduler's delivery
// callback. Publish failures are logged and dropped; delivery events
// are advisory.
func (p *Publisher) DeliveredSink() func(groupID string, count int) {
	return func(groupID string, count int) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := p.PublishDelivered(ctx, DeliveredEvent{
			GroupID:      groupID,
			MessageCount: count,
			DeliveredAt:  time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("nats: publishing delivered event", "group_id", groupID, "error", err)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
