package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// EnsureConsumer creates or updates a durable consumer on the given
// stream bound to the subject filter.
func EnsureConsumer(ctx context.Context, js jetstream.JetStream, stream, durable, subject string) (jetstream.Consumer, error) {
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return nil, fmt.Errorf("creating consumer %s on stream %s: %w", durable, stream, err)
	}
	return consumer, nil
}
