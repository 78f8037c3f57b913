package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"
)

// ClientInterface is the JetStream surface the webhook server, dispatcher and
// lane consumers depend on. Tests substitute a mock for it.
type ClientInterface interface {
	// SetupStream ensures the task stream exists with the given configuration.
	SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error

	// SetupConsumer ensures the durable lane consumer exists on the stream.
	SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error

	// SubscribePush binds a queue subscription to a durable lane consumer.
	SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error)

	// Publish sends a task message to a lane subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error

	// Close closes the NATS connection.
	Close()

	// NatsConn exposes the underlying connection for realtime publishing and
	// readiness checks.
	NatsConn() *nats.Conn
}
