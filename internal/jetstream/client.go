package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
	"go.uber.org/zap"
)

// Client wraps a NATS connection and its JetStream context. One client is
// shared by the webhook publisher and all lane consumers.
type Client struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient connects to NATS and opens a JetStream context. Reconnects are
// retried forever so a broker restart does not take the pipeline down.
func NewClient(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("daisi-wa-webhook-pipeline"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			logger.Log.Error("NATS async error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Client{nc: nc, js: js}, nil
}

// SetupStream creates the stream if it does not exist, or updates it when the
// desired configuration differs from what the server reports.
func (c *Client) SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error {
	log := logger.FromContext(ctx).With(zap.String("stream", streamConfig.Name))

	info, err := c.js.StreamInfo(streamConfig.Name)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info for '%s': %w", streamConfig.Name, err)
	}

	if info == nil {
		if _, err := c.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to add stream '%s': %w", streamConfig.Name, err)
		}
		log.Info("Created task stream", zap.Any("subjects", streamConfig.Subjects))
		return nil
	}

	if utils.StreamConfigEqual(info.Config, *streamConfig) {
		log.Debug("Task stream already matches desired config")
		return nil
	}

	if _, err := c.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream '%s': %w", streamConfig.Name, err)
	}
	log.Info("Updated task stream",
		zap.Any("subjects", streamConfig.Subjects),
		zap.Duration("max_age", streamConfig.MaxAge),
	)
	return nil
}

// SetupConsumer creates the durable lane consumer if missing. JetStream cannot
// update most consumer fields in place, so a config mismatch is resolved by
// deleting and re-adding the durable.
func (c *Client) SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error {
	log := logger.FromContext(ctx).With(
		zap.String("stream", streamName),
		zap.String("consumer", consumerConfig.Durable),
	)

	info, err := c.js.ConsumerInfo(streamName, consumerConfig.Durable)
	if err != nil && !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to get consumer info for stream '%s', consumer '%s': %w", streamName, consumerConfig.Durable, err)
	}

	if info == nil {
		if _, err := c.js.AddConsumer(streamName, consumerConfig); err != nil {
			return fmt.Errorf("failed to add consumer '%s' to stream '%s': %w", consumerConfig.Durable, streamName, err)
		}
		log.Info("Created lane consumer",
			zap.String("queue_group", consumerConfig.DeliverGroup),
			zap.Any("filter_subjects", consumerConfig.FilterSubjects),
		)
		return nil
	}

	if utils.ConsumerConfigEqual(info.Config, *consumerConfig) {
		log.Debug("Lane consumer already matches desired config")
		return nil
	}

	log.Warn("Lane consumer config mismatch, recreating durable",
		zap.String("provided_cfg", fmt.Sprintf("%+v", consumerConfig)),
		zap.String("current_cfg", fmt.Sprintf("%+v", info.Config)),
	)
	if err := c.js.DeleteConsumer(streamName, consumerConfig.Durable); err != nil {
		return fmt.Errorf("failed to delete existing consumer '%s' from stream '%s' for update: %w", consumerConfig.Durable, streamName, err)
	}
	if _, err := c.js.AddConsumer(streamName, consumerConfig); err != nil {
		return fmt.Errorf("failed to re-add consumer '%s' to stream '%s' during update: %w", consumerConfig.Durable, streamName, err)
	}
	log.Info("Recreated lane consumer",
		zap.String("queue_group", consumerConfig.DeliverGroup),
		zap.Any("filter_subjects", consumerConfig.FilterSubjects),
	)
	return nil
}

// SubscribePush binds a queue subscription to the durable lane consumer.
// Acks are manual; the lane handler decides ack, nak delay or term per task.
func (c *Client) SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := c.js.QueueSubscribe(
		subject,
		group,
		handler,
		nats.Durable(consumer),
		nats.ManualAck(),
		nats.BindStream(stream),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to '%s': %w", subject, err)
	}

	return sub, nil
}

// Publish sends a task message to a lane subject with optional headers.
func (c *Client) Publish(subject string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Add(k, v)
	}

	if _, err := c.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to '%s': %w", subject, err)
	}

	return nil
}

// NatsConn exposes the underlying connection for realtime publishing and
// readiness checks.
func (c *Client) NatsConn() *nats.Conn {
	return c.nc
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
