package notifier

import (
	"github.com/nats-io/nats.go"
)

// NATSRealtimePublisher publishes realtime events over plain NATS. Realtime
// subjects are deliberately outside the task stream: a slow UI subscriber
// should never accumulate stream retention.
type NATSRealtimePublisher struct {
	conn *nats.Conn
}

// NewNATSRealtimePublisher wraps an established NATS connection.
func NewNATSRealtimePublisher(conn *nats.Conn) *NATSRealtimePublisher {
	return &NATSRealtimePublisher{conn: conn}
}

// Publish sends one event payload.
func (p *NATSRealtimePublisher) Publish(subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

var _ RealtimePublisher = (*NATSRealtimePublisher)(nil)
