package utils

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestStreamConfigEqual(t *testing.T) {
	base := nats.StreamConfig{
		Name:      "webhook_tasks",
		Subjects:  []string{"v1.webhook.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	t.Run("Identical configs", func(t *testing.T) {
		other := base
		other.Subjects = []string{"v1.webhook.>"}
		assert.True(t, StreamConfigEqual(base, other))
	})

	t.Run("Different name", func(t *testing.T) {
		other := base
		other.Name = "other_tasks"
		assert.False(t, StreamConfigEqual(base, other))
	})

	t.Run("Different max age", func(t *testing.T) {
		other := base
		other.MaxAge = 24 * time.Hour
		assert.False(t, StreamConfigEqual(base, other))
	})

	t.Run("Different subjects", func(t *testing.T) {
		other := base
		other.Subjects = []string{"v2.webhook.>"}
		assert.False(t, StreamConfigEqual(base, other))
	})

	t.Run("Extra subject", func(t *testing.T) {
		other := base
		other.Subjects = []string{"v1.webhook.>", "v1.extra.>"}
		assert.False(t, StreamConfigEqual(base, other))
	})
}

func TestConsumerConfigEqual(t *testing.T) {
	base := nats.ConsumerConfig{
		Durable:        "messages_worker",
		AckPolicy:      nats.AckExplicitPolicy,
		FilterSubjects: []string{"v1.webhook.messages"},
		MaxDeliver:     5,
		AckWait:        30 * time.Second,
	}

	t.Run("Identical configs", func(t *testing.T) {
		other := base
		other.FilterSubjects = []string{"v1.webhook.messages"}
		assert.True(t, ConsumerConfigEqual(base, other))
	})

	t.Run("Different durable name", func(t *testing.T) {
		other := base
		other.Durable = "media_worker"
		assert.False(t, ConsumerConfigEqual(base, other))
	})

	t.Run("Different max deliver", func(t *testing.T) {
		other := base
		other.MaxDeliver = 3
		assert.False(t, ConsumerConfigEqual(base, other))
	})

	t.Run("Different ack wait", func(t *testing.T) {
		other := base
		other.AckWait = time.Minute
		assert.False(t, ConsumerConfigEqual(base, other))
	})

	t.Run("Different filter subject", func(t *testing.T) {
		other := base
		other.FilterSubjects = []string{"v1.webhook.media"}
		assert.False(t, ConsumerConfigEqual(base, other))
	})
}
