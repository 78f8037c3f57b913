package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/notifier"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

type capturingPublisher struct {
	err      error
	subjects []string
	payloads [][]byte
	headers  []map[string]string
}

func (p *capturingPublisher) Publish(subject string, data []byte, headers map[string]string) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	p.headers = append(p.headers, headers)
	return p.err
}

type capturingNotifier struct {
	err   error
	tasks []notifier.NotificationTask
}

func (n *capturingNotifier) Submit(task notifier.NotificationTask) error {
	n.tasks = append(n.tasks, task)
	return n.err
}

func (n *capturingNotifier) Stop() {}

func TestDispatch_PublishesLaneTasks(t *testing.T) {
	publisher := &capturingPublisher{}
	ntf := &capturingNotifier{}
	d := NewEffectDispatcher(publisher, ntf, "v1.webhook", 30*time.Second)

	ctx := tenant.WithRequestID(context.Background(), "req-123")
	effects := []model.Effect{
		model.FetchMediaEffect(model.MediaTask{OrganizationID: 42, ChatID: 7, ContactID: 3, MediaID: "MEDIA_1"}),
		model.AssignTicketEffect(model.TicketTask{OrganizationID: 42, ContactID: 3}),
	}

	require.NoError(t, d.Dispatch(ctx, effects))
	require.Equal(t, []string{"v1.webhook.media", "v1.webhook.tickets"}, publisher.subjects)

	var mediaTask model.MediaTask
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &mediaTask))
	assert.Equal(t, "MEDIA_1", mediaTask.MediaID)

	for _, h := range publisher.headers {
		assert.Equal(t, "42", h["Organization-Id"])
		assert.Equal(t, "req-123", h["Request-Id"])
	}
}

func TestDispatch_AutoReplyGetsNotBefore(t *testing.T) {
	publisher := &capturingPublisher{}
	d := NewEffectDispatcher(publisher, &capturingNotifier{}, "v1.webhook", 30*time.Second)

	before := utils.Now()
	effects := []model.Effect{
		model.ScheduleAutoReplyEffect(model.AutoReplyTask{OrganizationID: 42, ContactID: 3, ChatID: 7}),
	}
	require.NoError(t, d.Dispatch(context.Background(), effects))
	require.Equal(t, []string{"v1.webhook.autoreplies"}, publisher.subjects)

	var task model.AutoReplyTask
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &task))
	assert.False(t, task.NotBefore.Before(before.Add(30*time.Second)), "zero NotBefore is pushed past the reply delay")
}

func TestDispatch_AutoReplyKeepsExplicitNotBefore(t *testing.T) {
	publisher := &capturingPublisher{}
	d := NewEffectDispatcher(publisher, &capturingNotifier{}, "v1.webhook", 30*time.Second)

	notBefore := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	effects := []model.Effect{
		model.ScheduleAutoReplyEffect(model.AutoReplyTask{OrganizationID: 42, NotBefore: notBefore}),
	}
	require.NoError(t, d.Dispatch(context.Background(), effects))

	var task model.AutoReplyTask
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &task))
	assert.True(t, task.NotBefore.Equal(notBefore))
}

func TestDispatch_NotifySubmitsToWorkerPool(t *testing.T) {
	publisher := &capturingPublisher{}
	ntf := &capturingNotifier{}
	d := NewEffectDispatcher(publisher, ntf, "v1.webhook", 30*time.Second)

	effects := []model.Effect{
		model.NotifyReceivedEffect(model.ReceivedNotification{OrganizationID: 42, ChatID: 7, ContactID: 3}),
	}
	require.NoError(t, d.Dispatch(context.Background(), effects))

	assert.Empty(t, publisher.subjects)
	require.Len(t, ntf.tasks, 1)
	task := ntf.tasks[0]
	assert.Equal(t, int64(42), task.OrgID)
	assert.Equal(t, notifier.EventMessageReceived, task.Event)
	assert.Equal(t, int64(7), task.Payload["chat_id"])
	assert.Equal(t, int64(3), task.Payload["contact_id"])

	orgID, err := tenant.FromContext(task.Ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), orgID)
}

func TestDispatch_FirstErrorReturnedRestStillDispatched(t *testing.T) {
	publisher := &capturingPublisher{err: fmt.Errorf("nats unavailable")}
	ntf := &capturingNotifier{}
	d := NewEffectDispatcher(publisher, ntf, "v1.webhook", 30*time.Second)

	effects := []model.Effect{
		model.AssignTicketEffect(model.TicketTask{OrganizationID: 42, ContactID: 3}),
		model.NotifyReceivedEffect(model.ReceivedNotification{OrganizationID: 42, ChatID: 7, ContactID: 3}),
	}

	err := d.Dispatch(context.Background(), effects)
	require.Error(t, err)
	assert.Len(t, ntf.tasks, 1, "later effects still run after a publish failure")
}

func TestDispatch_NotifierErrorIsSwallowed(t *testing.T) {
	ntf := &capturingNotifier{err: fmt.Errorf("pool overloaded")}
	d := NewEffectDispatcher(&capturingPublisher{}, ntf, "v1.webhook", 30*time.Second)

	effects := []model.Effect{
		model.NotifyReceivedEffect(model.ReceivedNotification{OrganizationID: 42, ChatID: 7, ContactID: 3}),
	}
	assert.NoError(t, d.Dispatch(context.Background(), effects))
}
