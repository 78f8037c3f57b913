package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/config"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

type stubMessageProcessor struct {
	effects []model.Effect
	err     error
	tasks   []model.IngestTask
}

func (s *stubMessageProcessor) ProcessMessage(_ context.Context, task model.IngestTask) ([]model.Effect, error) {
	s.tasks = append(s.tasks, task)
	return s.effects, s.err
}

type stubStatusProcessor struct {
	err   error
	tasks []model.StatusTask
}

func (s *stubStatusProcessor) ProcessStatus(_ context.Context, task model.StatusTask) error {
	s.tasks = append(s.tasks, task)
	return s.err
}

type stubAutoReplyProcessor struct {
	err   error
	tasks []model.AutoReplyTask
}

func (s *stubAutoReplyProcessor) SendAutoReply(_ context.Context, task model.AutoReplyTask) error {
	s.tasks = append(s.tasks, task)
	return s.err
}

type stubAccountProcessor struct {
	err   error
	tasks []model.AccountTask
}

func (s *stubAccountProcessor) ProcessAccountUpdate(_ context.Context, task model.AccountTask) error {
	s.tasks = append(s.tasks, task)
	return s.err
}

func testRouter(publisher *capturingPublisher) *Router {
	return &Router{
		dispatcher: NewEffectDispatcher(publisher, &capturingNotifier{}, "v1.webhook", 30*time.Second),
	}
}

func TestMessagesHandler_DispatchesEffects(t *testing.T) {
	publisher := &capturingPublisher{}
	svc := &stubMessageProcessor{effects: []model.Effect{
		model.FetchMediaEffect(model.MediaTask{OrganizationID: 42, ChatID: 7, MediaID: "MEDIA_1"}),
	}}
	handler := testRouter(publisher).messagesHandler(svc)

	task := model.IngestTask{OrganizationID: 42, RawMessage: []byte(`{"id":"wamid.ABC"}`)}
	require.NoError(t, handler(context.Background(), utils.MustMarshalJSON(task)))

	require.Len(t, svc.tasks, 1)
	assert.Equal(t, int64(42), svc.tasks[0].OrganizationID)
	assert.Equal(t, []string{"v1.webhook.media"}, publisher.subjects)
}

func TestMessagesHandler_ProcessorErrorSkipsDispatch(t *testing.T) {
	publisher := &capturingPublisher{}
	svc := &stubMessageProcessor{err: apperrors.NewRetryable(apperrors.ErrDatabase, "insert failed")}
	handler := testRouter(publisher).messagesHandler(svc)

	err := handler(context.Background(), utils.MustMarshalJSON(model.IngestTask{OrganizationID: 42}))
	assert.True(t, apperrors.IsRetryable(err))
	assert.Empty(t, publisher.subjects)
}

func TestStatusHandler_Delegates(t *testing.T) {
	svc := &stubStatusProcessor{}
	handler := statusHandler(svc)

	task := model.StatusTask{OrganizationID: 42, RawStatus: []byte(`{"status":"read"}`)}
	require.NoError(t, handler(context.Background(), utils.MustMarshalJSON(task)))
	require.Len(t, svc.tasks, 1)
	assert.Equal(t, int64(42), svc.tasks[0].OrganizationID)
}

func TestAutoRepliesHandler_DueTaskSends(t *testing.T) {
	svc := &stubAutoReplyProcessor{}
	handler := autoRepliesHandler(svc)

	task := model.AutoReplyTask{OrganizationID: 42, ChatID: 7, NotBefore: utils.Now().Add(-time.Second)}
	require.NoError(t, handler(context.Background(), utils.MustMarshalJSON(task)))
	require.Len(t, svc.tasks, 1)
	assert.Equal(t, int64(7), svc.tasks[0].ChatID)
}

func TestAutoRepliesHandler_EarlyTaskReschedules(t *testing.T) {
	svc := &stubAutoReplyProcessor{}
	handler := autoRepliesHandler(svc)

	task := model.AutoReplyTask{OrganizationID: 42, ChatID: 7, NotBefore: utils.Now().Add(time.Minute)}
	err := handler(context.Background(), utils.MustMarshalJSON(task))

	var reschedule *Reschedule
	require.ErrorAs(t, err, &reschedule)
	assert.Greater(t, reschedule.Delay, time.Duration(0))
	assert.LessOrEqual(t, reschedule.Delay, time.Minute)
	assert.Empty(t, svc.tasks)
}

func TestAutoRepliesHandler_SendFailureIsTerminal(t *testing.T) {
	// The lane's delivery budget exists for settle-delay reschedules; a
	// failed send must not be redelivered or the customer could get the
	// reply twice.
	svc := &stubAutoReplyProcessor{err: apperrors.NewRetryable(apperrors.ErrUpstream, "send failed")}
	handler := autoRepliesHandler(svc)

	task := model.AutoReplyTask{OrganizationID: 42, ChatID: 7, NotBefore: utils.Now().Add(-time.Second)}
	err := handler(context.Background(), utils.MustMarshalJSON(task))

	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
	assert.False(t, apperrors.IsRetryable(err))
	require.Len(t, svc.tasks, 1)
}

func TestAccountHandler_Delegates(t *testing.T) {
	svc := &stubAccountProcessor{}
	handler := accountHandler(svc)

	task := model.AccountTask{OrganizationID: 42, Field: "account_review_update"}
	require.NoError(t, handler(context.Background(), utils.MustMarshalJSON(task)))
	require.Len(t, svc.tasks, 1)
	assert.Equal(t, "account_review_update", svc.tasks[0].Field)
}

func TestHandlers_MalformedTaskIsFatal(t *testing.T) {
	handlers := map[string]LaneHandler{
		"messages":    testRouter(&capturingPublisher{}).messagesHandler(&stubMessageProcessor{}),
		"status":      statusHandler(&stubStatusProcessor{}),
		"autoreplies": autoRepliesHandler(&stubAutoReplyProcessor{}),
		"account":     accountHandler(&stubAccountProcessor{}),
	}

	for lane, handler := range handlers {
		t.Run(lane, func(t *testing.T) {
			err := handler(context.Background(), []byte(`{not json`))
			assert.True(t, apperrors.IsFatal(err))
			assert.ErrorIs(t, err, apperrors.ErrMalformedPayload)
		})
	}
}

func TestNewRouter_BuildsAllLanes(t *testing.T) {
	cfg := &config.Config{}
	cfg.NATS.Stream = "webhook_tasks"
	cfg.NATS.SubjectPrefix = "v1.webhook"

	r := NewRouter(nil, cfg, NewEffectDispatcher(&capturingPublisher{}, &capturingNotifier{}, "v1.webhook", 0),
		&stubMessageProcessor{}, &stubStatusProcessor{}, nil, nil, &stubAutoReplyProcessor{}, &stubAccountProcessor{})

	require.Len(t, r.consumers, 6)
	subjects := make([]string, 0, len(r.consumers))
	for _, c := range r.consumers {
		subjects = append(subjects, c.subject)
	}
	assert.ElementsMatch(t, []string{
		"v1.webhook.messages",
		"v1.webhook.media",
		"v1.webhook.tickets",
		"v1.webhook.autoreplies",
		"v1.webhook.status",
		"v1.webhook.account",
	}, subjects)
}
