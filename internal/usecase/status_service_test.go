package usecase

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/notifier"
	storagemock "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage/mock"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
)

// NotifierMock mocks the notification worker pool.
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Submit(task notifier.NotificationTask) error {
	args := m.Called(task)
	return args.Error(0)
}

func (m *NotifierMock) Stop() {
	m.Called()
}

var _ notifier.INotifier = (*NotifierMock)(nil)

func statusPayload(wamID, status string) json.RawMessage {
	return json.RawMessage(`{"id":"` + wamID + `","status":"` + status + `","recipient_id":"628123456789"}`)
}

func TestProcessStatus_AppliesUpdateAndNotifies(t *testing.T) {
	chats := new(storagemock.ChatRepoMock)
	ntf := new(NotifierMock)
	svc := NewStatusService(chats, ntf)
	ctx := testContext(t)

	updated := &model.Chat{ID: 7, ContactID: 3, WamID: "wamid.1", Status: model.ChatStatusRead, UpdatedAt: time.Now()}
	chats.On("UpdateStatusByWamID", mock.Anything, "wamid.1", "read").Return(updated, nil)
	chats.On("SaveStatusLog", mock.Anything, mock.MatchedBy(func(e *model.ChatStatusLog) bool {
		return e.ChatID == 7 && e.CreatedAt.Equal(updated.UpdatedAt)
	})).Return(nil)
	ntf.On("Submit", mock.MatchedBy(func(task notifier.NotificationTask) bool {
		orgID, err := tenant.FromContext(task.Ctx)
		return err == nil && orgID == testOrgID &&
			task.Event == notifier.EventMessageStatusUpdate &&
			task.Payload["chat_id"] == int64(7) &&
			task.Payload["status"] == "read"
	})).Return(nil)

	err := svc.ProcessStatus(ctx, model.StatusTask{OrganizationID: testOrgID, RawStatus: statusPayload("wamid.1", "read")})

	require.NoError(t, err)
	chats.AssertExpectations(t)
	ntf.AssertExpectations(t)
}

func TestProcessStatus_UnknownChatSkips(t *testing.T) {
	chats := new(storagemock.ChatRepoMock)
	ntf := new(NotifierMock)
	svc := NewStatusService(chats, ntf)

	chats.On("UpdateStatusByWamID", mock.Anything, "wamid.2", "delivered").Return(nil, apperrors.ErrNotFound)

	err := svc.ProcessStatus(testContext(t), model.StatusTask{OrganizationID: testOrgID, RawStatus: statusPayload("wamid.2", "delivered")})

	require.NoError(t, err, "statuses for chats this pipeline never stored are expected traffic")
	ntf.AssertNotCalled(t, "Submit")
	chats.AssertNotCalled(t, "SaveStatusLog")
}

func TestProcessStatus_DatabaseErrorIsRetryable(t *testing.T) {
	chats := new(storagemock.ChatRepoMock)
	svc := NewStatusService(chats, new(NotifierMock))

	chats.On("UpdateStatusByWamID", mock.Anything, "wamid.3", "read").Return(nil, apperrors.ErrDatabase)

	err := svc.ProcessStatus(testContext(t), model.StatusTask{OrganizationID: testOrgID, RawStatus: statusPayload("wamid.3", "read")})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestProcessStatus_MalformedPayloadIsFatal(t *testing.T) {
	svc := NewStatusService(new(storagemock.ChatRepoMock), new(NotifierMock))

	testCases := []struct {
		name string
		raw  json.RawMessage
	}{
		{"invalid json", json.RawMessage(`oops`)},
		{"missing wam_id", json.RawMessage(`{"status":"read"}`)},
		{"missing status", json.RawMessage(`{"id":"wamid.4"}`)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ProcessStatus(testContext(t), model.StatusTask{OrganizationID: testOrgID, RawStatus: tc.raw})

			require.Error(t, err)
			assert.True(t, apperrors.IsFatal(err))
		})
	}
}

func TestProcessStatus_NotifierFailureDoesNotFailUpdate(t *testing.T) {
	chats := new(storagemock.ChatRepoMock)
	ntf := new(NotifierMock)
	svc := NewStatusService(chats, ntf)

	chats.On("UpdateStatusByWamID", mock.Anything, "wamid.5", "read").Return(&model.Chat{ID: 7, ContactID: 3}, nil)
	chats.On("SaveStatusLog", mock.Anything, mock.Anything).Return(nil)
	ntf.On("Submit", mock.Anything).Return(fmt.Errorf("pool overloaded"))

	err := svc.ProcessStatus(testContext(t), model.StatusTask{OrganizationID: testOrgID, RawStatus: statusPayload("wamid.5", "read")})

	assert.NoError(t, err)
}
