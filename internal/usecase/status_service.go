package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/notifier"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

// StatusService applies delivery status updates to stored chats and keeps the
// append-only status audit trail.
type StatusService struct {
	chats    storage.ChatRepo
	notifier notifier.INotifier
}

// NewStatusService creates the status sink.
func NewStatusService(chats storage.ChatRepo, ntf notifier.INotifier) *StatusService {
	return &StatusService{chats: chats, notifier: ntf}
}

// ProcessStatus applies one status update. A status for an unknown chat is
// logged and skipped: statuses for outbound messages sent outside this
// pipeline are expected traffic, not failures.
func (s *StatusService) ProcessStatus(ctx context.Context, task model.StatusTask) error {
	log := logger.FromContext(ctx)

	st, err := model.ParseStatusUpdate(task.RawStatus)
	if err != nil {
		log.Error("Failed to decode status payload", zap.Error(err))
		return apperrors.NewFatal(apperrors.ErrMalformedPayload, "status decode failed")
	}
	if st.ID == "" || st.Status == "" {
		log.Warn("Skipping status update without wam_id or status")
		return apperrors.NewFatal(apperrors.ErrMalformedPayload, "status missing wam_id or status")
	}
	log = log.With(zap.String("wam_id", st.ID), zap.String("status", st.Status))

	chat, err := s.chats.UpdateStatusByWamID(ctx, st.ID, st.Status)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Info("Skipping status update for unknown chat")
			return nil
		}
		return handleRepositoryError(ctx, err, "UpdateChatStatusByWamID", st.ID)
	}

	entry := model.ChatStatusLog{
		ChatID:    chat.ID,
		Metadata:  datatypes.JSON(task.RawStatus),
		CreatedAt: chat.UpdatedAt,
	}
	if err := s.chats.SaveStatusLog(ctx, &entry); err != nil {
		return handleRepositoryError(ctx, err, "SaveChatStatusLog", st.ID)
	}

	submitTask := notifier.NotificationTask{
		Ctx:   tenant.WithOrganizationID(context.Background(), task.OrganizationID),
		OrgID: task.OrganizationID,
		Event: notifier.EventMessageStatusUpdate,
		Payload: map[string]interface{}{
			"chat_id":    chat.ID,
			"contact_id": chat.ContactID,
			"wam_id":     st.ID,
			"status":     st.Status,
		},
	}
	if err := s.notifier.Submit(submitTask); err != nil {
		// Notifications are fire and forget; never fail the status update.
		log.Warn("Failed to submit status update notification", zap.Error(err))
	}

	log.Info("Successfully applied status update", zap.Int64("chat_id", chat.ID))
	return nil
}
