package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/media"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// MediaFetcher resolves and downloads Cloud API media objects.
type MediaFetcher interface {
	FetchMetadata(ctx context.Context, accessToken, mediaID string) (*media.MediaObject, error)
	Download(ctx context.Context, accessToken, url string) ([]byte, error)
}

// MediaService downloads one attachment, stores it on the tenant's backend,
// links it to the chat and only then releases the received notification.
// The media lane runs a single attempt: Cloud API download URLs are
// short-lived, so a later retry would fail on an expired URL anyway.
type MediaService struct {
	orgs    storage.OrganizationRepo
	chats   storage.ChatRepo
	fetcher MediaFetcher
	local   media.Store
	s3      media.Store
}

// NewMediaService creates the media lane processor. The s3 store may be nil
// when no bucket is configured; tenants selecting it fall back to local disk.
func NewMediaService(orgs storage.OrganizationRepo, chats storage.ChatRepo, fetcher MediaFetcher, local, s3 media.Store) *MediaService {
	return &MediaService{
		orgs:    orgs,
		chats:   chats,
		fetcher: fetcher,
		local:   local,
		s3:      s3,
	}
}

// ProcessMedia fetches, stores and links one attachment.
func (s *MediaService) ProcessMedia(ctx context.Context, task model.MediaTask) ([]model.Effect, error) {
	log := logger.FromContext(ctx).With(
		zap.Int64("chat_id", task.ChatID),
		zap.String("media_id", task.MediaID),
	)
	start := utils.Now()

	orgCtx, err := resolveOrgContext(ctx, s.orgs, task.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !orgCtx.HasWhatsAppConfig() {
		log.Warn("Skipping media fetch: organization has no Cloud API credentials")
		return nil, apperrors.NewFatal(apperrors.ErrForbidden, "organization has no usable credentials")
	}
	token := orgCtx.Meta.WhatsApp.AccessToken

	obj, err := s.fetcher.FetchMetadata(ctx, token, task.MediaID)
	if err != nil {
		observer.IncMediaFetch(task.OrganizationID, "metadata_error")
		log.Error("Failed to fetch media metadata", zap.Error(err))
		return nil, apperrors.NewRetryable(err, "media metadata fetch failed")
	}

	data, err := s.fetcher.Download(ctx, token, obj.URL)
	if err != nil {
		observer.IncMediaFetch(task.OrganizationID, "download_error")
		log.Error("Failed to download media binary", zap.Error(err))
		return nil, apperrors.NewRetryable(err, "media download failed")
	}

	contentType := obj.MimeType
	if contentType == "" {
		contentType = task.MediaType
	}

	store := s.storeFor(ctx, orgCtx)
	filename := media.Filename(data, contentType)
	stored, err := store.Put(ctx, task.OrganizationID, filename, contentType, data)
	if err != nil {
		observer.IncMediaFetch(task.OrganizationID, "store_error")
		log.Error("Failed to store media binary", zap.Error(err))
		return nil, apperrors.NewRetryable(err, "media store failed")
	}

	row := model.ChatMedia{
		Name:     task.MediaName,
		Path:     stored.Path,
		Type:     contentType,
		Size:     stored.Size,
		Location: stored.Location,
	}
	if err := s.chats.SaveMedia(ctx, &row); err != nil {
		return nil, handleRepositoryError(ctx, err, "SaveChatMedia", task.MediaID)
	}
	if err := s.chats.LinkMedia(ctx, task.ChatID, row.ID); err != nil {
		return nil, handleRepositoryError(ctx, err, "LinkChatMedia", task.MediaID)
	}

	observer.IncMediaFetch(task.OrganizationID, "success")
	observer.ObserveMediaFetchDuration(task.OrganizationID, time.Since(start))
	log.Info("Successfully stored media attachment",
		zap.Int64("media_row_id", row.ID),
		zap.String("location", stored.Location),
		zap.String("size", utils.ByteCountSI(int(stored.Size))),
		zap.Duration("duration", time.Since(start)),
	)

	// The received notification was held back at ingest until the attachment
	// was linked; release it now.
	return []model.Effect{model.NotifyReceivedEffect(model.ReceivedNotification{
		OrganizationID: task.OrganizationID,
		ChatID:         task.ChatID,
		ContactID:      task.ContactID,
	})}, nil
}

func (s *MediaService) storeFor(ctx context.Context, orgCtx model.OrgContext) media.Store {
	if orgCtx.Meta.Storage.System == media.LocationAmazon {
		if s.s3 != nil {
			return s.s3
		}
		logger.FromContext(ctx).Warn("Bucket storage selected but not configured, falling back to local disk",
			zap.Int64("organization_id", orgCtx.ID))
	}
	return s.local
}
