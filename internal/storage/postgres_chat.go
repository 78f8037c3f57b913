package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// SaveChat inserts a chat row. The unique index on (organization_id, wam_id)
// is the final dedup authority: a second insert for the same message id maps
// to apperrors.ErrDuplicate.
func (r *PostgresRepo) SaveChat(ctx context.Context, chat *model.Chat) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	if chat.OrganizationID == 0 {
		chat.OrganizationID = orgID
	}
	if orgID != chat.OrganizationID {
		return fmt.Errorf("%w: chat OrganizationID %d does not match tenant ID %d", apperrors.ErrBadRequest, chat.OrganizationID, orgID)
	}

	chat.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Create(chat)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveChat Commit", operation)
	observer.ObserveDbOperationDuration("insert", "chat", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrDuplicate) {
			return commitErr
		}
		logger.FromContext(ctx).Error("Failed to save chat after retries", zap.String("wam_id", chat.WamID), zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindChatByID finds a chat by primary key within the tenant context
func (r *PostgresRepo) FindChatByID(ctx context.Context, id int64) (*model.Chat, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var chat model.Chat
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&chat)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindChatByID", operation)
	observer.ObserveDbOperationDuration("find", "chat", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find chat by id after retries",
			zap.Int64("chat_id", id),
			zap.Int64("organization_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}

	return &chat, nil
}

// FindChatByWamID finds a chat by message id within the tenant context
func (r *PostgresRepo) FindChatByWamID(ctx context.Context, wamID string) (*model.Chat, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var chat model.Chat
	operation := func() error {
		result := r.db.WithContext(ctx).Where("wam_id = ? AND organization_id = ?", wamID, orgID).First(&chat)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindChatByWamID", operation)
	observer.ObserveDbOperationDuration("find", "chat", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find chat by wam_id after retries",
			zap.String("wam_id", wamID),
			zap.Int64("organization_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}

	return &chat, nil
}

// SaveChatMedia stores a media record and writes the generated id back
func (r *PostgresRepo) SaveChatMedia(ctx context.Context, media *model.ChatMedia) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(media)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveChatMedia Commit", operation)
	observer.ObserveDbOperationDuration("insert", "chat_media", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save chat media after retries", zap.String("path", media.Path), zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// LinkChatMedia points a chat at its stored media row
func (r *PostgresRepo) LinkChatMedia(ctx context.Context, chatID, mediaID int64) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Chat{}).
			Where("id = ? AND organization_id = ?", chatID, orgID).
			Updates(map[string]interface{}{
				"media_id":   mediaID,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: chat %d not found for media link", apperrors.ErrNotFound, chatID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "LinkChatMedia Commit", operation)
	observer.ObserveDbOperationDuration("update", "chat", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to link chat media after retries",
			zap.Int64("chat_id", chatID),
			zap.Int64("media_id", mediaID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// UpdateChatStatusByWamID moves a chat to a new delivery status and returns
// the updated row. The row is locked so concurrent status updates for the
// same message serialize.
func (r *PostgresRepo) UpdateChatStatusByWamID(ctx context.Context, wamID, status string) (*model.Chat, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var chat model.Chat
	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("wam_id = ? AND organization_id = ?", wamID, orgID).
			First(&chat)
		if findErr := result.Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: chat not found for status update (wam_id: %s)", apperrors.ErrNotFound, wamID)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock chat row for status update: %w", apperrors.ErrDatabase, findErr)
			return txErr
		}

		updateFields := map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		}
		if status == model.ChatStatusRead {
			updateFields["is_read"] = true
		}

		if updateErr := tx.Model(&chat).Updates(updateFields).Error; updateErr != nil {
			txErr = checkConstraintViolation(updateErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = checkConstraintViolation(commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateChatStatusByWamID Commit", operation)
	observer.ObserveDbOperationDuration("update", "chat", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to update chat status after retries",
			zap.String("wam_id", wamID),
			zap.String("status", status),
			zap.Error(commitErr))
		return nil, commitErr
	}

	return &chat, nil
}

// SaveChatStatusLog appends one raw status payload for a chat
func (r *PostgresRepo) SaveChatStatusLog(ctx context.Context, entry *model.ChatStatusLog) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveChatStatusLog Commit", operation)
	observer.ObserveDbOperationDuration("insert", "chat_status_log", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save chat status log after retries",
			zap.Int64("chat_id", entry.ChatID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// SaveChatLog appends one feed entry for a contact
func (r *PostgresRepo) SaveChatLog(ctx context.Context, entry *model.ChatLog) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveChatLog Commit", operation)
	observer.ObserveDbOperationDuration("insert", "chat_log", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save chat log after retries",
			zap.Int64("contact_id", entry.ContactID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}
