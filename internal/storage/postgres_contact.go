package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// SaveContact stores a new contact for the tenant in context. The generated
// id is written back into the passed struct.
func (r *PostgresRepo) SaveContact(ctx context.Context, contact *model.Contact) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	if contact.OrganizationID == 0 {
		contact.OrganizationID = orgID
	}
	if orgID != contact.OrganizationID {
		return fmt.Errorf("%w: contact OrganizationID %d does not match tenant ID %d", apperrors.ErrBadRequest, contact.OrganizationID, orgID)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveContact Commit", operation)
	observer.ObserveDbOperationDuration("insert", "contact", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save contact after retries", zap.String("phone", contact.Phone), zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindContactByID finds a contact by primary key within the tenant context
func (r *PostgresRepo) FindContactByID(ctx context.Context, id int64) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find contact by id after retries",
			zap.Int64("contact_id", id),
			zap.Int64("organization_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}

	return &contact, nil
}

// FindContactByPhone finds a contact by normalized phone within the tenant context
func (r *PostgresRepo) FindContactByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("phone = ? AND organization_id = ?", phone, orgID).First(&contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByPhone", operation)
	observer.ObserveDbOperationDuration("find", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find contact by phone after retries",
			zap.String("phone", phone),
			zap.Int64("organization_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}

	return &contact, nil
}

// TouchContactLatestChat bumps the contact's latest chat timestamp
func (r *PostgresRepo) TouchContactLatestChat(ctx context.Context, contactID int64, at time.Time) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Contact{}).
			Where("id = ? AND organization_id = ?", contactID, orgID).
			Updates(map[string]interface{}{
				"latest_chat_created_at": at,
				"updated_at":             utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: contact %d not found for latest chat update", apperrors.ErrNotFound, contactID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "TouchContactLatestChat Commit", operation)
	observer.ObserveDbOperationDuration("update", "contact", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to touch contact latest chat after retries",
			zap.Int64("contact_id", contactID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}
