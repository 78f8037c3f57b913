package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/tenant"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// FindOrganizationByIdentifier resolves a webhook route identifier to its
// organization. Runs before tenant context is established.
func (r *PostgresRepo) FindOrganizationByIdentifier(ctx context.Context, identifier string) (*model.Organization, error) {
	var org model.Organization
	operation := func() error {
		result := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&org)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOrganizationByIdentifier", operation)
	observer.ObserveDbOperationDuration("find", "organization", 0, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find organization by identifier after retries",
			zap.String("identifier", identifier),
			zap.Error(findErr))
		return nil, findErr
	}

	return &org, nil
}

// FindOrganizationByID finds an organization by primary key
func (r *PostgresRepo) FindOrganizationByID(ctx context.Context, id int64) (*model.Organization, error) {
	var org model.Organization
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&org)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOrganizationByID", operation)
	observer.ObserveDbOperationDuration("find", "organization", id, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find organization by id after retries",
			zap.Int64("organization_id", id),
			zap.Error(findErr))
		return nil, findErr
	}

	return &org, nil
}

// UpdateOrganizationMetadata replaces the organization metadata document.
// Callers merge at the key level before writing so unrelated keys survive.
func (r *PostgresRepo) UpdateOrganizationMetadata(ctx context.Context, id int64, metadata datatypes.JSON) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Organization{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"metadata":   metadata,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: organization %d not found for metadata update", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateOrganizationMetadata Commit", operation)
	observer.ObserveDbOperationDuration("update", "organization", id, time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update organization metadata after retries",
			zap.Int64("organization_id", id),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// CountInboundChatsSince counts inbound chats created at or after the given
// instant for the tenant in context. The admission gate uses this for its
// monthly window.
func (r *PostgresRepo) CountInboundChatsSince(ctx context.Context, since time.Time) (int64, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Chat{}).
			Where("organization_id = ? AND type = ? AND created_at >= ?", orgID, model.ChatTypeInbound, since).
			Count(&count)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	countErr := retryableOperation(ctx, readPolicy, "CountInboundChatsSince", operation)
	observer.ObserveDbOperationDuration("count", "chat", orgID, time.Since(startTime), countErr)

	if countErr != nil {
		logger.FromContext(ctx).Error("Failed to count inbound chats after retries",
			zap.Int64("organization_id", orgID),
			zap.Time("since", since),
			zap.Error(countErr))
		return 0, countErr
	}

	return count, nil
}
