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

// UpdateTemplateStatusByMetaID moves a template to a new review status and
// returns the updated row. Unknown templates map to apperrors.ErrNotFound so
// the caller can skip them.
func (r *PostgresRepo) UpdateTemplateStatusByMetaID(ctx context.Context, metaID int64, status string) (*model.Template, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var template model.Template
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("meta_id = ? AND organization_id = ?", metaID, orgID).
			First(&template)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}

		updateResult := r.db.WithContext(ctx).Model(&template).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		})
		if updateResult.Error != nil {
			return checkConstraintViolation(updateResult.Error)
		}
		template.Status = status
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateTemplateStatusByMetaID Commit", operation)
	observer.ObserveDbOperationDuration("update", "template", orgID, time.Since(startTime), commitErr)

	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to update template status after retries",
			zap.Int64("meta_id", metaID),
			zap.String("status", status),
			zap.Error(commitErr))
		return nil, commitErr
	}

	return &template, nil
}

// FindActiveEndpointsByEvent lists active outbound webhook endpoints
// subscribed to an event for the tenant in context
func (r *PostgresRepo) FindActiveEndpointsByEvent(ctx context.Context, event string) ([]model.WebhookEndpoint, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get organization ID: %w", apperrors.ErrForbidden, err)
	}

	var endpoints []model.WebhookEndpoint
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("organization_id = ? AND event = ? AND active = ?", orgID, event, true).
			Find(&endpoints)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindActiveEndpointsByEvent", operation)
	observer.ObserveDbOperationDuration("find", "webhook_endpoint", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to find webhook endpoints after retries",
			zap.String("event", event),
			zap.Error(findErr))
		return nil, findErr
	}

	return endpoints, nil
}
