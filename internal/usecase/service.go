package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

// --- Helper Function for Repository Error Handling ---

// handleRepositoryError maps standard apperrors from the repository layer
// to FatalError or RetryableError for the use case layer.
func handleRepositoryError(ctx context.Context, err error, operation string, entityID string) error {
	if err == nil {
		return nil
	}

	log := logger.FromContext(ctx)

	logFields := []zap.Field{
		zap.String("operation", operation),
		zap.Error(err),
	}
	if entityID != "" {
		logFields = append(logFields, zap.String("entity_id", entityID))
	}

	// Specific fatal errors (cannot be resolved by retry)
	if errors.Is(err, apperrors.ErrNotFound) {
		log.Warn("Repository operation failed: Not found", logFields...)
		return apperrors.NewFatal(err, "%s failed: resource not found", operation)
	}
	if errors.Is(err, apperrors.ErrDuplicate) {
		log.Warn("Repository operation failed: Duplicate resource", logFields...)
		return apperrors.NewFatal(err, "%s failed: duplicate resource", operation)
	}
	if errors.Is(err, apperrors.ErrBadRequest) {
		log.Warn("Repository operation failed: Bad request", logFields...)
		return apperrors.NewFatal(err, "%s failed: bad request data", operation)
	}
	if errors.Is(err, apperrors.ErrForbidden) {
		log.Error("Repository operation failed: Forbidden", logFields...)
		return apperrors.NewFatal(err, "%s failed: forbidden", operation)
	}

	// General database errors (potentially retryable)
	if errors.Is(err, apperrors.ErrDatabase) {
		log.Error("Repository operation failed: Database error", logFields...)
		return apperrors.NewRetryable(err, "%s failed: database error", operation)
	}

	// Timeout errors (retryable)
	if errors.Is(err, apperrors.ErrTimeout) {
		log.Warn("Repository operation failed: Timeout", logFields...)
		return apperrors.NewRetryable(err, "%s failed: operation timeout", operation)
	}

	// Upstream API errors (retryable; zero-retry lanes terminate on budget)
	if errors.Is(err, apperrors.ErrUpstream) {
		log.Warn("Repository operation failed: Upstream error", logFields...)
		return apperrors.NewRetryable(err, "%s failed: upstream error", operation)
	}

	// --- Default Handling ---
	// Wrap other unexpected errors as retryable; the per-lane delivery budget
	// bounds the damage if they turn out to be permanent.
	log.Error("Repository operation failed: Unexpected error", logFields...)
	return apperrors.NewRetryable(err, "%s failed: unexpected repository error", operation)
}

// resolveOrgContext loads the tenant snapshot a lane task runs under.
// A missing organization is fatal: the tenant was deleted after the task was
// queued and redelivery cannot bring it back.
func resolveOrgContext(ctx context.Context, orgs storage.OrganizationRepo, orgID int64) (model.OrgContext, error) {
	org, err := orgs.FindByID(ctx, orgID)
	if err != nil {
		return model.OrgContext{}, handleRepositoryError(ctx, err, "FindOrganizationByID", "")
	}
	return org.Context(), nil
}
