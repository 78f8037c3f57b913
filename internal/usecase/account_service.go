package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/admission"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// AccountService is the sink for template status and account-level webhook
// events. Account events mutate individual keys of the organization metadata
// blob; unrelated keys must survive, so the blob is rewritten at the map
// level rather than through a typed struct.
type AccountService struct {
	orgs      storage.OrganizationRepo
	templates storage.TemplateRepo
	gates     []*admission.Gate
}

// NewAccountService creates the account lane processor. The gates are
// invalidated when an event changes the tenant's messaging capabilities.
func NewAccountService(orgs storage.OrganizationRepo, templates storage.TemplateRepo, gates ...*admission.Gate) *AccountService {
	return &AccountService{orgs: orgs, templates: templates, gates: gates}
}

// ProcessAccountUpdate routes one queued account-lane task by its field.
func (s *AccountService) ProcessAccountUpdate(ctx context.Context, task model.AccountTask) error {
	log := logger.FromContext(ctx).With(zap.String("field", task.Field))

	switch task.Field {
	case model.FieldTemplateStatusUpdate:
		return s.applyTemplateStatus(ctx, log, task)

	case model.FieldAccountReviewUpdate:
		return s.mergeMetadata(ctx, log, task.OrganizationID, map[string]interface{}{
			"account_review_status": task.Value.Decision,
		}, false)

	case model.FieldPhoneNumberNameUpdate:
		// Name changes only land once Meta approves them.
		if task.Value.Decision != "APPROVED" {
			log.Info("Skipping name update with non-approved decision",
				zap.String("decision", task.Value.Decision))
			return nil
		}
		return s.mergeMetadata(ctx, log, task.OrganizationID, map[string]interface{}{
			"verified_name": task.Value.RequestedVerifiedName,
		}, false)

	case model.FieldPhoneQualityUpdate:
		return s.mergeMetadata(ctx, log, task.OrganizationID, map[string]interface{}{
			"messaging_limit_tier": task.Value.CurrentLimit,
		}, false)

	case model.FieldBusinessCapability:
		return s.mergeMetadata(ctx, log, task.OrganizationID, map[string]interface{}{
			"max_daily_conversation_per_phone": task.Value.MaxDailyConversationPerPhone,
			"max_phone_numbers_per_business":   task.Value.MaxPhoneNumbersPerBusiness,
		}, true)

	default:
		log.Warn("Skipping account task with unknown field")
		return nil
	}
}

// applyTemplateStatus overwrites a template's approval state by its Meta id.
// Templates created outside this pipeline may not exist locally yet; those
// events are skipped.
func (s *AccountService) applyTemplateStatus(ctx context.Context, log *zap.Logger, task model.AccountTask) error {
	if task.Value.MessageTemplateID == 0 || task.Value.Event == "" {
		log.Warn("Skipping template status update without template id or event")
		return apperrors.NewFatal(apperrors.ErrMalformedPayload, "template status missing id or event")
	}

	tmpl, err := s.templates.UpdateStatusByMetaID(ctx, task.Value.MessageTemplateID, task.Value.Event)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Info("Skipping status update for unknown template",
				zap.Int64("meta_id", task.Value.MessageTemplateID))
			return nil
		}
		return handleRepositoryError(ctx, err, "UpdateTemplateStatusByMetaID", "")
	}

	log.Info("Successfully updated template status",
		zap.Int64("template_id", tmpl.ID),
		zap.Int64("meta_id", tmpl.MetaID),
		zap.String("status", tmpl.Status),
	)
	return nil
}

// mergeMetadata read-modify-writes the whatsapp section of the organization
// metadata blob, touching only the given keys. Credentials and sibling
// sections like tickets or storage survive untouched.
func (s *AccountService) mergeMetadata(ctx context.Context, log *zap.Logger, orgID int64, keys map[string]interface{}, affectsLimits bool) error {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return handleRepositoryError(ctx, err, "FindOrganizationByID", "")
	}

	blob := map[string]interface{}{}
	if len(org.Metadata) > 0 {
		if err := utils.UnmarshalJSON(org.Metadata, &blob); err != nil {
			log.Warn("Organization metadata blob is not an object, rebuilding it", zap.Error(err))
			blob = map[string]interface{}{}
		}
	}
	wa, ok := blob["whatsapp"].(map[string]interface{})
	if !ok {
		wa = map[string]interface{}{}
	}
	for k, v := range keys {
		wa[k] = v
	}
	blob["whatsapp"] = wa

	if err := s.orgs.UpdateMetadata(ctx, orgID, datatypes.JSON(utils.MustMarshalJSON(blob))); err != nil {
		return handleRepositoryError(ctx, err, "UpdateOrganizationMetadata", "")
	}

	if affectsLimits {
		for _, gate := range s.gates {
			gate.Invalidate(orgID)
		}
	}

	log.Info("Successfully merged account update into organization settings",
		zap.Int("keys", len(keys)))
	return nil
}
