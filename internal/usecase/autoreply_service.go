package usecase

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/admission"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

// ReplyGenerator produces and sends the automatic reply for a chat. The
// content generation and outbound send are out of scope here; implementations
// own both.
type ReplyGenerator interface {
	GenerateAndSend(ctx context.Context, chat *model.Chat, isNewContact bool) error
}

// NopReplyGenerator drops reply requests. Wired when no generator is
// configured for the deployment.
type NopReplyGenerator struct{}

func (NopReplyGenerator) GenerateAndSend(ctx context.Context, chat *model.Chat, isNewContact bool) error {
	logger.FromContext(ctx).Debug("Reply generator not configured, dropping auto-reply",
		zap.Int64("chat_id", chat.ID))
	return nil
}

// AutoReplyService evaluates whether a chat earns an automatic reply and
// delegates the reply itself. Tasks arrive on a delayed lane so the reply
// never races the inbound ingest.
type AutoReplyService struct {
	orgs      storage.OrganizationRepo
	chats     storage.ChatRepo
	gate      *admission.Gate
	generator ReplyGenerator
}

// NewAutoReplyService creates the auto-reply lane processor. The gate caps
// the feature by the tenant's plan message limit.
func NewAutoReplyService(orgs storage.OrganizationRepo, chats storage.ChatRepo, gate *admission.Gate, generator ReplyGenerator) *AutoReplyService {
	return &AutoReplyService{
		orgs:      orgs,
		chats:     chats,
		gate:      gate,
		generator: generator,
	}
}

// SendAutoReply runs the reply gates and delegates to the generator. Every
// gate miss is a silent skip: replies are a convenience, never owed.
func (s *AutoReplyService) SendAutoReply(ctx context.Context, task model.AutoReplyTask) error {
	log := logger.FromContext(ctx).With(zap.Int64("chat_id", task.ChatID))

	orgCtx, err := resolveOrgContext(ctx, s.orgs, task.OrganizationID)
	if err != nil {
		return err
	}
	if !orgCtx.HasWhatsAppConfig() {
		log.Info("Skipping auto-reply: organization has no Cloud API credentials")
		return nil
	}
	if !s.gate.Allow(ctx, orgCtx) {
		log.Info("Skipping auto-reply: plan message limit reached")
		return nil
	}

	msg, err := model.ParseInboundMessage(task.RawMessage)
	if err != nil {
		log.Error("Failed to decode auto-reply message payload", zap.Error(err))
		return apperrors.NewFatal(apperrors.ErrMalformedPayload, "auto-reply message decode failed")
	}
	if !msg.ShouldAutoReply() {
		log.Debug("Skipping auto-reply: unsupported message type", zap.String("type", msg.Type))
		return nil
	}

	chat, err := s.chats.FindByID(ctx, task.ChatID)
	if err != nil {
		return handleRepositoryError(ctx, err, "FindChatByID", msg.ID)
	}

	if err := s.generator.GenerateAndSend(ctx, chat, task.IsNewContact); err != nil {
		log.Error("Reply generator failed", zap.Error(err))
		return apperrors.NewRetryable(err, "auto-reply generation failed")
	}

	log.Info("Successfully dispatched auto-reply", zap.Bool("new_contact", task.IsNewContact))
	return nil
}
