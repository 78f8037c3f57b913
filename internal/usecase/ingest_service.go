package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/cache"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/observer"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/validator"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// IngestService turns one queued inbound message into contact and chat rows
// plus the follow-up effect commands. It performs no scheduling itself.
type IngestService struct {
	orgs     storage.OrganizationRepo
	contacts storage.ContactRepo
	chats    storage.ChatRepo
	dedup    *cache.DedupCache
}

// NewIngestService creates the inbound message ingestor.
func NewIngestService(
	orgs storage.OrganizationRepo,
	contacts storage.ContactRepo,
	chats storage.ChatRepo,
	dedup *cache.DedupCache,
) *IngestService {
	return &IngestService{
		orgs:     orgs,
		contacts: contacts,
		chats:    chats,
		dedup:    dedup,
	}
}

// ProcessMessage ingests one inbound message. Duplicate deliveries are a
// normal outcome and return no effects. The returned effects are commands for
// the dispatcher: ticket assignment, media download, auto-reply scheduling and
// the received notification (deferred for media messages until the attachment
// is linked).
func (s *IngestService) ProcessMessage(ctx context.Context, task model.IngestTask) ([]model.Effect, error) {
	log := logger.FromContext(ctx)

	msg, err := model.ParseInboundMessage(task.RawMessage)
	if err != nil {
		log.Error("Failed to decode inbound message payload", zap.Error(err))
		return nil, apperrors.NewFatal(apperrors.ErrMalformedPayload, "inbound message decode failed")
	}
	if msg.ID == "" || msg.From == "" {
		log.Warn("Skipping inbound message without id or sender",
			zap.String("wam_id", msg.ID),
			zap.String("type", msg.Type),
		)
		return nil, apperrors.NewFatal(apperrors.ErrMalformedPayload, "inbound message missing id or sender")
	}
	log = log.With(zap.String("wam_id", msg.ID))

	// First dedup tier: the in-process cache. The unique constraint on
	// (organization_id, wam_id) remains the authority under races.
	if s.dedup.Seen(task.OrganizationID, msg.ID) {
		observer.IncDedupSkip(task.OrganizationID)
		log.Info("Skipping duplicate inbound message (cache hit)")
		return nil, nil
	}

	orgCtx, err := resolveOrgContext(ctx, s.orgs, task.OrganizationID)
	if err != nil {
		return nil, err
	}

	// Second dedup tier: the DB lookup catches duplicates that outlived the
	// cache TTL or arrived on another instance.
	if existing, err := s.chats.FindByWamID(ctx, msg.ID); err == nil && existing != nil {
		s.dedup.Mark(task.OrganizationID, msg.ID)
		observer.IncDedupSkip(task.OrganizationID)
		log.Info("Skipping duplicate inbound message (already stored)", zap.Int64("chat_id", existing.ID))
		return nil, nil
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, handleRepositoryError(ctx, err, "FindChatByWamID", msg.ID)
	}

	contact, isNewContact, err := s.resolveContact(ctx, &msg, task.Contacts)
	if err != nil {
		return nil, err
	}

	now := orgCtx.Now()
	// The chat carries the time the customer sent the message, not the time
	// this instance got around to processing it. Payloads without a usable
	// timestamp fall back to the tenant-local clock.
	createdAt := now
	if sent := utils.ParseUnixString(msg.Timestamp); !sent.IsZero() {
		createdAt = utils.InZone(sent, orgCtx.Timezone)
	}
	chat := model.Chat{
		OrganizationID: task.OrganizationID,
		WamID:          msg.ID,
		ContactID:      contact.ID,
		Type:           model.ChatTypeInbound,
		Status:         model.ChatStatusDelivered,
		IsRead:         false,
		Metadata:       datatypes.JSON(task.RawMessage),
		CreatedAt:      createdAt,
	}
	if err := validator.Validate(chat); err != nil {
		log.Error("Validation failed for inbound chat row", zap.Error(err))
		return nil, apperrors.NewFatal(err, "validation failed for inbound chat")
	}
	if err := s.chats.Save(ctx, &chat); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			// Lost the insert race to a concurrent redelivery.
			s.dedup.Mark(task.OrganizationID, msg.ID)
			observer.IncDedupSkip(task.OrganizationID)
			log.Info("Skipping duplicate inbound message (insert race)")
			return nil, nil
		}
		return nil, handleRepositoryError(ctx, err, "SaveChat", msg.ID)
	}
	s.dedup.Mark(task.OrganizationID, msg.ID)

	// Timeline row and denormalized sort key are best effort: the chat row is
	// committed and a redelivery would only skip as a duplicate.
	chatLog := model.NewChatLog(contact.ID, model.ChatRef(chat.ID), now)
	if err := s.chats.SaveChatLog(ctx, &chatLog); err != nil {
		log.Warn("Failed to append chat timeline entry", zap.Int64("chat_id", chat.ID), zap.Error(err))
	}
	if err := s.contacts.TouchLatestChat(ctx, contact.ID, now); err != nil {
		log.Warn("Failed to refresh contact latest chat timestamp", zap.Int64("contact_id", contact.ID), zap.Error(err))
	}

	effects := s.buildEffects(orgCtx, &msg, task, chat, contact, isNewContact)

	log.Info("Successfully ingested inbound message",
		zap.Int64("chat_id", chat.ID),
		zap.Int64("contact_id", contact.ID),
		zap.String("type", msg.Type),
		zap.Bool("new_contact", isNewContact),
		zap.Int("effects", len(effects)),
	)
	return effects, nil
}

// resolveContact finds or creates the sender's contact row and backfills the
// profile name when the row has none yet.
func (s *IngestService) resolveContact(ctx context.Context, msg *model.InboundMessage, hints []model.ContactHint) (*model.Contact, bool, error) {
	log := logger.FromContext(ctx)
	phone := normalizePhone(msg.From)
	profileName := hintName(msg.From, hints)

	contact, err := s.contacts.FindByPhone(ctx, phone)
	if err == nil {
		if contact.FirstName == "" && profileName != "" {
			contact.FirstName = profileName
			if saveErr := s.contacts.Save(ctx, contact); saveErr != nil {
				log.Warn("Failed to backfill contact name", zap.Int64("contact_id", contact.ID), zap.Error(saveErr))
			}
		}
		return contact, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, handleRepositoryError(ctx, err, "FindContactByPhone", phone)
	}

	contact = &model.Contact{
		Phone:     phone,
		FirstName: profileName,
	}
	if err := s.contacts.Save(ctx, contact); err != nil {
		return nil, false, handleRepositoryError(ctx, err, "SaveContact", phone)
	}
	log.Info("Created contact for new sender", zap.Int64("contact_id", contact.ID))
	return contact, true, nil
}

func (s *IngestService) buildEffects(
	orgCtx model.OrgContext,
	msg *model.InboundMessage,
	task model.IngestTask,
	chat model.Chat,
	contact *model.Contact,
	isNewContact bool,
) []model.Effect {
	var effects []model.Effect

	if orgCtx.Meta.Tickets.Active {
		effects = append(effects, model.AssignTicketEffect(model.TicketTask{
			OrganizationID: task.OrganizationID,
			ContactID:      contact.ID,
		}))
	}

	hasMedia := false
	if ref := msg.Media(); ref != nil {
		hasMedia = true
		effects = append(effects, model.FetchMediaEffect(model.MediaTask{
			OrganizationID: task.OrganizationID,
			ChatID:         chat.ID,
			ContactID:      contact.ID,
			MediaID:        ref.ID,
			MediaType:      ref.MimeType,
			MediaName:      msg.MediaName(),
		}))
	}

	if msg.ShouldAutoReply() && orgCtx.HasWhatsAppConfig() {
		effects = append(effects, model.ScheduleAutoReplyEffect(model.AutoReplyTask{
			OrganizationID: task.OrganizationID,
			ContactID:      contact.ID,
			ChatID:         chat.ID,
			RawMessage:     task.RawMessage,
			IsNewContact:   isNewContact,
		}))
	}

	// Media messages defer their received notification until the attachment
	// is downloaded and linked; the media lane emits it then.
	if !hasMedia {
		effects = append(effects, model.NotifyReceivedEffect(model.ReceivedNotification{
			OrganizationID: task.OrganizationID,
			ChatID:         chat.ID,
			ContactID:      contact.ID,
		}))
	}

	return effects
}

// normalizePhone best-effort normalizes a sender id to E.164. Cloud API
// senders arrive as bare digit strings, so a missing + is always coerced;
// values the library cannot validate keep the coerced form so a weird number
// still gets a contact row under a stable key.
func normalizePhone(raw string) string {
	candidate := raw
	if !strings.HasPrefix(candidate, "+") {
		candidate = "+" + candidate
	}
	num, err := phonenumbers.Parse(candidate, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return candidate
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// hintName picks the profile name delivered alongside the message, preferring
// the hint whose wa_id matches the sender.
func hintName(from string, hints []model.ContactHint) string {
	for _, hint := range hints {
		if hint.WaID == from {
			return hint.Profile.Name
		}
	}
	if len(hints) > 0 {
		return hints[0].Profile.Name
	}
	return ""
}
