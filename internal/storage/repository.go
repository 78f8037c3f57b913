package storage

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
)

// OrganizationRepo defines organization storage operations. Lookup by
// identifier runs before any tenant context exists; everything else expects
// the organization id in the context.
type OrganizationRepo interface {
	FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error)
	FindByID(ctx context.Context, id int64) (*model.Organization, error)
	UpdateMetadata(ctx context.Context, id int64, metadata datatypes.JSON) error
	CountInboundChatsSince(ctx context.Context, since time.Time) (int64, error)
	Close(ctx context.Context) error
}

// ContactRepo defines contact storage operations
type ContactRepo interface {
	Save(ctx context.Context, contact *model.Contact) error
	FindByID(ctx context.Context, id int64) (*model.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
	TouchLatestChat(ctx context.Context, contactID int64, at time.Time) error
	Close(ctx context.Context) error
}

// ChatRepo defines chat, chat media and status log storage operations
type ChatRepo interface {
	Save(ctx context.Context, chat *model.Chat) error
	FindByID(ctx context.Context, id int64) (*model.Chat, error)
	FindByWamID(ctx context.Context, wamID string) (*model.Chat, error)
	SaveMedia(ctx context.Context, media *model.ChatMedia) error
	LinkMedia(ctx context.Context, chatID, mediaID int64) error
	UpdateStatusByWamID(ctx context.Context, wamID, status string) (*model.Chat, error)
	SaveStatusLog(ctx context.Context, entry *model.ChatStatusLog) error
	SaveChatLog(ctx context.Context, entry *model.ChatLog) error
	Close(ctx context.Context) error
}

// TicketAssignment reports what the assignment transaction did for a contact.
type TicketAssignment struct {
	Ticket    model.ChatTicket
	Narrative string
	Created   bool
	Reopened  bool
}

// TicketRepo defines ticket storage operations. AssignForContact runs the
// whole assignment inside one transaction with the contact's ticket row
// locked, so concurrent messages from the same contact serialize.
type TicketRepo interface {
	AssignForContact(ctx context.Context, contactID int64, settings model.TicketSettings) (*TicketAssignment, error)
	Close(ctx context.Context) error
}

// TemplateRepo defines template status storage operations
type TemplateRepo interface {
	UpdateStatusByMetaID(ctx context.Context, metaID int64, status string) (*model.Template, error)
	Close(ctx context.Context) error
}

// EndpointRepo defines outbound webhook endpoint lookups
type EndpointRepo interface {
	FindActiveByEvent(ctx context.Context, event string) ([]model.WebhookEndpoint, error)
	Close(ctx context.Context) error
}
