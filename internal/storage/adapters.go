package storage

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
)

// OrganizationRepoAdapter adapts the PostgresRepo to the OrganizationRepo interface
type OrganizationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewOrganizationRepoAdapter creates a new organization repository adapter
func NewOrganizationRepoAdapter(postgres *PostgresRepo) OrganizationRepo {
	return &OrganizationRepoAdapter{postgres: postgres}
}

func (a *OrganizationRepoAdapter) FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error) {
	return a.postgres.FindOrganizationByIdentifier(ctx, identifier)
}

func (a *OrganizationRepoAdapter) FindByID(ctx context.Context, id int64) (*model.Organization, error) {
	return a.postgres.FindOrganizationByID(ctx, id)
}

func (a *OrganizationRepoAdapter) UpdateMetadata(ctx context.Context, id int64, metadata datatypes.JSON) error {
	return a.postgres.UpdateOrganizationMetadata(ctx, id, metadata)
}

func (a *OrganizationRepoAdapter) CountInboundChatsSince(ctx context.Context, since time.Time) (int64, error) {
	return a.postgres.CountInboundChatsSince(ctx, since)
}

func (a *OrganizationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

func (a *ContactRepoAdapter) Save(ctx context.Context, contact *model.Contact) error {
	return a.postgres.SaveContact(ctx, contact)
}

func (a *ContactRepoAdapter) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

func (a *ContactRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	return a.postgres.FindContactByPhone(ctx, phone)
}

func (a *ContactRepoAdapter) TouchLatestChat(ctx context.Context, contactID int64, at time.Time) error {
	return a.postgres.TouchContactLatestChat(ctx, contactID, at)
}

func (a *ContactRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ChatRepoAdapter adapts the PostgresRepo to the ChatRepo interface
type ChatRepoAdapter struct {
	postgres *PostgresRepo
}

// NewChatRepoAdapter creates a new chat repository adapter
func NewChatRepoAdapter(postgres *PostgresRepo) ChatRepo {
	return &ChatRepoAdapter{postgres: postgres}
}

func (a *ChatRepoAdapter) Save(ctx context.Context, chat *model.Chat) error {
	return a.postgres.SaveChat(ctx, chat)
}

func (a *ChatRepoAdapter) FindByID(ctx context.Context, id int64) (*model.Chat, error) {
	return a.postgres.FindChatByID(ctx, id)
}

func (a *ChatRepoAdapter) FindByWamID(ctx context.Context, wamID string) (*model.Chat, error) {
	return a.postgres.FindChatByWamID(ctx, wamID)
}

func (a *ChatRepoAdapter) SaveMedia(ctx context.Context, media *model.ChatMedia) error {
	return a.postgres.SaveChatMedia(ctx, media)
}

func (a *ChatRepoAdapter) LinkMedia(ctx context.Context, chatID, mediaID int64) error {
	return a.postgres.LinkChatMedia(ctx, chatID, mediaID)
}

func (a *ChatRepoAdapter) UpdateStatusByWamID(ctx context.Context, wamID, status string) (*model.Chat, error) {
	return a.postgres.UpdateChatStatusByWamID(ctx, wamID, status)
}

func (a *ChatRepoAdapter) SaveStatusLog(ctx context.Context, entry *model.ChatStatusLog) error {
	return a.postgres.SaveChatStatusLog(ctx, entry)
}

func (a *ChatRepoAdapter) SaveChatLog(ctx context.Context, entry *model.ChatLog) error {
	return a.postgres.SaveChatLog(ctx, entry)
}

func (a *ChatRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// TicketRepoAdapter adapts the PostgresRepo to the TicketRepo interface
type TicketRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTicketRepoAdapter creates a new ticket repository adapter
func NewTicketRepoAdapter(postgres *PostgresRepo) TicketRepo {
	return &TicketRepoAdapter{postgres: postgres}
}

func (a *TicketRepoAdapter) AssignForContact(ctx context.Context, contactID int64, settings model.TicketSettings) (*TicketAssignment, error) {
	return a.postgres.AssignTicketForContact(ctx, contactID, settings)
}

func (a *TicketRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// TemplateRepoAdapter adapts the PostgresRepo to the TemplateRepo interface
type TemplateRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTemplateRepoAdapter creates a new template repository adapter
func NewTemplateRepoAdapter(postgres *PostgresRepo) TemplateRepo {
	return &TemplateRepoAdapter{postgres: postgres}
}

func (a *TemplateRepoAdapter) UpdateStatusByMetaID(ctx context.Context, metaID int64, status string) (*model.Template, error) {
	return a.postgres.UpdateTemplateStatusByMetaID(ctx, metaID, status)
}

func (a *TemplateRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// EndpointRepoAdapter adapts the PostgresRepo to the EndpointRepo interface
type EndpointRepoAdapter struct {
	postgres *PostgresRepo
}

// NewEndpointRepoAdapter creates a new endpoint repository adapter
func NewEndpointRepoAdapter(postgres *PostgresRepo) EndpointRepo {
	return &EndpointRepoAdapter{postgres: postgres}
}

func (a *EndpointRepoAdapter) FindActiveByEvent(ctx context.Context, event string) ([]model.WebhookEndpoint, error) {
	return a.postgres.FindActiveEndpointsByEvent(ctx, event)
}

func (a *EndpointRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ OrganizationRepo = (*OrganizationRepoAdapter)(nil)
var _ ContactRepo = (*ContactRepoAdapter)(nil)
var _ ChatRepo = (*ChatRepoAdapter)(nil)
var _ TicketRepo = (*TicketRepoAdapter)(nil)
var _ TemplateRepo = (*TemplateRepoAdapter)(nil)
var _ EndpointRepo = (*EndpointRepoAdapter)(nil)
