package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/storage"
)

// --- OrganizationRepo Mock ---

// OrganizationRepoMock mocks the OrganizationRepo interface
type OrganizationRepoMock struct {
	mock.Mock
}

func (m *OrganizationRepoMock) FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organization), args.Error(1)
}

func (m *OrganizationRepoMock) FindByID(ctx context.Context, id int64) (*model.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organization), args.Error(1)
}

func (m *OrganizationRepoMock) UpdateMetadata(ctx context.Context, id int64, metadata datatypes.JSON) error {
	args := m.Called(ctx, id, metadata)
	return args.Error(0)
}

func (m *OrganizationRepoMock) CountInboundChatsSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrganizationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

func (m *ContactRepoMock) Save(ctx context.Context, contact *model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *ContactRepoMock) FindByID(ctx context.Context, id int64) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) TouchLatestChat(ctx context.Context, contactID int64, at time.Time) error {
	args := m.Called(ctx, contactID, at)
	return args.Error(0)
}

func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ChatRepo Mock ---

// ChatRepoMock mocks the ChatRepo interface
type ChatRepoMock struct {
	mock.Mock
}

func (m *ChatRepoMock) Save(ctx context.Context, chat *model.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *ChatRepoMock) FindByID(ctx context.Context, id int64) (*model.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *ChatRepoMock) FindByWamID(ctx context.Context, wamID string) (*model.Chat, error) {
	args := m.Called(ctx, wamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *ChatRepoMock) SaveMedia(ctx context.Context, media *model.ChatMedia) error {
	args := m.Called(ctx, media)
	return args.Error(0)
}

func (m *ChatRepoMock) LinkMedia(ctx context.Context, chatID, mediaID int64) error {
	args := m.Called(ctx, chatID, mediaID)
	return args.Error(0)
}

func (m *ChatRepoMock) UpdateStatusByWamID(ctx context.Context, wamID, status string) (*model.Chat, error) {
	args := m.Called(ctx, wamID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *ChatRepoMock) SaveStatusLog(ctx context.Context, entry *model.ChatStatusLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ChatRepoMock) SaveChatLog(ctx context.Context, entry *model.ChatLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ChatRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- TicketRepo Mock ---

// TicketRepoMock mocks the TicketRepo interface
type TicketRepoMock struct {
	mock.Mock
}

func (m *TicketRepoMock) AssignForContact(ctx context.Context, contactID int64, settings model.TicketSettings) (*storage.TicketAssignment, error) {
	args := m.Called(ctx, contactID, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.TicketAssignment), args.Error(1)
}

func (m *TicketRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- TemplateRepo Mock ---

// TemplateRepoMock mocks the TemplateRepo interface
type TemplateRepoMock struct {
	mock.Mock
}

func (m *TemplateRepoMock) UpdateStatusByMetaID(ctx context.Context, metaID int64, status string) (*model.Template, error) {
	args := m.Called(ctx, metaID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *TemplateRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- EndpointRepo Mock ---

// EndpointRepoMock mocks the EndpointRepo interface
type EndpointRepoMock struct {
	mock.Mock
}

func (m *EndpointRepoMock) FindActiveByEvent(ctx context.Context, event string) ([]model.WebhookEndpoint, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookEndpoint), args.Error(1)
}

func (m *EndpointRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Ensure mocks implement the interfaces
var _ storage.OrganizationRepo = (*OrganizationRepoMock)(nil)
var _ storage.ContactRepo = (*ContactRepoMock)(nil)
var _ storage.ChatRepo = (*ChatRepoMock)(nil)
var _ storage.TicketRepo = (*TicketRepoMock)(nil)
var _ storage.TemplateRepo = (*TemplateRepoMock)(nil)
var _ storage.EndpointRepo = (*EndpointRepoMock)(nil)
