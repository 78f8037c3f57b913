package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/model"
)

func chatRows(id int64, wamID, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "wam_id", "contact_id", "type", "status", "is_read"}).
		AddRow(id, testOrgID, wamID, int64(3), model.ChatTypeInbound, status, false)
}

func TestSaveChat(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(`INSERT INTO "chats"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

		chat := &model.Chat{
			WamID:     "wamid.ABC",
			ContactID: 3,
			Type:      model.ChatTypeInbound,
			Status:    model.ChatStatusDelivered,
		}
		err := repo.SaveChat(tenantCtx(), chat)
		require.NoError(t, err)
		assert.Equal(t, int64(7), chat.ID)
		assert.Equal(t, testOrgID, chat.OrganizationID)
		assert.False(t, chat.UpdatedAt.IsZero())
	})

	t.Run("Unique violation maps to ErrDuplicate", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(`INSERT INTO "chats"`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_chats_org_wam"})

		err := repo.SaveChat(tenantCtx(), model.NewFakeChat())
		assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	})

	t.Run("Missing tenant is forbidden", func(t *testing.T) {
		repo, _, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		chat := &model.Chat{WamID: "wamid.ABC", ContactID: 3, Type: model.ChatTypeInbound}
		err := repo.SaveChat(context.Background(), chat)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("Tenant mismatch is rejected", func(t *testing.T) {
		repo, _, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		chat := &model.Chat{OrganizationID: 99, WamID: "wamid.ABC", ContactID: 3, Type: model.ChatTypeInbound}
		err := repo.SaveChat(tenantCtx(), chat)
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})
}

func TestFindChatByWamID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(`SELECT \* FROM "chats" WHERE \(?wam_id`).
			WillReturnRows(chatRows(7, "wamid.ABC", model.ChatStatusDelivered))

		chat, err := repo.FindChatByWamID(tenantCtx(), "wamid.ABC")
		require.NoError(t, err)
		assert.Equal(t, int64(7), chat.ID)
		assert.Equal(t, "wamid.ABC", chat.WamID)
		assert.Equal(t, testOrgID, chat.OrganizationID)
	})

	t.Run("Not found maps to ErrNotFound", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(`SELECT \* FROM "chats" WHERE \(?wam_id`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		chat, err := repo.FindChatByWamID(tenantCtx(), "wamid.MISSING")
		assert.Nil(t, chat)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Missing tenant is forbidden", func(t *testing.T) {
		repo, _, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		_, err := repo.FindChatByWamID(context.Background(), "wamid.ABC")
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestSaveChatMedia(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	t.Cleanup(teardown)

	mock.ExpectQuery(`INSERT INTO "chat_medias"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	media := &model.ChatMedia{
		Name:     "foto.jpg",
		Path:     "https://cdn.example/uploads/media/received/42/abc.jpg",
		Type:     "image/jpeg",
		Size:     2048,
		Location: "local",
	}
	err := repo.SaveChatMedia(tenantCtx(), media)
	require.NoError(t, err)
	assert.Equal(t, int64(99), media.ID)
}

func TestLinkChatMedia(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectExec(`UPDATE "chats" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.LinkChatMedia(tenantCtx(), 7, 99)
		assert.NoError(t, err)
	})

	t.Run("Unknown chat maps to ErrNotFound", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectExec(`UPDATE "chats" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.LinkChatMedia(tenantCtx(), 7, 99)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUpdateChatStatusByWamID(t *testing.T) {
	t.Run("Success locks row and commits", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "chats" WHERE \(?wam_id .*FOR UPDATE`).
			WillReturnRows(chatRows(7, "wamid.ABC", model.ChatStatusSent))
		mock.ExpectExec(`UPDATE "chats" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		chat, err := repo.UpdateChatStatusByWamID(tenantCtx(), "wamid.ABC", model.ChatStatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, int64(7), chat.ID)
	})

	t.Run("Read status also flips is_read", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "chats" WHERE \(?wam_id .*FOR UPDATE`).
			WillReturnRows(chatRows(7, "wamid.ABC", model.ChatStatusDelivered))
		mock.ExpectExec(`UPDATE "chats" SET .*"is_read"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := repo.UpdateChatStatusByWamID(tenantCtx(), "wamid.ABC", model.ChatStatusRead)
		assert.NoError(t, err)
	})

	t.Run("Unknown message rolls back with ErrNotFound", func(t *testing.T) {
		repo, mock, teardown := newMockRepo(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "chats" WHERE \(?wam_id .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		chat, err := repo.UpdateChatStatusByWamID(tenantCtx(), "wamid.MISSING", model.ChatStatusDelivered)
		assert.Nil(t, chat)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestSaveChatStatusLog(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	t.Cleanup(teardown)

	mock.ExpectQuery(`INSERT INTO "chat_status_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	entry := &model.ChatStatusLog{ChatID: 7, Metadata: []byte(`{"status":"delivered"}`)}
	err := repo.SaveChatStatusLog(tenantCtx(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(11), entry.ID)
}
