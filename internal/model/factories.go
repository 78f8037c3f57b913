package model

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// Test fixture factories. Callers overwrite the fields their assertions
// depend on.

func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewFakeContact creates a Contact with default fake data.
func NewFakeContact() *Contact {
	return &Contact{
		Phone:     fmt.Sprintf("+62%d", gofakeit.Number(811000000000, 899999999999)),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}
}

// NewFakeChat creates an inbound Chat with default fake data.
func NewFakeChat() *Chat {
	body := utils.MustMarshalJSON(map[string]interface{}{
		"id":   "wamid." + gofakeit.LetterN(24),
		"type": "text",
		"text": map[string]string{"body": gofakeit.Sentence(5)},
	})
	return &Chat{
		WamID:     "wamid." + gofakeit.LetterN(24),
		Type:      ChatTypeInbound,
		Status:    ChatStatusDelivered,
		Metadata:  body,
		CreatedAt: utils.Now(),
		UpdatedAt: utils.Now(),
	}
}

// NewFakeOrganization creates an Organization with a usable metadata blob.
func NewFakeOrganization() *Organization {
	meta := utils.MustMarshalJSON(OrganizationMetadata{
		WhatsApp: WhatsAppConfig{
			AccessToken:   gofakeit.UUID(),
			AppSecret:     gofakeit.UUID(),
			PhoneNumberID: fmt.Sprintf("%d", gofakeit.Number(100000000000000, 999999999999999)),
		},
		Storage: StorageSettings{System: "local"},
	})
	return &Organization{
		Identifier: gofakeit.LetterN(16),
		Name:       gofakeit.Company(),
		Timezone:   "Asia/Jakarta",
		Metadata:   meta,
	}
}
