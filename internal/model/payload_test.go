package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInboundMessage(t *testing.T) {
	t.Run("Text message", func(t *testing.T) {
		raw := []byte(`{"id":"wamid.ABC","from":"628123456789","type":"text","text":{"body":"halo"}}`)
		msg, err := ParseInboundMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, "wamid.ABC", msg.ID)
		assert.Equal(t, "628123456789", msg.From)
		assert.Equal(t, "text", msg.Type)
		require.NotNil(t, msg.Text)
		assert.Equal(t, "halo", msg.Text.Body)
	})

	t.Run("Image message", func(t *testing.T) {
		raw := []byte(`{"id":"wamid.IMG","from":"628123456789","type":"image","image":{"id":"MEDIA_1","mime_type":"image/jpeg","caption":"foto"}}`)
		msg, err := ParseInboundMessage(raw)
		require.NoError(t, err)
		require.NotNil(t, msg.Image)
		assert.Equal(t, "MEDIA_1", msg.Image.ID)
		assert.Equal(t, "image/jpeg", msg.Image.MimeType)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		_, err := ParseInboundMessage([]byte(`{not json`))
		assert.Error(t, err)
	})
}

func TestInboundMessage_HasMedia(t *testing.T) {
	cases := map[string]bool{
		"image":       true,
		"video":       true,
		"audio":       true,
		"document":    true,
		"sticker":     true,
		"text":        false,
		"button":      false,
		"interactive": false,
		"reaction":    false,
		"":            false,
	}
	for msgType, expected := range cases {
		msg := InboundMessage{Type: msgType}
		assert.Equal(t, expected, msg.HasMedia(), "type %q", msgType)
	}
}

func TestInboundMessage_ShouldAutoReply(t *testing.T) {
	cases := map[string]bool{
		"text":        true,
		"button":      true,
		"audio":       true,
		"interactive": true,
		"image":       false,
		"video":       false,
		"document":    false,
		"sticker":     false,
		"reaction":    false,
	}
	for msgType, expected := range cases {
		msg := InboundMessage{Type: msgType}
		assert.Equal(t, expected, msg.ShouldAutoReply(), "type %q", msgType)
	}
}

func TestInboundMessage_Media(t *testing.T) {
	image := &MediaRef{ID: "IMG"}
	document := &MediaRef{ID: "DOC"}

	msg := InboundMessage{Type: "image", Image: image, Document: document}
	assert.Same(t, image, msg.Media())

	msg.Type = "document"
	assert.Same(t, document, msg.Media())

	msg.Type = "text"
	assert.Nil(t, msg.Media())
}

func TestInboundMessage_MediaName(t *testing.T) {
	t.Run("Document prefers filename", func(t *testing.T) {
		msg := InboundMessage{Type: "document", Document: &MediaRef{Filename: "invoice.pdf", Caption: "caption"}}
		assert.Equal(t, "invoice.pdf", msg.MediaName())
	})

	t.Run("Image uses caption", func(t *testing.T) {
		msg := InboundMessage{Type: "image", Image: &MediaRef{Caption: "foto"}}
		assert.Equal(t, "foto", msg.MediaName())
	})

	t.Run("Missing caption falls back to placeholder", func(t *testing.T) {
		msg := InboundMessage{Type: "sticker", Sticker: &MediaRef{ID: "STK"}}
		assert.Equal(t, "N/A", msg.MediaName())
	})

	t.Run("Non-media message has no name", func(t *testing.T) {
		msg := InboundMessage{Type: "text"}
		assert.Empty(t, msg.MediaName())
	})
}

func TestParseStatusUpdate(t *testing.T) {
	raw := []byte(`{"id":"wamid.ABC","status":"delivered","recipient_id":"628123456789"}`)
	st, err := ParseStatusUpdate(raw)
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", st.ID)
	assert.Equal(t, "delivered", st.Status)
}

func TestContact_DisplayName(t *testing.T) {
	cases := []struct {
		name     string
		contact  Contact
		expected string
	}{
		{"Full name", Contact{Phone: "+62812", FirstName: "Budi", LastName: "Santoso"}, "Budi Santoso"},
		{"First name only", Contact{Phone: "+62812", FirstName: "Budi"}, "Budi"},
		{"No name falls back to phone", Contact{Phone: "+62812"}, "+62812"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.contact.DisplayName())
		})
	}
}

func TestOrganization_Context(t *testing.T) {
	t.Run("Parses metadata blob", func(t *testing.T) {
		org := Organization{
			ID:         42,
			Identifier: "route-abc",
			Timezone:   "Asia/Jakarta",
			Metadata:   []byte(`{"whatsapp":{"access_token":"token","phone_number_id":"115"},"tickets":{"active":true},"plan":{"inbound_message_limit":500}}`),
		}
		oc := org.Context()
		assert.Equal(t, int64(42), oc.ID)
		assert.True(t, oc.HasWhatsAppConfig())
		assert.True(t, oc.Meta.Tickets.Active)
		assert.Equal(t, int64(500), oc.Meta.Plan.InboundMessageLimit)
	})

	t.Run("Corrupt blob behaves like unconfigured tenant", func(t *testing.T) {
		org := Organization{ID: 42, Metadata: []byte(`[1,2,3]`)}
		oc := org.Context()
		assert.False(t, oc.HasWhatsAppConfig())
		assert.False(t, oc.Meta.Tickets.Active)
	})

	t.Run("Token without phone number id is not usable", func(t *testing.T) {
		org := Organization{Metadata: []byte(`{"whatsapp":{"access_token":"token"}}`)}
		assert.False(t, org.Context().HasWhatsAppConfig())
	})
}
