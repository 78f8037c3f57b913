package model

import (
	"encoding/json"
)

// Webhook change `field` discriminators from the Cloud API.
const (
	FieldMessages              = "messages"
	FieldTemplateStatusUpdate  = "message_template_status_update"
	FieldAccountReviewUpdate   = "account_review_update"
	FieldPhoneNumberNameUpdate = "phone_number_name_update"
	FieldPhoneQualityUpdate    = "phone_number_quality_update"
	FieldBusinessCapability    = "business_capability_update"
)

// EventKind is the classified type of one webhook change.
type EventKind string

const (
	KindMessages       EventKind = "messages"
	KindTemplateStatus EventKind = "template_status"
	KindAccountUpdate  EventKind = "account_update"
	KindUnhandled      EventKind = "unhandled"
)

// Notification is the top-level webhook POST body. Payloads may batch
// multiple entries and changes; all of them are processed.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-scoped batch of changes.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one field-discriminated event value.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue is the union of the value shapes the pipeline consumes.
// Messages and statuses are kept as raw JSON so chats and status logs store
// the upstream payload verbatim.
type ChangeValue struct {
	MessagingProduct string            `json:"messaging_product,omitempty"`
	Contacts         []ContactHint     `json:"contacts,omitempty"`
	Messages         []json.RawMessage `json:"messages,omitempty"`
	Statuses         []json.RawMessage `json:"statuses,omitempty"`

	// Template status updates.
	MessageTemplateID int64  `json:"message_template_id,omitempty"`
	Event             string `json:"event,omitempty"`

	// Account, name, quality and capability updates.
	Decision                     string `json:"decision,omitempty"`
	RequestedVerifiedName        string `json:"requested_verified_name,omitempty"`
	CurrentLimit                 string `json:"current_limit,omitempty"`
	MaxDailyConversationPerPhone int64  `json:"max_daily_conversation_per_phone,omitempty"`
	MaxPhoneNumbersPerBusiness   int64  `json:"max_phone_numbers_per_business,omitempty"`
}

// ContactHint is the sender profile hint delivered alongside inbound messages.
type ContactHint struct {
	WaID    string         `json:"wa_id,omitempty"`
	Profile ContactProfile `json:"profile"`
}

// ContactProfile carries the sender's display name.
type ContactProfile struct {
	Name string `json:"name,omitempty"`
}

// Message types the reply generator supports.
var autoReplyTypes = map[string]struct{}{
	"text": {}, "button": {}, "audio": {}, "interactive": {},
}

// Media-bearing message types.
var mediaTypes = map[string]struct{}{
	"image": {}, "video": {}, "audio": {}, "document": {}, "sticker": {},
}

// InboundMessage is the typed view over one raw inbound message.
type InboundMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp,omitempty"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text,omitempty"`
	Image     *MediaRef `json:"image,omitempty"`
	Video     *MediaRef `json:"video,omitempty"`
	Audio     *MediaRef `json:"audio,omitempty"`
	Document  *MediaRef `json:"document,omitempty"`
	Sticker   *MediaRef `json:"sticker,omitempty"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body,omitempty"`
}

// MediaRef references an upstream media object inside a message.
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ParseInboundMessage decodes one raw message payload.
func ParseInboundMessage(raw json.RawMessage) (InboundMessage, error) {
	var msg InboundMessage
	err := json.Unmarshal(raw, &msg)
	return msg, err
}

// HasMedia reports whether the message type carries a downloadable binary.
func (m *InboundMessage) HasMedia() bool {
	_, ok := mediaTypes[m.Type]
	return ok
}

// ShouldAutoReply reports whether the message type is renderable content the
// reply generator supports.
func (m *InboundMessage) ShouldAutoReply() bool {
	_, ok := autoReplyTypes[m.Type]
	return ok
}

// Media returns the media reference matching the message type, if any.
func (m *InboundMessage) Media() *MediaRef {
	switch m.Type {
	case "image":
		return m.Image
	case "video":
		return m.Video
	case "audio":
		return m.Audio
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	}
	return nil
}

// MediaName returns the display name for the stored attachment: documents
// prefer their filename, everything else its caption.
func (m *InboundMessage) MediaName() string {
	ref := m.Media()
	if ref == nil {
		return ""
	}
	if m.Type == "document" && ref.Filename != "" {
		return ref.Filename
	}
	if ref.Caption != "" {
		return ref.Caption
	}
	return "N/A"
}

// StatusUpdate is the typed view over one raw status payload.
type StatusUpdate struct {
	ID          string `json:"id"` // wam_id of the message the status describes
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

// ParseStatusUpdate decodes one raw status payload.
func ParseStatusUpdate(raw json.RawMessage) (StatusUpdate, error) {
	var st StatusUpdate
	err := json.Unmarshal(raw, &st)
	return st, err
}
