package model

import (
	"encoding/json"
	"time"
)

// Lane names double as JetStream subject suffixes under the configured
// subject prefix.
const (
	LaneMessages    = "messages"
	LaneMedia       = "media"
	LaneTickets     = "tickets"
	LaneAutoReplies = "autoreplies"
	LaneStatus      = "status"
	LaneAccount     = "account"
)

// IngestTask is one inbound message queued for ingestion. RawMessage is the
// untouched upstream payload; Contacts carries the profile hints delivered in
// the same change value.
type IngestTask struct {
	OrganizationID int64           `json:"organization_id"`
	RawMessage     json.RawMessage `json:"raw_message"`
	Contacts       []ContactHint   `json:"contacts,omitempty"`
}

// StatusTask is one delivery status update queued for the status sink.
type StatusTask struct {
	OrganizationID int64           `json:"organization_id"`
	RawStatus      json.RawMessage `json:"raw_status"`
}

// MediaTask asks the media lane to fetch and store one attachment, link it to
// the chat and emit the deferred received notification.
type MediaTask struct {
	OrganizationID int64  `json:"organization_id"`
	ChatID         int64  `json:"chat_id"`
	ContactID      int64  `json:"contact_id"`
	MediaID        string `json:"media_id"`
	MediaType      string `json:"media_type"`
	MediaName      string `json:"media_name,omitempty"`
}

// TicketTask asks the ticket lane to run assignment for one contact.
type TicketTask struct {
	OrganizationID int64 `json:"organization_id"`
	ContactID      int64 `json:"contact_id"`
}

// AutoReplyTask asks the auto-reply lane to answer one inbound message.
// NotBefore delays delivery so the reply never races the inbound ingest.
type AutoReplyTask struct {
	OrganizationID int64           `json:"organization_id"`
	ContactID      int64           `json:"contact_id"`
	ChatID         int64           `json:"chat_id"`
	RawMessage     json.RawMessage `json:"raw_message"`
	IsNewContact   bool            `json:"is_new_contact,omitempty"`
	NotBefore      time.Time       `json:"not_before"`
}

// TemplateTask is one template status update queued for the template sink.
type TemplateTask struct {
	OrganizationID int64  `json:"organization_id"`
	MetaID         int64  `json:"meta_id"`
	Event          string `json:"event"`
}

// AccountTask is one account-level update queued for the account sink.
type AccountTask struct {
	OrganizationID int64       `json:"organization_id"`
	Field          string      `json:"field"`
	Value          ChangeValue `json:"value"`
}

// EffectKind discriminates the follow-up commands ingestion emits.
type EffectKind string

const (
	EffectFetchMedia        EffectKind = "fetch_media"
	EffectAssignTicket      EffectKind = "assign_ticket"
	EffectScheduleAutoReply EffectKind = "schedule_auto_reply"
	EffectNotifyReceived    EffectKind = "notify_received"
)

// Effect is one follow-up command produced by the ingestion core. The core
// decides, the dispatcher acts: effects are returned instead of being executed
// inline so ingestion stays a pure state transition over the database.
type Effect struct {
	Kind      EffectKind
	Media     *MediaTask
	Ticket    *TicketTask
	AutoReply *AutoReplyTask
	Notify    *ReceivedNotification
}

// ReceivedNotification is the realtime payload emitted after a chat row (and
// its media, when present) is fully persisted.
type ReceivedNotification struct {
	OrganizationID int64 `json:"organization_id"`
	ChatID         int64 `json:"chat_id"`
	ContactID      int64 `json:"contact_id"`
}

// FetchMediaEffect builds a media fetch command.
func FetchMediaEffect(task MediaTask) Effect {
	return Effect{Kind: EffectFetchMedia, Media: &task}
}

// AssignTicketEffect builds a ticket assignment command.
func AssignTicketEffect(task TicketTask) Effect {
	return Effect{Kind: EffectAssignTicket, Ticket: &task}
}

// ScheduleAutoReplyEffect builds a delayed auto-reply command.
func ScheduleAutoReplyEffect(task AutoReplyTask) Effect {
	return Effect{Kind: EffectScheduleAutoReply, AutoReply: &task}
}

// NotifyReceivedEffect builds a realtime notification command.
func NotifyReceivedEffect(n ReceivedNotification) Effect {
	return Effect{Kind: EffectNotifyReceived, Notify: &n}
}
