package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LogEntryKind discriminates the timeline entry variants.
type LogEntryKind string

const (
	LogEntryChat   LogEntryKind = "chat"
	LogEntryTicket LogEntryKind = "ticket"
)

// LogEntry is the tagged variant a ChatLog row points at: either a Chat or a
// ChatTicketLog. Constructing one through ChatRef/TicketRef keeps the kind and
// id consistent.
type LogEntry struct {
	Kind LogEntryKind
	ID   int64
}

// ChatRef builds a chat-variant log entry.
func ChatRef(chatID int64) LogEntry {
	return LogEntry{Kind: LogEntryChat, ID: chatID}
}

// TicketRef builds a ticket-log-variant log entry.
func TicketRef(ticketLogID int64) LogEntry {
	return LogEntry{Kind: LogEntryTicket, ID: ticketLogID}
}

// LogEntryResolver resolves one variant of a LogEntry to its feed payload.
type LogEntryResolver func(entry LogEntry) (interface{}, error)

// LogEntryResolverTable dispatches a LogEntry to the resolver registered for
// its kind. Unknown kinds are an error, not a silent fallthrough.
type LogEntryResolverTable map[LogEntryKind]LogEntryResolver

// Resolve dispatches the entry through the table.
func (t LogEntryResolverTable) Resolve(entry LogEntry) (interface{}, error) {
	resolver, ok := t[entry.Kind]
	if !ok {
		return nil, fmt.Errorf("no resolver registered for log entry kind %q", entry.Kind)
	}
	return resolver(entry)
}

// ChatLog is the append-only polymorphic timeline row backing a contact's
// unified activity feed, created alongside each chat and ticket transition.
type ChatLog struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID  int64          `json:"contact_id" gorm:"column:contact_id;index" validate:"required"`
	EntityKind LogEntryKind   `json:"entity_type" gorm:"column:entity_type;type:text" validate:"required"`
	EntityID   int64          `json:"entity_id" gorm:"column:entity_id" validate:"required"`
	CreatedAt  time.Time      `json:"created_at,omitempty" gorm:"column:created_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

// TableName specifies the table name for GORM.
func (ChatLog) TableName() string {
	return "chat_logs"
}

// Entry returns the row's tagged variant.
func (l *ChatLog) Entry() LogEntry {
	return LogEntry{Kind: l.EntityKind, ID: l.EntityID}
}

// NewChatLog builds a timeline row from a tagged entry.
func NewChatLog(contactID int64, entry LogEntry, createdAt time.Time) ChatLog {
	return ChatLog{
		ContactID:  contactID,
		EntityKind: entry.Kind,
		EntityID:   entry.ID,
		CreatedAt:  createdAt,
	}
}
