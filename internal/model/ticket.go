package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"

	TicketOpenedNarrative   = "Conversation was opened"
	TicketReopenedNarrative = "Conversation was moved from closed to open"
)

// ChatTicket is the support-ticket state for a contact's conversation.
// At most one row exists per contact; it cycles open -> closed -> open.
type ChatTicket struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID  int64      `json:"contact_id" gorm:"column:contact_id;uniqueIndex;index:idx_tickets_contact_status" validate:"required"`
	AssignedTo *int64     `json:"assigned_to,omitempty" gorm:"column:assigned_to;index"`
	Status     string     `json:"status" gorm:"type:text;index:idx_tickets_contact_status" validate:"required,oneof=open closed"`
	CreatedAt  time.Time  `json:"created_at,omitempty" gorm:"column:created_at"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty" gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM.
func (ChatTicket) TableName() string {
	return "chat_tickets"
}

// ChatTicketLog is the append-only ticket-state-transition narrative.
type ChatTicketLog struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ContactID   int64     `json:"contact_id" gorm:"column:contact_id;index" validate:"required"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"column:created_at"`
}

// TableName specifies the table name for GORM.
func (ChatTicketLog) TableName() string {
	return "chat_ticket_logs"
}

// Agent is a team member eligible for ticket assignment within an organization.
type Agent struct {
	ID             int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrganizationID int64          `json:"organization_id" gorm:"column:organization_id;index" validate:"required"`
	UserID         int64          `json:"user_id" gorm:"column:user_id" validate:"required"`
	Name           string         `json:"name,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

// TableName specifies the table name for GORM.
func (Agent) TableName() string {
	return "agents"
}

// AgentLoad pairs an agent with its current open-ticket count for the
// least-loaded assignment query.
type AgentLoad struct {
	UserID      int64 `json:"user_id" gorm:"column:user_id"`
	OpenTickets int64 `json:"open_tickets" gorm:"column:open_tickets"`
}
