package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ChatTypeInbound  = "inbound"
	ChatTypeOutbound = "outbound"

	ChatStatusDelivered = "delivered"
	ChatStatusSent      = "sent"
	ChatStatusRead      = "read"
	ChatStatusFailed    = "failed"
)

// Chat represents one message instance. (organization_id, wam_id) is the
// dedup key: the unique constraint is the authoritative dedup point under
// concurrent webhook redelivery.
type Chat struct {
	ID             int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	OrganizationID int64  `json:"organization_id" gorm:"column:organization_id;uniqueIndex:idx_chats_org_wam;index:idx_chats_org_type_read" validate:"required"`
	WamID          string `json:"wam_id" gorm:"column:wam_id;uniqueIndex:idx_chats_org_wam;type:text" validate:"required"`
	ContactID      int64  `json:"contact_id" gorm:"column:contact_id;index" validate:"required"`
	Type           string `json:"type" gorm:"type:text;index:idx_chats_org_type_read" validate:"required,oneof=inbound outbound"`
	// Metadata holds the upstream message payload verbatim for later replay
	// and format detection.
	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	Status    string         `json:"status,omitempty" gorm:"type:text"`
	IsRead    bool           `json:"is_read" gorm:"column:is_read;index:idx_chats_org_type_read;default:false"`
	MediaID   *int64         `json:"media_id,omitempty" gorm:"column:media_id"`
	CreatedAt time.Time      `json:"created_at,omitempty" gorm:"column:created_at"`
	UpdatedAt time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

// TableName specifies the table name for GORM.
func (Chat) TableName() string {
	return "chats"
}

// ChatMedia is the downloaded binary attachment metadata for a chat.
// Created once after a successful download, immutable thereafter.
type ChatMedia struct {
	ID   int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name string `json:"name,omitempty" gorm:"type:text"`
	Path string `json:"path" gorm:"type:text"`
	Type string `json:"type,omitempty" gorm:"type:text"` // MIME type
	Size int64  `json:"size,omitempty" gorm:"column:size"`
	// Location tags the storage backend the binary landed on.
	Location  string    `json:"location,omitempty" gorm:"type:text"` // "local" or "amazon"
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (ChatMedia) TableName() string {
	return "chat_medias"
}

// ChatStatusLog is the append-only audit trail of delivery-status transitions.
type ChatStatusLog struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ChatID    int64          `json:"chat_id" gorm:"column:chat_id;index" validate:"required"`
	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	CreatedAt time.Time      `json:"created_at,omitempty" gorm:"column:created_at"`
}

// TableName specifies the table name for GORM.
func (ChatStatusLog) TableName() string {
	return "chat_status_logs"
}
