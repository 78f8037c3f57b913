package model

import (
	"time"

	"gorm.io/gorm"
)

// Contact represents a phone-number-identified person within an organization.
// (organization_id, phone) uniquely identifies a non-deleted contact; rows are
// soft-deleted, never hard-deleted, by this pipeline's collaborators.
type Contact struct {
	ID             int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	OrganizationID int64  `json:"organization_id" gorm:"column:organization_id;index:idx_contacts_org_phone" validate:"required"`
	Phone          string `json:"phone" gorm:"type:text;index:idx_contacts_org_phone" validate:"required"`
	FirstName      string `json:"first_name,omitempty" gorm:"type:text"`
	LastName       string `json:"last_name,omitempty" gorm:"type:text"`
	Email          string `json:"email,omitempty" gorm:"type:text"`
	IsBlocked      bool   `json:"is_blocked,omitempty" gorm:"column:is_blocked;default:false"`
	CreatedBy      int64  `json:"created_by,omitempty" gorm:"column:created_by"`
	// LatestChatCreatedAt is denormalized for chat-list sort performance and
	// refreshed on every inbound chat insert.
	LatestChatCreatedAt *time.Time     `json:"latest_chat_created_at,omitempty" gorm:"column:latest_chat_created_at"`
	CreatedAt           time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

// TableName specifies the table name for GORM.
func (Contact) TableName() string {
	return "contacts"
}

// DisplayName returns the best available name for feed payloads.
func (c *Contact) DisplayName() string {
	if c.FirstName == "" {
		return c.Phone
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
