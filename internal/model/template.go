package model

import (
	"time"
)

// Template is an outbound message template definition. Only the approval
// status is mutated here, by template-status webhook events.
type Template struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrganizationID int64     `json:"organization_id" gorm:"column:organization_id;index"`
	MetaID         int64     `json:"meta_id" gorm:"column:meta_id;uniqueIndex" validate:"required"`
	Name           string    `json:"name,omitempty" gorm:"type:text"`
	Status         string    `json:"status,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Template) TableName() string {
	return "templates"
}

// WebhookEndpoint is a tenant-registered outbound webhook subscriber.
// The notifier POSTs pipeline events to every active endpoint whose event
// matches.
type WebhookEndpoint struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrganizationID int64     `json:"organization_id" gorm:"column:organization_id;index:idx_webhook_endpoints_org_event"`
	Event          string    `json:"event" gorm:"type:text;index:idx_webhook_endpoints_org_event" validate:"required"`
	TargetURL      string    `json:"target_url" gorm:"column:target_url;type:text" validate:"required,url"`
	Active         bool      `json:"active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (WebhookEndpoint) TableName() string {
	return "webhook_endpoints"
}
