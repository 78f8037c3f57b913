package model

import (
	"time"

	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/utils"
)

// Organization is the tenant root. The Identifier is the opaque token embedded
// in the public webhook URL path; Metadata carries the WhatsApp credentials
// and feature settings blob that account webhook events mutate key-by-key.
type Organization struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Identifier string         `json:"identifier" gorm:"column:identifier;uniqueIndex;type:text" validate:"required"`
	Name       string         `json:"name,omitempty" gorm:"type:text"`
	Timezone   string         `json:"timezone,omitempty" gorm:"type:text"`
	Metadata   datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	CreatedAt  time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Organization) TableName() string {
	return "organizations"
}

// WhatsAppConfig is the tenant's Cloud API credential block inside the
// metadata blob. Account/capability webhook events merge additional keys
// alongside these; unknown keys must survive a read-modify-write, so the
// blob itself is always rewritten at the map level, never through this struct.
type WhatsAppConfig struct {
	AccessToken       string `json:"access_token"`
	AppSecret         string `json:"app_secret"`
	AppID             string `json:"app_id"`
	PhoneNumberID     string `json:"phone_number_id"`
	BusinessAccountID string `json:"waba_id"`
}

// TicketSettings controls the ticket assignment engine per tenant.
type TicketSettings struct {
	Active                bool `json:"active"`
	AutoAssignment        bool `json:"auto_assignment"`
	ReassignReopenedChats bool `json:"reassign_reopened_chats"`
}

// StorageSettings selects the media storage backend per tenant.
type StorageSettings struct {
	System string `json:"system"` // "local" or "amazon"
}

// PlanSettings holds the subscription limits the admission gate and the
// auto-reply trigger enforce. Zero means unlimited.
type PlanSettings struct {
	InboundMessageLimit int64 `json:"inbound_message_limit"` // new inbound chats per billing month
	MessageLimit        int64 `json:"message_limit"`         // auto-reply feature limit
}

// OrganizationMetadata is the typed view over the metadata blob.
type OrganizationMetadata struct {
	WhatsApp WhatsAppConfig  `json:"whatsapp"`
	Tickets  TicketSettings  `json:"tickets"`
	Storage  StorageSettings `json:"storage"`
	Plan     PlanSettings    `json:"plan"`
}

// OrgContext is an explicit per-tenant snapshot (timezone plus parsed
// settings) passed into pipeline components instead of ad hoc re-fetching.
type OrgContext struct {
	ID         int64
	Identifier string
	Timezone   string
	Meta       OrganizationMetadata
}

// Context builds the tenant snapshot from the stored metadata blob.
// A missing or unparseable blob yields zero-valued settings; callers that
// require credentials must check HasWhatsAppConfig.
func (o *Organization) Context() OrgContext {
	oc := OrgContext{
		ID:         o.ID,
		Identifier: o.Identifier,
		Timezone:   o.Timezone,
	}
	if len(o.Metadata) > 0 {
		// Best effort: a corrupt blob behaves like an unconfigured tenant.
		_ = utils.UnmarshalJSON(o.Metadata, &oc.Meta)
	}
	return oc
}

// HasWhatsAppConfig reports whether the tenant has a usable Cloud API config.
// The resolver fails closed when this is false.
func (c OrgContext) HasWhatsAppConfig() bool {
	return c.Meta.WhatsApp.AccessToken != "" && c.Meta.WhatsApp.PhoneNumberID != ""
}

// Now returns the current time in the tenant's timezone, falling back to UTC.
func (c OrgContext) Now() time.Time {
	return utils.InZone(utils.Now(), c.Timezone)
}
