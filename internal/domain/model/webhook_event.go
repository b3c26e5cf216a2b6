package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// WebhookStatus represents the processing state of a stored webhook event
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusCompleted WebhookStatus = "completed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (s *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = WebhookStatus(v)
	case []byte:
		*s = WebhookStatus(v)
	default:
		*s = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s WebhookStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// ProviderWebhookEvent stores a raw provider event for dedup and replay.
// The unique index on provider_event_id absorbs at-least-once redelivery.
type ProviderWebhookEvent struct {
	ID                int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderEventID   string        `gorm:"uniqueIndex;size:100;not null" json:"provider_event_id"`
	EventType         string        `gorm:"size:100;not null" json:"event_type"`
	Status            WebhookStatus `gorm:"type:webhook_status;not null;default:'pending'" json:"status"`
	Data              JSONB         `gorm:"type:jsonb" json:"data,omitempty"`
	LastError         *string       `gorm:"type:text" json:"last_error,omitempty"`
	ProviderCreatedAt *time.Time    `json:"provider_created_at,omitempty"`
	ProcessedAt       *time.Time    `json:"processed_at,omitempty"`
	CreatedAt         time.Time     `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ProviderWebhookEvent) TableName() string {
	return "provider_webhook_events"
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}
