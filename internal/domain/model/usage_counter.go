package model

import (
	"time"

	"github.com/google/uuid"
)

// Resource kinds metered per billing period.
const (
	ResourceApplications = "applications"
)

// UsageCounter tracks consumption of one metered resource for one account
// within one billing period. Rows for past periods are kept for history;
// the unique index makes period rollover idempotent.
type UsageCounter struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_account_period_kind" json:"account_id"`
	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_usage_account_period_kind" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`
	Resource    string    `gorm:"size:50;not null;uniqueIndex:idx_usage_account_period_kind" json:"resource"`
	Consumed    int64     `gorm:"not null;default:0" json:"consumed"`
	CreatedAt   time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UsageCounter) TableName() string {
	return "usage_counters"
}
