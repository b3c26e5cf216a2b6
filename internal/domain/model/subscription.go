package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobdeck/billing/internal/domain/plan"
)

// SubscriptionStatus represents the lifecycle status of a subscription record
type SubscriptionStatus string

const (
	// SubscriptionStatusNone means the account has never completed a checkout.
	SubscriptionStatusNone SubscriptionStatus = "none"
	// SubscriptionStatusActive means the provider considers the subscription paid up.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusPastDue means the latest invoice payment failed.
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"
	// SubscriptionStatusCanceled means the provider subscription ended. The
	// account can re-subscribe through a new checkout session.
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusNone
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Billed reports whether the status requires a live provider subscription.
func (s SubscriptionStatus) Billed() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPastDue
}

// Subscription is the authoritative local billing state for one account.
// One row per account; creation races are resolved by the unique index on
// account_id, and concurrent updates by the compare-and-swap on
// last_synced_version.
type Subscription struct {
	ID                     int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID              uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"account_id"`
	Plan                   plan.Plan          `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	Status                 SubscriptionStatus `gorm:"type:subscription_status;not null;default:'none'" json:"status"`
	ProviderCustomerID     *string            `gorm:"size:100;index" json:"provider_customer_id,omitempty"`
	ProviderSubscriptionID *string            `gorm:"unique;size:100" json:"provider_subscription_id,omitempty"`
	CurrentPeriodStart     time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd       time.Time          `gorm:"not null" json:"current_period_end"`
	CancelAtPeriodEnd      bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	LastSyncedVersion      int64              `gorm:"not null;default:0" json:"last_synced_version"`
	LastSyncedAt           *time.Time         `json:"last_synced_at,omitempty"`
	CreatedAt              time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}

// Validate enforces the status/provider-id invariant before a write.
func (s *Subscription) Validate() error {
	if s.Status.Billed() && (s.ProviderSubscriptionID == nil || *s.ProviderSubscriptionID == "") {
		return fmt.Errorf("subscription for account %s is %s but has no provider subscription id", s.AccountID, s.Status)
	}
	return nil
}

// InPeriod reports whether t falls inside the record's current billing period.
func (s *Subscription) InPeriod(t time.Time) bool {
	return !t.Before(s.CurrentPeriodStart) && t.Before(s.CurrentPeriodEnd)
}
