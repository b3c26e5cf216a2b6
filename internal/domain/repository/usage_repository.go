package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jobdeck/billing/internal/domain/model"
)

// UsageRepository persists per-period usage counters. The quota check and
// the increment are one conditional UPDATE so concurrent near-limit
// increments serialize in the database, never in process.
type UsageRepository interface {
	// GetForPeriod returns the counter row for the period, nil when the
	// account has not consumed anything yet (lazy initialization).
	GetForPeriod(ctx context.Context, accountID uuid.UUID, periodStart time.Time, resource string) (*model.UsageCounter, error)

	// EnsureCounter creates the zero-consumption row for a period if it
	// does not exist. Safe to call concurrently and repeatedly.
	EnsureCounter(ctx context.Context, counter *model.UsageCounter) error

	// IncrementWithLimit atomically adds amount to the counter provided the
	// result stays within limit (plan.Unlimited skips the check). Returns
	// errors.QuotaExceededError without mutating when the limit would be
	// overshot.
	IncrementWithLimit(ctx context.Context, accountID uuid.UUID, periodStart time.Time, resource string, amount, limit int64) (*model.UsageCounter, error)

	// ListByAccount returns all counter rows for the account, newest
	// period first. Past periods are retained for reporting.
	ListByAccount(ctx context.Context, accountID uuid.UUID, resource string) ([]*model.UsageCounter, error)
}
