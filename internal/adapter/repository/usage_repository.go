package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/domain/repository"
)

type usageRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage counter repository
func NewUsageRepository(db *gorm.DB, logger *zap.Logger) repository.UsageRepository {
	return &usageRepository{
		db:     db,
		logger: logger,
	}
}

// GetForPeriod returns the counter row for a period, nil when absent
func (r *usageRepository) GetForPeriod(ctx context.Context, accountID uuid.UUID, periodStart time.Time, resource string) (*model.UsageCounter, error) {
	var counter model.UsageCounter

	err := r.db.WithContext(ctx).
		Where("account_id = ? AND period_start = ? AND resource = ?", accountID, periodStart, resource).
		First(&counter).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get usage counter",
			zap.String("account_id", accountID.String()),
			zap.Time("period_start", periodStart),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get usage counter: %w", err)
	}

	return &counter, nil
}

// EnsureCounter creates the zero row for a period; concurrent callers and
// webhook replays collapse into the existing row via ON CONFLICT DO NOTHING.
func (r *usageRepository) EnsureCounter(ctx context.Context, counter *model.UsageCounter) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(counter).Error

	if err != nil {
		r.logger.Error("Failed to ensure usage counter",
			zap.String("account_id", counter.AccountID.String()),
			zap.Time("period_start", counter.PeriodStart),
			zap.Error(err))
		return fmt.Errorf("failed to ensure usage counter: %w", err)
	}

	return nil
}

// IncrementWithLimit performs the quota check and the increment as one
// conditional UPDATE. Racing near-limit increments serialize on the row;
// the statement only applies when the result stays within the limit, so
// the cap is never transiently overshot.
func (r *usageRepository) IncrementWithLimit(ctx context.Context, accountID uuid.UUID, periodStart time.Time, resource string, amount, limit int64) (*model.UsageCounter, error) {
	q := r.db.WithContext(ctx).
		Model(&model.UsageCounter{}).
		Where("account_id = ? AND period_start = ? AND resource = ?", accountID, periodStart, resource)

	if limit != plan.Unlimited {
		q = q.Where("consumed + ? <= ?", amount, limit)
	}

	res := q.Update("consumed", gorm.Expr("consumed + ?", amount))
	if res.Error != nil {
		r.logger.Error("Failed to increment usage counter",
			zap.String("account_id", accountID.String()),
			zap.Int64("amount", amount),
			zap.Error(res.Error))
		return nil, fmt.Errorf("failed to increment usage counter: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		current, err := r.GetForPeriod(ctx, accountID, periodStart, resource)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, fmt.Errorf("usage counter missing for account %s period %s", accountID, periodStart.Format(time.RFC3339))
		}
		return nil, domainErrors.NewQuotaExceededError(limit, current.Consumed, amount)
	}

	counter, err := r.GetForPeriod(ctx, accountID, periodStart, resource)
	if err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, fmt.Errorf("usage counter missing after increment for account %s", accountID)
	}

	return counter, nil
}

// ListByAccount returns the account's counters, newest period first
func (r *usageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, resource string) ([]*model.UsageCounter, error) {
	var counters []*model.UsageCounter

	err := r.db.WithContext(ctx).
		Where("account_id = ? AND resource = ?", accountID, resource).
		Order("period_start DESC").
		Find(&counters).Error

	if err != nil {
		r.logger.Error("Failed to list usage counters",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list usage counters: %w", err)
	}

	return counters, nil
}
