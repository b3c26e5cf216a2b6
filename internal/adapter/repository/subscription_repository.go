package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate returns the account's record, creating it when absent. The
// unique index on account_id decides creation races; the loser re-reads
// the winner's row instead of erroring.
func (r *subscriptionRepository) GetOrCreate(ctx context.Context, accountID uuid.UUID, fresh func() *model.Subscription) (*model.Subscription, error) {
	existing, err := r.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sub := fresh()
	err = r.db.WithContext(ctx).Create(sub).Error
	if err == nil {
		return sub, nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		r.logger.Info("Lost subscription creation race, re-reading winner's record",
			zap.String("account_id", accountID.String()))
		winner, readErr := r.GetByAccountID(ctx, accountID)
		if readErr != nil {
			return nil, readErr
		}
		if winner == nil {
			return nil, fmt.Errorf("subscription for account %s vanished after creation conflict", accountID)
		}
		return winner, nil
	}

	r.logger.Error("Failed to create subscription",
		zap.String("account_id", accountID.String()),
		zap.Error(err))
	return nil, fmt.Errorf("failed to create subscription: %w", err)
}

// GetByAccountID retrieves the subscription record for an account
func (r *subscriptionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by account ID",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// GetByProviderCustomerID retrieves the subscription record linked to a
// provider customer id
func (r *subscriptionRepository) GetByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("provider_customer_id = ?", customerID).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by provider customer ID",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// UpdateVersioned writes the record with an optimistic-concurrency guard on
// last_synced_version. Zero rows affected means another writer got there
// first and the caller must re-read.
func (r *subscriptionRepository) UpdateVersioned(ctx context.Context, sub *model.Subscription, expectedVersion int64) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	now := time.Now()
	sub.LastSyncedAt = &now

	res := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("account_id = ? AND last_synced_version = ?", sub.AccountID, expectedVersion).
		Updates(map[string]interface{}{
			"plan":                     sub.Plan,
			"status":                   sub.Status,
			"provider_customer_id":     sub.ProviderCustomerID,
			"provider_subscription_id": sub.ProviderSubscriptionID,
			"current_period_start":     sub.CurrentPeriodStart,
			"current_period_end":       sub.CurrentPeriodEnd,
			"cancel_at_period_end":     sub.CancelAtPeriodEnd,
			"last_synced_version":      sub.LastSyncedVersion,
			"last_synced_at":           sub.LastSyncedAt,
		})

	if res.Error != nil {
		r.logger.Error("Failed to update subscription",
			zap.String("account_id", sub.AccountID.String()),
			zap.Error(res.Error))
		return fmt.Errorf("failed to update subscription: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return domainErrors.ErrConcurrentModification
	}

	return nil
}

// isUniqueViolation matches the Postgres unique-violation SQLSTATE that
// gorm does not always translate to ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var pgErr sqlState
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
