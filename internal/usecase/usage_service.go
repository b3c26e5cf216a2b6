package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/domain/repository"
)

// UsageService gates metered consumption against the account's plan limit.
// Increments originate from the application-tracking collaborator; the
// quota check and the increment are one atomic storage operation.
type UsageService struct {
	subscriptionRepo repository.SubscriptionRepository
	usageRepo        repository.UsageRepository
	catalog          *plan.Catalog
	logger           *zap.Logger
}

// NewUsageService creates a new usage service instance
func NewUsageService(
	subscriptionRepo repository.SubscriptionRepository,
	usageRepo repository.UsageRepository,
	catalog *plan.Catalog,
	logger *zap.Logger,
) *UsageService {
	return &UsageService{
		subscriptionRepo: subscriptionRepo,
		usageRepo:        usageRepo,
		catalog:          catalog,
		logger:           logger,
	}
}

// Increment consumes amount units of the metered resource for the record's
// current billing period. Fails with QuotaExceededError, without mutating,
// when the plan limit would be overshot.
func (s *UsageService) Increment(ctx context.Context, accountID uuid.UUID, amount int64) (*model.UsageCounter, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("increment amount must be positive, got %d", amount)
	}

	sub, err := s.subscriptionRepo.GetOrCreate(ctx, accountID, func() *model.Subscription {
		return freeSubscription(accountID)
	})
	if err != nil {
		return nil, err
	}

	limit := s.catalog.LimitFor(sub.Plan)

	if err := s.usageRepo.EnsureCounter(ctx, &model.UsageCounter{
		AccountID:   accountID,
		PeriodStart: sub.CurrentPeriodStart,
		PeriodEnd:   sub.CurrentPeriodEnd,
		Resource:    model.ResourceApplications,
	}); err != nil {
		return nil, err
	}

	counter, err := s.usageRepo.IncrementWithLimit(ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications, amount, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Usage recorded",
		zap.String("account_id", accountID.String()),
		zap.Int64("amount", amount),
		zap.Int64("consumed", counter.Consumed),
		zap.Int64("limit", limit))

	return counter, nil
}

// Current returns the consumption in the record's current billing period.
func (s *UsageService) Current(ctx context.Context, accountID uuid.UUID) (int64, error) {
	sub, err := s.subscriptionRepo.GetOrCreate(ctx, accountID, func() *model.Subscription {
		return freeSubscription(accountID)
	})
	if err != nil {
		return 0, err
	}

	counter, err := s.usageRepo.GetForPeriod(ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications)
	if err != nil {
		return 0, err
	}
	if counter == nil {
		return 0, nil
	}
	return counter.Consumed, nil
}
