package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/usecase"
)

func TestUsageService_Increment(t *testing.T) {
	logger := zap.NewNop()
	accountID := uuid.New()
	ctx := context.Background()

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		service := usecase.NewUsageService(new(MockSubscriptionRepository), new(MockUsageRepository), testCatalog(t), logger)

		_, err := service.Increment(ctx, accountID, 0)
		assert.Error(t, err)

		_, err = service.Increment(ctx, accountID, -3)
		assert.Error(t, err)
	})

	t.Run("increments within the plan limit", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockUsage := new(MockUsageRepository)
		service := usecase.NewUsageService(mockSubs, mockUsage, testCatalog(t), logger)

		sub := activeSubscription(accountID)
		mockSubs.On("GetOrCreate", ctx, accountID).Return(sub, nil)
		mockUsage.On("EnsureCounter", ctx, mock.MatchedBy(func(c *model.UsageCounter) bool {
			return c.AccountID == accountID && c.PeriodStart.Equal(sub.CurrentPeriodStart)
		})).Return(nil)
		mockUsage.On("IncrementWithLimit", ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications, int64(1), int64(500)).
			Return(&model.UsageCounter{Consumed: 7}, nil)

		counter, err := service.Increment(ctx, accountID, 1)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), counter.Consumed)
		mockUsage.AssertExpectations(t)
	})

	t.Run("first-time account is created on the free tier", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockUsage := new(MockUsageRepository)
		service := usecase.NewUsageService(mockSubs, mockUsage, testCatalog(t), logger)

		now := time.Now()
		fresh := &model.Subscription{
			AccountID:          accountID,
			Plan:               plan.PlanFree,
			Status:             model.SubscriptionStatusNone,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour),
		}
		mockSubs.On("GetOrCreate", ctx, accountID).Return(fresh, nil)
		mockUsage.On("EnsureCounter", ctx, mock.Anything).Return(nil)
		mockUsage.On("IncrementWithLimit", ctx, accountID, now, model.ResourceApplications, int64(1), int64(5)).
			Return(&model.UsageCounter{Consumed: 1}, nil)

		counter, err := service.Increment(ctx, accountID, 1)

		assert.NoError(t, err)
		assert.Equal(t, int64(1), counter.Consumed)
		mockUsage.AssertExpectations(t)
	})

	t.Run("quota exceeded leaves the counter untouched", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockUsage := new(MockUsageRepository)
		service := usecase.NewUsageService(mockSubs, mockUsage, testCatalog(t), logger)

		sub := activeSubscription(accountID)
		mockSubs.On("GetOrCreate", ctx, accountID).Return(sub, nil)
		mockUsage.On("EnsureCounter", ctx, mock.Anything).Return(nil)
		mockUsage.On("IncrementWithLimit", ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications, int64(3), int64(500)).
			Return(nil, domainErrors.NewQuotaExceededError(500, 499, 3))

		_, err := service.Increment(ctx, accountID, 3)

		var quotaErr *domainErrors.QuotaExceededError
		assert.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, int64(500), quotaErr.Limit)
		assert.Equal(t, int64(499), quotaErr.Consumed)
	})

	t.Run("unlimited plan passes the sentinel limit through", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockUsage := new(MockUsageRepository)
		service := usecase.NewUsageService(mockSubs, mockUsage, testCatalog(t), logger)

		sub := activeSubscription(accountID)
		sub.Plan = plan.PlanEnterprise
		mockSubs.On("GetOrCreate", ctx, accountID).Return(sub, nil)
		mockUsage.On("EnsureCounter", ctx, mock.Anything).Return(nil)
		mockUsage.On("IncrementWithLimit", ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications, int64(10), plan.Unlimited).
			Return(&model.UsageCounter{Consumed: 100010}, nil)

		counter, err := service.Increment(ctx, accountID, 10)

		assert.NoError(t, err)
		assert.Equal(t, int64(100010), counter.Consumed)
		mockUsage.AssertExpectations(t)
	})
}

func TestUsageService_Current(t *testing.T) {
	logger := zap.NewNop()
	accountID := uuid.New()
	ctx := context.Background()

	t.Run("missing counter reads as zero", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockUsage := new(MockUsageRepository)
		service := usecase.NewUsageService(mockSubs, mockUsage, testCatalog(t), logger)

		sub := activeSubscription(accountID)
		mockSubs.On("GetOrCreate", ctx, accountID).Return(sub, nil)
		mockUsage.On("GetForPeriod", ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications).Return(nil, nil)

		consumed, err := service.Current(ctx, accountID)

		assert.NoError(t, err)
		assert.Equal(t, int64(0), consumed)
	})

	t.Run("returns the current period's count", func(t *testing.T) {
		mockSubs := new(MockSubscriptionRepository)
		mockUsage := new(MockUsageRepository)
		service := usecase.NewUsageService(mockSubs, mockUsage, testCatalog(t), logger)

		sub := activeSubscription(accountID)
		mockSubs.On("GetOrCreate", ctx, accountID).Return(sub, nil)
		mockUsage.On("GetForPeriod", ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications).
			Return(&model.UsageCounter{Consumed: 12}, nil)

		consumed, err := service.Current(ctx, accountID)

		assert.NoError(t, err)
		assert.Equal(t, int64(12), consumed)
	})
}
