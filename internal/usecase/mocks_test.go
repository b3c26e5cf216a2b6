package usecase_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/jobdeck/billing/internal/domain/gateway"
	"github.com/jobdeck/billing/internal/domain/model"
)

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) GetOrCreate(ctx context.Context, accountID uuid.UUID, fresh func() *model.Subscription) (*model.Subscription, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) UpdateVersioned(ctx context.Context, sub *model.Subscription, expectedVersion int64) error {
	args := m.Called(ctx, sub, expectedVersion)
	return args.Error(0)
}

// MockUsageRepository is a mock implementation of UsageRepository
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) GetForPeriod(ctx context.Context, accountID uuid.UUID, periodStart time.Time, resource string) (*model.UsageCounter, error) {
	args := m.Called(ctx, accountID, periodStart, resource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageCounter), args.Error(1)
}

func (m *MockUsageRepository) EnsureCounter(ctx context.Context, counter *model.UsageCounter) error {
	args := m.Called(ctx, counter)
	return args.Error(0)
}

func (m *MockUsageRepository) IncrementWithLimit(ctx context.Context, accountID uuid.UUID, periodStart time.Time, resource string, amount, limit int64) (*model.UsageCounter, error) {
	args := m.Called(ctx, accountID, periodStart, resource, amount, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageCounter), args.Error(1)
}

func (m *MockUsageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, resource string) ([]*model.UsageCounter, error) {
	args := m.Called(ctx, accountID, resource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UsageCounter), args.Error(1)
}

// MockBillingGateway is a mock implementation of BillingGateway
type MockBillingGateway struct {
	mock.Mock
}

func (m *MockBillingGateway) CreateCustomer(ctx context.Context, req *gateway.CreateCustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockBillingGateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutSessionRequest) (*gateway.CheckoutSessionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSessionResponse), args.Error(1)
}

func (m *MockBillingGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockBillingGateway) ScheduleCancellation(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockBillingGateway) UndoCancellation(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}
