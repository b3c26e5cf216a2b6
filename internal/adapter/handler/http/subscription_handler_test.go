package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
	"github.com/jobdeck/billing/internal/domain/gateway"
	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/middleware/auth"
	"github.com/jobdeck/billing/internal/usecase"
)

// mockLifecycle is a mock implementation of LifecycleService
type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockLifecycle) CurrentUsage(ctx context.Context, accountID uuid.UUID) (*usecase.UsageSummary, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.UsageSummary), args.Error(1)
}

func (m *mockLifecycle) UsageHistory(ctx context.Context, accountID uuid.UUID) ([]*model.UsageCounter, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UsageCounter), args.Error(1)
}

func (m *mockLifecycle) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, targetPlan plan.Plan, successURL, cancelURL string) (string, error) {
	args := m.Called(ctx, accountID, targetPlan, successURL, cancelURL)
	return args.String(0), args.Error(1)
}

func (m *mockLifecycle) CancelSubscription(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *mockLifecycle) ReactivateSubscription(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *mockLifecycle) GetPortalURL(ctx context.Context, accountID uuid.UUID, returnURL string) (string, error) {
	args := m.Called(ctx, accountID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *mockLifecycle) ApplyProviderEvent(ctx context.Context, ev *gateway.ProviderEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newAuthedContext(t *testing.T, method, path, body string, accountID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewRequestValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = req.WithContext(auth.WithAccount(req.Context(), &auth.AuthAccount{AccountID: accountID}))

	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSubscriptionHandler_GetSubscription(t *testing.T) {
	accountID := uuid.New()
	lifecycle := new(mockLifecycle)
	handler := NewSubscriptionHandler(zap.NewNop(), lifecycle, "https://app.example.com")

	now := time.Now()
	lifecycle.On("GetOrCreate", mock.Anything, accountID).Return(&model.Subscription{
		AccountID:          accountID,
		Plan:               plan.PlanPremium,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour),
	}, nil)

	c, rec := newAuthedContext(t, http.MethodGet, "/api/v1/subscription", "", accountID)

	err := handler.GetSubscription(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plan":"premium"`)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)
}

func TestSubscriptionHandler_GetSubscription_Unauthenticated(t *testing.T) {
	handler := NewSubscriptionHandler(zap.NewNop(), new(mockLifecycle), "https://app.example.com")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.GetSubscription(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscriptionHandler_CreateCheckout_ErrorMapping(t *testing.T) {
	accountID := uuid.New()

	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid plan maps to 400",
			serviceErr: domainErrors.ErrInvalidPlan,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PLAN",
		},
		{
			name:       "provider outage maps to 502",
			serviceErr: domainErrors.NewProviderUnavailableError("checkout_session", assert.AnError),
			wantStatus: http.StatusBadGateway,
			wantCode:   "PROVIDER_UNAVAILABLE",
		},
		{
			name:       "lost write race maps to 503",
			serviceErr: domainErrors.ErrConcurrentModification,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "CONCURRENT_MODIFICATION",
		},
		{
			name:       "unknown errors map to 500",
			serviceErr: assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle := new(mockLifecycle)
			handler := NewSubscriptionHandler(zap.NewNop(), lifecycle, "https://app.example.com")

			lifecycle.On("CreateCheckoutSession", mock.Anything, accountID, plan.PlanPremium, mock.Anything, mock.Anything).
				Return("", tt.serviceErr)

			c, rec := newAuthedContext(t, http.MethodPost, "/api/v1/subscription/checkout", `{"plan":"premium"}`, accountID)

			err := handler.CreateCheckout(c)

			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestSubscriptionHandler_CreateCheckout_DefaultsRedirectURLs(t *testing.T) {
	accountID := uuid.New()
	lifecycle := new(mockLifecycle)
	handler := NewSubscriptionHandler(zap.NewNop(), lifecycle, "https://app.example.com")

	lifecycle.On("CreateCheckoutSession", mock.Anything, accountID, plan.PlanPremium,
		"https://app.example.com/settings/billing?checkout=success",
		"https://app.example.com/settings/billing?checkout=canceled").
		Return("https://checkout.example.com/cs_1", nil)

	c, rec := newAuthedContext(t, http.MethodPost, "/api/v1/subscription/checkout", `{"plan":"premium"}`, accountID)

	err := handler.CreateCheckout(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://checkout.example.com/cs_1")
	lifecycle.AssertExpectations(t)
}

func TestSubscriptionHandler_CancelSubscription_ErrorMapping(t *testing.T) {
	accountID := uuid.New()

	t.Run("no active subscription maps to 409", func(t *testing.T) {
		lifecycle := new(mockLifecycle)
		handler := NewSubscriptionHandler(zap.NewNop(), lifecycle, "https://app.example.com")

		lifecycle.On("CancelSubscription", mock.Anything, accountID).Return(domainErrors.ErrNoActiveSubscription)

		c, rec := newAuthedContext(t, http.MethodDelete, "/api/v1/subscription", "", accountID)

		err := handler.CancelSubscription(c)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "NO_ACTIVE_SUBSCRIPTION")
	})
}

func TestSubscriptionHandler_ReactivateSubscription_WindowClosed(t *testing.T) {
	accountID := uuid.New()
	lifecycle := new(mockLifecycle)
	handler := NewSubscriptionHandler(zap.NewNop(), lifecycle, "https://app.example.com")

	lifecycle.On("ReactivateSubscription", mock.Anything, accountID).Return(domainErrors.ErrReactivationWindowClosed)

	c, rec := newAuthedContext(t, http.MethodPost, "/api/v1/subscription/reactivate", "", accountID)

	err := handler.ReactivateSubscription(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "REACTIVATION_WINDOW_CLOSED")
}

func TestSubscriptionHandler_CreatePortalSession_NoBillingAccount(t *testing.T) {
	accountID := uuid.New()
	lifecycle := new(mockLifecycle)
	handler := NewSubscriptionHandler(zap.NewNop(), lifecycle, "https://app.example.com")

	lifecycle.On("GetPortalURL", mock.Anything, accountID, "https://app.example.com/settings/billing").
		Return("", domainErrors.ErrNoBillingAccount)

	c, rec := newAuthedContext(t, http.MethodPost, "/api/v1/subscription/portal", "", accountID)

	err := handler.CreatePortalSession(c)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_BILLING_ACCOUNT")
}
