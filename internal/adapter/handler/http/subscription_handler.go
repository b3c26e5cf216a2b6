package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/domain/gateway"
	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/middleware/auth"
	"github.com/jobdeck/billing/internal/usecase"
)

// LifecycleService is the subscription surface the HTTP layer depends on.
type LifecycleService interface {
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error)
	CurrentUsage(ctx context.Context, accountID uuid.UUID) (*usecase.UsageSummary, error)
	UsageHistory(ctx context.Context, accountID uuid.UUID) ([]*model.UsageCounter, error)
	CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, targetPlan plan.Plan, successURL, cancelURL string) (string, error)
	CancelSubscription(ctx context.Context, accountID uuid.UUID) error
	ReactivateSubscription(ctx context.Context, accountID uuid.UUID) error
	GetPortalURL(ctx context.Context, accountID uuid.UUID, returnURL string) (string, error)
	ApplyProviderEvent(ctx context.Context, ev *gateway.ProviderEvent) error
}

type SubscriptionHandler struct {
	logger    *zap.Logger
	lifecycle LifecycleService
	clientURL string
}

func NewSubscriptionHandler(logger *zap.Logger, lifecycle LifecycleService, clientURL string) *SubscriptionHandler {
	return &SubscriptionHandler{
		logger:    logger,
		lifecycle: lifecycle,
		clientURL: clientURL,
	}
}

// SubscriptionResponse is the wire form of the account's subscription record.
type SubscriptionResponse struct {
	Plan               plan.Plan                `json:"plan"`
	Status             model.SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	CurrentPeriodStart time.Time                `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `json:"current_period_end"`
}

func toSubscriptionResponse(sub *model.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		Plan:               sub.Plan,
		Status:             sub.Status,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	}
}

// GetSubscription returns the account's subscription record, creating the
// free record on first access.
func (h *SubscriptionHandler) GetSubscription(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err // RequireAuth already returns the JSON error response
	}

	sub, err := h.lifecycle.GetOrCreate(c.Request().Context(), account.AccountID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, toSubscriptionResponse(sub))
}

// GetUsage returns the current period's consumption against the plan limit.
func (h *SubscriptionHandler) GetUsage(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	summary, err := h.lifecycle.CurrentUsage(c.Request().Context(), account.AccountID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, summary)
}

// UsagePeriodResponse is one historical billing period's consumption.
type UsagePeriodResponse struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Consumed    int64     `json:"consumed"`
}

// GetUsageHistory returns consumption per retained billing period, newest
// first.
func (h *SubscriptionHandler) GetUsageHistory(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	counters, err := h.lifecycle.UsageHistory(c.Request().Context(), account.AccountID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	periods := make([]UsagePeriodResponse, 0, len(counters))
	for _, counter := range counters {
		periods = append(periods, UsagePeriodResponse{
			PeriodStart: counter.PeriodStart,
			PeriodEnd:   counter.PeriodEnd,
			Consumed:    counter.Consumed,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"periods": periods})
}

// CreateCheckoutRequest starts a hosted checkout towards a paid plan.
type CreateCheckoutRequest struct {
	Plan       plan.Plan `json:"plan" validate:"required"`
	SuccessURL string    `json:"success_url" validate:"omitempty,url"`
	CancelURL  string    `json:"cancel_url" validate:"omitempty,url"`
}

// CreateCheckout returns a provider-hosted checkout URL for the requested
// plan. The actual plan change lands asynchronously via webhook.
func (h *SubscriptionHandler) CreateCheckout(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
			"code":  "INVALID_REQUEST",
		})
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = h.clientURL + "/settings/billing?checkout=success"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = h.clientURL + "/settings/billing?checkout=canceled"
	}

	h.logger.Info("Creating checkout session",
		zap.String("account_id", account.AccountID.String()),
		zap.String("plan", string(req.Plan)))

	checkoutURL, err := h.lifecycle.CreateCheckoutSession(c.Request().Context(), account.AccountID, req.Plan, successURL, cancelURL)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"checkout_url": checkoutURL,
	})
}

// CancelSubscription schedules cancellation at the end of the current period.
func (h *SubscriptionHandler) CancelSubscription(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	if err := h.lifecycle.CancelSubscription(c.Request().Context(), account.AccountID); err != nil {
		return respondError(c, h.logger, err)
	}

	sub, err := h.lifecycle.GetOrCreate(c.Request().Context(), account.AccountID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"subscription": toSubscriptionResponse(sub),
		"message":      "Subscription will be canceled at the end of the current billing period",
	})
}

// ReactivateSubscription reverts a pending cancellation while the paid
// period is still running.
func (h *SubscriptionHandler) ReactivateSubscription(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	if err := h.lifecycle.ReactivateSubscription(c.Request().Context(), account.AccountID); err != nil {
		return respondError(c, h.logger, err)
	}

	sub, err := h.lifecycle.GetOrCreate(c.Request().Context(), account.AccountID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"subscription": toSubscriptionResponse(sub),
		"message":      "Pending cancellation reverted",
	})
}

// CreatePortalSession returns a provider-hosted billing portal URL where the
// account manages payment methods and invoices.
func (h *SubscriptionHandler) CreatePortalSession(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	portalURL, err := h.lifecycle.GetPortalURL(c.Request().Context(), account.AccountID, h.clientURL+"/settings/billing")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"portal_url": portalURL,
	})
}
