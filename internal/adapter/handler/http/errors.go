package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
)

// respondError translates domain errors into the HTTP surface. Anything not
// mapped here is an internal error and is logged with full detail while the
// client only sees a generic message.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	switch {
	case errors.Is(err, domainErrors.ErrInvalidPlan):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Requested plan is not a valid upgrade target",
			"code":  "INVALID_PLAN",
		})
	case errors.Is(err, domainErrors.ErrNoBillingAccount):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "No billing account exists for this user",
			"code":  "NO_BILLING_ACCOUNT",
		})
	case errors.Is(err, domainErrors.ErrNoActiveSubscription):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "No active subscription to operate on",
			"code":  "NO_ACTIVE_SUBSCRIPTION",
		})
	case errors.Is(err, domainErrors.ErrReactivationWindowClosed):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "The subscription period has ended; start a new checkout instead",
			"code":  "REACTIVATION_WINDOW_CLOSED",
		})
	case errors.Is(err, domainErrors.ErrConcurrentModification):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error": "The subscription changed concurrently, please retry",
			"code":  "CONCURRENT_MODIFICATION",
		})
	}

	var quotaErr *domainErrors.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":     "Plan usage limit reached",
			"code":      "QUOTA_EXCEEDED",
			"limit":     quotaErr.Limit,
			"consumed":  quotaErr.Consumed,
			"requested": quotaErr.Requested,
		})
	}

	var providerErr *domainErrors.ProviderUnavailableError
	if errors.As(err, &providerErr) {
		logger.Error("Billing provider call failed",
			zap.String("op", providerErr.Op),
			zap.Error(providerErr))
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error": "Billing provider is unavailable, please retry",
			"code":  "PROVIDER_UNAVAILABLE",
		})
	}

	logger.Error("Unhandled error in HTTP handler", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"error": "Internal server error",
		"code":  "INTERNAL_ERROR",
	})
}
