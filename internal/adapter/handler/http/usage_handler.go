package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/middleware/auth"
)

// UsageService records metered consumption for the HTTP layer.
type UsageService interface {
	Increment(ctx context.Context, accountID uuid.UUID, amount int64) (*model.UsageCounter, error)
}

type UsageHandler struct {
	logger *zap.Logger
	usage  UsageService
}

func NewUsageHandler(logger *zap.Logger, usage UsageService) *UsageHandler {
	return &UsageHandler{
		logger: logger,
		usage:  usage,
	}
}

// IncrementUsageRequest records consumption of metered units. The amount
// defaults to one when omitted.
type IncrementUsageRequest struct {
	Amount int64 `json:"amount" validate:"omitempty,min=1"`
}

// IncrementUsage consumes metered units for the current billing period.
// Called by the application-tracking service when the user files a new
// application. Fails with 429 when the plan limit would be overshot.
func (h *UsageHandler) IncrementUsage(c echo.Context) error {
	account, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req IncrementUsageRequest
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
	if req.Amount == 0 {
		req.Amount = 1
	}

	counter, err := h.usage.Increment(c.Request().Context(), account.AccountID, req.Amount)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"consumed":     counter.Consumed,
		"period_start": counter.PeriodStart,
		"period_end":   counter.PeriodEnd,
	})
}
