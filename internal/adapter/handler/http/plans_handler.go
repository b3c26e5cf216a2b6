package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/domain/plan"
)

type PlansHandler struct {
	logger  *zap.Logger
	catalog *plan.Catalog
}

func NewPlansHandler(logger *zap.Logger, catalog *plan.Catalog) *PlansHandler {
	return &PlansHandler{
		logger:  logger,
		catalog: catalog,
	}
}

// PlanResponse is the public wire form of one catalog tier.
type PlanResponse struct {
	Plan         plan.Plan       `json:"plan"`
	DisplayName  string          `json:"display_name"`
	UsageLimit   *int64          `json:"usage_limit"` // null means unmetered
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	Currency     string          `json:"currency"`
}

// GetPlans lists the tier catalog for pricing pages. Public, no auth.
func (h *PlansHandler) GetPlans(c echo.Context) error {
	entries := h.catalog.Entries()

	plans := make([]PlanResponse, 0, len(entries))
	for _, e := range entries {
		resp := PlanResponse{
			Plan:         e.Plan,
			DisplayName:  e.DisplayName,
			MonthlyPrice: e.MonthlyPrice,
			Currency:     e.Currency,
		}
		if !e.Unmetered() {
			limit := e.UsageLimit
			resp.UsageLimit = &limit
		}
		plans = append(plans, resp)
	}

	return c.JSON(http.StatusOK, echo.Map{"plans": plans})
}
