package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jobdeck/billing/internal/domain/plan"
)

// PlanConfig is one catalog tier as configured in YAML. A usage_limit of -1
// means the tier is unmetered.
type PlanConfig struct {
	Plan         string `yaml:"plan"`
	DisplayName  string `yaml:"display_name"`
	UsageLimit   int64  `yaml:"usage_limit"`
	PriceID      string `yaml:"price_id"`
	MonthlyPrice string `yaml:"monthly_price"`
	Currency     string `yaml:"currency"`
}

// CatalogEntries converts the configured tiers into catalog entries.
func CatalogEntries(plans []PlanConfig) ([]plan.Entry, error) {
	entries := make([]plan.Entry, 0, len(plans))
	for _, p := range plans {
		price := decimal.Zero
		if p.MonthlyPrice != "" {
			parsed, err := decimal.NewFromString(p.MonthlyPrice)
			if err != nil {
				return nil, fmt.Errorf("invalid monthly price %q for plan %q: %w", p.MonthlyPrice, p.Plan, err)
			}
			price = parsed
		}
		entries = append(entries, plan.Entry{
			Plan:         plan.Plan(p.Plan),
			DisplayName:  p.DisplayName,
			UsageLimit:   p.UsageLimit,
			PriceID:      p.PriceID,
			MonthlyPrice: price,
			Currency:     p.Currency,
		})
	}
	return entries, nil
}
