package plan

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Unlimited marks a tier without a usage cap.
const Unlimited int64 = -1

// Entry holds the entitlements and provider mapping for one tier.
type Entry struct {
	Plan         Plan
	DisplayName  string
	UsageLimit   int64
	PriceID      string
	MonthlyPrice decimal.Decimal
	Currency     string
}

// Unmetered reports whether the entry has no usage cap.
func (e Entry) Unmetered() bool {
	return e.UsageLimit == Unlimited
}

// Catalog is the immutable tier table, built once at startup.
type Catalog struct {
	entries map[Plan]Entry
	byPrice map[string]Plan
}

// NewCatalog validates the configured entries and builds the lookup tables.
// A paid tier without a provider price id is a configuration error and must
// abort startup.
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[Plan]Entry, len(entries)),
		byPrice: make(map[string]Plan, len(entries)),
	}

	for _, e := range entries {
		if !e.Plan.IsValid() {
			return nil, fmt.Errorf("unknown plan %q in catalog", e.Plan)
		}
		if _, dup := c.entries[e.Plan]; dup {
			return nil, fmt.Errorf("duplicate catalog entry for plan %q", e.Plan)
		}
		if e.Plan != PlanFree && e.PriceID == "" {
			return nil, fmt.Errorf("plan %q has no provider price id", e.Plan)
		}
		if e.UsageLimit < 0 && e.UsageLimit != Unlimited {
			return nil, fmt.Errorf("plan %q has invalid usage limit %d", e.Plan, e.UsageLimit)
		}
		c.entries[e.Plan] = e
		if e.PriceID != "" {
			c.byPrice[e.PriceID] = e.Plan
		}
	}

	for _, required := range []Plan{PlanFree, PlanPremium, PlanEnterprise} {
		if _, ok := c.entries[required]; !ok {
			return nil, fmt.Errorf("catalog is missing plan %q", required)
		}
	}

	return c, nil
}

// LimitFor returns the usage limit for a tier. Unknown tiers fall back to
// the free tier limit.
func (c *Catalog) LimitFor(p Plan) int64 {
	if e, ok := c.entries[p]; ok {
		return e.UsageLimit
	}
	return c.entries[PlanFree].UsageLimit
}

// PriceIDFor returns the provider price id for a tier.
func (c *Catalog) PriceIDFor(p Plan) (string, bool) {
	e, ok := c.entries[p]
	if !ok || e.PriceID == "" {
		return "", false
	}
	return e.PriceID, true
}

// PlanForPriceID resolves a provider price id back to a tier. Used when
// reconciling provider events that only carry price identifiers.
func (c *Catalog) PlanForPriceID(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}

// Entries returns all catalog entries ordered by tier priority.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return priority[out[i].Plan] < priority[out[j].Plan]
	})
	return out
}
