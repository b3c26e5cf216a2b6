package plan

import "database/sql/driver"

// Plan identifies a billing tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Scan implements sql.Scanner interface
func (p *Plan) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = Plan(v)
	case []byte:
		*p = Plan(v)
	default:
		*p = PlanFree
	}
	return nil
}

// Value implements driver.Valuer interface
func (p Plan) Value() (driver.Value, error) {
	return string(p), nil
}

// priority orders tiers for upgrade/downgrade detection.
var priority = map[Plan]int{
	PlanFree:       0,
	PlanPremium:    1,
	PlanEnterprise: 2,
}

// IsValid reports whether p is a known tier.
func (p Plan) IsValid() bool {
	_, ok := priority[p]
	return ok
}

// Change describes the direction of a plan change.
type Change int

const (
	ChangeSame Change = iota
	ChangeUpgrade
	ChangeDowngrade
)

// Compare returns the direction of moving from current to target.
func Compare(current, target Plan) Change {
	switch {
	case priority[target] > priority[current]:
		return ChangeUpgrade
	case priority[target] < priority[current]:
		return ChangeDowngrade
	default:
		return ChangeSame
	}
}
