package errors

import "fmt"

// QuotaExceededError is returned when an increment would push consumption
// past the plan limit. The increment is not applied.
type QuotaExceededError struct {
	Limit     int64
	Consumed  int64
	Requested int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("usage quota exceeded: limit %d, consumed %d, requested %d", e.Limit, e.Consumed, e.Requested)
}

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(limit, consumed, requested int64) *QuotaExceededError {
	return &QuotaExceededError{
		Limit:     limit,
		Consumed:  consumed,
		Requested: requested,
	}
}
