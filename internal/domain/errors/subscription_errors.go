package errors

import "errors"

var (
	// ErrInvalidPlan indicates the requested plan is not a recognized checkout target
	ErrInvalidPlan = errors.New("invalid plan for checkout")

	// ErrNoActiveSubscription indicates the account has no active or past-due subscription
	ErrNoActiveSubscription = errors.New("no active subscription found")

	// ErrReactivationWindowClosed indicates the billing period already ended;
	// the account must start a new checkout instead
	ErrReactivationWindowClosed = errors.New("reactivation window closed")

	// ErrNoBillingAccount indicates no provider customer exists for the account yet
	ErrNoBillingAccount = errors.New("no billing account found")

	// ErrConcurrentModification signals an optimistic-concurrency conflict;
	// callers retry once before surfacing it
	ErrConcurrentModification = errors.New("subscription modified concurrently")

	// ErrSubscriptionNotFound indicates a provider event referenced an unknown account
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
