package gateway

import (
	"context"
	"time"
)

// BillingGateway defines the outbound contract to the payment provider.
// Implementations must not retry internally; a failed call surfaces as
// errors.ProviderUnavailableError and the caller decides what to do.
type BillingGateway interface {
	// CreateCustomer registers the account with the provider and returns
	// the provider customer id.
	CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (string, error)

	// CreateCheckoutSession starts a hosted checkout for a subscription
	// price and returns the URL the user is redirected to.
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error)

	// CreatePortalSession returns a hosted billing-portal URL for the customer.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ScheduleCancellation marks the provider subscription to cancel at
	// period end. Scheduling twice is a provider-side no-op.
	ScheduleCancellation(ctx context.Context, subscriptionID string) error

	// UndoCancellation clears a pending cancel-at-period-end flag.
	UndoCancellation(ctx context.Context, subscriptionID string) error
}

// CreateCustomerRequest carries the account identity handed to the provider.
type CreateCustomerRequest struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
}

// CheckoutSessionRequest is a provider-agnostic checkout initiation request.
type CheckoutSessionRequest struct {
	CustomerID string `json:"customer_id"`
	PriceID    string `json:"price_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CheckoutSessionResponse is the provider's answer to a checkout initiation.
type CheckoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// EventType classifies provider events after translation from the wire format.
type EventType string

const (
	EventSubscriptionActivated EventType = "subscription_activated"
	EventPaymentFailed         EventType = "payment_failed"
	EventPaymentRecovered      EventType = "payment_recovered"
	EventSubscriptionDeleted   EventType = "subscription_deleted"
	EventPeriodRenewed         EventType = "period_renewed"
	EventCancellationScheduled EventType = "cancellation_scheduled"
	EventCancellationReverted  EventType = "cancellation_reverted"
)

// ProviderEvent is a provider webhook event translated to domain terms.
// Version is provider-assigned and monotonic per account; events at or
// below a record's last synced version are discarded.
type ProviderEvent struct {
	EventID        string    `json:"event_id"`
	Type           EventType `json:"type"`
	Version        int64     `json:"version"`
	CustomerID     string    `json:"customer_id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	PriceID        string    `json:"price_id,omitempty"`
	PeriodStart    time.Time `json:"period_start,omitempty"`
	PeriodEnd      time.Time `json:"period_end,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
