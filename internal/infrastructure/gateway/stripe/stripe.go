package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"go.uber.org/zap"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
	"github.com/jobdeck/billing/internal/domain/gateway"
)

// Gateway is the Stripe-backed BillingGateway. Calls are not retried here;
// failures surface as ProviderUnavailableError for the caller to handle.
type Gateway struct {
	logger *zap.Logger
}

// NewGateway creates the Stripe gateway. The global stripe.Key must be set
// before first use.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{logger: logger}
}

// CreateCustomer registers the account with Stripe. The account id travels
// in customer metadata so webhook payloads can always be traced back.
func (g *Gateway) CreateCustomer(ctx context.Context, req *gateway.CreateCustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"account_id": req.AccountID,
		},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		g.logger.Error("Stripe customer creation failed",
			zap.String("account_id", req.AccountID),
			zap.Error(err))
		return "", domainErrors.NewProviderUnavailableError("create_customer", err)
	}

	g.logger.Info("Stripe customer created",
		zap.String("customer_id", cust.ID),
		zap.String("account_id", req.AccountID))

	return cust.ID, nil
}

// CreateCheckoutSession starts a hosted subscription checkout.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutSessionRequest) (*gateway.CheckoutSessionResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	session, err := checkoutsession.New(params)
	if err != nil {
		g.logger.Error("Stripe checkout session creation failed",
			zap.String("customer_id", req.CustomerID),
			zap.String("price_id", req.PriceID),
			zap.Error(err))
		return nil, domainErrors.NewProviderUnavailableError("create_checkout_session", err)
	}

	return &gateway.CheckoutSessionResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// CreatePortalSession returns a hosted billing-portal URL.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := portalsession.New(params)
	if err != nil {
		g.logger.Error("Stripe portal session creation failed",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return "", domainErrors.NewProviderUnavailableError("create_portal_session", err)
	}

	return session.URL, nil
}

// ScheduleCancellation flags the subscription to end at period close.
func (g *Gateway) ScheduleCancellation(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := subscription.Update(subscriptionID, params); err != nil {
		g.logger.Error("Stripe cancellation scheduling failed",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return domainErrors.NewProviderUnavailableError("schedule_cancellation", err)
	}

	g.logger.Info("Stripe subscription set to cancel at period end",
		zap.String("subscription_id", subscriptionID))

	return nil
}

// UndoCancellation clears a pending cancel-at-period-end flag.
func (g *Gateway) UndoCancellation(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	if _, err := subscription.Update(subscriptionID, params); err != nil {
		g.logger.Error("Stripe cancellation revert failed",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return domainErrors.NewProviderUnavailableError("undo_cancellation", err)
	}

	g.logger.Info("Stripe subscription cancellation reverted",
		zap.String("subscription_id", subscriptionID))

	return nil
}
