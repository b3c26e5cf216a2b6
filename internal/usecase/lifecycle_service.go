package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/jobdeck/billing/internal/domain/errors"
	"github.com/jobdeck/billing/internal/domain/gateway"
	"github.com/jobdeck/billing/internal/domain/model"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/domain/repository"
)

// freeBillingCycle is the synthetic period length for accounts that have
// never checked out. Paid periods always come from provider events.
const freeBillingCycle = 30 * 24 * time.Hour

// LifecycleService orchestrates subscription state across the local record,
// the billing provider, and the usage counters. It is the sole writer of
// subscription transitions. No in-process lock is held across gateway or
// storage calls; the repositories provide the required atomicity.
type LifecycleService struct {
	subscriptionRepo repository.SubscriptionRepository
	usageRepo        repository.UsageRepository
	gateway          gateway.BillingGateway
	catalog          *plan.Catalog
	logger           *zap.Logger
}

// NewLifecycleService creates a new subscription lifecycle service instance
func NewLifecycleService(
	subscriptionRepo repository.SubscriptionRepository,
	usageRepo repository.UsageRepository,
	billingGateway gateway.BillingGateway,
	catalog *plan.Catalog,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		subscriptionRepo: subscriptionRepo,
		usageRepo:        usageRepo,
		gateway:          billingGateway,
		catalog:          catalog,
		logger:           logger,
	}
}

// freeSubscription builds the lazily-created record for a first-time account.
func freeSubscription(accountID uuid.UUID) *model.Subscription {
	now := time.Now()
	return &model.Subscription{
		AccountID:          accountID,
		Plan:               plan.PlanFree,
		Status:             model.SubscriptionStatusNone,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(freeBillingCycle),
	}
}

// GetOrCreate returns the account's subscription record, creating the free
// record on first access. Concurrent first calls all observe the same row.
func (s *LifecycleService) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error) {
	return s.subscriptionRepo.GetOrCreate(ctx, accountID, func() *model.Subscription {
		return freeSubscription(accountID)
	})
}

// UsageSummary reports consumption against the current period's limit.
type UsageSummary struct {
	Plan      plan.Plan `json:"plan"`
	Consumed  int64     `json:"consumed"`
	Limit     int64     `json:"limit"`
	PeriodEnd time.Time `json:"period_end"`
}

// CurrentUsage reads the usage counter for the record's current period.
// A missing counter row means nothing was consumed yet.
func (s *LifecycleService) CurrentUsage(ctx context.Context, accountID uuid.UUID) (*UsageSummary, error) {
	sub, err := s.GetOrCreate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	counter, err := s.usageRepo.GetForPeriod(ctx, accountID, sub.CurrentPeriodStart, model.ResourceApplications)
	if err != nil {
		return nil, err
	}

	var consumed int64
	if counter != nil {
		consumed = counter.Consumed
	}

	return &UsageSummary{
		Plan:      sub.Plan,
		Consumed:  consumed,
		Limit:     s.catalog.LimitFor(sub.Plan),
		PeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}

// UsageHistory returns all retained usage counters for the account, newest
// period first.
func (s *LifecycleService) UsageHistory(ctx context.Context, accountID uuid.UUID) ([]*model.UsageCounter, error) {
	return s.usageRepo.ListByAccount(ctx, accountID, model.ResourceApplications)
}

// CreateCheckoutSession starts a hosted checkout towards targetPlan. The
// provider customer is created lazily on first checkout. Gateway failures
// propagate unmodified; checkout is user-interactive and the user re-clicks.
func (s *LifecycleService) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, targetPlan plan.Plan, successURL, cancelURL string) (string, error) {
	sub, err := s.GetOrCreate(ctx, accountID)
	if err != nil {
		return "", err
	}

	if !targetPlan.IsValid() || targetPlan == plan.PlanFree {
		return "", domainErrors.ErrInvalidPlan
	}
	if targetPlan == sub.Plan && sub.Status.Billed() {
		return "", domainErrors.ErrInvalidPlan
	}

	priceID, ok := s.catalog.PriceIDFor(targetPlan)
	if !ok {
		return "", domainErrors.ErrInvalidPlan
	}

	customerID, err := s.ensureCustomer(ctx, sub)
	if err != nil {
		return "", err
	}

	resp, err := s.gateway.CreateCheckoutSession(ctx, &gateway.CheckoutSessionRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Checkout session created",
		zap.String("account_id", accountID.String()),
		zap.String("target_plan", string(targetPlan)),
		zap.String("session_id", resp.SessionID))

	return resp.CheckoutURL, nil
}

// ensureCustomer returns the record's provider customer id, registering the
// account with the provider on first use.
func (s *LifecycleService) ensureCustomer(ctx context.Context, sub *model.Subscription) (string, error) {
	if sub.ProviderCustomerID != nil && *sub.ProviderCustomerID != "" {
		return *sub.ProviderCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, &gateway.CreateCustomerRequest{
		AccountID: sub.AccountID.String(),
	})
	if err != nil {
		return "", err
	}

	rec, err := s.mutate(ctx, sub.AccountID, func(rec *model.Subscription) error {
		if rec.ProviderCustomerID == nil || *rec.ProviderCustomerID == "" {
			rec.ProviderCustomerID = &customerID
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	// Racing first checkouts may each register a customer; the id that made
	// it onto the record is the one webhook reconciliation resolves, so the
	// checkout session must be created against it.
	if *rec.ProviderCustomerID != customerID {
		s.logger.Warn("Discarding locally created customer in favor of the stored one",
			zap.String("account_id", sub.AccountID.String()),
			zap.String("stored_customer_id", *rec.ProviderCustomerID),
			zap.String("discarded_customer_id", customerID))
	}

	return *rec.ProviderCustomerID, nil
}

// CancelSubscription schedules cancellation at period end. Calling it again
// while a cancellation is already pending is a no-op success.
func (s *LifecycleService) CancelSubscription(ctx context.Context, accountID uuid.UUID) error {
	sub, err := s.GetOrCreate(ctx, accountID)
	if err != nil {
		return err
	}

	if !sub.Status.Billed() {
		return domainErrors.ErrNoActiveSubscription
	}
	if sub.CancelAtPeriodEnd {
		s.logger.Info("Cancellation already scheduled",
			zap.String("account_id", accountID.String()))
		return nil
	}

	if err := s.gateway.ScheduleCancellation(ctx, *sub.ProviderSubscriptionID); err != nil {
		return err
	}

	_, err = s.mutate(ctx, accountID, func(rec *model.Subscription) error {
		if !rec.Status.Billed() {
			return domainErrors.ErrNoActiveSubscription
		}
		rec.CancelAtPeriodEnd = true
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Subscription cancellation scheduled",
		zap.String("account_id", accountID.String()),
		zap.String("subscription_id", *sub.ProviderSubscriptionID))

	return nil
}

// ReactivateSubscription clears a pending cancellation while the period is
// still running. Once the period ended the subscription is gone and the
// account must start a new checkout.
func (s *LifecycleService) ReactivateSubscription(ctx context.Context, accountID uuid.UUID) error {
	sub, err := s.GetOrCreate(ctx, accountID)
	if err != nil {
		return err
	}

	if sub.Status == model.SubscriptionStatusCanceled {
		return domainErrors.ErrReactivationWindowClosed
	}
	if !sub.Status.Billed() {
		return domainErrors.ErrNoActiveSubscription
	}
	if !sub.CancelAtPeriodEnd {
		// Nothing to revert. This holds even when the locally stored
		// period has lapsed because the renewal event is still in flight.
		s.logger.Info("No pending cancellation to revert",
			zap.String("account_id", accountID.String()))
		return nil
	}
	if !time.Now().Before(sub.CurrentPeriodEnd) {
		return domainErrors.ErrReactivationWindowClosed
	}

	if err := s.gateway.UndoCancellation(ctx, *sub.ProviderSubscriptionID); err != nil {
		return err
	}

	_, err = s.mutate(ctx, accountID, func(rec *model.Subscription) error {
		if rec.Status == model.SubscriptionStatusCanceled {
			return domainErrors.ErrReactivationWindowClosed
		}
		rec.CancelAtPeriodEnd = false
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Subscription reactivated",
		zap.String("account_id", accountID.String()),
		zap.String("subscription_id", *sub.ProviderSubscriptionID))

	return nil
}

// GetPortalURL returns a hosted billing-portal URL for the account.
func (s *LifecycleService) GetPortalURL(ctx context.Context, accountID uuid.UUID, returnURL string) (string, error) {
	sub, err := s.GetOrCreate(ctx, accountID)
	if err != nil {
		return "", err
	}

	if sub.ProviderCustomerID == nil || *sub.ProviderCustomerID == "" {
		return "", domainErrors.ErrNoBillingAccount
	}

	return s.gateway.CreatePortalSession(ctx, *sub.ProviderCustomerID, returnURL)
}

// ApplyProviderEvent reconciles the local record with an asynchronous
// provider event. Events at or below the record's last synced version are
// discarded, which makes at-least-once delivery safe. A lost optimistic
// write is retried once against a fresh read before surfacing.
func (s *LifecycleService) ApplyProviderEvent(ctx context.Context, ev *gateway.ProviderEvent) error {
	err := s.applyEventOnce(ctx, ev)
	if errors.Is(err, domainErrors.ErrConcurrentModification) {
		s.logger.Warn("Concurrent modification while applying provider event, retrying once",
			zap.String("event_id", ev.EventID),
			zap.String("customer_id", ev.CustomerID))
		err = s.applyEventOnce(ctx, ev)
	}
	return err
}

func (s *LifecycleService) applyEventOnce(ctx context.Context, ev *gateway.ProviderEvent) error {
	sub, err := s.subscriptionRepo.GetByProviderCustomerID(ctx, ev.CustomerID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("Provider event for unknown customer",
			zap.String("event_id", ev.EventID),
			zap.String("customer_id", ev.CustomerID),
			zap.String("type", string(ev.Type)))
		return domainErrors.ErrSubscriptionNotFound
	}

	if ev.Version <= sub.LastSyncedVersion {
		s.logger.Debug("Discarding superseded provider event",
			zap.String("event_id", ev.EventID),
			zap.Int64("event_version", ev.Version),
			zap.Int64("last_synced_version", sub.LastSyncedVersion))
		return nil
	}

	expected := sub.LastSyncedVersion
	newPeriod := false

	switch ev.Type {
	case gateway.EventSubscriptionActivated:
		sub.Status = model.SubscriptionStatusActive
		sub.CancelAtPeriodEnd = false
		if ev.SubscriptionID != "" {
			sub.ProviderSubscriptionID = &ev.SubscriptionID
		}
		if p, ok := s.catalog.PlanForPriceID(ev.PriceID); ok {
			sub.Plan = p
		} else if ev.PriceID != "" {
			s.logger.Warn("Activation event carries unknown price id",
				zap.String("event_id", ev.EventID),
				zap.String("price_id", ev.PriceID))
		}
		if !ev.PeriodEnd.IsZero() {
			sub.CurrentPeriodStart = ev.PeriodStart
			sub.CurrentPeriodEnd = ev.PeriodEnd
			newPeriod = true
		}

	case gateway.EventPaymentFailed:
		if sub.Status == model.SubscriptionStatusActive {
			sub.Status = model.SubscriptionStatusPastDue
		}

	case gateway.EventPaymentRecovered:
		if sub.Status == model.SubscriptionStatusPastDue {
			sub.Status = model.SubscriptionStatusActive
		}

	case gateway.EventSubscriptionDeleted:
		sub.Status = model.SubscriptionStatusCanceled
		sub.CancelAtPeriodEnd = false

	case gateway.EventPeriodRenewed:
		// A renewal must move the period forward; replayed or late
		// renewals for an older period carry no new information.
		if ev.PeriodEnd.IsZero() || !ev.PeriodEnd.After(sub.CurrentPeriodEnd) {
			s.logger.Debug("Discarding stale period renewal",
				zap.String("event_id", ev.EventID),
				zap.Time("event_period_end", ev.PeriodEnd),
				zap.Time("current_period_end", sub.CurrentPeriodEnd))
			return nil
		}
		sub.CurrentPeriodStart = ev.PeriodStart
		sub.CurrentPeriodEnd = ev.PeriodEnd
		newPeriod = true

	case gateway.EventCancellationScheduled:
		if sub.Status.Billed() {
			sub.CancelAtPeriodEnd = true
		}

	case gateway.EventCancellationReverted:
		sub.CancelAtPeriodEnd = false

	default:
		s.logger.Warn("Unhandled provider event type",
			zap.String("event_id", ev.EventID),
			zap.String("type", string(ev.Type)))
		return nil
	}

	sub.LastSyncedVersion = ev.Version

	if err := s.subscriptionRepo.UpdateVersioned(ctx, sub, expected); err != nil {
		return err
	}

	if newPeriod {
		// The previous period's counter stays behind for reporting.
		if err := s.usageRepo.EnsureCounter(ctx, &model.UsageCounter{
			AccountID:   sub.AccountID,
			PeriodStart: sub.CurrentPeriodStart,
			PeriodEnd:   sub.CurrentPeriodEnd,
			Resource:    model.ResourceApplications,
		}); err != nil {
			return err
		}
	}

	s.logger.Info("Provider event applied",
		zap.String("event_id", ev.EventID),
		zap.String("account_id", sub.AccountID.String()),
		zap.String("type", string(ev.Type)),
		zap.String("status", string(sub.Status)),
		zap.Int64("version", ev.Version))

	return nil
}

// mutate applies fn to a fresh read of the record and writes it back with
// the version guard, retrying once after a lost race. The record's synced
// version is left untouched; only provider events advance it.
func (s *LifecycleService) mutate(ctx context.Context, accountID uuid.UUID, fn func(*model.Subscription) error) (*model.Subscription, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sub, err := s.GetOrCreate(ctx, accountID)
		if err != nil {
			return nil, err
		}

		if err := fn(sub); err != nil {
			return nil, err
		}

		err = s.subscriptionRepo.UpdateVersioned(ctx, sub, sub.LastSyncedVersion)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, domainErrors.ErrConcurrentModification) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("giving up after retry: %w", domainErrors.ErrConcurrentModification)
}
