package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/adapter/repository"
	"github.com/jobdeck/billing/internal/domain/gateway"
)

// WebhookHandler ingests provider events. Delivery is at-least-once and
// unordered; the stored event row deduplicates redeliveries and the
// lifecycle service's version guard discards superseded events.
type WebhookHandler struct {
	logger        *zap.Logger
	webhookSecret string
	webhookRepo   repository.WebhookRepository
	lifecycle     LifecycleService
}

func NewWebhookHandler(logger *zap.Logger, webhookSecret string, webhookRepo repository.WebhookRepository, lifecycle LifecycleService) *WebhookHandler {
	return &WebhookHandler{
		logger:        logger,
		webhookSecret: webhookSecret,
		webhookRepo:   webhookRepo,
		lifecycle:     lifecycle,
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	event, err := webhook.ConstructEventWithOptions(
		body,
		sig,
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)

	if err != nil {
		h.logger.Error("Webhook signature verification failed",
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Webhook signature verification failed",
		})
	}

	h.logger.Info("Webhook event received",
		zap.String("type", string(event.Type)),
		zap.String("id", event.ID),
		zap.Time("created", time.Unix(event.Created, 0)))

	ctx := c.Request().Context()

	fresh, err := h.webhookRepo.SaveEvent(ctx, event.ID, string(event.Type), body)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to record event"})
	}
	if !fresh {
		h.logger.Info("Duplicate webhook event discarded",
			zap.String("id", event.ID))
		return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
	}

	providerEvent, err := h.translateEvent(&event)
	if err != nil {
		h.logger.Error("Failed to parse webhook payload",
			zap.String("id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		if markErr := h.webhookRepo.MarkFailed(ctx, event.ID, err); markErr != nil {
			h.logger.Error("Failed to mark webhook event failed", zap.Error(markErr))
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Malformed event payload"})
	}
	if providerEvent == nil {
		// Event type we do not act on. Acknowledge so it is not redelivered.
		if markErr := h.webhookRepo.MarkProcessed(ctx, event.ID); markErr != nil {
			h.logger.Error("Failed to mark webhook event processed", zap.Error(markErr))
		}
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	}

	if err := h.lifecycle.ApplyProviderEvent(ctx, providerEvent); err != nil {
		h.logger.Error("Failed to apply provider event",
			zap.String("id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		if markErr := h.webhookRepo.MarkFailed(ctx, event.ID, err); markErr != nil {
			h.logger.Error("Failed to mark webhook event failed", zap.Error(markErr))
		}
		// Non-2xx makes the provider redeliver; the stored row tracks the
		// failure for manual replay if retries run out.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to process event"})
	}

	if err := h.webhookRepo.MarkProcessed(ctx, event.ID); err != nil {
		h.logger.Error("Failed to mark webhook event processed", zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// translateEvent maps a raw provider event onto the subscription lifecycle
// vocabulary. Returns nil for event types that carry nothing to reconcile.
func (h *WebhookHandler) translateEvent(event *stripe.Event) (*gateway.ProviderEvent, error) {
	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, err
		}
		return h.translateSubscriptionChange(event, &sub), nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, err
		}
		ev := baseEvent(event, &sub)
		ev.Type = gateway.EventSubscriptionDeleted
		return ev, nil

	case stripe.EventTypeInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, err
		}
		if invoice.Customer == nil {
			return nil, nil
		}
		return &gateway.ProviderEvent{
			EventID:    event.ID,
			Type:       gateway.EventPaymentFailed,
			Version:    event.Created,
			CustomerID: invoice.Customer.ID,
			OccurredAt: time.Unix(event.Created, 0),
		}, nil

	case stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, err
		}
		// Only cycle invoices roll the billing period; the creation invoice
		// is covered by the subscription.created event.
		if invoice.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle || invoice.Customer == nil {
			return nil, nil
		}
		ev := &gateway.ProviderEvent{
			EventID:    event.ID,
			Type:       gateway.EventPeriodRenewed,
			Version:    event.Created,
			CustomerID: invoice.Customer.ID,
			OccurredAt: time.Unix(event.Created, 0),
		}
		if invoice.Subscription != nil {
			ev.SubscriptionID = invoice.Subscription.ID
		}
		if invoice.Lines != nil && len(invoice.Lines.Data) > 0 && invoice.Lines.Data[0].Period != nil {
			period := invoice.Lines.Data[0].Period
			ev.PeriodStart = time.Unix(period.Start, 0)
			ev.PeriodEnd = time.Unix(period.End, 0)
		}
		return ev, nil
	}

	return nil, nil
}

// translateSubscriptionChange picks the lifecycle meaning of a subscription
// create/update out of the object state and the changed attributes.
func (h *WebhookHandler) translateSubscriptionChange(event *stripe.Event, sub *stripe.Subscription) *gateway.ProviderEvent {
	ev := baseEvent(event, sub)

	// A flip of cancel_at_period_end is a cancellation scheduling change,
	// not a plan or payment change.
	if _, changed := event.Data.PreviousAttributes["cancel_at_period_end"]; changed && event.Type == stripe.EventTypeCustomerSubscriptionUpdated {
		if sub.CancelAtPeriodEnd {
			ev.Type = gateway.EventCancellationScheduled
		} else {
			ev.Type = gateway.EventCancellationReverted
		}
		return ev
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		if prev, changed := event.Data.PreviousAttributes["status"]; changed && prev == string(stripe.SubscriptionStatusPastDue) {
			ev.Type = gateway.EventPaymentRecovered
			return ev
		}
		ev.Type = gateway.EventSubscriptionActivated
	case stripe.SubscriptionStatusPastDue:
		ev.Type = gateway.EventPaymentFailed
	case stripe.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusIncompleteExpired:
		ev.Type = gateway.EventSubscriptionDeleted
	default:
		// incomplete subscriptions have not been paid for yet
		return nil
	}

	return ev
}

func baseEvent(event *stripe.Event, sub *stripe.Subscription) *gateway.ProviderEvent {
	ev := &gateway.ProviderEvent{
		EventID:        event.ID,
		Version:        event.Created,
		SubscriptionID: sub.ID,
		OccurredAt:     time.Unix(event.Created, 0),
	}
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		ev.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0)
		ev.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0)
	}
	return ev
}
