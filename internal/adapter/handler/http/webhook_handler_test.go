package http

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/jobdeck/billing/internal/domain/gateway"
)

func subscriptionEvent(t *testing.T, eventType stripe.EventType, raw string, previous map[string]interface{}) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		ID:      "evt_test",
		Type:    eventType,
		Created: 1700000000,
		Data: &stripe.EventData{
			Raw:                json.RawMessage(raw),
			PreviousAttributes: previous,
		},
	}
}

func TestWebhookHandler_TranslateEvent(t *testing.T) {
	handler := NewWebhookHandler(zap.NewNop(), "whsec_test", nil, nil)

	t.Run("subscription created becomes activation", func(t *testing.T) {
		raw := `{
			"id": "sub_1",
			"status": "active",
			"customer": {"id": "cus_1"},
			"cancel_at_period_end": false,
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"items": {"data": [{"price": {"id": "price_premium"}}]}
		}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, raw, nil))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventSubscriptionActivated, ev.Type)
		assert.Equal(t, "cus_1", ev.CustomerID)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "price_premium", ev.PriceID)
		assert.Equal(t, int64(1700000000), ev.Version)
		assert.Equal(t, int64(1702592000), ev.PeriodEnd.Unix())
	})

	t.Run("cancel flag flip becomes cancellation scheduled", func(t *testing.T) {
		raw := `{"id": "sub_1", "status": "active", "customer": {"id": "cus_1"}, "cancel_at_period_end": true}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, raw,
			map[string]interface{}{"cancel_at_period_end": false}))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventCancellationScheduled, ev.Type)
	})

	t.Run("cancel flag cleared becomes cancellation reverted", func(t *testing.T) {
		raw := `{"id": "sub_1", "status": "active", "customer": {"id": "cus_1"}, "cancel_at_period_end": false}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, raw,
			map[string]interface{}{"cancel_at_period_end": true}))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventCancellationReverted, ev.Type)
	})

	t.Run("past_due status becomes payment failed", func(t *testing.T) {
		raw := `{"id": "sub_1", "status": "past_due", "customer": {"id": "cus_1"}}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, raw, nil))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventPaymentFailed, ev.Type)
	})

	t.Run("active after past_due becomes payment recovered", func(t *testing.T) {
		raw := `{"id": "sub_1", "status": "active", "customer": {"id": "cus_1"}}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, raw,
			map[string]interface{}{"status": "past_due"}))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventPaymentRecovered, ev.Type)
	})

	t.Run("subscription deleted", func(t *testing.T) {
		raw := `{"id": "sub_1", "status": "canceled", "customer": {"id": "cus_1"}}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, raw, nil))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventSubscriptionDeleted, ev.Type)
	})

	t.Run("cycle invoice becomes period renewal", func(t *testing.T) {
		raw := `{
			"id": "in_1",
			"billing_reason": "subscription_cycle",
			"customer": {"id": "cus_1"},
			"subscription": {"id": "sub_1"},
			"lines": {"data": [{"period": {"start": 1702592000, "end": 1705184000}}]}
		}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeInvoicePaymentSucceeded, raw, nil))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventPeriodRenewed, ev.Type)
		assert.Equal(t, int64(1702592000), ev.PeriodStart.Unix())
		assert.Equal(t, int64(1705184000), ev.PeriodEnd.Unix())
	})

	t.Run("creation invoice is ignored", func(t *testing.T) {
		raw := `{"id": "in_1", "billing_reason": "subscription_create", "customer": {"id": "cus_1"}}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeInvoicePaymentSucceeded, raw, nil))

		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("failed invoice becomes payment failed", func(t *testing.T) {
		raw := `{"id": "in_1", "customer": {"id": "cus_1"}}`
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeInvoicePaymentFailed, raw, nil))

		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, gateway.EventPaymentFailed, ev.Type)
		assert.Equal(t, "cus_1", ev.CustomerID)
	})

	t.Run("unrelated event types are ignored", func(t *testing.T) {
		ev, err := handler.translateEvent(subscriptionEvent(t, stripe.EventTypeCustomerCreated, `{}`, nil))

		require.NoError(t, err)
		assert.Nil(t, ev)
	})
}
