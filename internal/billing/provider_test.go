package billing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioAPI/internal/types/subscription"
)

var (
	lsCatalog     = PlanCatalog{Monthly: "101", Yearly: "102", Lifetime: "103"}
	paddleCatalog = PlanCatalog{Monthly: "pri_monthly", Yearly: "pri_yearly", Lifetime: "pri_lifetime"}
)

func lsPayload(t *testing.T, event, dataType string, id any, attrs map[string]any, custom map[string]any) []byte {
	t.Helper()
	meta := map[string]any{"event_name": event}
	if custom != nil {
		meta["custom_data"] = custom
	}
	body, err := json.Marshal(map[string]any{
		"meta": meta,
		"data": map[string]any{"type": dataType, "id": id, "attributes": attrs},
	})
	require.NoError(t, err)
	return body
}

func paddlePayload(t *testing.T, event string, data map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event_id":   "evt_01",
		"event_type": event,
		"data":       data,
	})
	require.NoError(t, err)
	return body
}

func TestPlanCatalogPlanFor(t *testing.T) {
	tests := []struct {
		id   string
		want subscription.PlanType
	}{
		{"101", subscription.PlanProMonthly},
		{"102", subscription.PlanProYearly},
		{"103", subscription.PlanProLifetime},
		{" 103 ", subscription.PlanProLifetime},
		{"999", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lsCatalog.PlanFor(tt.id), "id %q", tt.id)
	}

	// Unconfigured plans must not match an empty identifier.
	assert.Equal(t, subscription.PlanType(""), PlanCatalog{Monthly: "101"}.PlanFor(""))
	assert.Equal(t, "102", lsCatalog.IDFor(subscription.PlanProYearly))
	assert.Equal(t, "", lsCatalog.IDFor(subscription.PlanFree))
}

func TestLemonSqueezyParseSubscription(t *testing.T) {
	p := NewLemonSqueezy("s", lsCatalog)
	body := lsPayload(t, "subscription_created", "subscriptions", "5001", map[string]any{
		"customer_id": 77,
		"order_id":    9001,
		"variant_id":  101,
		"status":      "on_trial",
		"user_email":  "Jane@Example.com ",
	}, map[string]any{"user_id": "u1"})

	ev, err := p.ParsePayload(body)
	require.NoError(t, err)
	assert.Equal(t, EventSubscriptionCreated, ev.Name)
	assert.Equal(t, "subscription_created", ev.ProviderEvent)
	assert.Equal(t, subscription.ProviderLemonSqueezy, ev.Provider)
	assert.Equal(t, "5001", ev.SubscriptionID)
	assert.Equal(t, "9001", ev.OrderID)
	assert.Equal(t, "77", ev.CustomerID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "Jane@Example.com", ev.UserEmail)
	assert.Equal(t, subscription.PlanProMonthly, ev.PlanType)
	assert.Equal(t, subscription.StatusActive, ev.Status)
}

func TestLemonSqueezyParseOrderAndInvoice(t *testing.T) {
	p := NewLemonSqueezy("s", lsCatalog)

	order := lsPayload(t, "order_created", "orders", 42, map[string]any{
		"customer_id":      7,
		"first_order_item": map[string]any{"variant_id": 103},
	}, map[string]any{"userId": "u9"})
	ev, err := p.ParsePayload(order)
	require.NoError(t, err)
	assert.Equal(t, EventOrderCreated, ev.Name)
	assert.Equal(t, "42", ev.OrderID)
	assert.Equal(t, "u9", ev.UserID)
	assert.Equal(t, subscription.PlanProLifetime, ev.PlanType)

	invoice := lsPayload(t, "subscription_payment_success", "subscription-invoices", 3, map[string]any{
		"subscription_id": 5001,
		"customer_id":     7,
		"billing_reason":  "renewal",
		"status":          "paid",
	}, nil)
	ev, err = p.ParsePayload(invoice)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSuccess, ev.Name)
	assert.Equal(t, "5001", ev.SubscriptionID)
	assert.True(t, ev.Renewal)
	assert.Empty(t, ev.Status, "invoice status is not a subscription status")
}

func TestLemonSqueezyParseUnknownAndInvalid(t *testing.T) {
	p := NewLemonSqueezy("s", lsCatalog)

	ev, err := p.ParsePayload(lsPayload(t, "license_key_created", "license-keys", 1, map[string]any{}, nil))
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Name)

	_, err = p.ParsePayload([]byte(`{not json`))
	assert.Error(t, err)

	_, err = p.ParsePayload([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestPaddleParseSubscription(t *testing.T) {
	p := NewPaddle("s", paddleCatalog, 0)
	body := paddlePayload(t, "subscription.activated", map[string]any{
		"id":          "sub_01",
		"status":      "active",
		"customer_id": "ctm_01",
		"items":       []any{map[string]any{"price": map[string]any{"id": "pri_yearly"}}},
		"custom_data": map[string]any{"userId": "u2"},
	})

	ev, err := p.ParsePayload(body)
	require.NoError(t, err)
	assert.Equal(t, EventSubscriptionCreated, ev.Name)
	assert.Equal(t, "sub_01", ev.SubscriptionID)
	assert.Equal(t, "ctm_01", ev.CustomerID)
	assert.Equal(t, "u2", ev.UserID)
	assert.Equal(t, subscription.PlanProYearly, ev.PlanType)
	assert.Equal(t, subscription.StatusActive, ev.Status)

	for event, want := range map[string]EventName{
		"subscription.created":  EventSubscriptionCreated,
		"subscription.updated":  EventSubscriptionUpdated,
		"subscription.canceled": EventSubscriptionCancelled,
		"subscription.past_due": EventSubscriptionPastDue,
		"subscription.paused":   EventUnknown,
		"customer.created":      EventUnknown,
	} {
		ev, err := p.ParsePayload(paddlePayload(t, event, map[string]any{"id": "sub_01"}))
		require.NoError(t, err)
		assert.Equal(t, want, ev.Name, event)
	}
}

func TestPaddleParseTransactions(t *testing.T) {
	p := NewPaddle("s", paddleCatalog, 0)

	lifetime := paddlePayload(t, "transaction.completed", map[string]any{
		"id":          "txn_01",
		"customer_id": "ctm_01",
		"origin":      "web",
		"items":       []any{map[string]any{"price_id": "pri_lifetime"}},
		"custom_data": map[string]any{"user_id": "u1"},
	})
	ev, err := p.ParsePayload(lifetime)
	require.NoError(t, err)
	assert.Equal(t, EventOrderCreated, ev.Name)
	assert.Equal(t, "txn_01", ev.OrderID)
	assert.Equal(t, subscription.PlanProLifetime, ev.PlanType)

	renewal := paddlePayload(t, "transaction.completed", map[string]any{
		"id":              "txn_02",
		"subscription_id": "sub_01",
		"customer_id":     "ctm_01",
		"origin":          "subscription_recurring",
		"items":           []any{map[string]any{"price": map[string]any{"id": "pri_monthly"}}},
		"custom_data":     map[string]any{"userId": "u1"},
	})
	ev, err = p.ParsePayload(renewal)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSuccess, ev.Name)
	assert.Equal(t, "sub_01", ev.SubscriptionID)
	assert.True(t, ev.Renewal)
	assert.Equal(t, subscription.PlanProMonthly, ev.PlanType)

	failed := paddlePayload(t, "transaction.payment_failed", map[string]any{
		"id":       "txn_03",
		"customer": map[string]any{"email": "a@b.co"},
	})
	ev, err = p.ParsePayload(failed)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Name)
	assert.Equal(t, "a@b.co", ev.UserEmail)
}

func TestLooseID(t *testing.T) {
	var v struct {
		A looseID `json:"a"`
		B looseID `json:"b"`
		C looseID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12345678901,"b":" x1 ","c":null}`), &v))
	assert.Equal(t, "12345678901", v.A.String())
	assert.Equal(t, "x1", v.B.String())
	assert.Equal(t, "", v.C.String())
}
