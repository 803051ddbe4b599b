package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"folioAPI/internal/types/subscription"
)

const LemonSqueezySignatureHeader = "X-Signature"

type LemonSqueezy struct {
	secret  string
	catalog PlanCatalog
}

func NewLemonSqueezy(secret string, catalog PlanCatalog) *LemonSqueezy {
	return &LemonSqueezy{secret: secret, catalog: catalog}
}

func (p *LemonSqueezy) Name() subscription.Provider {
	return subscription.ProviderLemonSqueezy
}

func (p *LemonSqueezy) SignatureHeader() string {
	return LemonSqueezySignatureHeader
}

// VerifySignature checks the X-Signature header, a plain hex HMAC of the body.
func (p *LemonSqueezy) VerifySignature(body []byte, header string) error {
	if p.secret == "" {
		return authError(p.Name(), "webhook secret not configured")
	}
	if strings.TrimSpace(header) == "" {
		return authError(p.Name(), "missing %s header", LemonSqueezySignatureHeader)
	}
	if !Verify(body, header, p.secret) {
		return authError(p.Name(), "signature mismatch")
	}
	return nil
}

type lemonSqueezyWebhook struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string  `json:"type"`
		ID         looseID `json:"id"`
		Attributes struct {
			CustomerID     looseID `json:"customer_id"`
			OrderID        looseID `json:"order_id"`
			SubscriptionID looseID `json:"subscription_id"`
			VariantID      looseID `json:"variant_id"`
			Status         string  `json:"status"`
			UserEmail      string  `json:"user_email"`
			BillingReason  string  `json:"billing_reason"`
			FirstOrderItem *struct {
				VariantID looseID `json:"variant_id"`
			} `json:"first_order_item"`
		} `json:"attributes"`
	} `json:"data"`
}

var lemonSqueezyEvents = map[string]EventName{
	"order_created":                EventOrderCreated,
	"subscription_created":         EventSubscriptionCreated,
	"subscription_updated":         EventSubscriptionUpdated,
	"subscription_resumed":         EventSubscriptionUpdated,
	"subscription_unpaused":        EventSubscriptionUpdated,
	"subscription_cancelled":       EventSubscriptionCancelled,
	"subscription_expired":         EventSubscriptionCancelled,
	"subscription_payment_success": EventPaymentSuccess,
	"subscription_payment_failed":  EventPaymentFailed,
}

func (p *LemonSqueezy) ParsePayload(body []byte) (*Event, error) {
	var hook lemonSqueezyWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("decode lemonsqueezy payload: %w", err)
	}
	if hook.Meta.EventName == "" {
		return nil, fmt.Errorf("decode lemonsqueezy payload: missing meta.event_name")
	}

	attrs := hook.Data.Attributes
	ev := &Event{
		Provider:      p.Name(),
		Name:          EventUnknown,
		ProviderEvent: hook.Meta.EventName,
		CustomerID:    attrs.CustomerID.String(),
		UserID:        customString(hook.Meta.CustomData, "user_id", "userId"),
		UserEmail:     strings.TrimSpace(attrs.UserEmail),
	}
	if name, ok := lemonSqueezyEvents[hook.Meta.EventName]; ok {
		ev.Name = name
	}

	switch hook.Data.Type {
	case "orders":
		ev.OrderID = hook.Data.ID.String()
		if attrs.FirstOrderItem != nil {
			ev.PlanType = p.catalog.PlanFor(attrs.FirstOrderItem.VariantID.String())
		}
	case "subscriptions":
		ev.SubscriptionID = hook.Data.ID.String()
		ev.OrderID = attrs.OrderID.String()
		ev.PlanType = p.catalog.PlanFor(attrs.VariantID.String())
		ev.Status = normalizeStatus(attrs.Status)
	case "subscription-invoices":
		ev.SubscriptionID = attrs.SubscriptionID.String()
		ev.Renewal = attrs.BillingReason == "renewal"
	}

	return ev, nil
}
