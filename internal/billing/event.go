package billing

import (
	"strings"

	"folioAPI/internal/types/subscription"
)

// EventName is the provider-independent name a delivery is dispatched on.
type EventName string

const (
	EventOrderCreated          EventName = "order_created"
	EventSubscriptionCreated   EventName = "subscription_created"
	EventSubscriptionUpdated   EventName = "subscription_updated"
	EventSubscriptionCancelled EventName = "subscription_cancelled"
	EventPaymentSuccess        EventName = "subscription_payment_success"
	EventPaymentFailed         EventName = "subscription_payment_failed"
	EventSubscriptionPastDue   EventName = "subscription_past_due"
	EventUnknown               EventName = "unknown"
)

// Event is a verified delivery reduced to the fields the transition handlers
// read. Empty strings mean the provider did not report the value.
type Event struct {
	Provider       subscription.Provider
	Name           EventName
	ProviderEvent  string
	OrderID        string
	SubscriptionID string
	CustomerID     string
	UserID         string
	UserEmail      string
	PlanType       subscription.PlanType
	Status         subscription.Status
	Renewal        bool
}

// PlanCatalog holds one provider's configured variant or price identifiers.
type PlanCatalog struct {
	Monthly  string
	Yearly   string
	Lifetime string
}

// PlanFor maps a variant or price identifier to a plan. Unknown identifiers
// return the empty plan so the stored value is left alone.
func (c PlanCatalog) PlanFor(id string) subscription.PlanType {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	switch id {
	case strings.TrimSpace(c.Monthly):
		return subscription.PlanProMonthly
	case strings.TrimSpace(c.Yearly):
		return subscription.PlanProYearly
	case strings.TrimSpace(c.Lifetime):
		return subscription.PlanProLifetime
	}
	return ""
}

// IDFor is the reverse of PlanFor, used when creating checkouts.
func (c PlanCatalog) IDFor(plan subscription.PlanType) string {
	switch plan {
	case subscription.PlanProMonthly:
		return strings.TrimSpace(c.Monthly)
	case subscription.PlanProYearly:
		return strings.TrimSpace(c.Yearly)
	case subscription.PlanProLifetime:
		return strings.TrimSpace(c.Lifetime)
	}
	return ""
}

// normalizeStatus folds both providers' status vocabularies into the three
// local states. Statuses with no local meaning (paused) map to "".
func normalizeStatus(raw string) subscription.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "on_trial", "trialing":
		return subscription.StatusActive
	case "past_due", "unpaid":
		return subscription.StatusPastDue
	case "cancelled", "canceled", "expired":
		return subscription.StatusCancelled
	}
	return ""
}
