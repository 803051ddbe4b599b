package subscription

import "time"

type PlanType string

const (
	PlanFree        PlanType = "free"
	PlanProMonthly  PlanType = "pro_monthly"
	PlanProYearly   PlanType = "pro_yearly"
	PlanProLifetime PlanType = "pro_lifetime"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
)

type Provider string

const (
	ProviderLemonSqueezy Provider = "lemonsqueezy"
	ProviderPaddle       Provider = "paddle"
)

// Subscription is the single billing row a user owns. An empty PlanType means
// the plan is unknown and must not overwrite a stored value.
type Subscription struct {
	ID                     string     `json:"id" db:"id"`
	UserID                 string     `json:"userId" db:"user_id"`
	PlanType               PlanType   `json:"planType" db:"plan_type"`
	Status                 Status     `json:"status" db:"status"`
	IsLifetime             bool       `json:"isLifetime" db:"is_lifetime"`
	IsFirstMonth           bool       `json:"isFirstMonth" db:"is_first_month"`
	StartDate              time.Time  `json:"startDate" db:"start_date"`
	EndDate                *time.Time `json:"endDate" db:"end_date"`
	Provider               Provider   `json:"provider,omitempty" db:"provider"`
	ProviderCustomerID     string     `json:"providerCustomerId,omitempty" db:"provider_customer_id"`
	ProviderSubscriptionID string     `json:"providerSubscriptionId,omitempty" db:"provider_subscription_id"`
	ProviderOrderID        string     `json:"providerOrderId,omitempty" db:"provider_order_id"`
	CreatedAt              time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsPro reports whether the row currently grants paid features.
func (s *Subscription) IsPro() bool {
	if s == nil || s.PlanType == PlanFree || s.PlanType == "" {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusPastDue
}

type CheckoutRequest struct {
	Provider Provider `json:"provider"`
	Plan     PlanType `json:"plan"`
	// Email prefills the hosted checkout form when set.
	Email string `json:"email,omitempty"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	CheckoutID  string `json:"checkoutId"`
}
