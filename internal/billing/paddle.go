package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"folioAPI/internal/types/subscription"
)

const PaddleSignatureHeader = "Paddle-Signature"

type Paddle struct {
	secret    string
	catalog   PlanCatalog
	tolerance time.Duration
	now       func() time.Time
}

// NewPaddle builds the Paddle adapter. A zero tolerance disables the
// timestamp freshness check.
func NewPaddle(secret string, catalog PlanCatalog, tolerance time.Duration) *Paddle {
	return &Paddle{secret: secret, catalog: catalog, tolerance: tolerance, now: time.Now}
}

func (p *Paddle) Name() subscription.Provider {
	return subscription.ProviderPaddle
}

func (p *Paddle) SignatureHeader() string {
	return PaddleSignatureHeader
}

func (p *Paddle) VerifySignature(body []byte, header string) error {
	if p.secret == "" {
		return authError(p.Name(), "webhook secret not configured")
	}
	sig, err := ParsePaddleSignature(header)
	if err != nil {
		return authError(p.Name(), "%v", err)
	}
	if p.tolerance > 0 {
		skew := p.now().Sub(sig.Timestamp)
		if skew < 0 {
			skew = -skew
		}
		if skew > p.tolerance {
			return authError(p.Name(), "timestamp outside tolerance (%s)", skew.Round(time.Second))
		}
	}
	if !sig.Matches(body, p.secret) {
		return authError(p.Name(), "signature mismatch")
	}
	return nil
}

type paddleItem struct {
	PriceID string `json:"price_id"`
	Price   *struct {
		ID string `json:"id"`
	} `json:"price"`
}

func (i paddleItem) priceID() string {
	if i.Price != nil && i.Price.ID != "" {
		return i.Price.ID
	}
	return i.PriceID
}

type paddleWebhook struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID             string         `json:"id"`
		Status         string         `json:"status"`
		CustomerID     string         `json:"customer_id"`
		SubscriptionID string         `json:"subscription_id"`
		Origin         string         `json:"origin"`
		Items          []paddleItem   `json:"items"`
		CustomData     map[string]any `json:"custom_data"`
		Customer       *struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

func (p *Paddle) ParsePayload(body []byte) (*Event, error) {
	var hook paddleWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("decode paddle payload: %w", err)
	}
	if hook.EventType == "" {
		return nil, fmt.Errorf("decode paddle payload: missing event_type")
	}

	data := hook.Data
	ev := &Event{
		Provider:      p.Name(),
		Name:          EventUnknown,
		ProviderEvent: hook.EventType,
		CustomerID:    data.CustomerID,
		UserID:        customString(data.CustomData, "userId", "user_id"),
		UserEmail:     customString(data.CustomData, "email"),
	}
	if data.Customer != nil && data.Customer.Email != "" {
		ev.UserEmail = strings.TrimSpace(data.Customer.Email)
	}
	for _, item := range data.Items {
		if plan := p.catalog.PlanFor(item.priceID()); plan != "" {
			ev.PlanType = plan
			break
		}
	}

	switch {
	case strings.HasPrefix(hook.EventType, "subscription."):
		ev.SubscriptionID = data.ID
		ev.Status = normalizeStatus(data.Status)
		switch hook.EventType {
		case "subscription.created", "subscription.activated":
			ev.Name = EventSubscriptionCreated
		case "subscription.updated", "subscription.resumed":
			ev.Name = EventSubscriptionUpdated
		case "subscription.canceled":
			ev.Name = EventSubscriptionCancelled
		case "subscription.past_due":
			ev.Name = EventSubscriptionPastDue
		}

	case strings.HasPrefix(hook.EventType, "transaction."):
		ev.OrderID = data.ID
		ev.SubscriptionID = data.SubscriptionID
		ev.Renewal = data.Origin == "subscription_recurring"
		switch hook.EventType {
		case "transaction.completed":
			// One-off lifetime purchases never get a subscription id.
			if ev.PlanType == subscription.PlanProLifetime && ev.SubscriptionID == "" {
				ev.Name = EventOrderCreated
			} else {
				ev.Name = EventPaymentSuccess
			}
		case "transaction.payment_failed":
			ev.Name = EventPaymentFailed
		}
	}

	return ev, nil
}
