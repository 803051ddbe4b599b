package billing

import (
	"context"
	"time"

	"folioAPI/internal/types/subscription"
)

// Store is the persistence the engine needs. Every method must be a single
// atomic statement: the engine never reads a row to decide how to write it.
type Store interface {
	// UpsertSubscription inserts or replaces the row keyed by UserID. An empty
	// PlanType and empty provider ids keep the stored values.
	UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error
	// UpdateSubscription applies patch to the rows matching filter and returns
	// how many rows changed.
	UpdateSubscription(ctx context.Context, filter Filter, patch Patch) (int64, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
	GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
}

// Filter selects rows by user, or by provider subscription id when UserID is
// empty.
type Filter struct {
	UserID          string
	Provider        subscription.Provider
	SubscriptionID  string
	ExcludeLifetime bool
}

// Patch lists the columns to change; nil fields are left untouched.
type Patch struct {
	Status       *subscription.Status
	PlanType     *subscription.PlanType
	IsFirstMonth *bool
	EndDate      *time.Time
	ClearEndDate bool
	CustomerID   *string
}

// Recorder keeps the best-effort audit trail. Errors are logged by callers and
// never change the outcome of the operation being recorded.
type Recorder interface {
	RecordWebhook(ctx context.Context, rec WebhookRecord) error
}

type WebhookRecord struct {
	Provider       subscription.Provider
	EventName      string
	Payload        []byte
	SignatureValid bool
	Error          string
	ReceivedAt     time.Time
}

func ptr[T any](v T) *T {
	return &v
}
