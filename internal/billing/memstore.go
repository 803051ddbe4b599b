package billing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"folioAPI/internal/types/subscription"
)

// MemoryStore is an in-process Store with the same upsert and filter semantics
// as the Postgres store. Used for local development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[string]subscription.Subscription
	users         map[string]string // lowercased email -> user id
	mutations     int
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]subscription.Subscription),
		users:         make(map[string]string),
		now:           time.Now,
	}
}

// AddUser registers a user for the email fallback lookup. userID is the Clerk
// id, the same key subscriptions are stored under.
func (m *MemoryStore) AddUser(userID, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[strings.ToLower(strings.TrimSpace(email))] = userID
}

// Mutations counts successful writes that touched at least one row.
func (m *MemoryStore) Mutations() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mutations
}

// Len returns the number of stored subscription rows.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

func (m *MemoryStore) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	row, exists := m.subscriptions[sub.UserID]
	if !exists {
		row = subscription.Subscription{
			ID:        uuid.New().String(),
			UserID:    sub.UserID,
			PlanType:  subscription.PlanFree,
			StartDate: sub.StartDate,
			CreatedAt: now,
		}
	}

	if sub.PlanType != "" {
		row.PlanType = sub.PlanType
	}
	row.Status = sub.Status
	row.IsLifetime = sub.IsLifetime
	row.IsFirstMonth = sub.IsFirstMonth
	if !sub.StartDate.IsZero() && !(exists && sameGrant(row, sub)) {
		row.StartDate = sub.StartDate
	}
	row.EndDate = sub.EndDate
	if sub.Provider != "" {
		row.Provider = sub.Provider
	}
	row.ProviderCustomerID = coalesce(sub.ProviderCustomerID, row.ProviderCustomerID)
	row.ProviderSubscriptionID = coalesce(sub.ProviderSubscriptionID, row.ProviderSubscriptionID)
	row.ProviderOrderID = coalesce(sub.ProviderOrderID, row.ProviderOrderID)
	row.UpdatedAt = now

	m.subscriptions[sub.UserID] = row
	m.mutations++
	return nil
}

func (m *MemoryStore) UpdateSubscription(ctx context.Context, filter Filter, patch Patch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := m.now()
	for key, row := range m.subscriptions {
		if !filter.matches(row) {
			continue
		}
		if patch.Status != nil {
			row.Status = *patch.Status
		}
		if patch.PlanType != nil {
			row.PlanType = *patch.PlanType
		}
		if patch.IsFirstMonth != nil {
			row.IsFirstMonth = *patch.IsFirstMonth
		}
		if patch.ClearEndDate {
			row.EndDate = nil
		}
		if patch.EndDate != nil {
			end := *patch.EndDate
			row.EndDate = &end
		}
		if patch.CustomerID != nil {
			row.ProviderCustomerID = *patch.CustomerID
		}
		row.UpdatedAt = now
		m.subscriptions[key] = row
		n++
	}
	if n > 0 {
		m.mutations++
	}
	return n, nil
}

func (m *MemoryStore) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", ErrUserNotFound
	}
	return id, nil
}

func (m *MemoryStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.subscriptions[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &row, nil
}

func (f Filter) matches(row subscription.Subscription) bool {
	if f.ExcludeLifetime && row.IsLifetime {
		return false
	}
	if f.UserID != "" {
		return row.UserID == f.UserID
	}
	if f.SubscriptionID == "" {
		return false
	}
	return row.ProviderSubscriptionID == f.SubscriptionID && (f.Provider == "" || row.Provider == f.Provider)
}

// sameGrant reports whether sub describes the purchase already stored in row:
// the same provider subscription, or for one-off orders the same order.
func sameGrant(row subscription.Subscription, sub *subscription.Subscription) bool {
	if sub.ProviderSubscriptionID != "" {
		return sub.ProviderSubscriptionID == row.ProviderSubscriptionID
	}
	return sub.ProviderOrderID == row.ProviderOrderID
}

func coalesce(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
