package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"folioAPI/internal/billing"
	"folioAPI/internal/types/subscription"
)

// SubscriptionService is the Postgres implementation of billing.Store.
type SubscriptionService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewSubscriptionService(db *pgxpool.Pool) *SubscriptionService {
	return &SubscriptionService{db: db, now: time.Now}
}

var _ billing.Store = (*SubscriptionService)(nil)

// UpsertSubscription keeps the stored start_date when the row already holds
// the same provider subscription (or order, for one-off purchases), so
// redelivered events leave the row unchanged.
func (s *SubscriptionService) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	INSERT INTO subscriptions (
		id, user_id, plan_type, status, is_lifetime, is_first_month, start_date, end_date,
		provider, provider_customer_id, provider_subscription_id, provider_order_id, created_at, updated_at
	)
	VALUES (
		$1, $2, COALESCE(NULLIF($3::text, ''), 'free'), $4, $5, $6, $7, $8,
		NULLIF($9::text, ''), NULLIF($10::text, ''), NULLIF($11::text, ''), NULLIF($12::text, ''), $13, $13
	)
	ON CONFLICT (user_id) DO UPDATE SET
		plan_type = COALESCE(NULLIF($3::text, ''), subscriptions.plan_type),
		status = EXCLUDED.status,
		is_lifetime = EXCLUDED.is_lifetime,
		is_first_month = EXCLUDED.is_first_month,
		start_date = CASE
			WHEN EXCLUDED.provider_subscription_id IS NOT NULL
				AND EXCLUDED.provider_subscription_id IS DISTINCT FROM subscriptions.provider_subscription_id
				THEN EXCLUDED.start_date
			WHEN EXCLUDED.provider_subscription_id IS NULL
				AND EXCLUDED.provider_order_id IS DISTINCT FROM subscriptions.provider_order_id
				THEN EXCLUDED.start_date
			ELSE subscriptions.start_date
		END,
		end_date = EXCLUDED.end_date,
		provider = COALESCE(EXCLUDED.provider, subscriptions.provider),
		provider_customer_id = COALESCE(EXCLUDED.provider_customer_id, subscriptions.provider_customer_id),
		provider_subscription_id = COALESCE(EXCLUDED.provider_subscription_id, subscriptions.provider_subscription_id),
		provider_order_id = COALESCE(EXCLUDED.provider_order_id, subscriptions.provider_order_id),
		updated_at = EXCLUDED.updated_at
	`

	startDate := sub.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}
	updatedAt := sub.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err := s.db.Exec(
		ctx,
		query,
		uuid.New().String(),
		sub.UserID,
		string(sub.PlanType),
		string(sub.Status),
		sub.IsLifetime,
		sub.IsFirstMonth,
		startDate,
		sub.EndDate,
		string(sub.Provider),
		sub.ProviderCustomerID,
		sub.ProviderSubscriptionID,
		sub.ProviderOrderID,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

func (s *SubscriptionService) UpdateSubscription(ctx context.Context, filter billing.Filter, patch billing.Patch) (int64, error) {
	var (
		sets  []string
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		sets = append(sets, "status = "+arg(string(*patch.Status)))
	}
	if patch.PlanType != nil {
		sets = append(sets, "plan_type = "+arg(string(*patch.PlanType)))
	}
	if patch.IsFirstMonth != nil {
		sets = append(sets, "is_first_month = "+arg(*patch.IsFirstMonth))
	}
	switch {
	case patch.EndDate != nil:
		sets = append(sets, "end_date = "+arg(*patch.EndDate))
	case patch.ClearEndDate:
		sets = append(sets, "end_date = NULL")
	}
	if patch.CustomerID != nil {
		sets = append(sets, "provider_customer_id = "+arg(*patch.CustomerID))
	}
	sets = append(sets, "updated_at = "+arg(s.now()))

	switch {
	case filter.UserID != "":
		where = append(where, "user_id = "+arg(filter.UserID))
	case filter.SubscriptionID != "":
		where = append(where, "provider_subscription_id = "+arg(filter.SubscriptionID))
		if filter.Provider != "" {
			where = append(where, "provider = "+arg(string(filter.Provider)))
		}
	default:
		return 0, billing.ErrMissingJoinKey
	}
	if filter.ExcludeLifetime {
		where = append(where, "is_lifetime = false")
	}

	query := fmt.Sprintf(
		"UPDATE subscriptions SET %s WHERE %s",
		strings.Join(sets, ", "),
		strings.Join(where, " AND "),
	)

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update subscription: %w", err)
	}

	return tag.RowsAffected(), nil
}

// FindUserIDByEmail returns the user's Clerk id, which is what subscriptions
// are keyed by.
func (s *SubscriptionService) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	query := `
	SELECT clerk_id
	FROM users
	WHERE lower(email) = lower($1)
	LIMIT 1
	`

	var userID string
	err := s.db.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", billing.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}

	return userID, nil
}

func (s *SubscriptionService) GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `
	SELECT id::text, user_id, plan_type, status, is_lifetime, is_first_month, start_date, end_date,
		COALESCE(provider, ''), COALESCE(provider_customer_id, ''),
		COALESCE(provider_subscription_id, ''), COALESCE(provider_order_id, ''),
		created_at, updated_at
	FROM subscriptions
	WHERE user_id = $1
	`

	sub := &subscription.Subscription{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanType,
		&sub.Status,
		&sub.IsLifetime,
		&sub.IsFirstMonth,
		&sub.StartDate,
		&sub.EndDate,
		&sub.Provider,
		&sub.ProviderCustomerID,
		&sub.ProviderSubscriptionID,
		&sub.ProviderOrderID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// Ping is used by the health endpoint.
func (s *SubscriptionService) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
