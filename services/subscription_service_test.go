package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioAPI/internal/billing"
	"folioAPI/internal/database"
	"folioAPI/internal/types/subscription"
)

// testPool connects to TEST_DATABASE_URL and applies the schema. Tests that
// need Postgres are skipped when it is not set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func TestSubscriptionServiceUpsertIsIdempotent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewSubscriptionService(pool)
	userID := "user_" + uuid.NewString()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := &subscription.Subscription{
		UserID:                 userID,
		StartDate:              started,
		PlanType:               subscription.PlanProMonthly,
		Status:                 subscription.StatusActive,
		IsFirstMonth:           true,
		Provider:               subscription.ProviderLemonSqueezy,
		ProviderSubscriptionID: "ls_" + uuid.NewString(),
		ProviderCustomerID:     "77",
	}
	require.NoError(t, svc.UpsertSubscription(ctx, sub))
	first, err := svc.GetSubscriptionByUserID(ctx, userID)
	require.NoError(t, err)

	// Replays and partial payloads never wipe stored ids or the plan.
	replay := *sub
	replay.PlanType = ""
	replay.ProviderCustomerID = ""
	replay.StartDate = started.Add(time.Hour)
	require.NoError(t, svc.UpsertSubscription(ctx, &replay))

	got, err := svc.GetSubscriptionByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, subscription.PlanProMonthly, got.PlanType)
	assert.Equal(t, "77", got.ProviderCustomerID)
	assert.Equal(t, sub.ProviderSubscriptionID, got.ProviderSubscriptionID)
	assert.True(t, got.IsFirstMonth)
	assert.Nil(t, got.EndDate)
	assert.True(t, started.Equal(got.StartDate), "start_date moved to %s", got.StartDate)

	// A different provider subscription is a new purchase and restarts the period.
	renewed := replay
	renewed.ProviderSubscriptionID = "ls_" + uuid.NewString()
	renewed.StartDate = started.Add(24 * time.Hour)
	require.NoError(t, svc.UpsertSubscription(ctx, &renewed))

	got, err = svc.GetSubscriptionByUserID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, renewed.StartDate.Equal(got.StartDate))
}

func TestSubscriptionServiceUpdateExcludesLifetime(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewSubscriptionService(pool)
	userID := "user_" + uuid.NewString()

	require.NoError(t, svc.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:     userID,
		PlanType:   subscription.PlanProLifetime,
		Status:     subscription.StatusActive,
		IsLifetime: true,
		Provider:   subscription.ProviderPaddle,
	}))

	cancelled := subscription.StatusCancelled
	end := time.Now()
	n, err := svc.UpdateSubscription(ctx,
		billing.Filter{UserID: userID, ExcludeLifetime: true},
		billing.Patch{Status: &cancelled, EndDate: &end},
	)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := svc.GetSubscriptionByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)
	assert.True(t, got.IsLifetime)
	assert.Nil(t, got.EndDate)
}

func TestSubscriptionServiceUpdateBySubscriptionID(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewSubscriptionService(pool)
	userID := "user_" + uuid.NewString()
	subID := "sub_" + uuid.NewString()

	require.NoError(t, svc.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:                 userID,
		PlanType:               subscription.PlanProYearly,
		Status:                 subscription.StatusActive,
		Provider:               subscription.ProviderPaddle,
		ProviderSubscriptionID: subID,
	}))

	pastDue := subscription.StatusPastDue
	n, err := svc.UpdateSubscription(ctx,
		billing.Filter{Provider: subscription.ProviderPaddle, SubscriptionID: subID},
		billing.Patch{Status: &pastDue},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.GetSubscriptionByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, got.Status)

	_, err = svc.UpdateSubscription(ctx, billing.Filter{}, billing.Patch{Status: &pastDue})
	assert.ErrorIs(t, err, billing.ErrMissingJoinKey)
}

func TestSubscriptionServiceLookups(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	svc := NewSubscriptionService(pool)

	_, err := svc.GetSubscriptionByUserID(ctx, "user_"+uuid.NewString())
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

	_, err = svc.FindUserIDByEmail(ctx, uuid.NewString()+"@nowhere.test")
	assert.ErrorIs(t, err, billing.ErrUserNotFound)

	// The lookup yields the Clerk id, the same key checkout puts into custom data.
	email := uuid.NewString() + "@Example.test"
	clerkID := "user_" + uuid.NewString()
	var rowID string
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (clerk_id, email) VALUES ($1, $2) RETURNING id::text`,
		clerkID, email,
	).Scan(&rowID))

	got, err := svc.FindUserIDByEmail(ctx, "  "+email)
	require.NoError(t, err)
	assert.Equal(t, clerkID, got)
	assert.NotEqual(t, rowID, got)

	require.NoError(t, svc.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:   got,
		PlanType: subscription.PlanProMonthly,
		Status:   subscription.StatusActive,
		Provider: subscription.ProviderLemonSqueezy,
	}))
	sub, err := svc.GetSubscriptionByUserID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, clerkID, sub.UserID)

	require.NoError(t, svc.Ping(ctx))
}
