package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateIsIdempotentUnderRace(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	u, err := repo.CreateUser(ctx, "race@example.com", "cus_race")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, LocalSubscription{SubscriptionID: "sub_race", UserID: u.ID, Status: "active"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryRepository_CreateKeepsFirstWriter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	u, _ := repo.CreateUser(ctx, "a@example.com", "cus_a")

	first, err := repo.Create(ctx, LocalSubscription{SubscriptionID: "sub_1", UserID: u.ID, PlanName: "Gold", Status: "active"})
	require.NoError(t, err)
	second, err := repo.Create(ctx, LocalSubscription{SubscriptionID: "sub_1", UserID: u.ID, PlanName: "Silver", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "Gold", second.PlanName)
}

func TestMemoryRepository_CreateUnknownUser(t *testing.T) {
	_, err := NewMemory().Create(context.Background(), LocalSubscription{SubscriptionID: "sub_1", UserID: 42})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_UpdateAndDeleteMissingRow(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	ok, err := repo.Update(ctx, LocalSubscription{SubscriptionID: "sub_gone", Status: "active"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Delete(ctx, "sub_gone")
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := repo.LoadBySubscriptionID(ctx, "sub_gone")
	require.NoError(t, err)
	assert.False(t, found, "update must not recreate a missing row")
}

func TestMemoryRepository_UpdateOverwritesCachedFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	u, _ := repo.CreateUser(ctx, "b@example.com", "cus_b")
	_, err := repo.Create(ctx, LocalSubscription{SubscriptionID: "sub_b", UserID: u.ID, Status: "active", CurrentPeriodEnd: 100})
	require.NoError(t, err)

	ok, err := repo.Update(ctx, LocalSubscription{SubscriptionID: "sub_b", UserID: 999, Status: "active", CancelAtPeriodEnd: true, CurrentPeriodEnd: 200})
	require.NoError(t, err)
	require.True(t, ok)

	got, found, err := repo.LoadBySubscriptionID(ctx, "sub_b")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.CancelAtPeriodEnd)
	assert.Equal(t, int64(200), got.CurrentPeriodEnd)
	assert.Equal(t, u.ID, got.UserID, "owner is not part of the cached remote fields")
}

func TestMemoryRepository_WebhookEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	created, stored, err := repo.RecordWebhookEvent(ctx, WebhookEvent{EventID: "evt_1", EventType: "customer.subscription.deleted"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, stored.Processed())

	require.NoError(t, repo.MarkWebhookEventProcessed(ctx, "evt_1", ""))

	created, stored, err = repo.RecordWebhookEvent(ctx, WebhookEvent{EventID: "evt_1", EventType: "customer.subscription.deleted"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, stored.Processed())

	assert.ErrorIs(t, repo.MarkWebhookEventProcessed(ctx, "evt_missing", ""), ErrNotFound)
}

func TestMemoryRepository_CustomerLinkedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	u, _ := repo.CreateUser(ctx, "c@example.com", "cus_c")
	_, err := repo.CreateUser(ctx, "unlinked@example.com", "")
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, "unlinked2@example.com", "")
	require.NoError(t, err, "several users may be unlinked")

	got, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_c", got.StripeCustomerID)

	_, err = repo.CreateUser(ctx, "dup@example.com", "cus_c")
	assert.Error(t, err)
}

func TestMemoryRepository_WatermarkAndClock(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	repo := NewMemory(WithClock(func() time.Time { return now }))
	u, _ := repo.CreateUser(ctx, "d@example.com", "cus_d")

	created, err := repo.Create(ctx, LocalSubscription{SubscriptionID: "sub_d", UserID: u.ID, Status: "active", RemoteUpdatedAt: 50})
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), created.CreatedAt)
	assert.Equal(t, int64(50), created.RemoteUpdatedAt)

	now = now.Add(time.Minute)
	_, err = repo.Update(ctx, LocalSubscription{SubscriptionID: "sub_d", Status: "past_due", RemoteUpdatedAt: 60})
	require.NoError(t, err)
	got, _, err := repo.LoadBySubscriptionID(ctx, "sub_d")
	require.NoError(t, err)
	assert.Equal(t, int64(60), got.RemoteUpdatedAt)
	assert.Equal(t, now.Unix(), got.UpdatedAt)
}

func TestMemoryRepository_PruneWebhookEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	repo := NewMemory(WithClock(func() time.Time { return now }))

	_, _, err := repo.RecordWebhookEvent(ctx, WebhookEvent{EventID: "evt_old", EventType: "customer.subscription.created"})
	require.NoError(t, err)
	now = now.Add(48 * time.Hour)
	_, _, err = repo.RecordWebhookEvent(ctx, WebhookEvent{EventID: "evt_new", EventType: "customer.subscription.created"})
	require.NoError(t, err)

	n, err := repo.PruneWebhookEvents(ctx, now.Add(-24*time.Hour).Unix())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	created, _, err := repo.RecordWebhookEvent(ctx, WebhookEvent{EventID: "evt_new"})
	require.NoError(t, err)
	assert.False(t, created, "recent deliveries are kept")
	created, _, err = repo.RecordWebhookEvent(ctx, WebhookEvent{EventID: "evt_old"})
	require.NoError(t, err)
	assert.True(t, created, "pruned deliveries are forgotten")
}
