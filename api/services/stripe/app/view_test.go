package app

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go"
)

func Test_ViewSubscriptions_Operations(t *testing.T) {
	f := newFixture(t)
	renewing := remoteSub("sub_1", stripe.SubscriptionStatusActive)
	renewing.CurrentPeriodStart = time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC).Unix()
	renewing.CurrentPeriodEnd = time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC).Unix()
	pending := canceledAtPeriodEnd(remoteSub("sub_2", stripe.SubscriptionStatusActive))
	ended := remoteSub("sub_3", stripe.SubscriptionStatusActive)
	ended.EndedAt = testNow.Add(-time.Hour).Unix()

	f.gw.EXPECT().ListSubscriptionsForCustomer(gomock.Any(), "cus_1").Return([]stripe.Subscription{renewing, pending, ended}, nil)

	view, err := f.svc.ViewSubscriptions(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Redirect)
	require.Len(t, view.Subscriptions, 2)

	first := view.Subscriptions[0]
	assert.Equal(t, "sub_1", first.SubscriptionID)
	assert.Equal(t, "Gold", first.Plan)
	assert.Equal(t, "active", first.Status)
	assert.Equal(t, "September 01, 2025 - October 01, 2025", first.Period)
	assert.Equal(t, "Yes", first.WillRenew)
	assert.Equal(t, []Operation{{Name: OperationCancel, Title: "Cancel", Path: "/api/subscriptions/sub_1/cancel"}}, first.Operations)

	second := view.Subscriptions[1]
	assert.Equal(t, "No", second.WillRenew)
	assert.Equal(t, []Operation{{Name: OperationReactivate, Title: "Re-activate", Path: "/api/subscriptions/sub_2/reactivate"}}, second.Operations)
}

func Test_ViewSubscriptions_NoActiveRedirectsToSubscribe(t *testing.T) {
	f := newFixture(t)
	f.gw.EXPECT().ListSubscriptionsForCustomer(gomock.Any(), "cus_1").Return([]stripe.Subscription{
		remoteSub("sub_2", stripe.SubscriptionStatusCanceled),
	}, nil)

	view, err := f.svc.ViewSubscriptions(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Subscriptions)
	assert.Equal(t, "/subscribe", view.Redirect)
}

func Test_ViewSubscriptions_PendingCancelPastPeriodOffersNothing(t *testing.T) {
	f := newFixture(t)
	lapsing := canceledAtPeriodEnd(remoteSub("sub_1", stripe.SubscriptionStatusActive))
	lapsing.CurrentPeriodEnd = testNow.Unix()
	f.gw.EXPECT().ListSubscriptionsForCustomer(gomock.Any(), "cus_1").Return([]stripe.Subscription{lapsing}, nil)

	view, err := f.svc.ViewSubscriptions(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, view.Subscriptions, 1)
	assert.Empty(t, view.Subscriptions[0].Operations)
}

func Test_Subscribe(t *testing.T) {
	t.Run("already subscribed", func(t *testing.T) {
		f := newFixture(t)
		f.gw.EXPECT().ListSubscriptionsForCustomer(gomock.Any(), "cus_1").Return([]stripe.Subscription{
			remoteSub("sub_1", stripe.SubscriptionStatusActive),
		}, nil)

		d, err := f.svc.Subscribe(context.Background(), f.user.ID)
		require.NoError(t, err)
		assert.True(t, d.AlreadySubscribed)
		assert.Equal(t, SubscriptionsPath(f.user.ID), d.Redirect)
	})
	t.Run("trialing only", func(t *testing.T) {
		f := newFixture(t)
		f.gw.EXPECT().ListSubscriptionsForCustomer(gomock.Any(), "cus_1").Return([]stripe.Subscription{
			remoteSub("sub_1", stripe.SubscriptionStatusTrialing),
		}, nil)

		d, err := f.svc.Subscribe(context.Background(), f.user.ID)
		require.NoError(t, err)
		assert.False(t, d.AlreadySubscribed)
		assert.Empty(t, d.Redirect)
	})
}

func Test_ListLocalSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.seedMirror(t, localSub("sub_a", "Gold"))
	pending := localSub("sub_b", "Gold")
	pending.CancelAtPeriodEnd = true
	f.seedMirror(t, pending)
	lapsed := localSub("sub_c", "Gold")
	lapsed.CancelAtPeriodEnd = true
	lapsed.CurrentPeriodEnd = testNow.Add(-time.Hour).Unix()
	f.seedMirror(t, lapsed)
	unknownEnd := localSub("sub_d", "Gold")
	unknownEnd.CancelAtPeriodEnd = true
	unknownEnd.CurrentPeriodEnd = 0
	f.seedMirror(t, unknownEnd)

	rows, err := f.svc.ListLocalSubscriptions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	ops := map[string][]Operation{}
	for _, r := range rows {
		ops[r.SubscriptionID] = r.Operations
	}
	assert.Equal(t, OperationCancel, ops["sub_a"][0].Name)
	assert.Equal(t, OperationReactivate, ops["sub_b"][0].Name)
	assert.Empty(t, ops["sub_c"])
	assert.Equal(t, OperationReactivate, ops["sub_d"][0].Name)
}

func Test_ListLocalSubscriptions_ByUser(t *testing.T) {
	f := newFixture(t)
	other, err := f.store.CreateUser(context.Background(), "other@example.com", "cus_2")
	require.NoError(t, err)
	f.seedMirror(t, localSub("sub_a", "Gold"))
	theirs := localSub("sub_b", "Silver")
	theirs.UserID = other.ID
	f.seedMirror(t, theirs)

	rows, err := f.svc.ListLocalSubscriptions(context.Background(), other.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sub_b", rows[0].SubscriptionID)

	rows, err = f.svc.ListLocalSubscriptions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = f.svc.ListLocalSubscriptions(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
