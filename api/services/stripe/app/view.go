package app

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
)

// ViewSubscriptions builds the user's subscription overview from live Stripe data.
// Users with no active subscription get an empty view redirecting to the subscribe flow.
func (s serviceImpl) ViewSubscriptions(ctx context.Context, userID int64) (SubscriptionsView, error) {
	active, err := s.GetActiveSubscriptions(ctx, userID)
	if err != nil {
		return SubscriptionsView{}, err
	}
	view := SubscriptionsView{UserID: userID, Subscriptions: []SubscriptionRow{}}
	if len(active) == 0 {
		view.Redirect = s.subscribePath
		return view, nil
	}

	for _, sub := range active {
		if sub.EndedAt != 0 {
			continue
		}
		renew := "Yes"
		if sub.CancelAtPeriodEnd {
			renew = "No"
		}
		view.Subscriptions = append(view.Subscriptions, SubscriptionRow{
			SubscriptionID: sub.ID,
			Plan:           planName(sub),
			Status:         string(sub.Status),
			Period:         formatPeriod(sub.CurrentPeriodStart, sub.CurrentPeriodEnd),
			WillRenew:      renew,
			Operations:     s.remoteOperations(sub),
		})
	}
	return view, nil
}

// Subscribe redirects users who already hold an active subscription to their overview.
func (s serviceImpl) Subscribe(ctx context.Context, userID int64) (SubscribeDecision, error) {
	active, err := s.GetActiveSubscriptions(ctx, userID)
	if err != nil {
		return SubscribeDecision{}, err
	}
	if len(active) > 0 {
		return SubscribeDecision{AlreadySubscribed: true, Redirect: SubscriptionsPath(userID)}, nil
	}
	return SubscribeDecision{}, nil
}

// ListLocalSubscriptions lists local mirrors with the operations their cached state
// allows. A zero userID lists every mirror, otherwise only that user's.
func (s serviceImpl) ListLocalSubscriptions(ctx context.Context, userID int64) ([]LocalSubscriptionRow, error) {
	var subs []stripedb.LocalSubscription
	var err error
	if userID == 0 {
		subs, err = s.store.ListAll(ctx)
	} else {
		subs, err = s.store.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error listing local subscriptions: %v", ErrDatabase, err)
	}
	rows := make([]LocalSubscriptionRow, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, LocalSubscriptionRow{
			SubscriptionID:    sub.SubscriptionID,
			UserID:            sub.UserID,
			Plan:              sub.PlanName,
			Status:            sub.Status,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			Operations:        s.localOperations(sub),
		})
	}
	return rows, nil
}

// remoteOperations offers Cancel while the subscription renews, and
// Re-activate while a pending cancellation can still be undone.
func (s serviceImpl) remoteOperations(sub stripe.Subscription) []Operation {
	if !sub.CancelAtPeriodEnd {
		return []Operation{cancelOperation(sub.ID)}
	}
	if s.now().Unix() < sub.CurrentPeriodEnd {
		return []Operation{reactivateOperation(sub.ID)}
	}
	return []Operation{}
}

// localOperations is remoteOperations on cached fields; an unknown period end still offers Re-activate.
func (s serviceImpl) localOperations(sub stripedb.LocalSubscription) []Operation {
	if !sub.CancelAtPeriodEnd {
		return []Operation{cancelOperation(sub.SubscriptionID)}
	}
	if sub.CurrentPeriodEnd == 0 || s.now().Unix() < sub.CurrentPeriodEnd {
		return []Operation{reactivateOperation(sub.SubscriptionID)}
	}
	return []Operation{}
}
