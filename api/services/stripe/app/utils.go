package app

import (
	"time"

	stripe "github.com/stripe/stripe-go"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
)

const periodLayout = "January 02, 2006"

// IsActive reports whether the subscription status is exactly active.
// Trialing and past_due subscriptions are not active.
func IsActive(sub stripe.Subscription) bool {
	return sub.Status == stripe.SubscriptionStatusActive
}

// FilterActive keeps the active subscriptions, preserving provider order.
func FilterActive(subs []stripe.Subscription) []stripe.Subscription {
	var active []stripe.Subscription
	for _, sub := range subs {
		if IsActive(sub) {
			active = append(active, sub)
		}
	}
	return active
}

// IsSubscriptionLapsed returns true if the subscription has ended, is canceled,
// or is past its cancel timestamp at now.
func IsSubscriptionLapsed(sub stripe.Subscription, now time.Time) bool {
	if sub.EndedAt != 0 {
		return true
	}
	if sub.CancelAt != 0 && now.Unix() >= sub.CancelAt {
		return true
	}
	return sub.Status == stripe.SubscriptionStatusCanceled
}

// canReactivate reports whether a pending cancellation can still be undone at now.
func canReactivate(sub stripe.Subscription, now time.Time) bool {
	return !IsSubscriptionLapsed(sub, now) && now.Unix() < sub.CurrentPeriodEnd
}

func planName(sub stripe.Subscription) string {
	if sub.Plan == nil {
		return ""
	}
	if sub.Plan.Nickname != "" {
		return sub.Plan.Nickname
	}
	return sub.Plan.ID
}

func mirrorFromRemote(userID int64, sub stripe.Subscription, seenAt int64) stripedb.LocalSubscription {
	return applyRemote(stripedb.LocalSubscription{SubscriptionID: sub.ID, UserID: userID}, sub, seenAt)
}

// applyRemote overwrites the cached remote fields of local with sub as observed
// at seenAt. A payload without a plan keeps the plan already cached, and a zero
// seenAt keeps the previous watermark.
func applyRemote(local stripedb.LocalSubscription, sub stripe.Subscription, seenAt int64) stripedb.LocalSubscription {
	if name := planName(sub); name != "" {
		local.PlanName = name
	}
	local.Status = string(sub.Status)
	local.CurrentPeriodStart = sub.CurrentPeriodStart
	local.CurrentPeriodEnd = sub.CurrentPeriodEnd
	local.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if seenAt != 0 {
		local.RemoteUpdatedAt = seenAt
	}
	return local
}

func formatPeriod(start, end int64) string {
	return time.Unix(start, 0).UTC().Format(periodLayout) + " - " + time.Unix(end, 0).UTC().Format(periodLayout)
}
