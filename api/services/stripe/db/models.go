package db

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User is the slice of the CMS user profile this module reads.
// An empty StripeCustomerID means the user was never linked to Stripe.
type User struct {
	ID               int64
	Email            string
	StripeCustomerID string
}

// LocalSubscription is the local mirror of a Stripe subscription, keyed by SubscriptionID.
// Period bounds are epoch seconds. RemoteUpdatedAt is the Stripe-side time of the
// state cached here: the event creation time for webhook refreshes, the fetch time
// otherwise. CreatedAt and UpdatedAt track local writes only.
type LocalSubscription struct {
	SubscriptionID     string
	UserID             int64
	PlanName           string
	Status             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	RemoteUpdatedAt    int64
	CreatedAt          int64
	UpdatedAt          int64
}

// WebhookEvent records a delivered Stripe event so redeliveries can be skipped.
type WebhookEvent struct {
	EventID         string
	EventType       string
	SubscriptionID  string
	ReceivedAt      int64
	ProcessedAt     int64
	ProcessingError string
}

// Processed reports whether the event already ran to completion.
func (e WebhookEvent) Processed() bool {
	return e.ProcessedAt != 0 && e.ProcessingError == ""
}
