package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go"
	"github.com/tbeaudouin05/stripe-registration/api/metrics"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
)

// EventType is a subscription lifecycle event this module reacts to.
// See https://stripe.com/docs/billing/subscriptions/overview#subscription-lifecycle
type EventType string

const (
	EventUnknown                  EventType = ""
	EventSubscriptionCreated      EventType = "customer.subscription.created"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
	EventSubscriptionTrialWillEnd EventType = "customer.subscription.trial_will_end"
)

// DefaultWebhookRetention is how long delivery records are kept for redelivery checks.
// Stripe stops retrying a delivery after three days.
const DefaultWebhookRetention = 30 * 24 * time.Hour

// ParseEventType maps a Stripe event type to an EventType. The short
// "subscription.*" spelling is accepted too; anything else is EventUnknown.
func ParseEventType(raw string) EventType {
	t := EventType(raw)
	if strings.HasPrefix(raw, "subscription.") {
		t = EventType("customer." + raw)
	}
	switch t {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted, EventSubscriptionTrialWillEnd:
		return t
	}
	return EventUnknown
}

// HandleWebhookEvent applies a verified Stripe event to the local mirror.
// Deliveries are at-least-once: an event id that was already processed is
// skipped, and every action is idempotent on its own.
func (s serviceImpl) HandleWebhookEvent(ctx context.Context, event stripe.Event) error {
	kind := ParseEventType(event.Type)
	if kind == EventUnknown {
		slog.Info("stripe webhook ignored (unhandled type)", "type", event.Type, "event_id", event.ID)
		return nil
	}

	sub, err := decodeSubscription(event)
	if err != nil {
		return err
	}

	if event.ID != "" {
		created, stored, err := s.store.RecordWebhookEvent(ctx, stripedb.WebhookEvent{
			EventID:        event.ID,
			EventType:      event.Type,
			SubscriptionID: sub.ID,
		})
		if err != nil {
			return fmt.Errorf("%w: error recording webhook event: %v", ErrDatabase, err)
		}
		if !created && stored.Processed() {
			slog.Info("stripe webhook already processed", "event_id", event.ID, "type", event.Type)
			return nil
		}
	}

	err = s.applyEvent(ctx, kind, event, sub)

	if event.ID != "" {
		processingError := ""
		if err != nil {
			processingError = err.Error()
		}
		if markErr := s.store.MarkWebhookEventProcessed(ctx, event.ID, processingError); markErr != nil {
			slog.Warn("could not mark webhook event processed", "event_id", event.ID, "err", markErr)
		}
	}
	return err
}

// PruneWebhookEvents forgets deliveries older than retention and reports how many
// were removed. A non-positive retention means DefaultWebhookRetention.
func (s serviceImpl) PruneWebhookEvents(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultWebhookRetention
	}
	n, err := s.store.PruneWebhookEvents(ctx, s.now().Add(-retention).Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: error pruning webhook events: %v", ErrDatabase, err)
	}
	if n > 0 {
		slog.Info("pruned webhook events", "count", n, "retention", retention.String())
	}
	return n, nil
}

func (s serviceImpl) applyEvent(ctx context.Context, kind EventType, event stripe.Event, sub stripe.Subscription) error {
	switch kind {
	case EventSubscriptionCreated:
		// materialized lazily on the next read
		return nil
	case EventSubscriptionTrialWillEnd:
		slog.Info("subscription trial will end", "subscription_id", sub.ID, "trial_end", sub.TrialEnd)
		return nil
	case EventSubscriptionUpdated:
		return s.refreshMirror(ctx, event, sub)
	case EventSubscriptionDeleted:
		return s.deleteMirror(ctx, sub.ID)
	default:
		return nil
	}
}

// refreshMirror overwrites an existing mirror with the event payload. It never
// creates a mirror, so a late update cannot resurrect a deleted subscription.
// Events older than the Stripe-side state already cached are stale and skipped.
func (s serviceImpl) refreshMirror(ctx context.Context, event stripe.Event, sub stripe.Subscription) error {
	local, ok, err := s.store.LoadBySubscriptionID(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("%w: error loading local subscription: %v", ErrDatabase, err)
	}
	if !ok {
		return nil
	}
	if event.Created != 0 && event.Created < local.RemoteUpdatedAt {
		slog.Info("stale subscription update skipped", "subscription_id", sub.ID, "event_id", event.ID)
		return nil
	}
	if _, err := s.store.Update(ctx, applyRemote(local, sub, event.Created)); err != nil {
		metrics.MirrorWritesTotal.WithLabelValues("update", "error").Inc()
		return fmt.Errorf("%w: error updating local subscription: %v", ErrDatabase, err)
	}
	metrics.MirrorWritesTotal.WithLabelValues("update", "ok").Inc()
	return nil
}

func (s serviceImpl) deleteMirror(ctx context.Context, id string) error {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		metrics.MirrorWritesTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("%w: error deleting local subscription: %v", ErrDatabase, err)
	}
	if !removed {
		slog.Info("no local subscription to delete", "subscription_id", id)
		return nil
	}
	metrics.MirrorWritesTotal.WithLabelValues("delete", "ok").Inc()
	slog.Info("deleted local subscription", "subscription_id", id)
	return nil
}

func decodeSubscription(event stripe.Event) (stripe.Subscription, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return stripe.Subscription{}, fmt.Errorf("%w: event %s carries no data", ErrBadEvent, event.ID)
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return stripe.Subscription{}, fmt.Errorf("%w: error unmarshaling into Subscription: %v", ErrBadEvent, err)
	}
	if sub.ID == "" {
		return stripe.Subscription{}, fmt.Errorf("%w: subscription ID not found in event %s", ErrBadEvent, event.ID)
	}
	return sub, nil
}
