package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go"
	"github.com/tbeaudouin05/stripe-registration/api/metrics"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
)

// GetActiveSubscriptions returns the user's subscriptions whose status is active.
// A user never linked to Stripe yields an empty result without a remote call.
// Missing local mirrors are created on the way; failing to create one is
// logged and does not fail the read.
func (s serviceImpl) GetActiveSubscriptions(ctx context.Context, userID int64) ([]stripe.Subscription, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, stripedb.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error loading user: %v", ErrDatabase, err)
	}
	if user.StripeCustomerID == "" {
		return nil, nil
	}

	remote, err := s.gw.ListSubscriptionsForCustomer(ctx, user.StripeCustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: error listing subscriptions: %w", ErrGateway, err)
	}

	active := FilterActive(remote)
	for _, sub := range active {
		s.ensureMirror(ctx, user.ID, sub)
	}
	return active, nil
}

func (s serviceImpl) ensureMirror(ctx context.Context, userID int64, sub stripe.Subscription) {
	_, ok, err := s.store.LoadBySubscriptionID(ctx, sub.ID)
	if err != nil {
		metrics.MirrorWritesTotal.WithLabelValues("create", "error").Inc()
		slog.Warn("could not load local subscription", "subscription_id", sub.ID, "err", err)
		return
	}
	if ok {
		return
	}
	if _, err := s.store.Create(ctx, mirrorFromRemote(userID, sub, s.now().Unix())); err != nil {
		metrics.MirrorWritesTotal.WithLabelValues("create", "error").Inc()
		slog.Warn("could not create local subscription", "subscription_id", sub.ID, "user_id", userID, "err", err)
		return
	}
	metrics.MirrorWritesTotal.WithLabelValues("create", "ok").Inc()
	slog.Info("created local subscription", "subscription_id", sub.ID, "user_id", userID)
}

// Cancel flags the subscription to end with its current period and resyncs the local mirror.
// Cancelling an already cancelled subscription is safe.
func (s serviceImpl) Cancel(ctx context.Context, remoteID string) (stripe.Subscription, error) {
	if err := s.gw.CancelAtPeriodEnd(ctx, remoteID); err != nil {
		metrics.SubscriptionActionsTotal.WithLabelValues("cancel", "gateway_error").Inc()
		s.forgetIfMissing(ctx, remoteID, err)
		return stripe.Subscription{}, fmt.Errorf("%w: error canceling subscription: %w", ErrGateway, err)
	}
	sub, err := s.resync(ctx, remoteID)
	if err != nil {
		metrics.SubscriptionActionsTotal.WithLabelValues("cancel", "resync_error").Inc()
		return stripe.Subscription{}, err
	}
	metrics.SubscriptionActionsTotal.WithLabelValues("cancel", "ok").Inc()
	slog.Info("subscription set to cancel at period end", "subscription_id", remoteID)
	return sub, nil
}

// Reactivate undoes a pending cancellation while the current period is still running.
// Past current_period_end it fails with ErrReactivationWindowExpired without touching Stripe.
func (s serviceImpl) Reactivate(ctx context.Context, remoteID string) (stripe.Subscription, error) {
	current, err := s.gw.GetSubscription(ctx, remoteID)
	if err != nil {
		metrics.SubscriptionActionsTotal.WithLabelValues("reactivate", "gateway_error").Inc()
		s.forgetIfMissing(ctx, remoteID, err)
		return stripe.Subscription{}, fmt.Errorf("%w: error getting subscription: %w", ErrGateway, err)
	}
	if !canReactivate(current, s.now()) {
		metrics.SubscriptionActionsTotal.WithLabelValues("reactivate", "expired").Inc()
		return stripe.Subscription{}, fmt.Errorf("%w: subscription %s lapsed at %d", ErrReactivationWindowExpired, remoteID, current.CurrentPeriodEnd)
	}

	if err := s.gw.Resume(ctx, remoteID); err != nil {
		metrics.SubscriptionActionsTotal.WithLabelValues("reactivate", "gateway_error").Inc()
		s.forgetIfMissing(ctx, remoteID, err)
		return stripe.Subscription{}, fmt.Errorf("%w: error resuming subscription: %w", ErrGateway, err)
	}
	sub, err := s.resync(ctx, remoteID)
	if err != nil {
		metrics.SubscriptionActionsTotal.WithLabelValues("reactivate", "resync_error").Inc()
		return stripe.Subscription{}, err
	}
	metrics.SubscriptionActionsTotal.WithLabelValues("reactivate", "ok").Inc()
	slog.Info("subscription reactivated", "subscription_id", remoteID)
	return sub, nil
}

// resync re-fetches the subscription and overwrites the cached fields of its
// local mirror. A mirror that does not exist (or vanished to a concurrent
// webhook delete) is left absent.
func (s serviceImpl) resync(ctx context.Context, remoteID string) (stripe.Subscription, error) {
	sub, err := s.gw.GetSubscription(ctx, remoteID)
	if err != nil {
		s.forgetIfMissing(ctx, remoteID, err)
		return stripe.Subscription{}, fmt.Errorf("%w: subscription changed remotely but re-fetch failed: %w", ErrGateway, err)
	}
	local, ok, err := s.store.LoadBySubscriptionID(ctx, remoteID)
	if err != nil {
		return sub, fmt.Errorf("%w: subscription changed remotely but local mirror could not be loaded: %v", ErrDatabase, err)
	}
	if !ok {
		slog.Info("no local subscription to resync", "subscription_id", remoteID)
		return sub, nil
	}

	updated, err := s.store.Update(ctx, applyRemote(local, sub, s.now().Unix()))
	if err != nil {
		metrics.MirrorWritesTotal.WithLabelValues("update", "error").Inc()
		return sub, fmt.Errorf("%w: subscription changed remotely but local mirror update failed: %v", ErrDatabase, err)
	}
	if !updated {
		slog.Info("local subscription deleted during resync", "subscription_id", remoteID)
		return sub, nil
	}
	metrics.MirrorWritesTotal.WithLabelValues("update", "ok").Inc()
	return sub, nil
}

// forgetIfMissing drops the local mirror of a subscription Stripe reports as
// missing, so a stale row stops standing in for it.
func (s serviceImpl) forgetIfMissing(ctx context.Context, remoteID string, err error) {
	if RemoteHTTPStatus(err) != http.StatusNotFound {
		return
	}
	if derr := s.deleteMirror(ctx, remoteID); derr != nil {
		slog.Warn("could not drop mirror of missing subscription", "subscription_id", remoteID, "err", derr)
	}
}
