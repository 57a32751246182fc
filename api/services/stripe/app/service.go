package app

import (
	"context"
	"time"

	stripe "github.com/stripe/stripe-go"
	config "github.com/tbeaudouin05/stripe-registration/api/config"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
	gw "github.com/tbeaudouin05/stripe-registration/api/services/stripe/gateway"
)

// Service defines the business operations for the Stripe domain.
type Service interface {
	GetActiveSubscriptions(ctx context.Context, userID int64) ([]stripe.Subscription, error)
	Cancel(ctx context.Context, remoteID string) (stripe.Subscription, error)
	Reactivate(ctx context.Context, remoteID string) (stripe.Subscription, error)
	UserCanOperateOn(ctx context.Context, account Account, remoteID string) bool
	UserCanView(account Account, userID int64) bool
	ViewSubscriptions(ctx context.Context, userID int64) (SubscriptionsView, error)
	Subscribe(ctx context.Context, userID int64) (SubscribeDecision, error)
	ListLocalSubscriptions(ctx context.Context, userID int64) ([]LocalSubscriptionRow, error)
	HandleWebhookEvent(ctx context.Context, event stripe.Event) error
	PruneWebhookEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// SubscriptionStore is the persistence the service needs: the user profile,
// the local subscription mirror and the webhook delivery log.
type SubscriptionStore interface {
	GetUser(ctx context.Context, userID int64) (stripedb.User, error)
	LoadBySubscriptionID(ctx context.Context, id string) (stripedb.LocalSubscription, bool, error)
	Create(ctx context.Context, s stripedb.LocalSubscription) (stripedb.LocalSubscription, error)
	Update(ctx context.Context, s stripedb.LocalSubscription) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]stripedb.LocalSubscription, error)
	ListAll(ctx context.Context) ([]stripedb.LocalSubscription, error)
	RecordWebhookEvent(ctx context.Context, e stripedb.WebhookEvent) (bool, stripedb.WebhookEvent, error)
	MarkWebhookEventProcessed(ctx context.Context, eventID, processingError string) error
	PruneWebhookEvents(ctx context.Context, receivedBefore int64) (int64, error)
}

// Option customizes a Service.
type Option func(*serviceImpl)

// WithClock replaces the wall clock used for period comparisons.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) { s.now = now }
}

// WithSubscribePath sets where users without an active subscription are redirected.
func WithSubscribePath(path string) Option {
	return func(s *serviceImpl) { s.subscribePath = path }
}

// serviceImpl is a concrete implementation. It holds no mutable state, so
// requests and webhook deliveries only share the store.
type serviceImpl struct {
	gw            gw.StripeGateway
	store         SubscriptionStore
	now           func() time.Time
	subscribePath string
}

func NewService(g gw.StripeGateway, store SubscriptionStore, opts ...Option) Service {
	s := serviceImpl{
		gw:            g,
		store:         store,
		now:           time.Now,
		subscribePath: config.DefaultSubscribePath,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
