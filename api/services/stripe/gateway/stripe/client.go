package stripegw

import (
	"context"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/sub"

	gw "github.com/tbeaudouin05/stripe-registration/api/services/stripe/gateway"
)

// SetKey configures the Stripe SDK key once during bootstrap.
func SetKey(key string) { stripe.Key = key }

// client is the Stripe SDK-backed implementation of the gateway.
type client struct{}

// New returns a StripeGateway backed by the official Stripe SDK.
func New() gw.StripeGateway { return client{} }

func (client) ListSubscriptionsForCustomer(ctx context.Context, customerID string) ([]stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: customerID,
		Status:   string(stripe.SubscriptionStatusAll),
	}
	params.Context = ctx

	var subs []stripe.Subscription
	it := sub.List(params)
	for it.Next() {
		if s := it.Subscription(); s != nil {
			subs = append(subs, *s)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func (client) GetSubscription(ctx context.Context, id string) (stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	subPtr, err := sub.Get(id, params)
	if err != nil {
		return stripe.Subscription{}, err
	}
	if subPtr == nil {
		return stripe.Subscription{}, nil
	}
	return *subPtr, nil
}

func (client) CancelAtPeriodEnd(ctx context.Context, id string) error {
	return setCancelAtPeriodEnd(ctx, id, true)
}

func (client) Resume(ctx context.Context, id string) error {
	return setCancelAtPeriodEnd(ctx, id, false)
}

func setCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	_, err := sub.Update(id, params)
	return err
}
