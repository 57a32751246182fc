package gateway

import (
	"context"

	stripe "github.com/stripe/stripe-go"
)

//go:generate mockgen -destination=mock/mock_gateway.go -package=mock . StripeGateway

// StripeGateway abstracts the Stripe SDK operations needed by the app layer.
// Methods return values (not pointers) to respect the project's preference
// to avoid pointer types in public interfaces. Calls are not retried here;
// retry policy belongs to the SDK client.
type StripeGateway interface {
	// ListSubscriptionsForCustomer returns every subscription of a customer in provider order, whatever its status.
	ListSubscriptionsForCustomer(ctx context.Context, customerID string) ([]stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string) (stripe.Subscription, error)
	// CancelAtPeriodEnd flags the subscription to lapse at the end of the current period.
	CancelAtPeriodEnd(ctx context.Context, id string) error
	// Resume clears a pending cancel-at-period-end.
	Resume(ctx context.Context, id string) error
}
