package app

import (
	"errors"

	stripe "github.com/stripe/stripe-go"
)

// Typed errors for the Stripe app layer. These enable HTTP mapping without
// relying on SDK-specific error types at the transport layer.
var (

	// ErrBadEvent indicates the incoming event payload is invalid or missing required fields.
	ErrBadEvent = errors.New("bad event")
	// ErrDatabase indicates a database-related failure.
	ErrDatabase = errors.New("database error")
	// ErrGateway indicates a failure from the Stripe gateway / API calls.
	ErrGateway = errors.New("gateway error")
	// ErrNotFound indicates the user or subscription addressed by the caller does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the caller may not operate on the subscription.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrReactivationWindowExpired indicates the subscription already lapsed and cannot be resumed.
	ErrReactivationWindowExpired = errors.New("reactivation window expired")
)

// RemoteHTTPStatus returns the HTTP status Stripe answered a failed call with,
// or 0 when the call never got an API response (network failure, timeout).
func RemoteHTTPStatus(err error) int {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode
	}
	return 0
}
