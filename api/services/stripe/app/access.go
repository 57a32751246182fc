package app

import (
	"context"
	"log/slog"
)

// UserCanOperateOn reports whether account may cancel or reactivate remoteID:
// administrators always may, other accounts need the manage-own permission and
// must own the subscription. Any failure to resolve ownership denies access.
func (s serviceImpl) UserCanOperateOn(ctx context.Context, account Account, remoteID string) bool {
	if account.HasPermission(PermissionAdminister) {
		return true
	}
	if !account.HasPermission(PermissionManageOwn) || account.UserID == 0 || remoteID == "" {
		return false
	}
	owns, err := s.userOwnsSubscription(ctx, account.UserID, remoteID)
	if err != nil {
		slog.Warn("denying subscription access, ownership lookup failed",
			"user_id", account.UserID, "subscription_id", remoteID, "err", err)
		return false
	}
	return owns
}

// UserCanView reports whether account may see userID's subscriptions.
func (s serviceImpl) UserCanView(account Account, userID int64) bool {
	if account.HasPermission(PermissionAdminister) {
		return true
	}
	return account.HasPermission(PermissionManageOwn) && account.UserID != 0 && account.UserID == userID
}

// userOwnsSubscription checks the local mirror first, then falls back to
// comparing the remote subscription's customer with the user's. Mirrors of
// subscriptions Stripe reports missing are dropped by forgetIfMissing.
func (s serviceImpl) userOwnsSubscription(ctx context.Context, userID int64, remoteID string) (bool, error) {
	local, ok, err := s.store.LoadBySubscriptionID(ctx, remoteID)
	if err != nil {
		return false, err
	}
	if ok {
		return local.UserID == userID, nil
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.StripeCustomerID == "" {
		return false, nil
	}
	sub, err := s.gw.GetSubscription(ctx, remoteID)
	if err != nil {
		return false, err
	}
	return sub.Customer != nil && sub.Customer.ID == user.StripeCustomerID, nil
}
