package app

import "fmt"

const (
	// PermissionAdminister grants every subscription operation on every user.
	PermissionAdminister = "administer stripe subscriptions"
	// PermissionManageOwn grants subscription operations on the caller's own subscriptions.
	PermissionManageOwn = "manage own stripe subscriptions"
)

// Account is the authenticated caller as resolved by the transport layer.
type Account struct {
	UserID      int64
	Permissions []string
}

// HasPermission reports whether the account was granted perm.
func (a Account) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type OperationName string

const (
	OperationCancel     OperationName = "cancel"
	OperationReactivate OperationName = "reactivate"
)

// Operation is an action offered next to a subscription row.
type Operation struct {
	Name  OperationName `json:"name"`
	Title string        `json:"title"`
	Path  string        `json:"path"`
}

// SubscriptionRow is one line of a user's subscription overview.
type SubscriptionRow struct {
	SubscriptionID string      `json:"subscriptionId"`
	Plan           string      `json:"plan"`
	Status         string      `json:"status"`
	Period         string      `json:"period"`
	WillRenew      string      `json:"willRenew"`
	Operations     []Operation `json:"operations"`
}

// SubscriptionsView is the domain response for a user's subscription overview.
// When the user holds no active subscription Redirect points at the subscribe flow.
type SubscriptionsView struct {
	UserID        int64             `json:"userId"`
	Subscriptions []SubscriptionRow `json:"subscriptions"`
	Redirect      string            `json:"redirect,omitempty"`
}

// SubscribeDecision tells the subscribe flow whether to proceed or redirect.
type SubscribeDecision struct {
	AlreadySubscribed bool   `json:"alreadySubscribed"`
	Redirect          string `json:"redirect,omitempty"`
}

// LocalSubscriptionRow is an admin listing entry built from the local mirror only.
type LocalSubscriptionRow struct {
	SubscriptionID    string      `json:"subscriptionId"`
	UserID            int64       `json:"userId"`
	Plan              string      `json:"plan"`
	Status            string      `json:"status"`
	CancelAtPeriodEnd bool        `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  int64       `json:"currentPeriodEnd"`
	Operations        []Operation `json:"operations"`
}

// SubscriptionsPath is the overview route for a user.
func SubscriptionsPath(userID int64) string {
	return fmt.Sprintf("/api/users/%d/subscriptions", userID)
}

func cancelOperation(remoteID string) Operation {
	return Operation{Name: OperationCancel, Title: "Cancel", Path: "/api/subscriptions/" + remoteID + "/cancel"}
}

func reactivateOperation(remoteID string) Operation {
	return Operation{Name: OperationReactivate, Title: "Re-activate", Path: "/api/subscriptions/" + remoteID + "/reactivate"}
}
