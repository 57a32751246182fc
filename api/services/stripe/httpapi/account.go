package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	stripeapp "github.com/tbeaudouin05/stripe-registration/api/services/stripe/app"
)

const (
	// HeaderUserID carries the authenticated user id set by the upstream auth proxy.
	HeaderUserID = "X-User-Id"
	// HeaderPermissions carries the caller's comma-separated permissions.
	HeaderPermissions = "X-User-Permissions"
)

var errNoAccount = errors.New("no authenticated account")

// AccountResolver identifies the caller of a request.
type AccountResolver func(r *http.Request) (stripeapp.Account, error)

// HeaderAccount trusts the identity headers set by the upstream proxy.
func HeaderAccount(r *http.Request) (stripeapp.Account, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		return stripeapp.Account{}, errNoAccount
	}
	var perms []string
	for _, p := range strings.Split(r.Header.Get(HeaderPermissions), ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return stripeapp.Account{UserID: id, Permissions: perms}, nil
}
