package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	stripe "github.com/stripe/stripe-go"
	stripeapp "github.com/tbeaudouin05/stripe-registration/api/services/stripe/app"
	"google.golang.org/grpc/codes"
)

// Handler exposes the subscription operations over HTTP.
type Handler struct {
	svc           stripeapp.Service
	webhookSecret string
	account       AccountResolver
}

// Option customizes a Handler.
type Option func(*Handler)

// WithAccountResolver replaces the header based caller identification.
func WithAccountResolver(resolve AccountResolver) Option {
	return func(h *Handler) { h.account = resolve }
}

// New returns a Handler serving svc. webhookSecret verifies Stripe-Signature headers.
func New(svc stripeapp.Service, webhookSecret string, opts ...Option) *Handler {
	h := &Handler{svc: svc, webhookSecret: webhookSecret, account: HeaderAccount}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/api/users/{user_id}/subscriptions", h.viewSubscriptions},
		{http.MethodGet, "/api/users/{user_id}/subscribe", h.subscribe},
		{http.MethodPost, "/api/subscriptions/{remote_id}/cancel", h.cancel},
		{http.MethodPost, "/api/subscriptions/{remote_id}/reactivate", h.reactivate},
		{http.MethodGet, "/api/admin/subscriptions", h.listLocal},
		{http.MethodPost, "/api/receive-stripe-webhook", h.receiveWebhook},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

type subscriptionResponse struct {
	SubscriptionID    string `json:"subscriptionId"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  int64  `json:"currentPeriodEnd"`
	Redirect          string `json:"redirect"`
}

func (h *Handler) viewSubscriptions(w http.ResponseWriter, r *http.Request, params map[string]string) {
	userID, ok := h.authorizeUser(w, r, params)
	if !ok {
		return
	}
	view, err := h.svc.ViewSubscriptions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if view.Redirect != "" {
		w.Header().Set("Location", view.Redirect)
		writeJSON(w, http.StatusSeeOther, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request, params map[string]string) {
	userID, ok := h.authorizeUser(w, r, params)
	if !ok {
		return
	}
	decision, err := h.svc.Subscribe(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if decision.AlreadySubscribed {
		w.Header().Set("Location", decision.Redirect)
		writeJSON(w, http.StatusSeeOther, decision)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.mutate(w, r, params, h.svc.Cancel)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.mutate(w, r, params, h.svc.Reactivate)
}

// mutate checks access before running a cancel or reactivate action.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, params map[string]string,
	action func(ctx context.Context, remoteID string) (stripe.Subscription, error)) {
	remoteID := params["remote_id"]
	if remoteID == "" {
		writeStatus(w, codes.InvalidArgument, "missing subscription id")
		return
	}
	account, err := h.account(r)
	if err != nil {
		writeStatus(w, codes.Unauthenticated, "authentication required")
		return
	}
	if !h.svc.UserCanOperateOn(r.Context(), account, remoteID) {
		writeError(w, r, stripeapp.ErrUnauthorized)
		return
	}
	sub, err := action(r.Context(), remoteID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		Redirect:          stripeapp.SubscriptionsPath(account.UserID),
	})
}

func (h *Handler) listLocal(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	account, err := h.account(r)
	if err != nil {
		writeStatus(w, codes.Unauthenticated, "authentication required")
		return
	}
	if !account.HasPermission(stripeapp.PermissionAdminister) {
		writeError(w, r, stripeapp.ErrUnauthorized)
		return
	}
	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			writeStatus(w, codes.InvalidArgument, "invalid user id")
			return
		}
	}
	rows, err := h.svc.ListLocalSubscriptions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// authorizeUser resolves the caller and checks it may see the user named in the path.
func (h *Handler) authorizeUser(w http.ResponseWriter, r *http.Request, params map[string]string) (int64, bool) {
	userID, err := strconv.ParseInt(params["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		writeStatus(w, codes.InvalidArgument, "invalid user id")
		return 0, false
	}
	account, err := h.account(r)
	if err != nil {
		writeStatus(w, codes.Unauthenticated, "authentication required")
		return 0, false
	}
	if !h.svc.UserCanView(account, userID) {
		writeError(w, r, stripeapp.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}
