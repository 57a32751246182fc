package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	stripeapp "github.com/tbeaudouin05/stripe-registration/api/services/stripe/app"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// toStatus maps app errors to gRPC statuses. Messages are safe to show to users;
// internal details stay in the logs.
func toStatus(err error) *status.Status {
	switch {
	case errors.Is(err, stripeapp.ErrUnauthorized):
		return status.New(codes.PermissionDenied, "you are not allowed to manage this subscription")
	case errors.Is(err, stripeapp.ErrReactivationWindowExpired):
		return status.New(codes.FailedPrecondition, "this subscription can no longer be re-activated because its billing period has ended")
	case errors.Is(err, stripeapp.ErrNotFound):
		return status.New(codes.NotFound, "not found")
	case errors.Is(err, stripeapp.ErrBadEvent):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, stripeapp.ErrGateway):
		return gatewayStatus(stripeapp.RemoteHTTPStatus(err))
	case errors.Is(err, stripeapp.ErrDatabase):
		return status.New(codes.Internal, "internal error")
	default:
		return status.New(codes.Unknown, "internal error")
	}
}

// gatewayStatus classifies a failed Stripe call by the HTTP status Stripe answered
// with. Only transport failures, throttling and provider 5xx are worth retrying.
func gatewayStatus(remote int) *status.Status {
	switch {
	case remote == http.StatusNotFound:
		return status.New(codes.NotFound, "subscription not found at the billing provider")
	case remote == http.StatusTooManyRequests:
		return status.New(codes.Unavailable, "billing provider is throttling requests, please retry")
	case remote == http.StatusUnauthorized || remote == http.StatusForbidden:
		return status.New(codes.Internal, "internal error")
	case remote >= 400 && remote < 500:
		return status.New(codes.FailedPrecondition, "the billing provider rejected this change")
	default:
		return status.New(codes.Unavailable, "billing provider unavailable, please retry")
	}
}

// writeError renders err and returns the HTTP status written.
func writeError(w http.ResponseWriter, r *http.Request, err error) int {
	st := toStatus(err)
	httpStatus := runtime.HTTPStatusFromCode(st.Code())
	if httpStatus >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "code", st.Code().String(), "err", err)
	} else {
		slog.Info("request rejected", "path", r.URL.Path, "code", st.Code().String(), "err", err)
	}
	writeJSON(w, httpStatus, errorResponse{Error: st.Message(), Code: st.Code().String()})
	return httpStatus
}

func writeStatus(w http.ResponseWriter, code codes.Code, msg string) {
	writeJSON(w, runtime.HTTPStatusFromCode(code), errorResponse{Error: msg, Code: code.String()})
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "status", status, "err", err)
	}
}
