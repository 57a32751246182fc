package router

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	bootstrap "github.com/tbeaudouin05/stripe-registration/api/bootstrap"
	"github.com/tbeaudouin05/stripe-registration/api/services/stripe/httpapi"
)

const requestIDHeader = "X-Request-ID"

var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// NewRouter returns the central HTTP router for the API built on the grpc-gateway mux.
func NewRouter() http.Handler {
	// Initialize app dependencies (non-fatal if it fails here; requests will fail instead).
	if err := bootstrap.Ensure(); err != nil {
		slog.Error("bootstrap ensure failed", "err", err)
	}

	mux := runtime.NewServeMux()
	if svc := bootstrap.GetStripeService(); svc != nil {
		if err := httpapi.New(svc, bootstrap.WebhookSecret()).Register(mux); err != nil {
			slog.Error("failed to register stripe routes", "err", err)
		}
	}
	metricsHandler := promhttp.Handler()
	if err := mux.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		metricsHandler.ServeHTTP(w, r)
	}); err != nil {
		slog.Error("failed to register metrics route", "err", err)
	}
	return withRequestID(mux)
}

// withRequestID tags every request with an id, reusing a well-formed incoming one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "request_id", id, "elapsed", time.Since(start))
	})
}
