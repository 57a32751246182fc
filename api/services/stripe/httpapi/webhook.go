package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/webhook"
	"github.com/tbeaudouin05/stripe-registration/api/metrics"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// receiveWebhook verifies the Stripe signature and hands the event to the service.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(h.webhookSecret) == "" {
		status = http.StatusServiceUnavailable
		writeJSON(w, status, errorResponse{Error: "webhook secret not configured", Code: "Unavailable"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, status, errorResponse{Error: "failed to read request body", Code: "InvalidArgument"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		status = http.StatusBadRequest
		writeJSON(w, status, errorResponse{Error: "missing Stripe signature", Code: "InvalidArgument"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		slog.Info("stripe webhook rejected", "err", err)
		status = http.StatusBadRequest
		writeJSON(w, status, errorResponse{Error: "invalid Stripe signature", Code: "InvalidArgument"})
		return
	}
	eventType = event.Type

	if err := h.svc.HandleWebhookEvent(r.Context(), event); err != nil {
		status = writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
}
