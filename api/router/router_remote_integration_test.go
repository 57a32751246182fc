package router

import (
	"bytes"
	"net/http"
	"testing"

	config "github.com/tbeaudouin05/stripe-registration/api/config"
)

// Remote HTTP integration tests against a deployed instance at INTEGRATION_BASE_URL.

func remoteBaseURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in -short mode")
	}
	cfg := config.AppConfig
	if cfg == nil {
		var err error
		if cfg, err = config.LoadConfig(); err != nil {
			t.Skipf("config not available: %v", err)
		}
	}
	if cfg.IntegrationBaseURL == "" {
		t.Skip("INTEGRATION_BASE_URL not set")
	}
	return cfg.IntegrationBaseURL
}

func TestCancelSubscriptionHTTP_Remote_Integration(t *testing.T) {
	base := remoteBaseURL(t)

	resp, err := http.Post(base+"/api/subscriptions/sub_missing/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without account headers, got %d", resp.StatusCode)
	}
}

func TestReceiveStripeWebhookHTTP_Remote_Integration(t *testing.T) {
	base := remoteBaseURL(t)

	req, _ := http.NewRequest(http.MethodPost, base+"/api/receive-stripe-webhook", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	// Intentionally omit Stripe-Signature header to get an error response
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 when missing Stripe-Signature, got %d", resp.StatusCode)
	}
}
