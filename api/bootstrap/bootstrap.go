package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/tbeaudouin05/stripe-registration/api/config"
	"github.com/tbeaudouin05/stripe-registration/api/database"
	stripeapp "github.com/tbeaudouin05/stripe-registration/api/services/stripe/app"
	stripedb "github.com/tbeaudouin05/stripe-registration/api/services/stripe/db"
	stripegw "github.com/tbeaudouin05/stripe-registration/api/services/stripe/gateway/stripe"
)

var stripeService stripeapp.Service
var initOnce sync.Once
var initErr error

// Init initializes config, database, and third-party clients, and wires services.
func Init() error {
	// If a service has already been injected (e.g., tests), do not override or init heavy deps.
	if stripeService != nil {
		return nil
	}
	if err := ensureConfig(); err != nil {
		return err
	}

	if err := database.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(context.Background(), database.GetDB()); err != nil {
		return err
	}

	stripegw.SetKey(config.AppConfig.StripeSecretKey)

	stripeService = stripeapp.NewService(
		stripegw.New(),
		stripedb.New(database.GetDB()),
		stripeapp.WithSubscribePath(config.AppConfig.SubscribePath),
	)
	return nil
}

func ensureConfig() error {
	if config.AppConfig != nil {
		return nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	config.AppConfig = cfg
	return nil
}

func GetStripeService() stripeapp.Service { return stripeService }

// SetStripeService allows tests to inject a stub implementation.
func SetStripeService(s stripeapp.Service) { stripeService = s }

// WebhookSecret returns the configured Stripe endpoint secret, or "" when unconfigured.
func WebhookSecret() string {
	if config.AppConfig == nil {
		return ""
	}
	return config.AppConfig.StripeWebhookSecret
}

// Ensure runs Init() once per process and returns any initialization error.
func Ensure() error {
	initOnce.Do(func() {
		initErr = Init()
	})
	return initErr
}
