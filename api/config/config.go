package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/joho/godotenv"
)

// AppConfig holds the global application configuration
var AppConfig *Config

// Config holds the application configuration
type Config struct {
	DatabaseURL         string
	StripeSecretKey     string
	StripeWebhookSecret string
	// Optional: base URL for running remote HTTP integration tests (e.g., https://api.example.com)
	IntegrationBaseURL string
	// Where users without an active subscription are sent.
	SubscribePath string
	// Server ports
	HTTPPort string
	GRPCPort string
}

type envVar struct {
	name     string
	envVar   string
	display  string
	required bool
}

var envVars = []envVar{
	{"DatabaseURL", "DATABASE_URL", "Database URL", true},
	{"StripeSecretKey", "STRIPE_SECRET_KEY", "Stripe Secret Key", true},
	{"StripeWebhookSecret", "STRIPE_WEBHOOK_SECRET", "Stripe Webhook Secret", true},
	{"IntegrationBaseURL", "INTEGRATION_BASE_URL", "Integration Base URL", false},
	{"SubscribePath", "SUBSCRIBE_PATH", "Subscribe Path", false},
	{"HTTPPort", "PORT", "HTTP Port", false},
	{"GRPCPort", "GRPC_PORT", "gRPC Port", false},
}

// LoadConfig loads configuration from environment variables, reading the
// nearest .env file first. Variables already present in the environment win.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	config := &Config{}
	for _, v := range envVars {
		value := os.Getenv(v.envVar)
		if v.required && value == "" {
			return nil, fmt.Errorf("missing required environment variable: %s", v.display)
		}
		reflect.ValueOf(config).Elem().FieldByName(v.name).SetString(value)
	}

	// Defaults
	if config.HTTPPort == "" {
		config.HTTPPort = "8080"
	}
	if config.GRPCPort == "" {
		config.GRPCPort = "50051"
	}
	if config.SubscribePath == "" {
		config.SubscribePath = DefaultSubscribePath
	}

	return config, nil
}

// loadDotEnv walks from the working directory up to the root and loads the
// first .env file it finds.
func loadDotEnv() error {
	currentDir, _ := os.Getwd()
	for currentDir != "/" && currentDir != "." {
		envPath := filepath.Join(currentDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("failed to load .env file: %v", err)
			}
			return nil
		}
		parent := filepath.Dir(currentDir)
		if parent == currentDir {
			break
		}
		currentDir = parent
	}
	return nil
}
