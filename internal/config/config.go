package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	LemonSqueezy LemonSqueezyConfig
	Polar        PolarConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port       string
	Host       string
	AppBaseURL string // Storefront base URL used for checkout redirect targets
	Env        string // Environment: development, staging, production
}

// IsDevelopment returns true if the environment is development
func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development" || s.Env == ""
}

// BaseURL returns the storefront URL for the given path.
// If AppBaseURL is not configured, it constructs one from host:port.
func (s *ServerConfig) BaseURL(path string) string {
	if s.AppBaseURL != "" {
		return s.AppBaseURL + path
	}

	host := s.Host
	// Handle 0.0.0.0 or empty host - use localhost for URLs
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s%s", host, s.Port, path)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// StripeConfig holds Stripe payment configuration
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// LemonSqueezyConfig holds Lemon Squeezy payment configuration
type LemonSqueezyConfig struct {
	APIKey        string
	StoreID       string
	VariantID     string // default variant used with custom prices
	WebhookSecret string
}

// PolarConfig holds Polar payment configuration
type PolarConfig struct {
	AccessToken          string
	Server               string // sandbox or production
	WebhookSecret        string
	StarterProductID     string
	PackProductID        string
	FashionistaProductID string
	LinksProductID       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			Host:       getEnv("HOST", "0.0.0.0"),
			AppBaseURL: getEnv("APP_BASE_URL", ""),
			Env:        getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		LemonSqueezy: LemonSqueezyConfig{
			APIKey:        getEnv("LEMONSQUEEZY_API_KEY", ""),
			StoreID:       getEnv("LEMONSQUEEZY_STORE_ID", ""),
			VariantID:     getEnv("LEMONSQUEEZY_VARIANT_ID", ""),
			WebhookSecret: getEnv("LEMONSQUEEZY_WEBHOOK_SECRET", ""),
		},
		Polar: PolarConfig{
			AccessToken:          getEnv("POLAR_ACCESS_TOKEN", ""),
			Server:               getEnv("POLAR_SERVER", "sandbox"),
			WebhookSecret:        getEnv("POLAR_WEBHOOK_SECRET", ""),
			StarterProductID:     getEnv("POLAR_STARTER_PRODUCT_ID", ""),
			PackProductID:        getEnv("POLAR_PACK_PRODUCT_ID", ""),
			FashionistaProductID: getEnv("POLAR_FASHIONISTA_PRODUCT_ID", ""),
			LinksProductID:       getEnv("POLAR_LINKS_PRODUCT_ID", ""),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// At least one payment provider must be configured
	if c.Stripe.SecretKey == "" && c.LemonSqueezy.APIKey == "" && c.Polar.AccessToken == "" {
		return fmt.Errorf("at least one payment provider must be configured")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
