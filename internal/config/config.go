// Package config defines the global configuration structure for the Lattice API.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating code
// from configuration.
//
// Values are resolved from the OS environment, with a .env file as a local
// development fallback. Any missing required value or invalid format causes
// the application to fail immediately on startup.
package config

import (
	"time"

	"lattice/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the Lattice API.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	Auth     AuthConfig
	Compute  ComputeConfig
	Security SecurityConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public dashboard origin used to build checkout/portal redirect URLs
	// server-side (no trailing slash). Redirect targets are never taken
	// from client input.
	DashboardURL string `envconfig:"DASHBOARD_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// BillingConfig holds Stripe payment integration credentials.
//
// Both secrets may legitimately be empty: the service then runs with billing
// disabled and the checkout/webhook endpoints return a well-defined
// "not configured" error instead of touching Stripe.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// Enabled reports whether the Stripe integration is configured.
func (b BillingConfig) Enabled() bool {
	return b.StripeSecretKey.Unmask() != ""
}

// AuthConfig holds session management settings.
type AuthConfig struct {
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	CookieName   string        `envconfig:"SESSION_COOKIE_NAME" default:"lattice_session"`
	CookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"true"`
}

// ComputeConfig holds the connection settings for the compute engine that
// backs the console. The engine is an opaque HTTP dependency.
type ComputeConfig struct {
	BaseURL string        `envconfig:"COMPUTE_API_URL" validate:"required,url"`
	Timeout time.Duration `envconfig:"COMPUTE_TIMEOUT" default:"30s"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
