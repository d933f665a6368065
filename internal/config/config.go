// Package config defines the global configuration structure for the onboarding
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret References (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"onboard/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Session store backends.
const (
	SessionBackendMemory   = "memory"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// Payment gateway providers.
const (
	PaymentProviderWebhook = "webhook"
	PaymentProviderStripe  = "stripe"
)

// Config is the top-level configuration struct for the onboarding service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"onboard-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server       ServerConfig
	Session      SessionConfig
	Persistence  PersistenceConfig
	Payment      PaymentConfig
	Provisioning ProvisioningConfig
	Wizard       WizardConfig
	Security     SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicURL is the externally reachable base URL (no trailing slash),
	// used for cookie scoping and CORS defaults.
	PublicURL       string        `envconfig:"PUBLIC_URL" validate:"required,url"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// SessionConfig holds wizard session store selection and tuning.
type SessionConfig struct {
	// Backend selects where session state lives. Memory is for single-node
	// and local use only; redis and postgres survive restarts.
	Backend string        `envconfig:"SESSION_BACKEND" default:"memory" validate:"oneof=memory redis postgres"`
	TTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	CookieName   string `envconfig:"SESSION_COOKIE_NAME" default:"onboard_session"`
	CookieSecure bool   `envconfig:"SESSION_COOKIE_SECURE" default:"true"`

	// Redis backend
	RedisURL SecretString `envconfig:"SESSION_REDIS_URL"`

	// Postgres backend
	PostgresURL SecretString `envconfig:"SESSION_POSTGRES_URL"`

	// Postgres pool tuning
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// PersistenceConfig holds contact store (VitalSync) API settings.
// All values are optional because local and test environments run on stubs;
// the client registry rejects missing values when real clients are built.
type PersistenceConfig struct {
	GraphQLURL   string       `envconfig:"PERSISTENCE_GRAPHQL_URL" validate:"omitempty,url"`
	APIKey       SecretString `envconfig:"PERSISTENCE_API_KEY"`
	SlugCheckURL string       `envconfig:"PERSISTENCE_SLUG_CHECK_URL" validate:"omitempty,url"`
	SlugCheckKey SecretString `envconfig:"PERSISTENCE_SLUG_CHECK_KEY"`
}

// PaymentConfig holds payment gateway selection and credentials.
type PaymentConfig struct {
	Provider string `envconfig:"PAYMENT_PROVIDER" default:"webhook" validate:"oneof=webhook stripe"`

	// Webhook provider
	WebhookURL string `envconfig:"PAYMENT_WEBHOOK_URL" validate:"omitempty,url"`

	// Stripe provider
	StripeSecretKey SecretString `envconfig:"STRIPE_SECRET_KEY"`
}

// ProvisioningConfig holds workspace provisioning webhook settings.
type ProvisioningConfig struct {
	WebhookURL string `envconfig:"PROVISIONING_WEBHOOK_URL" validate:"omitempty,url"`
	Hostname   string `envconfig:"PROVISIONING_HOSTNAME" default:"awesomate.ai"`
	Timezone   string `envconfig:"PROVISIONING_TIMEZONE" default:"Australia/Perth"`
}

// WizardConfig holds wizard behavior tuning.
type WizardConfig struct {
	// SlugDebounce is how long a slug availability check waits for the
	// candidate to settle before hitting the remote endpoint.
	SlugDebounce time.Duration `envconfig:"SLUG_CHECK_DEBOUNCE" default:"400ms"`
	// AutosaveDrainTimeout bounds how long shutdown waits for in-flight
	// checkpoint saves.
	AutosaveDrainTimeout time.Duration `envconfig:"AUTOSAVE_DRAIN_TIMEOUT" default:"10s"`
}

// SecurityConfig holds CORS and related settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a failure when resolving secret references.
	ErrSecretResolution ConfigErrorType = "SECRET_RESOLUTION_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
