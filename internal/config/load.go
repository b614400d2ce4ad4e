package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/online_shop/pkg/config"
)

// EnvFile is resolved against the working directory.
const EnvFile = ".env"

// LoadEnvFile populates unset variables from EnvFile. Variables already in
// the environment win.
func LoadEnvFile() error {
	return godotenv.Load(EnvFile)
}

const (
	ProviderSandbox = "sandbox"
	ProviderHTTP    = "http"
	ProviderStripe  = "stripe"
)

type ServiceConfig struct {
	config.Config

	OrderEventsTopic string

	PaymentProvider   string
	PaymentGatewayURL string
	PaymentAPIKey     string
	StripeSecretKey   string
	PaymentTimeout    time.Duration

	PersistTimeout    time.Duration
	PersistMaxRetries int

	IdempotencyTTL  time.Duration
	DefaultCurrency string

	// AutoMigrate runs gorm AutoMigrate at startup instead of cmd/migrate.
	AutoMigrate bool
}

func Load() ServiceConfig {
	cfg := config.Load()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")

	sc := ServiceConfig{
		Config: cfg,

		OrderEventsTopic: config.EnvDefault("ORDER_EVENTS_TOPIC", "order_events"),

		PaymentProvider:   config.EnvDefault("PAYMENT_PROVIDER", ProviderSandbox),
		PaymentGatewayURL: config.EnvDefault("PAYMENT_GATEWAY_URL", ""),
		PaymentAPIKey:     config.EnvDefault("PAYMENT_API_KEY", ""),
		StripeSecretKey:   config.EnvDefault("STRIPE_SECRET_KEY", ""),
		PaymentTimeout:    config.EnvDurationDefault("PAYMENT_TIMEOUT", 10*time.Second),

		PersistTimeout:    config.EnvDurationDefault("PERSIST_TIMEOUT", 15*time.Second),
		PersistMaxRetries: config.EnvIntDefault("PERSIST_MAX_RETRIES", 3),

		IdempotencyTTL:  config.EnvDurationDefault("IDEMPOTENCY_TTL", 24*time.Hour),
		DefaultCurrency: strings.ToUpper(config.EnvDefault("DEFAULT_CURRENCY", "USD")),

		AutoMigrate: config.EnvDefault("DB_AUTO_MIGRATE", "false") == "true",
	}

	config.MustOneOf(sc.PaymentProvider, "PAYMENT_PROVIDER", ProviderSandbox, ProviderHTTP, ProviderStripe)
	switch sc.PaymentProvider {
	case ProviderHTTP:
		config.MustNonEmpty(sc.PaymentGatewayURL, "PAYMENT_GATEWAY_URL")
		config.MustNonEmpty(sc.PaymentAPIKey, "PAYMENT_API_KEY")
	case ProviderStripe:
		config.MustNonEmpty(sc.StripeSecretKey, "STRIPE_SECRET_KEY")
	}
	config.MustOneOf(sc.DefaultCurrency, "DEFAULT_CURRENCY", "USD", "EUR", "GBP")
	if sc.PersistMaxRetries < 0 {
		sc.PersistMaxRetries = 0
	}

	return sc
}
