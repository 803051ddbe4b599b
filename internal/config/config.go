package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"folioAPI/internal/billing"
)

type LemonSqueezy struct {
	APIKey        string
	StoreID       string
	WebhookSecret string
	APIURL        string
	Catalog       billing.PlanCatalog
}

type Paddle struct {
	APIKey           string
	Environment      string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Catalog          billing.PlanCatalog
}

// Sandbox reports whether Paddle calls go to the sandbox environment.
func (p Paddle) Sandbox() bool {
	return !strings.EqualFold(p.Environment, "production")
}

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string
	LogFormat   string
	AppBaseURL  string

	ClerkSecretKey string
	MetricsUser    string
	MetricsPass    string
	PprofSecret    string

	LemonSqueezy LemonSqueezy
	Paddle       Paddle

	// Memory runs the service against the in-process store. Set by the
	// --memory flag, never by the environment.
	Memory bool
}

// Load reads .env files (when present) and the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "auto")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("LEMONSQUEEZY_API_URL", "https://api.lemonsqueezy.com/v1")
	v.SetDefault("PADDLE_ENVIRONMENT", "sandbox")
	v.SetDefault("PADDLE_WEBHOOK_TOLERANCE", "0s")

	return &Config{
		Port:           v.GetString("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		AppBaseURL:     v.GetString("APP_BASE_URL"),
		ClerkSecretKey: v.GetString("CLERK_SECRET_KEY"),
		MetricsUser:    v.GetString("METRICS_USER"),
		MetricsPass:    v.GetString("METRICS_PASS"),
		PprofSecret:    v.GetString("PPROF_SECRET"),
		LemonSqueezy: LemonSqueezy{
			APIKey:        v.GetString("LEMONSQUEEZY_API_KEY"),
			StoreID:       v.GetString("LEMONSQUEEZY_STORE_ID"),
			WebhookSecret: v.GetString("LEMONSQUEEZY_WEBHOOK_SECRET"),
			APIURL:        v.GetString("LEMONSQUEEZY_API_URL"),
			Catalog: billing.PlanCatalog{
				Monthly:  v.GetString("LEMONSQUEEZY_VARIANT_MONTHLY"),
				Yearly:   v.GetString("LEMONSQUEEZY_VARIANT_YEARLY"),
				Lifetime: v.GetString("LEMONSQUEEZY_VARIANT_LIFETIME"),
			},
		},
		Paddle: Paddle{
			APIKey:           v.GetString("PADDLE_API_KEY"),
			Environment:      v.GetString("PADDLE_ENVIRONMENT"),
			WebhookSecret:    v.GetString("PADDLE_WEBHOOK_SECRET"),
			WebhookTolerance: v.GetDuration("PADDLE_WEBHOOK_TOLERANCE"),
			Catalog: billing.PlanCatalog{
				Monthly:  v.GetString("PADDLE_PRICE_MONTHLY"),
				Yearly:   v.GetString("PADDLE_PRICE_YEARLY"),
				Lifetime: v.GetString("PADDLE_PRICE_LIFETIME"),
			},
		},
	}, nil
}

// Validate reports every missing required key at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ClerkSecretKey == "" {
		errs = append(errs, errors.New("CLERK_SECRET_KEY is not set"))
	}
	if c.DatabaseURL == "" && !c.Memory {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if c.LemonSqueezy.WebhookSecret == "" && c.Paddle.WebhookSecret == "" {
		errs = append(errs, errors.New("no webhook secret configured (LEMONSQUEEZY_WEBHOOK_SECRET or PADDLE_WEBHOOK_SECRET)"))
	}
	if c.Paddle.WebhookTolerance < 0 {
		errs = append(errs, errors.New("PADDLE_WEBHOOK_TOLERANCE must not be negative"))
	}
	return errors.Join(errs...)
}
