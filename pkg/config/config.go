package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL      string        `mapstructure:"DATABASE_URL" validate:"required"`
	DBConnectRetries int           `mapstructure:"DB_CONNECT_RETRIES" validate:"gte=0,lte=100"`
	DBConnectDelay   time.Duration `mapstructure:"DB_CONNECT_DELAY"`

	// Redis backs the page render cache; empty means the in-memory cache is used.
	RedisAddr     string        `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	PageCacheTTL  time.Duration `mapstructure:"PAGE_CACHE_TTL"`

	SessionSecret      string `mapstructure:"SESSION_SECRET" validate:"required,min=16"`
	MachineTokenSecret string `mapstructure:"MACHINE_TOKEN_SECRET" validate:"required,min=16"`

	StripeSecretKey       string `mapstructure:"STRIPE_SECRET_KEY"`
	StripePriceBasic      string `mapstructure:"STRIPE_PRICE_BASIC"`
	StripePricePro        string `mapstructure:"STRIPE_PRICE_PRO"`
	StripePriceEnterprise string `mapstructure:"STRIPE_PRICE_ENTERPRISE"`
	BillingReturnURL      string `mapstructure:"BILLING_RETURN_URL" validate:"omitempty,url"`

	SpacesEndpoint    string `mapstructure:"SPACES_ENDPOINT" validate:"omitempty,url"`
	SpacesBucket      string `mapstructure:"SPACES_BUCKET"`
	SpacesEndpointCDN string `mapstructure:"SPACES_ENDPOINT_CDN" validate:"omitempty,url"`

	RateLimitRPS       float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst     int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=1"`
	CORSAllowedOrigins string  `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// TrustProxyHeaders honours X-Forwarded-Host/Proto; set only behind a proxy that overwrites them.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	if strings.TrimSpace(c.CORSAllowedOrigins) == "" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// StripePrices returns the plan name to price id table.
func (c *Config) StripePrices() map[string]string {
	return map[string]string{
		"basic":      c.StripePriceBasic,
		"pro":        c.StripePricePro,
		"enterprise": c.StripePriceEnterprise,
	}
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"DB_CONNECT_RETRIES",
	"DB_CONNECT_DELAY",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"PAGE_CACHE_TTL",
	"SESSION_SECRET",
	"MACHINE_TOKEN_SECRET",
	"STRIPE_SECRET_KEY",
	"STRIPE_PRICE_BASIC",
	"STRIPE_PRICE_PRO",
	"STRIPE_PRICE_ENTERPRISE",
	"BILLING_RETURN_URL",
	"SPACES_ENDPOINT",
	"SPACES_BUCKET",
	"SPACES_ENDPOINT_CDN",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"CORS_ALLOWED_ORIGINS",
	"TRUST_PROXY_HEADERS",
	"GOMAXPROCS",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_CONNECT_DELAY", "1s")
	v.SetDefault("PAGE_CACHE_TTL", "60s")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("TRUST_PROXY_HEADERS", false)
	v.SetDefault("GOMAXPROCS", 0)

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"DB_CONNECT_DELAY": &c.DBConnectDelay,
		"PAGE_CACHE_TTL":   &c.PageCacheTTL,
	}
	for key, dst := range durations {
		if s := v.GetString(key); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
