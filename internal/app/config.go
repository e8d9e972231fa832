package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (KARAT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (KARAT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Currency     string        `default:"INR" usage:"ISO currency code sent to the payment processor"`
	StoreTimeout time.Duration `default:"5s" usage:"Timeout for order store operations" flag:"store-timeout"`
	Processor    ProcessorConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// ProcessorConfig holds the payment processor connection settings.
type ProcessorConfig struct {
	BaseURL       string        `default:"https://api.razorpay.com" usage:"Payment processor API base URL" flag:"processor-base-url"`
	KeyID         string        `usage:"Processor API key id (KARAT_PROCESSOR_KEY_ID)" flag:"processor-key-id"`
	KeySecret     string        `usage:"Processor API key secret (KARAT_PROCESSOR_KEY_SECRET)" flag:"processor-key-secret"`
	WebhookSecret string        `usage:"Shared secret for confirmation signatures (KARAT_PROCESSOR_WEBHOOK_SECRET)" flag:"processor-webhook-secret"`
	Timeout       time.Duration `default:"10s" usage:"Timeout for processor API calls" flag:"processor-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KARAT",
		Files:     []string{"config.yaml", "/etc/karat/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set KARAT_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Processor.WebhookSecret == "" {
		return nil, errors.New("webhook secret is required: set KARAT_PROCESSOR_WEBHOOK_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's KARAT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
