package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const sandboxBaseURL = "https://sandbox-api.iyzipay.com"

type GatewayCredentials struct {
	APIKey    string `envconfig:"API_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
	BaseURL   string `envconfig:"BASE_URL"`
}

type Config struct {
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxRequestBodySize int64         `envconfig:"MAX_REQUEST_BODY_SIZE" default:"1048576"`
	PublicBaseURL      string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CartTTL       time.Duration `envconfig:"CART_TTL" default:"168h"`
	PendingTTL    time.Duration `envconfig:"PENDING_TTL" default:"30m"`

	CatalogDriver string `envconfig:"CATALOG_DRIVER" default:"sqlite"`
	CatalogDSN    string `envconfig:"CATALOG_DSN" default:"./catalog.db"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"checkout-events"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID" default:"storefront-cart-poller"`

	Gateway            GatewayCredentials `envconfig:"GATEWAY"`
	GatewayQuick       GatewayCredentials `envconfig:"GATEWAY_QUICK"`
	GatewayTimeout     time.Duration      `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	BreakerMaxFailures uint32             `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration      `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`

	SuccessPath   string `envconfig:"SUCCESS_PATH" default:"/checkout/success"`
	FailPath      string `envconfig:"FAIL_PATH" default:"/checkout/fail"`
	ChallengePath string `envconfig:"CHALLENGE_PATH" default:"/checkout/3ds"`

	Currency    string `envconfig:"CURRENCY" default:"TRY"`
	Locale      string `envconfig:"LOCALE" default:"tr"`
	TaxRate     string `envconfig:"TAX_RATE" default:"0"`
	ShippingFee string `envconfig:"SHIPPING_FEE" default:"0"`

	SessionCookieName   string `envconfig:"SESSION_COOKIE_NAME" default:"storefront_session"`
	SessionCookieSecure bool   `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
}

// Load reads an optional .env file and then the STOREFRONT_* environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("storefront", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = sandboxBaseURL
	}
	// the quick wallet set falls back to the default base url
	if cfg.GatewayQuick.BaseURL == "" {
		cfg.GatewayQuick.BaseURL = cfg.Gateway.BaseURL
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Gateway.APIKey == "" || c.Gateway.SecretKey == "" {
		return errors.New("gateway api key and secret key are required")
	}
	if c.GatewayTimeout <= 0 {
		return errors.New("gateway timeout must be positive")
	}
	return nil
}

// HasQuickWallet reports whether a separate quick wallet credential set is configured.
func (c *Config) HasQuickWallet() bool {
	return c.GatewayQuick.APIKey != "" && c.GatewayQuick.SecretKey != ""
}
