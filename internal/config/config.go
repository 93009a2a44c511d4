// Package config loads runtime settings from configs/config.yml (viper, with
// STOREFRONT_* environment overrides) and secrets from an untracked
// key=value file read with godotenv.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Secret names expected in the secrets file (or the process environment).
const (
	EnvSessionSecret = "SESSION_SECRET"
	EnvStripeKey     = "STRIPE_SECRET_KEY"
	EnvWebhookSecret = "STRIPE_WEBHOOK_SECRET"
)

const envPrefix = "STOREFRONT"

// Checkout windows accepted by the payment provider.
const (
	minCheckoutTTL = 30 * time.Minute
	maxCheckoutTTL = 24 * time.Hour
)

type Config struct {
	Port     string         `mapstructure:"port"`
	BaseURL  string         `mapstructure:"base_url"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Session  SessionConfig  `mapstructure:"session"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
	Secret       string        `mapstructure:"-"`
}

type PaymentConfig struct {
	APIURL        string        `mapstructure:"api_url"` // empty means the provider default
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	SecretKey     string        `mapstructure:"-"`
	WebhookSecret string        `mapstructure:"-"`
}

type CheckoutConfig struct {
	Currency string        `mapstructure:"currency"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CatalogConfig struct {
	Seed SeedConfig `mapstructure:"seed"`
}

// SeedConfig describes products created out of band at startup.
type SeedConfig struct {
	SellerName  string        `mapstructure:"seller_name"`
	SellerEmail string        `mapstructure:"seller_email"`
	Products    []SeedProduct `mapstructure:"products"`
}

type SeedProduct struct {
	Name     string `mapstructure:"name"`
	Price    string `mapstructure:"price"`
	PhotoURL string `mapstructure:"photo_url"`
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("base_url", "http://127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "storefront.db")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("payment.max_retries", 2)
	v.SetDefault("checkout.currency", "USD")
	v.SetDefault("checkout.ttl", time.Hour)
	v.SetDefault("redis.db", 0)
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
}

// Load reads config.yml from configDir and the secrets file at secretsPath.
// A missing config.yml falls back to defaults; a missing secrets file falls
// back to the process environment.
func Load(configDir, secretsPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	secrets, err := readSecrets(secretsPath)
	if err != nil {
		return nil, err
	}
	cfg.Session.Secret = secrets[EnvSessionSecret]
	cfg.Payment.SecretKey = secrets[EnvStripeKey]
	cfg.Payment.WebhookSecret = secrets[EnvWebhookSecret]

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readSecrets parses key=value lines; blank and #-prefixed lines are ignored.
// Values from the process environment fill keys absent from the file.
func readSecrets(path string) (map[string]string, error) {
	out := map[string]string{}
	if path != "" {
		m, err := godotenv.Read(path)
		switch {
		case err == nil:
			out = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read secrets file %q: %w", path, err)
		}
	}
	for _, k := range []string{EnvSessionSecret, EnvStripeKey, EnvWebhookSecret} {
		if out[k] == "" {
			out[k] = os.Getenv(k)
		}
	}
	return out, nil
}

// Validate reports the first setting that would make the service unusable.
func (c *Config) Validate() error {
	switch {
	case c.Session.Secret == "":
		return fmt.Errorf("%s is required", EnvSessionSecret)
	case c.Payment.SecretKey == "":
		return fmt.Errorf("%s is required", EnvStripeKey)
	case c.BaseURL == "":
		return errors.New("base_url is required")
	case len(c.Checkout.Currency) != 3:
		return fmt.Errorf("checkout.currency %q is not an ISO 4217 code", c.Checkout.Currency)
	case c.Checkout.TTL < minCheckoutTTL || c.Checkout.TTL > maxCheckoutTTL:
		return fmt.Errorf("checkout.ttl %s must be between %s and %s", c.Checkout.TTL, minCheckoutTTL, maxCheckoutTTL)
	case c.Payment.Timeout <= 0:
		return errors.New("payment.timeout must be positive")
	case c.Session.TTL <= 0:
		return errors.New("session.ttl must be positive")
	}
	c.Checkout.Currency = strings.ToUpper(c.Checkout.Currency)
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}
