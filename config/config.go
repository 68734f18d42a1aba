package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
	Client    ClientConfig
	Watcher   WatcherConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig holds price store configuration
type StoreConfig struct {
	Type         string        `mapstructure:"type"` // "memory", "redis" or "memcache"
	RedisURL     string        `mapstructure:"redis_url"`
	MemcacheAddr string        `mapstructure:"memcache_addr"`
	TTL          time.Duration `mapstructure:"ttl"` // 0 keeps entries forever
}

// PricingConfig holds the reference pricing used to compute savings
type PricingConfig struct {
	ReferencePrice      float64            `mapstructure:"reference_price"`
	ReferencePrices     map[string]float64 `mapstructure:"reference_prices"`
	PlaceholderImageURI string             `mapstructure:"placeholder_image_uri"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP  int     `mapstructure:"per_ip"` // server, requests per minute
	Client float64 `mapstructure:"client"` // watcher, requests per second
}

// ClientConfig holds the watcher's price API client configuration
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WatcherConfig holds the embedded browser and pipeline configuration
type WatcherConfig struct {
	SiteBase       string        `mapstructure:"site_base"`
	ProductMarker  string        `mapstructure:"product_marker"`
	StartURL       string        `mapstructure:"start_url"`
	DismissAfter   time.Duration `mapstructure:"dismiss_after"`
	Browser        string        `mapstructure:"browser"` // "chrome" or "static"
	ChromeBin      string        `mapstructure:"chrome_bin"`
	Headless       bool          `mapstructure:"headless"`
	TitleMaxLength int           `mapstructure:"title_max_length"`
	TitleSelectors []string      `mapstructure:"title_selectors"`
	PriceSelectors []string      `mapstructure:"price_selectors"`
	Bridge         string        `mapstructure:"bridge"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealsheet/")

	// Environment variable settings, e.g. DEALSHEET_STORE_TYPE
	v.SetEnvPrefix("DEALSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory if present.
// Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key gets a default so
// that AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.memcache_addr", "")
	v.SetDefault("store.ttl", "720h") // 30 days

	// Pricing defaults
	v.SetDefault("pricing.reference_price", 5000)
	v.SetDefault("pricing.reference_prices", map[string]float64{})
	v.SetDefault("pricing.placeholder_image_uri", "https://example.com/sample-product-image.png")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.client", 5)

	// Client defaults
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.request_timeout", "10s")

	// Watcher defaults
	v.SetDefault("watcher.site_base", "https://www.flipkart.com/")
	v.SetDefault("watcher.product_marker", "/p/")
	v.SetDefault("watcher.start_url", "https://www.flipkart.com/")
	v.SetDefault("watcher.dismiss_after", "2m")
	v.SetDefault("watcher.browser", "chrome")
	v.SetDefault("watcher.chrome_bin", "")
	v.SetDefault("watcher.headless", false)
	v.SetDefault("watcher.title_max_length", 20)
	v.SetDefault("watcher.title_selectors", []string{"span.B_NuCI", "span._35KyD6"})
	v.SetDefault("watcher.price_selectors", []string{".CEmiEU", "._30jeq3"})
	v.SetDefault("watcher.bridge", "window.ReactNativeWebView")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Store.Type {
	case "memory":
	case "redis":
		if config.Store.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when store type is 'redis'")
		}
	case "memcache":
		if config.Store.MemcacheAddr == "" {
			return fmt.Errorf("Memcache address is required when store type is 'memcache'")
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'redis' or 'memcache', got: %s", config.Store.Type)
	}

	if config.Store.TTL < 0 {
		return fmt.Errorf("store TTL must not be negative, got: %s", config.Store.TTL)
	}

	if config.Pricing.ReferencePrice <= 0 {
		return fmt.Errorf("reference price must be positive, got: %v", config.Pricing.ReferencePrice)
	}

	if config.Watcher.Browser != "chrome" && config.Watcher.Browser != "static" {
		return fmt.Errorf("watcher browser must be 'chrome' or 'static', got: %s", config.Watcher.Browser)
	}

	if config.Watcher.DismissAfter <= 0 {
		return fmt.Errorf("watcher dismiss_after must be positive, got: %s", config.Watcher.DismissAfter)
	}

	if config.Watcher.TitleMaxLength <= 0 {
		return fmt.Errorf("watcher title_max_length must be positive, got: %d", config.Watcher.TitleMaxLength)
	}

	if config.Watcher.SiteBase == "" || config.Watcher.ProductMarker == "" {
		return fmt.Errorf("watcher site_base and product_marker are required")
	}

	return nil
}
