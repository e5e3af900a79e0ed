package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"readearn/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultPublishMinBalance is the wallet balance required to request publishing.
var DefaultPublishMinBalance = decimal.NewFromInt(150)

type Config struct {
	APIBaseURL string
	APITimeout time.Duration

	AppPort       string
	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	// Reading sessions
	TickInterval       time.Duration
	SendElapsedMinutes bool
	// Idle sessions and accounts are dropped after IdleTTL, checked every
	// SweepInterval.
	IdleTTL       time.Duration
	SweepInterval time.Duration

	PublishMinBalance decimal.Decimal

	// Optional infrastructure, empty disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	APIRateLimit  int
	APIRateWindow time.Duration

	TokenFile string
}

// Profile is the YAML document READEARN_PROFILE may point to.
// Non-zero fields override the environment.
type Profile struct {
	APIBaseURL         string `yaml:"api_base_url"`
	APITimeout         string `yaml:"api_timeout"`
	TickInterval       string `yaml:"tick_interval"`
	PublishMinBalance  string `yaml:"publish_min_balance"`
	SendElapsedMinutes *bool  `yaml:"send_elapsed_minutes"`
	TokenFile          string `yaml:"token_file"`
}

// Parse reads .env, the environment and the optional profile.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:         strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		APITimeout:         getDuration("API_TIMEOUT", 15*time.Second),
		AppPort:            getString("APP_PORT", "8080"),
		AllowedOrigin:      os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:           getString("LOG_LEVEL", "info"),
		LogJSON:            os.Getenv("LOG_JSON") == "true",
		TickInterval:       getDuration("TICK_INTERVAL", time.Second),
		SendElapsedMinutes: os.Getenv("SEND_ELAPSED_MINUTES") == "true",
		IdleTTL:            getDuration("IDLE_TTL", time.Hour),
		SweepInterval:      getDuration("SWEEP_INTERVAL", 5*time.Minute),
		PublishMinBalance:  DefaultPublishMinBalance,
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		APIRateLimit:       getInt("API_RATE_LIMIT", 60),
		APIRateWindow:      getDuration("API_RATE_WINDOW", time.Minute),
		TokenFile:          getString("TOKEN_FILE", defaultTokenFile()),
	}

	if v := os.Getenv("PUBLISH_MIN_BALANCE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("PUBLISH_MIN_BALANCE: %w", err)
		}
		cfg.PublishMinBalance = d
	}

	if path := os.Getenv("READEARN_PROFILE"); path != "" {
		if err := cfg.ApplyProfile(path); err != nil {
			return nil, err
		}
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is not set")
	}
	if cfg.PublishMinBalance.IsNegative() {
		return nil, fmt.Errorf("PUBLISH_MIN_BALANCE must not be negative")
	}

	return cfg, nil
}

// ApplyProfile overrides cfg with the values set in the YAML profile at path.
func (c *Config) ApplyProfile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}

	if p.APIBaseURL != "" {
		c.APIBaseURL = strings.TrimRight(p.APIBaseURL, "/")
	}
	if p.APITimeout != "" {
		d, err := time.ParseDuration(p.APITimeout)
		if err != nil {
			return fmt.Errorf("profile api_timeout: %w", err)
		}
		c.APITimeout = d
	}
	if p.TickInterval != "" {
		d, err := time.ParseDuration(p.TickInterval)
		if err != nil {
			return fmt.Errorf("profile tick_interval: %w", err)
		}
		c.TickInterval = d
	}
	if p.PublishMinBalance != "" {
		d, err := decimal.NewFromString(p.PublishMinBalance)
		if err != nil {
			return fmt.Errorf("profile publish_min_balance: %w", err)
		}
		c.PublishMinBalance = d
	}
	if p.SendElapsedMinutes != nil {
		c.SendElapsedMinutes = *p.SendElapsedMinutes
	}
	if p.TokenFile != "" {
		c.TokenFile = p.TokenFile
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".readearn-tokens.yaml"
	}
	return dir + string(os.PathSeparator) + "readearn" + string(os.PathSeparator) + "tokens.yaml"
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("invalid config value, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("invalid config value, using default", "key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return d
}
