// Package config loads the server configuration. Sources are applied in
// order, each overriding the previous one: built-in defaults, a JSON file
// named by -c/-config, a .env file plus SB_* environment variables, and
// finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	_ "time/tzdata"
)

type Config struct {
	ListenAddr     string `env:"SB_LISTEN_ADDR"`
	DatabaseDriver string `env:"SB_DATABASE_DRIVER"`
	DatabaseDSN    string `env:"SB_DATABASE_DSN"`

	SessionTTL       time.Duration `env:"SB_SESSION_TTL"`
	DefaultKeepLimit int           `env:"SB_DEFAULT_KEEP_LIMIT"`
	SignupsEnabled   bool          `env:"SB_SIGNUPS_ENABLED"`
	// MaxOwners caps signups; 0 means no cap.
	MaxOwners   int  `env:"SB_MAX_OWNERS"`
	AllowReopen bool `env:"SB_ALLOW_REOPEN"`
	// TimeZone is the IANA zone letter timestamps are rendered in.
	TimeZone       string `env:"SB_TIME_ZONE"`
	PasswordScheme string `env:"SB_PASSWORD_SCHEME"`

	ReceiptSecret string        `env:"SB_RECEIPT_SECRET"`
	ReceiptTTL    time.Duration `env:"SB_RECEIPT_TTL"`

	CookieSecure        bool     `env:"SB_COOKIE_SECURE"`
	AllowedOrigins      []string `env:"SB_ALLOWED_ORIGINS"`
	SubmitRatePerMinute int      `env:"SB_SUBMIT_RATE_PER_MINUTE"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"SB_TRUST_PROXY_HEADERS"`

	LogBackend string `env:"SB_LOG_BACKEND"`
	LogFormat  string `env:"SB_LOG_FORMAT"`
}

// LoadDefaults populates Config with development defaults. ReceiptSecret
// in particular must be overridden in production.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "suggestion-box.db"
	c.SessionTTL = 7 * 24 * time.Hour
	c.DefaultKeepLimit = 3
	c.SignupsEnabled = true
	c.MaxOwners = 0
	c.AllowReopen = true
	c.TimeZone = "Asia/Tokyo"
	c.PasswordScheme = "argon2id"
	c.ReceiptSecret = "receiptSecret"
	c.ReceiptTTL = 90 * 24 * time.Hour
	c.CookieSecure = true
	c.AllowedOrigins = nil
	c.SubmitRatePerMinute = 10
	c.TrustProxyHeaders = false
	c.LogBackend = "slog"
	c.LogFormat = "json"
}

// LoadConfig builds the server Config from every source. Malformed input
// panics, as the server cannot start without a valid configuration.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := parseEnv(cfg, ".env"); err != nil {
		panic(err)
	}
	parseFlags(cfg)
	return cfg
}

// LoadBase applies defaults, the JSON file at jsonPath (if any) and the
// environment. Tools with their own flag parsing use it instead of
// LoadConfig.
func LoadBase(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if jsonPath != "" {
		if err := loadJSONFile(cfg, jsonPath); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves TimeZone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "pgx", "postgres", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database driver %q is not supported", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.DefaultKeepLimit <= 0 {
		errs = append(errs, errors.New("default keep limit must be positive"))
	}
	if c.MaxOwners < 0 {
		errs = append(errs, errors.New("max owners must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("time zone: %w", err))
	}
	if c.ReceiptSecret == "" {
		errs = append(errs, errors.New("receipt secret is empty"))
	}
	if c.ReceiptTTL <= 0 {
		errs = append(errs, errors.New("receipt ttl must be positive"))
	}
	if c.SubmitRatePerMinute < 0 {
		errs = append(errs, errors.New("submit rate must not be negative"))
	}
	return errors.Join(errs...)
}
