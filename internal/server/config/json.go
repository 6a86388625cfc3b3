package config

import (
	"encoding/json"
	"os"

	"github.com/nsendoda/suggestion-box/internal/flagx"
	"github.com/nsendoda/suggestion-box/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Fields are pointers so that a
// file only overrides the keys it actually contains.
type JsonConfig struct {
	ListenAddr          *string         `json:"listen_addr"`
	DatabaseDriver      *string         `json:"database_driver"`
	DatabaseDSN         *string         `json:"database_dsn"`
	SessionTTL          *timex.Duration `json:"session_ttl"`
	DefaultKeepLimit    *int            `json:"default_keep_limit"`
	SignupsEnabled      *bool           `json:"signups_enabled"`
	MaxOwners           *int            `json:"max_owners"`
	AllowReopen         *bool           `json:"allow_reopen"`
	TimeZone            *string         `json:"time_zone"`
	PasswordScheme      *string         `json:"password_scheme"`
	ReceiptSecret       *string         `json:"receipt_secret"`
	ReceiptTTL          *timex.Duration `json:"receipt_ttl"`
	CookieSecure        *bool           `json:"cookie_secure"`
	AllowedOrigins      []string        `json:"allowed_origins"`
	SubmitRatePerMinute *int            `json:"submit_rate_per_minute"`
	TrustProxyHeaders   *bool           `json:"trust_proxy_headers"`
	LogBackend          *string         `json:"log_backend"`
	LogFormat           *string         `json:"log_format"`
}

// parseJson overlays the file named by -c/-config, if present. An unreadable
// or invalid file panics.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}
	if err := loadJSONFile(config, path); err != nil {
		panic(err)
	}
}

func loadJSONFile(config *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(b, c); err != nil {
		return err
	}
	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.ListenAddr, c.ListenAddr)
	set(&config.DatabaseDriver, c.DatabaseDriver)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	set(&config.DefaultKeepLimit, c.DefaultKeepLimit)
	set(&config.SignupsEnabled, c.SignupsEnabled)
	set(&config.MaxOwners, c.MaxOwners)
	set(&config.AllowReopen, c.AllowReopen)
	set(&config.TimeZone, c.TimeZone)
	set(&config.PasswordScheme, c.PasswordScheme)
	set(&config.ReceiptSecret, c.ReceiptSecret)
	if c.ReceiptTTL != nil {
		config.ReceiptTTL = c.ReceiptTTL.Duration
	}
	set(&config.CookieSecure, c.CookieSecure)
	if c.AllowedOrigins != nil {
		config.AllowedOrigins = c.AllowedOrigins
	}
	set(&config.SubmitRatePerMinute, c.SubmitRatePerMinute)
	set(&config.TrustProxyHeaders, c.TrustProxyHeaders)
	set(&config.LogBackend, c.LogBackend)
	set(&config.LogFormat, c.LogFormat)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
