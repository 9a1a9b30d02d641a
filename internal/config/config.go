// Package config implements TOML configuration loading, validation, and
// platform path resolution for exportctl. Settings layer as
// defaults -> config file -> environment -> CLI flags, with later layers
// winning.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API     APIConfig     `toml:"api"`
	OAuth   OAuthConfig   `toml:"oauth"`
	Export  ExportConfig  `toml:"export"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig controls how the CodeText backend is reached.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// OAuthConfig identifies the OAuth2 application used for Drive authorization
// consent. AuthURL/TokenURL default to Google's endpoints and exist as
// settings so tests and self-hosted identity providers can redirect the flow.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
}

// ExportConfig controls export session timing: the grant-propagation delay
// before the token-bearing submission, the bound on that submission, and how
// many authorization round-trips a session tolerates before giving up.
type ExportConfig struct {
	PreSubmitDelay string `toml:"pre_submit_delay"`
	SubmitTimeout  string `toml:"submit_timeout"`
	MaxAuthRetries int    `toml:"max_auth_retries"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// Validate checks that all duration-valued fields parse and that numeric
// settings are in range. Returns the first problem found.
func (c *Config) Validate() error {
	durations := []struct {
		name  string
		value string
	}{
		{"api.connect_timeout", c.API.ConnectTimeout},
		{"export.pre_submit_delay", c.Export.PreSubmitDelay},
		{"export.submit_timeout", c.Export.SubmitTimeout},
	}

	for _, d := range durations {
		if d.value == "" {
			continue
		}

		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("config: %s: invalid duration %q: %w", d.name, d.value, err)
		}
	}

	if c.Export.MaxAuthRetries < 0 {
		return fmt.Errorf("config: export.max_auth_retries must be >= 0, got %d", c.Export.MaxAuthRetries)
	}

	switch c.Logging.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.log_level must be debug, info, warn or error, got %q", c.Logging.LogLevel)
	}

	return nil
}

// Duration returns the parsed value of a duration field, or fallback when
// the field is empty. Call Validate first — parse errors fall back silently.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return d
}
