package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads the config file at path (or the default path when path is
// empty), merges it over defaults, applies environment overrides, and
// validates the result. A missing config file is not an error — defaults
// plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No config file — defaults and environment apply.
	case err != nil:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		meta, decErr := toml.Decode(string(data), cfg)
		if decErr != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, decErr)
		}

		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays CODETEXT_* environment variables on the config.
// Environment wins over the file; CLI flags win over both (applied by the
// command layer).
func applyEnv(cfg *Config) {
	if v := os.Getenv("CODETEXT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}

	if v := os.Getenv("CODETEXT_OAUTH_CLIENT_ID"); v != "" {
		cfg.OAuth.ClientID = v
	}

	if v := os.Getenv("CODETEXT_OAUTH_CLIENT_SECRET"); v != "" {
		cfg.OAuth.ClientSecret = v
	}

	if v := os.Getenv("CODETEXT_LOG_LEVEL"); v != "" {
		cfg.Logging.LogLevel = v
	}
}
