package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "exportctl"

// DefaultConfigPath returns the platform config file path,
// e.g. ~/.config/exportctl/config.toml on Linux.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving user config dir: %w", err)
	}

	return filepath.Join(dir, appDirName, "config.toml"), nil
}

// CredentialPath returns the path of the saved backend API credential.
func CredentialPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving user config dir: %w", err)
	}

	return filepath.Join(dir, appDirName, "credentials.json"), nil
}

// HistoryDBPath returns the path of the export history database. Honors
// XDG_STATE_HOME; falls back to ~/.local/state.
func HistoryDBPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appDirName, "history.db"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving home dir: %w", err)
	}

	return filepath.Join(home, ".local", "state", appDirName, "history.db"), nil
}
