// Package rehost – keyring.go stores the bot token in the operating
// system's native keyring (Linux: Secret Service/GNOME Keyring, macOS:
// Keychain, Windows: Credential Manager).
//
// Priority for resolving the token:
//  1. OS keyring (encrypted by the OS, requires user session)
//  2. Environment variable LINKCLAW_TOKEN (or .env file via godotenv)
//  3. config.yaml value (least secure — plaintext on disk)
package rehost

import (
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "linkclaw"

	// keyringToken is the key name for the Discord bot token.
	keyringToken = "bot_token"
)

// StoreKeyring saves the bot token to the OS keyring.
func StoreKeyring(value string) error {
	return keyring.Set(keyringService, keyringToken, value)
}

// GetKeyring retrieves the bot token from the OS keyring.
// Returns empty string if not found.
func GetKeyring() string {
	val, err := keyring.Get(keyringService, keyringToken)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes the bot token from the OS keyring.
func DeleteKeyring() error {
	return keyring.Delete(keyringService, keyringToken)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__linkclaw_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveToken resolves the bot token using the priority chain:
// keyring → env/config value already present on cfg.
// The config is updated in place with the resolved value.
func ResolveToken(cfg *Config, logger *slog.Logger) {
	if val := GetKeyring(); val != "" {
		cfg.Token = val
		logger.Debug("bot token loaded from OS keyring")
		return
	}
	if cfg.Token != "" {
		logger.Debug("bot token loaded from config/env")
		return
	}
	logger.Warn("no bot token found. Set LINKCLAW_TOKEN or run: linkclaw setup")
}
