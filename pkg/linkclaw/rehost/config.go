// Package rehost contains the link rewrite pipeline and the application
// configuration for LinkClaw.
package rehost

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jholhewres/linkclaw/pkg/linkclaw/staging"
)

// Matching modes for the link scanner.
const (
	// ModePolicy filters candidates against each guild's allow-policy using
	// a generic any-URL pattern.
	ModePolicy = "policy"

	// ModeCDN matches only URLs under a fixed CSV of CDN domains; the
	// per-guild policy store is not consulted.
	ModeCDN = "cdn"
)

// Config holds all LinkClaw configuration.
type Config struct {
	// Token is the Discord bot token. Required; resolution order is
	// OS keyring, environment, config value.
	Token string `yaml:"token"`

	// GuildID optionally scopes slash-command registration to one guild
	// for fast propagation. Empty registers commands globally.
	GuildID string `yaml:"guild_id"`

	// Mode selects the matching mode: "policy" or "cdn".
	Mode string `yaml:"mode"`

	// CDNDomains is the CSV of fixed CDN domains used in cdn mode.
	CDNDomains string `yaml:"cdn_domains"`

	// ConfigDir holds the policy document and audit database.
	ConfigDir string `yaml:"config_dir"`

	// DefaultDomains seed a guild's allow-list on first reference.
	DefaultDomains []string `yaml:"default_domains"`

	// Staging configures the download staging area.
	Staging staging.Config `yaml:"staging"`

	// Janitor configures the stale staging-file sweep.
	Janitor staging.JanitorConfig `yaml:"janitor"`

	// Audit configures the rewrite history log.
	Audit AuditConfig `yaml:"audit"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// AuditConfig configures the rewrite history log.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModePolicy,
		ConfigDir:      "~/.linkclaw",
		DefaultDomains: []string{"4cdn.org"},
		Staging: staging.Config{
			MaxFileSize: staging.DefaultMaxFileSize,
		},
		Janitor: staging.DefaultJanitorConfig(),
		Audit:   AuditConfig{Enabled: true},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate checks startup requirements. A missing token is fatal: the
// process must not start without one.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("bot token is required (set LINKCLAW_TOKEN or run linkclaw setup)")
	}
	switch c.Mode {
	case ModePolicy:
	case ModeCDN:
		if strings.TrimSpace(c.CDNDomains) == "" {
			return errors.New("cdn mode requires cdn_domains")
		}
	default:
		return fmt.Errorf("unknown mode %q (want %q or %q)", c.Mode, ModePolicy, ModeCDN)
	}
	return nil
}

// PolicyPath returns the location of the policy document.
func (c *Config) PolicyPath() string {
	return filepath.Join(c.ConfigDir, "policy.json")
}

// AuditPath returns the location of the audit database.
func (c *Config) AuditPath() string {
	return filepath.Join(c.ConfigDir, "audit.db")
}

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
