// Package rehost – loader.go handles loading configuration from YAML files
// with environment variable expansion and .env support.
package rehost

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable references in config values:
//   - ${VAR}           - simple variable
//   - ${VAR:-default}  - default value if not set
//   - ${VAR:?error}    - error message if not set
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Automatically loads .env files and expands environment variables, then
// applies LINKCLAW_* environment overrides on top.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	resolvePaths(cfg)
	return cfg, nil
}

// LoadConfigFromEnv builds a Config from defaults plus LINKCLAW_* variables
// only, for running without a config file.
func LoadConfigFromEnv() *Config {
	loadEnvFiles()
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	resolvePaths(cfg)
	return cfg
}

// ParseConfig parses YAML bytes into a Config, starting from defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML. The token is replaced with an
// environment reference so it never lands on disk in plaintext.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	if sanitized.Token != "" {
		sanitized.Token = "${LINKCLAW_TOKEN}"
	}
	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// loadEnvFiles loads .env from the working directory.
// godotenv.Load does NOT overwrite existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars substitutes ${VAR}, ${VAR:-default}, and ${VAR:?error}
// references. A ${VAR:?error} with VAR unset fails loading.
func expandEnvVars(s string) (string, error) {
	var expandErr error
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, modifier, arg := groups[1], groups[2], groups[3]
		if val, ok := os.LookupEnv(name); ok && val != "" {
			return val
		}
		switch modifier {
		case "-":
			return arg
		case "?":
			if expandErr == nil {
				msg := arg
				if msg == "" {
					msg = "required variable " + name + " is not set"
				}
				expandErr = fmt.Errorf("%s: %s", name, msg)
			}
			return ""
		default:
			return ""
		}
	})
	return out, expandErr
}

// applyEnvOverrides lets LINKCLAW_* variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LINKCLAW_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("LINKCLAW_GUILD_ID"); v != "" {
		cfg.GuildID = v
	}
	if v := os.Getenv("LINKCLAW_CDN_DOMAINS"); v != "" {
		cfg.CDNDomains = v
		cfg.Mode = ModeCDN
	}
	if v := os.Getenv("LINKCLAW_CONFIG_DIR"); v != "" {
		cfg.ConfigDir = v
	}
	if v := os.Getenv("LINKCLAW_STAGING_DIR"); v != "" {
		cfg.Staging.Dir = v
	}
}

// resolvePaths expands ~ in directory settings.
func resolvePaths(cfg *Config) {
	cfg.ConfigDir = expandHome(cfg.ConfigDir)
	cfg.Staging.Dir = expandHome(cfg.Staging.Dir)
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
}
