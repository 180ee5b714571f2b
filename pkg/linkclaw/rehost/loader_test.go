package rehost

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("guild_id: \"123\"\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.GuildID != "123" {
		t.Errorf("GuildID = %q", cfg.GuildID)
	}
	if cfg.Mode != ModePolicy {
		t.Errorf("Mode default = %q, want %q", cfg.Mode, ModePolicy)
	}
	if cfg.Staging.MaxFileSize != 10*1024*1024 {
		t.Errorf("MaxFileSize default = %d", cfg.Staging.MaxFileSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LINKCLAW_TEST_SET", "value")
	os.Unsetenv("LINKCLAW_TEST_UNSET")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"token: ${LINKCLAW_TEST_SET}", "token: value", false},
		{"token: ${LINKCLAW_TEST_UNSET:-fallback}", "token: fallback", false},
		{"token: ${LINKCLAW_TEST_SET:-fallback}", "token: value", false},
		{"token: ${LINKCLAW_TEST_UNSET}", "token: ", false},
		{"token: ${LINKCLAW_TEST_UNSET:?token required}", "", true},
	}
	for _, tt := range tests {
		got, err := expandEnvVars(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("expandEnvVars(%q): want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("expandEnvVars(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("LINKCLAW_TOKEN", "env-token")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
token: ${LINKCLAW_TOKEN}
mode: cdn
cdn_domains: "i.4cdn.org"
config_dir: ` + dir + `
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile: %v", err)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.Mode != ModeCDN || cfg.CDNDomains != "i.4cdn.org" {
		t.Errorf("Mode/CDNDomains = %q/%q", cfg.Mode, cfg.CDNDomains)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if cfg.PolicyPath() != filepath.Join(dir, "policy.json") {
		t.Errorf("PolicyPath = %q", cfg.PolicyPath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid policy mode", func(c *Config) { c.Token = "t" }, false},
		{"missing token", func(c *Config) {}, true},
		{"cdn mode without domains", func(c *Config) { c.Token = "t"; c.Mode = ModeCDN }, true},
		{"cdn mode with domains", func(c *Config) { c.Token = "t"; c.Mode = ModeCDN; c.CDNDomains = "x.org" }, false},
		{"unknown mode", func(c *Config) { c.Token = "t"; c.Mode = "???" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
