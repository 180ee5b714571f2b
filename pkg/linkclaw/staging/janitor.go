package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// JanitorConfig configures the stale-file sweep.
type JanitorConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxAge is how old a staging file must be before the janitor removes
	// it, as a duration string ("1h"). In-flight runs track and delete
	// their own files; the janitor only reclaims leftovers from a crashed
	// process, so MaxAge must comfortably exceed any plausible run duration.
	MaxAge string `yaml:"max_age"`

	// Schedule is a cron expression or shorthand like "@every 30m".
	Schedule string `yaml:"schedule"`
}

// DefaultJanitorConfig returns the default janitor settings.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Enabled:  true,
		MaxAge:   "1h",
		Schedule: "@every 30m",
	}
}

// Janitor periodically removes staging files older than MaxAge.
type Janitor struct {
	cfg    JanitorConfig
	maxAge time.Duration
	dir    string
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor creates a janitor for the stager's directory.
func NewJanitor(cfg JanitorConfig, stager *Stager, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	maxAge, err := time.ParseDuration(cfg.MaxAge)
	if err != nil || maxAge <= 0 {
		maxAge = time.Hour
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 30m"
	}
	return &Janitor{
		cfg:    cfg,
		maxAge: maxAge,
		dir:    stager.Dir(),
		cron:   cron.New(),
		logger: logger.With("component", "staging-janitor"),
	}
}

// Start schedules the sweep. No-op when disabled.
func (j *Janitor) Start() error {
	if !j.cfg.Enabled {
		return nil
	}
	if _, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		if n := j.Sweep(); n > 0 {
			j.logger.Info("removed stale staging files", "count", n)
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduled sweep.
func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Sweep removes regular files in the staging directory older than MaxAge
// and returns how many were deleted. A missing directory is fine.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("failed to read staging directory", "dir", j.dir, "error", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("failed to remove stale staging file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
