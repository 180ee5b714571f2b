package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jholhewres/linkclaw/pkg/linkclaw/audit"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/channels/discord"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/policy"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/rehost"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/staging"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `linkclaw serve` command that starts the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and start rewriting links",
		Long: `Start LinkClaw as a daemon: connects to the Discord gateway,
registers the policy slash commands, and rewrites eligible links as they
are posted.

Examples:
  linkclaw serve
  linkclaw serve --config ./config.yaml
  LINKCLAW_TOKEN=... linkclaw serve`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)

	rehost.ResolveToken(cfg, logger)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	stager := staging.NewStager(cfg.Staging, nil, logger)
	if err := stager.EnsureDir(); err != nil {
		return err
	}

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.AuditPath(), logger)
		if err != nil {
			// The history log is informational; run without it.
			logger.Warn("audit log unavailable", "error", err)
		} else {
			defer auditLog.Close()
		}
	}

	var policies *policy.Store
	var pipeline *rehost.Pipeline
	switch cfg.Mode {
	case rehost.ModeCDN:
		pipeline, err = rehost.NewCDNPipeline(cfg.CDNDomains, stager, auditLog, logger)
		if err != nil {
			return err
		}
		logger.Info("running in fixed-CDN mode", "domains", cfg.CDNDomains)
	default:
		policies = policy.NewStore(cfg.PolicyPath(), cfg.DefaultDomains, logger)
		pipeline = rehost.NewPipeline(policies, stager, auditLog, logger)
	}

	janitor := staging.NewJanitor(cfg.Janitor, stager, logger)
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("starting staging janitor: %w", err)
	}
	defer janitor.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot := discord.New(discord.Config{Token: cfg.Token, GuildID: cfg.GuildID}, pipeline, policies, logger)
	if err := bot.Connect(ctx); err != nil {
		return err
	}
	defer bot.Close()

	logger.Info("linkclaw is running", "mode", cfg.Mode, "staging_dir", stager.Dir())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	return nil
}

// resolveConfig loads the config from --config, the default locations, or
// the environment when no file exists.
func resolveConfig(cmd *cobra.Command) (*rehost.Config, error) {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		return rehost.LoadConfigFromFile(path)
	}

	candidates := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".linkclaw", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return rehost.LoadConfigFromFile(path)
		}
	}
	return rehost.LoadConfigFromEnv(), nil
}

// newLogger builds the slog logger from config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *rehost.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelInfo
	switch {
	case verbose, cfg.Logging.Level == "debug":
		level = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		level = slog.LevelWarn
	case cfg.Logging.Level == "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
