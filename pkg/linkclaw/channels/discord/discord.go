// Package discord binds LinkClaw to Discord using discordgo.
//
// It feeds guild messages into the rewrite pipeline, serves the policy
// slash commands with ephemeral replies, and republishes rewritten
// messages through a per-channel webhook that impersonates the original
// author's display name and avatar.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/policy"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/rehost"
)

// webhookName is the stable name of the republishing webhook. Exactly one
// webhook with this name exists per channel; it is found or created, never
// duplicated.
const webhookName = "LinkClaw"

// Config holds the Discord binding configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// GuildID optionally scopes command registration to one guild for
	// fast propagation. Empty registers globally.
	GuildID string `yaml:"guild_id"`
}

// Discord owns the gateway session and implements rehost.Republisher.
type Discord struct {
	cfg      Config
	logger   *slog.Logger
	session  *discordgo.Session
	pipeline *rehost.Pipeline
	policies *policy.Store

	// webhooks caches the republishing webhook per channel id.
	mu       sync.Mutex
	webhooks map[string]*discordgo.Webhook

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the Discord binding. policies may be nil in cdn mode; the
// policy commands then answer that per-guild policy is disabled.
func New(cfg Config, pipeline *rehost.Pipeline, policies *policy.Store, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		pipeline: pipeline,
		policies: policies,
		webhooks: make(map[string]*discordgo.Webhook),
	}
}

// Connect opens the gateway connection and registers handlers and slash
// commands.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}
	d.session = session

	if err := d.registerCommands(); err != nil {
		session.Close()
		return fmt.Errorf("discord: registering commands: %w", err)
	}

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)
	return nil
}

// Close shuts down the gateway connection.
func (d *Discord) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

// onMessageCreate feeds guild messages into the rewrite pipeline.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore our own messages, other bots, and webhook posts (including the
	// replacements we publish ourselves).
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot || m.WebhookID != "" {
		return
	}
	if m.GuildID == "" {
		return
	}

	msg := rehost.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		Content:    m.Content,
		AuthorID:   m.Author.ID,
		AuthorName: displayName(m),
		AvatarURL:  m.Author.AvatarURL(""),
	}
	d.pipeline.HandleMessage(d.ctx, d, msg)
}

// displayName prefers the guild nickname, then the global name, then the
// account username.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// ---------- rehost.Republisher ----------

// DeleteMessage removes the original message.
func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID)
}

// Publish posts the replacement through the channel's republishing webhook,
// impersonating the original author and attaching every staged file.
func (d *Discord) Publish(ctx context.Context, channelID string, post rehost.Post) error {
	wh, err := d.channelWebhook(channelID)
	if err != nil {
		return fmt.Errorf("discord: resolving webhook: %w", err)
	}

	var files []*discordgo.File
	var open []*os.File
	defer func() {
		for _, f := range open {
			f.Close()
		}
	}()
	for _, a := range post.Assets {
		f, err := os.Open(a.Path)
		if err != nil {
			return fmt.Errorf("discord: opening staged file: %w", err)
		}
		open = append(open, f)
		files = append(files, &discordgo.File{
			Name:   attachmentName(a.SourceURL, a.Path),
			Reader: f,
		})
	}

	_, err = d.session.WebhookExecute(wh.ID, wh.Token, true, &discordgo.WebhookParams{
		Username:  post.Username,
		AvatarURL: post.AvatarURL,
		Content:   post.Content,
		Files:     files,
	})
	if err != nil {
		return fmt.Errorf("discord: webhook send: %w", err)
	}
	return nil
}

// channelWebhook finds or creates the single republishing webhook for a
// channel. The result is cached and reused across messages.
func (d *Discord) channelWebhook(channelID string) (*discordgo.Webhook, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if wh, ok := d.webhooks[channelID]; ok {
		return wh, nil
	}

	hooks, err := d.session.ChannelWebhooks(channelID)
	if err != nil {
		return nil, fmt.Errorf("listing channel webhooks: %w", err)
	}
	for _, h := range hooks {
		if h.Name == webhookName {
			d.webhooks[channelID] = h
			return h, nil
		}
	}

	wh, err := d.session.WebhookCreate(channelID, webhookName, "")
	if err != nil {
		return nil, fmt.Errorf("creating webhook: %w", err)
	}
	d.webhooks[channelID] = wh
	d.logger.Debug("created republishing webhook", "channel", channelID)
	return wh, nil
}

// Compile-time interface verification.
var _ rehost.Republisher = (*Discord)(nil)

// attachmentName derives the attachment filename from the source URL,
// falling back to the staged file's name.
func attachmentName(sourceURL, stagedPath string) string {
	if u, err := url.Parse(sourceURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return filepath.Base(stagedPath)
}
