package rehost

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jholhewres/linkclaw/pkg/linkclaw/audit"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/policy"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/scanner"
	"github.com/jholhewres/linkclaw/pkg/linkclaw/staging"
)

// Message is the inbound message the pipeline operates on.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Content   string

	// AuthorName and AvatarURL are reused for the impersonated repost.
	AuthorID   string
	AuthorName string
	AvatarURL  string
}

// Post is the replacement message handed to the Republisher.
type Post struct {
	Username  string
	AvatarURL string
	Content   string
	Assets    []*staging.Asset
}

// Republisher performs the platform-side swap: deleting the original
// message and publishing the impersonated replacement. Implementations make
// no size or policy decisions; they trust their input.
type Republisher interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Publish(ctx context.Context, channelID string, post Post) error
}

// Pipeline runs the link rewrite for one message: scan, policy-check, stage
// sequentially in scan order, then swap the message for a re-authored copy
// carrying the staged files. Nothing here is allowed to crash the caller;
// every failure is logged and the run ends with whatever partial effect
// already occurred.
type Pipeline struct {
	policies *policy.Store
	stager   *staging.Stager
	pattern  *regexp.Regexp

	// usePolicy selects per-guild policy filtering. When false (cdn mode),
	// the pattern itself restricts the eligible domains and every match is
	// fetched.
	usePolicy bool

	auditLog *audit.Log
	logger   *slog.Logger
}

// NewPipeline creates a pipeline in per-guild policy mode.
func NewPipeline(policies *policy.Store, stager *staging.Stager, auditLog *audit.Log, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		policies:  policies,
		stager:    stager,
		pattern:   scanner.URLPattern(),
		usePolicy: true,
		auditLog:  auditLog,
		logger:    logger.With("component", "pipeline"),
	}
}

// NewCDNPipeline creates a pipeline in fixed-CDN mode: only URLs under the
// CSV-listed domains match, and the policy store is not consulted.
func NewCDNPipeline(domainsCSV string, stager *staging.Stager, auditLog *audit.Log, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	re, err := scanner.CDNPattern(domainsCSV)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		stager:    stager,
		pattern:   re,
		usePolicy: false,
		auditLog:  auditLog,
		logger:    logger.With("component", "pipeline"),
	}, nil
}

// HandleMessage processes one inbound message. If no link is staged the
// message is left completely untouched; otherwise the original is deleted
// (failure swallowed) and a replacement is published as the original author
// with the staged files attached and the staged links' text removed.
// All staging files are removed before this returns, on every path.
func (p *Pipeline) HandleMessage(ctx context.Context, pub Republisher, msg Message) {
	if msg.GuildID == "" {
		// Policy is guild-scoped; DMs are never rewritten.
		return
	}

	candidates := scanner.Scan(msg.Content, p.pattern)
	if len(candidates) == 0 {
		return
	}

	var pol *policy.TenantPolicy
	if p.usePolicy {
		var err error
		pol, err = p.policies.GetOrCreate(msg.GuildID)
		if err != nil {
			p.logger.Error("failed to load guild policy", "guild", msg.GuildID, "error", err)
			return
		}
	}

	run := staging.NewRun(p.logger)
	defer run.Cleanup()

	remaining := msg.Content
	var assets []*staging.Asset

	// Candidates are staged sequentially in scan order so the remaining-text
	// rewrite stays deterministic. One candidate's failure never aborts the
	// rest of the run; its link text stays in place.
	for _, c := range candidates {
		if pol != nil && !(pol.AllowsDomain(c.Host, c.RootDomain) && pol.AllowsExtension(c.Extension)) {
			continue
		}
		asset, err := p.stager.Stage(ctx, run, msg.GuildID, msg.ID, c.URL, c.Extension)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, staging.ErrTooLarge) {
				level = slog.LevelInfo
			}
			p.logger.Log(ctx, level, "skipping link", "url", c.URL, "error", err)
			continue
		}
		assets = append(assets, asset)
		remaining = stripLink(remaining, c.RawText)
	}

	if len(assets) == 0 {
		return
	}

	// Delete failures (permissions, already gone) are swallowed: a
	// transient duplicate beats losing the content.
	if err := pub.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		p.logger.Warn("failed to delete original message", "message", msg.ID, "error", err)
	}

	post := Post{
		Username:  msg.AuthorName,
		AvatarURL: msg.AvatarURL,
		Content:   remaining,
		Assets:    assets,
	}
	if err := pub.Publish(ctx, msg.ChannelID, post); err != nil {
		p.logger.Error("failed to publish replacement message", "message", msg.ID, "error", err)
		return
	}

	if p.auditLog != nil {
		for _, a := range assets {
			p.auditLog.Record(audit.Entry{
				TenantID:  msg.GuildID,
				ChannelID: msg.ChannelID,
				MessageID: msg.ID,
				SourceURL: a.SourceURL,
				SizeBytes: a.Size,
			})
		}
	}

	p.logger.Info("rewrote message",
		"guild", msg.GuildID,
		"channel", msg.ChannelID,
		"message", msg.ID,
		"assets", len(assets),
	)
}

// stripLink removes the first occurrence of raw from text and trims the
// whitespace around the cut.
func stripLink(text, raw string) string {
	i := strings.Index(text, raw)
	if i < 0 {
		return text
	}
	before := strings.TrimRight(text[:i], " \t")
	after := strings.TrimLeft(text[i+len(raw):], " \t")
	if before == "" || after == "" {
		return strings.TrimSpace(before + after)
	}
	return strings.TrimSpace(before + " " + after)
}
