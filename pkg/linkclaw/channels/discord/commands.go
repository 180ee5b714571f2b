package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// commandDefinitions are the guild-scoped policy administration commands.
var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:        "allow-domain",
		Description: "Add a domain (root or full host) to this server's allowed domains",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "domain",
			Description: "Domain to allow, e.g. 4cdn.org or i.4cdn.org",
			Required:    true,
		}},
	},
	{
		Name:        "remove-domain",
		Description: "Remove a domain from this server's allowed domains",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "domain",
			Description: "Domain to remove",
			Required:    true,
		}},
	},
	{
		Name:        "list-domains",
		Description: "Show this server's allowed domains",
	},
	{
		Name:        "allow-extension",
		Description: "Add a file extension to this server's allowed extensions",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "extension",
			Description: "Extension to allow, with or without the leading dot",
			Required:    true,
		}},
	},
	{
		Name:        "remove-extension",
		Description: "Remove a file extension from this server's allowed extensions",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "extension",
			Description: "Extension to remove",
			Required:    true,
		}},
	},
	{
		Name:        "list-extensions",
		Description: "Show this server's allowed extensions",
	},
}

// registerCommands bulk-overwrites the slash commands, guild-scoped when a
// guild id is configured (fast propagation), global otherwise.
func (d *Discord) registerCommands() error {
	appID := d.session.State.User.ID
	_, err := d.session.ApplicationCommandBulkOverwrite(appID, d.cfg.GuildID, commandDefinitions)
	return err
}

// onInteractionCreate answers the policy commands. Every outcome gets an
// explicit ephemeral reply: success, no-op, or validation message.
func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	var value string
	if len(data.Options) > 0 {
		value = data.Options[0].StringValue()
	}

	reply := d.handleCommand(data.Name, value, i.GuildID)
	respondEphemeral(s, i, reply)
}

// handleCommand executes one policy command and returns the reply text.
func (d *Discord) handleCommand(name, value, guildID string) string {
	if guildID == "" {
		return "Policy commands only work inside a server."
	}
	if d.policies == nil {
		return "Per-server policy is disabled; this bot runs with a fixed CDN domain list."
	}

	switch name {
	case "allow-domain":
		changed, err := d.policies.AddDomain(guildID, value)
		if err != nil {
			return validationReply(err)
		}
		if !changed {
			return fmt.Sprintf("`%s` is already in the allowed domains.", value)
		}
		return fmt.Sprintf("Added `%s` to the allowed domains.", value)

	case "remove-domain":
		changed, err := d.policies.RemoveDomain(guildID, value)
		if err != nil {
			return validationReply(err)
		}
		if !changed {
			return fmt.Sprintf("`%s` was not in the allowed domains.", value)
		}
		return fmt.Sprintf("Removed `%s` from the allowed domains.", value)

	case "list-domains":
		pol, err := d.policies.GetOrCreate(guildID)
		if err != nil {
			return validationReply(err)
		}
		return formatList("Allowed domains", pol.Domains)

	case "allow-extension":
		changed, err := d.policies.AddExtension(guildID, value)
		if err != nil {
			return validationReply(err)
		}
		if !changed {
			return fmt.Sprintf("`%s` is already in the allowed extensions.", value)
		}
		return fmt.Sprintf("Added `%s` to the allowed extensions.", value)

	case "remove-extension":
		changed, err := d.policies.RemoveExtension(guildID, value)
		if err != nil {
			return validationReply(err)
		}
		if !changed {
			return fmt.Sprintf("`%s` was not in the allowed extensions.", value)
		}
		return fmt.Sprintf("Removed `%s` from the allowed extensions.", value)

	case "list-extensions":
		pol, err := d.policies.GetOrCreate(guildID)
		if err != nil {
			return validationReply(err)
		}
		return formatList("Allowed extensions", pol.Extensions)

	default:
		return "Unknown command."
	}
}

// validationReply turns a store error into a user-facing message.
func validationReply(err error) string {
	return "That didn't work: " + err.Error()
}

// formatList renders an allow-list for an ephemeral reply.
func formatList(label string, values []string) string {
	if len(values) == 0 {
		return label + ": none yet."
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "`" + v + "`"
	}
	return label + ": " + strings.Join(quoted, ", ")
}

// respondEphemeral sends a reply visible only to the invoking user.
func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
