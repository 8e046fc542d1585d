package bot

import (
	"context"
	"strings"

	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const embedFieldMax = 1024

func (b *Bot) handleAnnouncement(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireAdmin(session, interaction) {
		return
	}
	options := optionMap(data.Options)
	imageURL, problem := b.announcementImage(stringOption(options, "image_url"))
	if problem != "" {
		b.respondError(session, interaction, problem)
		return
	}

	embed := b.announcementEmbed(stringOption(options, "title"), stringOption(options, "description"), imageURL)
	b.respondEmbed(session, interaction, embed, false)
	b.logPublication(ctx, interaction, "announcement_posted", embed.Title)
}

func (b *Bot) handleUpdateLog(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireAdmin(session, interaction) {
		return
	}
	options := optionMap(data.Options)
	imageURL, problem := b.announcementImage(stringOption(options, "image_url"))
	if problem != "" {
		b.respondError(session, interaction, problem)
		return
	}
	downloadURL := ""
	if raw := stringOption(options, "download_link"); strings.TrimSpace(raw) != "" {
		normalized, host, err := utils.NormalizeLinkURL(raw)
		if err != nil {
			b.logger.Debug("download link rejected", zap.String("host", host), zap.Error(err))
			b.respondError(session, interaction, "The download link must be a valid https URL.")
			return
		}
		downloadURL = normalized
	}

	embed := b.updateLogEmbed(stringOption(options, "version"), stringOption(options, "updates"), downloadURL, imageURL)
	b.respondEmbed(session, interaction, embed, false)
	b.logPublication(ctx, interaction, "update_log_posted", embed.Title)
}

// announcementImage returns the normalized image URL, or a message for the
// user when it is not a Discord upload.
func (b *Bot) announcementImage(raw string) (string, string) {
	if strings.TrimSpace(raw) == "" {
		return "", ""
	}
	normalized, host, err := utils.NormalizeAttachmentURL(raw)
	if err != nil {
		b.logger.Debug("announcement image rejected", zap.String("host", host), zap.Error(err))
		return "", "The image must be an https link to a file uploaded to Discord."
	}
	return normalized, ""
}

func (b *Bot) logPublication(ctx context.Context, interaction *discordgo.InteractionCreate, action, title string) {
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, action, title)
}

func (b *Bot) announcementEmbed(title, description, imageURL string) *discordgo.MessageEmbed {
	embed := b.commandEmbed("📢 "+title, description, b.cfg.Notifications.EmbedColors.Brand, nil)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: "Voralith Announcement"}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Voralith Team"}
	if imageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
	}
	return embed
}

func (b *Bot) updateLogEmbed(version, updates, downloadURL, imageURL string) *discordgo.MessageEmbed {
	var fields []*discordgo.MessageEmbedField
	if lines := changelog(updates); lines != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "📝 Changelog", Value: truncate(lines, embedFieldMax)})
	}
	if downloadURL != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "⬇️ Download", Value: "[Click here to download](" + downloadURL + ")"})
	}
	embed := b.commandEmbed("🔄 Update "+version, "New update available!", b.cfg.Notifications.EmbedColors.Brand, fields)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: "Voralith Updates"}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Voralith Development Team"}
	if imageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
	}
	return embed
}

// changelog turns one change per line into a bulleted list. Blank lines are
// dropped and a literal "\n" typed into the slash command counts as a break.
func changelog(updates string) string {
	updates = strings.ReplaceAll(updates, `\n`, "\n")
	var out []string
	for _, line := range strings.Split(updates, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, "• "+line)
	}
	return strings.Join(out, "\n")
}
