package bot

import (
	"context"
	"fmt"
	"time"

	"voralith-bot/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	maxClearMessages = 100
	bulkDeleteMaxAge = 14 * 24 * time.Hour
)

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	options := optionMap(data.Options)
	target := resolvedUser(data, idOption(options, "user"))
	seconds, _ := intOption(options, "duration")
	reason := stringOption(options, "reason")
	if reason == "" {
		reason = "No reason provided"
	}

	maxSeconds := int64(b.cfg.Moderation.MaxMuteSeconds)
	if seconds < 1 || seconds > maxSeconds {
		b.respondError(session, interaction, fmt.Sprintf("Duration must be between 1 and %d seconds.", maxSeconds))
		return
	}
	if target.ID == "" || target.Bot {
		b.respondError(session, interaction, "That user cannot be muted.")
		return
	}

	duration := time.Duration(seconds) * time.Second
	until := time.Now().Add(duration)
	if err := session.GuildMemberTimeout(interaction.GuildID, target.ID, &until); err != nil {
		b.logger.Warn("mute failed", zap.String("user_id", target.ID), zap.Error(err))
		if isPermissionError(err) {
			b.respondError(session, interaction, "I don't have permission to mute that member.")
			return
		}
		b.respondError(session, interaction, "Could not mute that member.")
		return
	}

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, target.ID, "member_muted",
		fmt.Sprintf("muted for %s by %s: %s", humanDuration(duration), moderator.ID, reason))
	b.respondEmbed(session, interaction, b.commandEmbed("🔇 Member Muted", "", b.cfg.Notifications.EmbedColors.Warning, []*discordgo.MessageEmbedField{
		{Name: "Member", Value: mention(target.ID), Inline: true},
		{Name: "Duration", Value: humanDuration(duration), Inline: true},
		{Name: "Ends", Value: relativeTime(until), Inline: true},
		{Name: "Reason", Value: reason},
	}), false)
}

func (b *Bot) handleUnmute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	options := optionMap(data.Options)
	target := resolvedUser(data, idOption(options, "user"))
	reason := stringOption(options, "reason")
	if reason == "" {
		reason = "No reason provided"
	}

	member, err := session.GuildMember(interaction.GuildID, target.ID)
	if err != nil {
		b.respondError(session, interaction, "That user is not a member of this server.")
		return
	}
	if !timedOut(member, time.Now()) {
		b.respondError(session, interaction, mention(target.ID)+" is not muted.")
		return
	}

	if err := session.GuildMemberTimeout(interaction.GuildID, target.ID, nil); err != nil {
		b.logger.Warn("unmute failed", zap.String("user_id", target.ID), zap.Error(err))
		b.respondError(session, interaction, "Could not unmute that member.")
		return
	}

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, target.ID, "member_unmuted", fmt.Sprintf("unmuted by %s: %s", moderator.ID, reason))
	b.respondEmbed(session, interaction, b.commandEmbed("🔊 Member Unmuted", "", b.cfg.Notifications.EmbedColors.Success, []*discordgo.MessageEmbedField{
		{Name: "Member", Value: mention(target.ID), Inline: true},
		{Name: "Reason", Value: reason},
	}), false)
}

func timedOut(member *discordgo.Member, now time.Time) bool {
	return member != nil && member.CommunicationDisabledUntil != nil && member.CommunicationDisabledUntil.After(now)
}

func (b *Bot) handleClear(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	amount, _ := intOption(optionMap(data.Options), "amount")
	if amount < 1 || amount > maxClearMessages {
		b.respondError(session, interaction, fmt.Sprintf("Amount must be between 1 and %d.", maxClearMessages))
		return
	}

	messages, err := session.ChannelMessages(interaction.ChannelID, int(amount), "", "", "")
	if err != nil {
		b.logger.Warn("clear fetch failed", zap.String("channel_id", interaction.ChannelID), zap.Error(err))
		b.respondError(session, interaction, "Could not read messages in this channel.")
		return
	}
	ids := bulkDeletable(messages, time.Now())

	switch len(ids) {
	case 0:
		b.respond(session, interaction, "No messages to delete. Messages older than 14 days cannot be bulk deleted.", true)
		return
	case 1:
		err = session.ChannelMessageDelete(interaction.ChannelID, ids[0])
	default:
		err = session.ChannelMessagesBulkDelete(interaction.ChannelID, ids)
	}
	if err != nil {
		b.logger.Warn("clear failed", zap.String("channel_id", interaction.ChannelID), zap.Error(err))
		b.respondError(session, interaction, "Could not delete messages. Check that I can manage messages here.")
		return
	}

	moderator := interactionUser(interaction)
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, moderator.ID, "messages_cleared",
		fmt.Sprintf("%d message(s) deleted in %s", len(ids), channelMention(interaction.ChannelID)))
	b.respond(session, interaction, fmt.Sprintf("🧹 Deleted %d message(s).", len(ids)), true)
}

// bulkDeletable keeps the ids Discord still accepts for bulk deletion.
func bulkDeletable(messages []*discordgo.Message, now time.Time) []string {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if !msg.Timestamp.IsZero() && now.Sub(msg.Timestamp) >= bulkDeleteMaxAge {
			continue
		}
		ids = append(ids, msg.ID)
	}
	return ids
}
