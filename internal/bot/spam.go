package bot

import (
	"context"
	"fmt"
	"time"

	"voralith-bot/internal/dispatch"
	"voralith-bot/internal/modules/antispam"
	"voralith-bot/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.GuildID == "" {
		return
	}

	in := antispam.Message{
		UserID: msg.Author.ID,
		IsBot:  msg.Author.Bot,
		At:     msg.Timestamp,
	}
	if in.At.IsZero() {
		in.At = time.Now()
	}
	if !in.IsBot {
		in.IsAdmin = b.messageFromAdmin(session, msg)
		in.ChannelName = b.channelName(session, msg.ChannelID)
	}

	message := msg.Message
	err := b.loop.Post(context.Background(), func() dispatch.Effect {
		if b.antispam.Classify(in) == antispam.Violation {
			decision := b.antispam.HandleViolation(in.UserID)
			return func(ctx context.Context) {
				b.enforceSpam(ctx, message, decision)
			}
		}
		if !in.IsBot && b.reviews.IsSticky(message.ChannelID) {
			return func(ctx context.Context) {
				b.repostSticky(ctx, message.ChannelID)
			}
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("message not dispatched", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (b *Bot) messageFromAdmin(session *discordgo.Session, msg *discordgo.MessageCreate) bool {
	guild, err := session.State.Guild(msg.GuildID)
	if err != nil {
		return false
	}
	member := msg.Member
	if member == nil {
		member, _ = session.State.Member(msg.GuildID, msg.Author.ID)
	}
	return b.memberHasAdmin(guild, msg.Author.ID, member)
}

func (b *Bot) channelName(session *discordgo.Session, channelID string) string {
	channel, err := session.State.Channel(channelID)
	if err != nil || channel == nil {
		return ""
	}
	return channel.Name
}

// enforceSpam deletes the offending message and applies the decision. A
// timeout refused for lack of permissions degrades to a plain warning.
func (b *Bot) enforceSpam(ctx context.Context, msg *discordgo.Message, decision antispam.Decision) {
	userID := msg.Author.ID
	if err := b.session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		b.logger.Warn("spam message delete failed", zap.String("message_id", msg.ID), zap.Error(err))
	}

	colors := b.cfg.Notifications.EmbedColors
	switch decision.Action {
	case antispam.ActionTimeout:
		until := time.Now().Add(decision.Timeout)
		if err := b.session.GuildMemberTimeout(msg.GuildID, userID, &until); err != nil {
			if isPermissionError(err) {
				b.audit.Log(ctx, audit.LevelWarn, msg.GuildID, userID, "spam_timeout_denied", "missing permission to time out")
				_, _ = b.session.ChannelMessageSend(msg.ChannelID, fmt.Sprintf("⚠️ %s, stop spamming! Further messages will be removed.", mention(userID)))
				return
			}
			b.logger.Warn("spam timeout failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		b.audit.Log(ctx, audit.LevelCrit, msg.GuildID, userID, "spam_timeout", fmt.Sprintf("timed out for %s after %d warnings", decision.Timeout, decision.Warnings))
		embed := b.commandEmbed(
			"🔇 User Timed Out",
			fmt.Sprintf("%s has been timed out for %s for spamming.", mention(userID), humanDuration(decision.Timeout)),
			colors.Error,
			nil,
		)
		if _, err := b.session.ChannelMessageSendEmbed(msg.ChannelID, embed); err != nil {
			b.logger.Warn("timeout notice failed", zap.Error(err))
		}
	case antispam.ActionWarn:
		b.audit.Log(ctx, audit.LevelWarn, msg.GuildID, userID, "spam_warning", fmt.Sprintf("warning %d/%d", decision.Warnings, b.cfg.AntiSpam.WarningThreshold))
		limit, window := b.antispam.Limits()
		fields := []*discordgo.MessageEmbedField{
			{Name: "Warnings remaining", Value: fmt.Sprintf("%d", decision.Remaining), Inline: true},
			{Name: "Limit", Value: fmt.Sprintf("%d messages per %s", limit, humanDuration(window)), Inline: true},
		}
		embed := b.commandEmbed(
			"⚠️ Slow down!",
			fmt.Sprintf("%s, you are sending messages too quickly. You will be timed out after %d more warning(s).", mention(userID), decision.Remaining),
			colors.Warning,
			fields,
		)
		if _, err := b.session.ChannelMessageSendEmbed(msg.ChannelID, embed); err != nil {
			b.logger.Warn("spam warning failed", zap.Error(err))
		}
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0 && d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0 && d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
