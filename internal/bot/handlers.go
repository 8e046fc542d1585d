package bot

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const interactionTimeout = 30 * time.Second

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	go b.handleInteraction(session, interaction)
}

func (b *Bot) handleInteraction(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	defer b.recoverInteraction(session, interaction)

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction, interaction.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction, interaction.MessageComponentData())
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	switch data.Name {
	case "giveaway":
		b.handleGiveawayCommand(ctx, session, interaction, data)
	case "giveaway_info":
		b.handleGiveawayInfo(ctx, session, interaction)
	case "end_giveaway":
		b.handleEndGiveaway(ctx, session, interaction)
	case "setup_verification":
		b.handleSetupVerification(ctx, session, interaction, data)
	case "verify_stats":
		b.handleVerifyStats(ctx, session, interaction)
	case "vouch":
		b.handleVouch(ctx, session, interaction, data)
	case "vouch_stats":
		b.handleVouchStats(ctx, session, interaction, data)
	case "setup-reviews":
		b.handleSetupReviews(ctx, session, interaction, data)
	case "remove-sticky":
		b.handleRemoveSticky(ctx, session, interaction, data)
	case "mute":
		b.handleMute(ctx, session, interaction, data)
	case "unmute":
		b.handleUnmute(ctx, session, interaction, data)
	case "clear":
		b.handleClear(ctx, session, interaction, data)
	case "setup-tickets":
		b.handleSetupTickets(ctx, session, interaction)
	case "announcement":
		b.handleAnnouncement(ctx, session, interaction, data)
	case "update_log":
		b.handleUpdateLog(ctx, session, interaction, data)
	default:
		b.respondError(session, interaction, "Unknown command.")
	}
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	switch {
	case strings.HasPrefix(data.CustomID, giveawayJoinPrefix):
		b.handleGiveawayJoin(ctx, session, interaction, strings.TrimPrefix(data.CustomID, giveawayJoinPrefix))
	case data.CustomID == endGiveawaySelectID:
		b.handleEndGiveawaySelect(ctx, session, interaction, data.Values)
	case data.CustomID == verifyIdentityID:
		b.handleVerifyIdentity(ctx, session, interaction)
	case data.CustomID == verifyCompleteID:
		b.handleVerifyComplete(ctx, session, interaction)
	case data.CustomID == verifyCancelID:
		b.handleVerifyCancel(ctx, session, interaction)
	case data.CustomID == reviewStarsID:
		b.handleReviewStars(ctx, session, interaction, data.Values)
	case data.CustomID == ticketSelectID:
		b.handleTicketSelect(ctx, session, interaction, data.Values)
	case data.CustomID == ticketCloseID:
		b.handleTicketClose(ctx, session, interaction)
	case data.CustomID == ticketCloseConfirmID:
		b.handleTicketCloseConfirm(ctx, session, interaction)
	case data.CustomID == ticketCloseCancelID:
		b.handleTicketCloseCancel(session, interaction)
	}
}

// recoverInteraction keeps a handler bug from taking down the gateway
// goroutine and tells the user something went wrong.
func (b *Bot) recoverInteraction(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	r := recover()
	if r == nil {
		return
	}
	b.logger.Error("interaction handler panic",
		zap.Any("panic", r),
		zap.String("interaction_id", interaction.ID),
		zap.Stack("stack"))
	b.respondError(session, interaction, "An error occurred while processing this request.")
}

func (b *Bot) isAdmin(interaction *discordgo.InteractionCreate) bool {
	if interaction.Member != nil {
		return interaction.Member.Permissions&discordgo.PermissionAdministrator != 0
	}
	user := interactionUser(interaction)
	return user != nil && b.cfg.AdminUserID != "" && user.ID == b.cfg.AdminUserID
}

func (b *Bot) requireAdmin(session *discordgo.Session, interaction *discordgo.InteractionCreate) bool {
	if b.isAdmin(interaction) {
		return true
	}
	b.respondError(session, interaction, "You need administrator permissions to use this command.")
	return false
}

func (b *Bot) requireGuild(session *discordgo.Session, interaction *discordgo.InteractionCreate) bool {
	if interaction.GuildID != "" {
		return true
	}
	b.respondError(session, interaction, "This command can only be used in a server.")
	return false
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		out[option.Name] = option
	}
	return out
}

func stringOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if option := options[name]; option != nil {
		if value, ok := option.Value.(string); ok {
			return value
		}
	}
	return ""
}

func intOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (int64, bool) {
	option := options[name]
	if option == nil {
		return 0, false
	}
	switch value := option.Value.(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	}
	return 0, false
}

// idOption returns the snowflake carried by a user, channel or attachment
// option.
func idOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	return stringOption(options, name)
}

func resolvedUser(data discordgo.ApplicationCommandInteractionData, userID string) *discordgo.User {
	if data.Resolved != nil {
		if user := data.Resolved.Users[userID]; user != nil {
			return user
		}
	}
	return &discordgo.User{ID: userID}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	b.respondData(session, interaction, &discordgo.InteractionResponseData{Content: content}, ephemeral)
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	b.respondData(session, interaction, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}, ephemeral)
}

func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.respondEmbed(session, interaction, b.commandEmbed("❌ Error", message, b.cfg.Notifications.EmbedColors.Error, nil), true)
}

func (b *Bot) respondData(session *discordgo.Session, interaction *discordgo.InteractionCreate, data *discordgo.InteractionResponseData, ephemeral bool) {
	if ephemeral {
		data.Flags |= discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Debug("interaction respond failed", zap.String("interaction_id", interaction.ID), zap.Error(err))
	}
}

// updateMessage edits the message that carried the clicked component.
func (b *Bot) updateMessage(session *discordgo.Session, interaction *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
	if err != nil {
		b.logger.Debug("interaction update failed", zap.String("interaction_id", interaction.ID), zap.Error(err))
	}
}
