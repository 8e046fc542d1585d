package bot

import (
	"context"
	"strings"
	"time"

	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/modules/tickets"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ticketSelectID       = "ticket_select"
	ticketCloseID        = "ticket_close"
	ticketCloseConfirmID = "ticket_close_confirm"
	ticketCloseCancelID  = "ticket_close_cancel"

	ticketMemberAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAttachFiles |
		discordgo.PermissionEmbedLinks
	ticketBotAllow = ticketMemberAllow | discordgo.PermissionManageChannels | discordgo.PermissionManageMessages
)

// ticketCloseDelay leaves time to read the closing notice.
var ticketCloseDelay = 5 * time.Second

func (b *Bot) handleSetupTickets(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	options := make([]discordgo.SelectMenuOption, 0, len(tickets.Kinds))
	for _, kind := range tickets.Kinds {
		options = append(options, discordgo.SelectMenuOption{
			Label:       kind.Label,
			Value:       kind.Value,
			Description: kind.Description,
		})
	}
	embed := b.commandEmbed(
		"🎫 Support Tickets",
		"Need help? Pick a category below and a private channel will be opened with our staff.",
		b.cfg.Notifications.EmbedColors.Action,
		nil,
	)
	_, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{CustomID: ticketSelectID, Placeholder: "Select a ticket type", Options: options},
			}},
		},
	})
	if err != nil {
		b.logger.Warn("ticket panel post failed", zap.String("channel_id", interaction.ChannelID), zap.Error(err))
		b.respondError(session, interaction, "I could not post the ticket panel in this channel.")
		return
	}
	if user := interactionUser(interaction); user != nil {
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "ticket_panel", "panel posted in "+channelMention(interaction.ChannelID))
	}
	b.respond(session, interaction, "✅ Ticket panel posted.", true)
}

func (b *Bot) handleTicketSelect(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, values []string) {
	user := interactionUser(interaction)
	if user == nil || len(values) == 0 || interaction.GuildID == "" {
		return
	}
	kind, err := tickets.Lookup(values[0])
	if err != nil {
		b.respondError(session, interaction, "Unknown ticket type.")
		return
	}

	// Channel creation can take longer than the interaction deadline.
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		b.logger.Debug("ticket defer failed", zap.Error(err))
		return
	}

	content := b.openTicket(ctx, session, interaction.GuildID, user, kind)
	if _, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		b.logger.Debug("ticket response edit failed", zap.Error(err))
	}
}

// openTicket creates the support channel and returns the message shown to
// the user.
func (b *Bot) openTicket(ctx context.Context, session *discordgo.Session, guildID string, user *discordgo.User, kind tickets.Kind) string {
	channels, err := session.GuildChannels(guildID)
	if err != nil {
		b.logger.Warn("ticket channel list failed", zap.String("guild_id", guildID), zap.Error(err))
		return "❌ Could not open a ticket right now."
	}

	name := tickets.ChannelName(kind, user.Username)
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildText && channel.Name == name {
			return "You already have an open ticket: " + channelMention(channel.ID)
		}
	}

	categoryID, err := b.ticketCategory(session, guildID, channels)
	if err != nil {
		b.logger.Warn("ticket category unavailable", zap.String("guild_id", guildID), zap.Error(err))
		return "❌ Could not create the ticket category. Check my permissions."
	}

	overwrites, err := b.ticketOverwrites(session, guildID, user.ID)
	if err != nil {
		b.logger.Warn("ticket roles unavailable", zap.String("guild_id", guildID), zap.Error(err))
		return "❌ Could not open a ticket right now."
	}

	channel, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                kind.Label + " ticket for " + user.Username,
		ParentID:             categoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		b.logger.Warn("ticket channel create failed", zap.String("guild_id", guildID), zap.Error(err))
		if isPermissionError(err) {
			return "❌ I don't have permission to create channels."
		}
		return "❌ Could not open a ticket right now."
	}

	embed := b.commandEmbed(
		"🎫 "+kind.Label,
		"Thanks "+mention(user.ID)+"! A staff member will be with you shortly. Describe your request below.",
		b.cfg.Notifications.EmbedColors.Action,
		nil,
	)
	_, err = session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: mention(user.ID),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Close Ticket",
					Style:    discordgo.DangerButton,
					CustomID: ticketCloseID,
					Emoji:    discordgo.ComponentEmoji{Name: "🔒"},
				},
			}},
		},
	})
	if err != nil {
		b.logger.Warn("ticket welcome failed", zap.String("channel_id", channel.ID), zap.Error(err))
	}

	b.audit.Log(ctx, audit.LevelInfo, guildID, user.ID, "ticket_opened", kind.Value+" ticket "+channelMention(channel.ID))
	return "✅ Your ticket is open: " + channelMention(channel.ID)
}

func (b *Bot) ticketCategory(session *discordgo.Session, guildID string, channels []*discordgo.Channel) (string, error) {
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildCategory {
			continue
		}
		if channel.Name == b.cfg.Tickets.CategoryName || tickets.MatchesCategory(channel.Name, b.cfg.Tickets.CategoryKeywords) {
			return channel.ID, nil
		}
	}
	category, err := session.GuildChannelCreate(guildID, b.cfg.Tickets.CategoryName, discordgo.ChannelTypeGuildCategory)
	if err != nil {
		return "", err
	}
	b.logger.Info("ticket category created", zap.String("guild_id", guildID), zap.String("category_id", category.ID))
	return category.ID, nil
}

func (b *Bot) ticketOverwrites(session *discordgo.Session, guildID, userID string) ([]*discordgo.PermissionOverwrite, error) {
	roles, err := session.GuildRoles(guildID)
	if err != nil {
		return nil, err
	}
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: userID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketMemberAllow},
	}
	if session.State != nil && session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: session.State.User.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketBotAllow,
		})
	}
	for _, role := range roles {
		if role.ID == guildID || role.Managed {
			continue
		}
		if tickets.MatchesCategory(role.Name, b.cfg.Tickets.StaffRoleKeywords) {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID: role.ID, Type: discordgo.PermissionOverwriteTypeRole, Allow: ticketMemberAllow,
			})
		}
	}
	return overwrites, nil
}

// ticketChannel returns the channel the interaction came from when it is a
// support conversation.
func (b *Bot) ticketChannel(session *discordgo.Session, channelID string) (*discordgo.Channel, bool) {
	channel, err := session.State.Channel(channelID)
	if err != nil || channel == nil {
		channel, err = session.Channel(channelID)
	}
	if err != nil || channel == nil || !tickets.IsSupportChannel(channel.Name) {
		return nil, false
	}
	return channel, true
}

func (b *Bot) handleTicketClose(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if _, ok := b.ticketChannel(session, interaction.ChannelID); !ok {
		b.respondError(session, interaction, "This is not a ticket channel.")
		return
	}
	closer := ""
	if user := interactionUser(interaction); user != nil {
		closer = user.ID
	}
	b.respondData(session, interaction, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{b.ticketCloseEmbed(closer, interaction.ChannelID)},
		Components: ticketCloseComponents(),
	}, false)
}

func (b *Bot) ticketCloseEmbed(closerID, channelID string) *discordgo.MessageEmbed {
	return b.commandEmbed("🔒 Close Ticket", "Are you sure you want to close this ticket?", b.cfg.Notifications.EmbedColors.Warning, []*discordgo.MessageEmbedField{
		{Name: "Requested by", Value: mention(closerID), Inline: true},
		{Name: "Channel", Value: channelMention(channelID), Inline: true},
	})
}

func ticketCloseComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Confirm Close",
				Style:    discordgo.DangerButton,
				CustomID: ticketCloseConfirmID,
				Emoji:    discordgo.ComponentEmoji{Name: "✅"},
			},
			discordgo.Button{
				Label:    "Cancel",
				Style:    discordgo.SecondaryButton,
				CustomID: ticketCloseCancelID,
				Emoji:    discordgo.ComponentEmoji{Name: "❌"},
			},
		}},
	}
}

func (b *Bot) handleTicketCloseConfirm(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	channel, ok := b.ticketChannel(session, interaction.ChannelID)
	if !ok {
		b.respondError(session, interaction, "This is not a ticket channel.")
		return
	}
	closer := ""
	if user := interactionUser(interaction); user != nil {
		closer = user.ID
	}
	notice := b.commandEmbed("🔒 Ticket Closed", "Closed by "+mention(closer)+". This channel will be deleted in "+humanDuration(ticketCloseDelay)+".", b.cfg.Notifications.EmbedColors.Error, nil)
	if ticketCloseDelay < time.Second {
		notice.Description = "Closed by " + mention(closer) + "."
	}
	b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{notice}})

	select {
	case <-ctx.Done():
		b.logger.Warn("ticket close abandoned", zap.String("channel_id", channel.ID), zap.Error(ctx.Err()))
		return
	case <-time.After(ticketCloseDelay):
	}

	if _, err := session.ChannelDelete(channel.ID); err != nil {
		b.logger.Warn("ticket close failed", zap.String("channel_id", channel.ID), zap.Error(err))
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, closer, "ticket_closed", strings.TrimSpace(channel.Name))
}

func (b *Bot) handleTicketCloseCancel(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	embed := b.commandEmbed("✅ Ticket Closure Cancelled", "The ticket will remain open.", b.cfg.Notifications.EmbedColors.Success, nil)
	b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}
