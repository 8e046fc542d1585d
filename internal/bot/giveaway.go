package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/modules/giveaway"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	giveawayJoinPrefix  = "giveaway_join:"
	endGiveawaySelectID = "end_giveaway_select"
	maxSelectOptions    = 25
)

func (b *Bot) handleGiveawayCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	user := interactionUser(interaction)
	options := optionMap(data.Options)
	req := giveaway.CreateRequest{
		Prize:     stringOption(options, "prize"),
		Duration:  stringOption(options, "duration"),
		HostID:    user.ID,
		GuildID:   interaction.GuildID,
		ChannelID: interaction.ChannelID,
	}

	var created giveaway.Giveaway
	var createErr error
	if err := b.loop.Do(ctx, func() {
		created, createErr = b.giveaways.Create(req, time.Now())
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}
	switch {
	case errors.Is(createErr, giveaway.ErrInvalidDuration):
		b.respondError(session, interaction, "Invalid duration. Use a number followed by s, m, h, d or w (e.g. 30m, 2h, 1d).")
		return
	case errors.Is(createErr, giveaway.ErrEmptyPrize):
		b.respondError(session, interaction, "The prize cannot be empty.")
		return
	case createErr != nil:
		b.respondError(session, interaction, "Could not create the giveaway.")
		return
	}

	msg, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{b.giveawayEmbed(created)},
		Components: giveawayComponents(created.ID),
	})
	if err != nil {
		b.logger.Warn("giveaway post failed", zap.Int("giveaway_id", created.ID), zap.Error(err))
		_ = b.loop.Do(ctx, func() { b.giveaways.Discard(created.ID) })
		b.respondError(session, interaction, "I could not post the giveaway in this channel.")
		return
	}
	_ = b.loop.Do(ctx, func() { b.giveaways.SetMessageID(created.ID, msg.ID) })

	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "giveaway_created",
		fmt.Sprintf("giveaway #%d for %q ends %s", created.ID, created.Prize, created.EndsAt.Format(time.RFC3339)))
	b.respond(session, interaction, fmt.Sprintf("🎉 Giveaway #%d started!", created.ID), true)
}

func (b *Bot) giveawayEmbed(g giveaway.Giveaway) *discordgo.MessageEmbed {
	embed := b.commandEmbed(
		"🎉 GIVEAWAY 🎉",
		fmt.Sprintf("**Prize:** %s\n\nClick the button below to enter!", g.Prize),
		b.cfg.Notifications.EmbedColors.Giveaway,
		[]*discordgo.MessageEmbedField{
			{Name: "Ends", Value: relativeTime(g.EndsAt), Inline: true},
			{Name: "Hosted by", Value: mention(g.HostID), Inline: true},
		},
	)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: giveawayFooter(g.ID)}
	return embed
}

func giveawayFooter(id int) string {
	return "Giveaway ID: " + strconv.Itoa(id)
}

func giveawayComponents(id int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Join Giveaway",
				Style:    discordgo.SuccessButton,
				CustomID: giveawayJoinPrefix + strconv.Itoa(id),
				Emoji:    discordgo.ComponentEmoji{Name: "🎉"},
			},
		}},
	}
}

func (b *Bot) handleGiveawayJoin(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, rawID string) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		b.respondError(session, interaction, "This giveaway no longer exists.")
		return
	}
	user := interactionUser(interaction)
	if user == nil {
		return
	}

	var result giveaway.JoinResult
	if err := b.loop.Do(ctx, func() {
		result = b.giveaways.Join(id, user.ID, time.Now())
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}

	switch result {
	case giveaway.Joined:
		b.respond(session, interaction, "✅ You have entered the giveaway. Good luck!", true)
	case giveaway.AlreadyJoined:
		b.respond(session, interaction, "You have already entered this giveaway.", true)
	case giveaway.AlreadyEnded:
		b.respond(session, interaction, "This giveaway has already ended.", true)
	default:
		b.respond(session, interaction, "This giveaway no longer exists.", true)
	}
}

func (b *Bot) handleGiveawayInfo(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireGuild(session, interaction) {
		return
	}
	var active []giveaway.Giveaway
	if err := b.loop.Do(ctx, func() {
		active = b.giveaways.Active(interaction.GuildID)
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}
	if len(active) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("🎉 Active Giveaways", "There are no active giveaways.", b.cfg.Notifications.EmbedColors.Giveaway, nil), true)
		return
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(active))
	for _, g := range active {
		if len(fields) == maxSelectOptions {
			break
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("#%d · %s", g.ID, truncate(g.Prize, 200)),
			Value: fmt.Sprintf("Ends %s · %d participant(s) · %s", relativeTime(g.EndsAt), len(g.Participants), channelMention(g.ChannelID)),
		})
	}
	b.respondEmbed(session, interaction, b.commandEmbed("🎉 Active Giveaways", "", b.cfg.Notifications.EmbedColors.Giveaway, fields), true)
}

// handleEndGiveaway answers with a select menu; picking an entry is the
// confirmation.
func (b *Bot) handleEndGiveaway(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	var active []giveaway.Giveaway
	if err := b.loop.Do(ctx, func() {
		active = b.giveaways.Active(interaction.GuildID)
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}
	if len(active) == 0 {
		b.respond(session, interaction, "There are no active giveaways to end.", true)
		return
	}

	options := make([]discordgo.SelectMenuOption, 0, len(active))
	for _, g := range active {
		if len(options) == maxSelectOptions {
			break
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:       truncate(fmt.Sprintf("#%d %s", g.ID, g.Prize), 100),
			Value:       strconv.Itoa(g.ID),
			Description: fmt.Sprintf("%d participant(s)", len(g.Participants)),
		})
	}
	b.respondData(session, interaction, &discordgo.InteractionResponseData{
		Content: "Select the giveaway to end now:",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    endGiveawaySelectID,
					Placeholder: "Choose a giveaway",
					Options:     options,
				},
			}},
		},
	}, true)
}

func (b *Bot) handleEndGiveawaySelect(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, values []string) {
	if !b.requireAdmin(session, interaction) {
		return
	}
	if len(values) == 0 {
		return
	}
	id, err := strconv.Atoi(values[0])
	if err != nil {
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "Unknown giveaway."})
		return
	}

	var result giveaway.Result
	var ok bool
	if err := b.loop.Do(ctx, func() {
		result, ok = b.giveaways.Conclude(id)
	}); err != nil {
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "The bot is shutting down, try again later."})
		return
	}
	if !ok {
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "That giveaway has already ended."})
		return
	}

	b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: fmt.Sprintf("✅ Giveaway #%d ended.", id)})
	if err := b.announceGiveaway(ctx, result); err != nil {
		b.logger.Warn("giveaway announcement failed", zap.Int("giveaway_id", id), zap.Error(err))
	}
	if user := interactionUser(interaction); user != nil {
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "giveaway_ended", fmt.Sprintf("giveaway #%d ended early", id))
	}
}

// announceGiveaway posts the outcome in the giveaway channel and disables the
// join button on the original message.
func (b *Bot) announceGiveaway(ctx context.Context, result giveaway.Result) error {
	g := result.Giveaway
	var embed *discordgo.MessageEmbed
	content := ""
	if result.HasWinner() {
		embed = b.commandEmbed(
			"🎉 Giveaway Ended!",
			fmt.Sprintf("**Prize:** %s\n**Winner:** %s", g.Prize, mention(result.Winner)),
			b.cfg.Notifications.EmbedColors.Success,
			[]*discordgo.MessageEmbedField{{Name: "Participants", Value: strconv.Itoa(len(g.Participants)), Inline: true}},
		)
		content = fmt.Sprintf("🎊 Congratulations %s! You won **%s**!", mention(result.Winner), g.Prize)
	} else {
		embed = b.commandEmbed(
			"🎉 Giveaway Ended",
			fmt.Sprintf("**Prize:** %s\n\nNo one participated in this giveaway.", g.Prize),
			b.cfg.Notifications.EmbedColors.Warning,
			nil,
		)
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: giveawayFooter(g.ID)}

	send := &discordgo.MessageSend{Content: content, Embeds: []*discordgo.MessageEmbed{embed}}
	if g.MessageID != "" {
		send.Reference = &discordgo.MessageReference{MessageID: g.MessageID, ChannelID: g.ChannelID, GuildID: g.GuildID}
	}
	if _, err := b.session.ChannelMessageSendComplex(g.ChannelID, send); err != nil {
		return err
	}

	if g.MessageID != "" {
		ended := b.giveawayEmbed(g)
		ended.Title = "🎉 GIVEAWAY ENDED 🎉"
		ended.Fields[0] = &discordgo.MessageEmbedField{Name: "Ended", Value: relativeTime(time.Now()), Inline: true}
		components := []discordgo.MessageComponent{}
		if _, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         g.MessageID,
			Channel:    g.ChannelID,
			Embeds:     []*discordgo.MessageEmbed{ended},
			Components: components,
		}); err != nil {
			b.logger.Debug("giveaway message edit failed", zap.Int("giveaway_id", g.ID), zap.Error(err))
		}
	}

	winner := result.Winner
	if winner == "" {
		winner = "none"
	}
	b.logger.Info("giveaway concluded",
		zap.Int("giveaway_id", g.ID),
		zap.String("guild_id", g.GuildID),
		zap.Int("participants", len(g.Participants)),
		zap.String("winner", winner))
	return nil
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
