package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voralith-bot/internal/dispatch"
	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/modules/reviews"
	"voralith-bot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const reviewStarsID = "review_stars"

func (b *Bot) handleVouch(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) {
		return
	}
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	if !b.memberHasRoleNamed(interaction.GuildID, interaction.Member, b.cfg.Reviews.CustomerRoleName) {
		b.respondError(session, interaction, fmt.Sprintf("Only members with the **%s** role can leave a review.", b.cfg.Reviews.CustomerRoleName))
		return
	}

	options := optionMap(data.Options)
	imageURL := ""
	if attachmentID := idOption(options, "image"); attachmentID != "" {
		normalized, problem := b.validateReviewImage(data, attachmentID)
		if problem != "" {
			b.respondError(session, interaction, problem)
			return
		}
		imageURL = normalized
	}

	channelID := b.cfg.Reviews.ChannelID
	if channelID == "" {
		channelID = interaction.ChannelID
	}
	draft := reviews.Draft{
		GuildID:   interaction.GuildID,
		ChannelID: channelID,
		UserID:    user.ID,
		Username:  user.Username,
		Message:   stringOption(options, "message"),
		ImageURL:  imageURL,
		CreatedAt: time.Now(),
	}
	if err := b.reviews.StartDraft(draft); err != nil {
		b.respondError(session, interaction, "Your review cannot be empty.")
		return
	}

	starOptions := make([]discordgo.SelectMenuOption, 0, reviews.MaxStars)
	for stars := reviews.MaxStars; stars >= reviews.MinStars; stars-- {
		starOptions = append(starOptions, discordgo.SelectMenuOption{
			Label: reviews.Stars(stars),
			Value: strconv.Itoa(stars),
		})
	}
	b.respondData(session, interaction, &discordgo.InteractionResponseData{
		Content: "How many stars would you give?",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{CustomID: reviewStarsID, Placeholder: "Select a rating", Options: starOptions},
			}},
		},
	}, true)
}

// validateReviewImage returns the normalized attachment URL, or a message for
// the user when the attachment is not acceptable.
func (b *Bot) validateReviewImage(data discordgo.ApplicationCommandInteractionData, attachmentID string) (string, string) {
	if data.Resolved == nil || data.Resolved.Attachments[attachmentID] == nil {
		return "", "The attached image could not be read."
	}
	attachment := data.Resolved.Attachments[attachmentID]
	if !strings.HasPrefix(attachment.ContentType, "image/") {
		return "", "The attachment must be an image."
	}
	if b.cfg.Reviews.MaxImageBytes > 0 && attachment.Size > b.cfg.Reviews.MaxImageBytes {
		return "", fmt.Sprintf("The image must be at most %d MB.", b.cfg.Reviews.MaxImageBytes/(1024*1024))
	}
	normalized, host, err := utils.NormalizeAttachmentURL(attachment.URL)
	if err != nil {
		b.logger.Warn("review image rejected", zap.String("host", host), zap.Error(err))
		return "", "The image must be uploaded to Discord."
	}
	return normalized, ""
}

func (b *Bot) handleReviewStars(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, values []string) {
	user := interactionUser(interaction)
	if user == nil || len(values) == 0 {
		return
	}
	stars, err := strconv.Atoi(values[0])
	if err != nil {
		stars = 0
	}

	posted, err := b.reviews.Submit(ctx, user.ID, stars, time.Now())
	switch {
	case errors.Is(err, reviews.ErrDraftNotFound), errors.Is(err, reviews.ErrDraftExpired):
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "Your review expired. Run /vouch again."})
		return
	case errors.Is(err, reviews.ErrInvalidStars):
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "Pick between 1 and 5 stars."})
		return
	case err != nil:
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "Could not submit your review."})
		return
	}

	if _, err := session.ChannelMessageSendEmbed(posted.ChannelID, b.reviewEmbed(posted)); err != nil {
		b.logger.Warn("review post failed", zap.String("channel_id", posted.ChannelID), zap.Error(err))
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "Your review was saved but could not be posted."})
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, posted.Review.GuildID, user.ID, "review_posted", fmt.Sprintf("%d star review #%d", stars, posted.Number))
	b.queueStickyRepost(posted.ChannelID)
	b.updateMessage(session, interaction, &discordgo.InteractionResponseData{Content: "✅ Thank you for your review!"})
}

func (b *Bot) reviewEmbed(posted reviews.Posted) *discordgo.MessageEmbed {
	title := "📝 New Vouch"
	if posted.Number > 0 {
		title = fmt.Sprintf("📝 Vouch #%d", posted.Number)
	}
	review := posted.Review
	embed := b.commandEmbed(title, review.Message, b.cfg.Notifications.EmbedColors.Success, []*discordgo.MessageEmbedField{
		{Name: "Rating", Value: reviews.Stars(review.Stars), Inline: true},
		{Name: "From", Value: mention(review.UserID), Inline: true},
	})
	if review.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: review.ImageURL}
	}
	return embed
}

func (b *Bot) stickyEmbed() *discordgo.MessageEmbed {
	return b.commandEmbed(
		"📌 How to leave a review",
		"Use `/vouch message:<your review>` and optionally attach a screenshot, then pick your star rating.",
		b.cfg.Notifications.EmbedColors.Action,
		nil,
	)
}

// queueStickyRepost hands the repost to the effect queue so reposts for a
// channel never overlap.
func (b *Bot) queueStickyRepost(channelID string) {
	err := b.loop.Post(context.Background(), func() dispatch.Effect {
		if !b.reviews.IsSticky(channelID) {
			return nil
		}
		return func(ctx context.Context) {
			b.repostSticky(ctx, channelID)
		}
	})
	if err != nil {
		b.logger.Warn("sticky repost not dispatched", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// repostSticky moves the review instructions to the bottom of the channel.
func (b *Bot) repostSticky(ctx context.Context, channelID string) {
	_ = ctx
	msg, err := b.session.ChannelMessageSendEmbed(channelID, b.stickyEmbed())
	if err != nil {
		b.logger.Warn("sticky repost failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	previous, ok := b.reviews.SwapSticky(channelID, msg.ID)
	if !ok {
		_ = b.session.ChannelMessageDelete(channelID, msg.ID)
		return
	}
	if previous != "" {
		if err := b.session.ChannelMessageDelete(channelID, previous); err != nil {
			b.logger.Debug("old sticky delete failed", zap.String("message_id", previous), zap.Error(err))
		}
	}
}

func (b *Bot) handleSetupReviews(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	channelID := idOption(optionMap(data.Options), "channel")
	if channelID == "" {
		channelID = interaction.ChannelID
	}
	b.reviews.EnableSticky(channelID)
	b.respond(session, interaction, "✅ Review instructions will stay at the bottom of "+channelMention(channelID)+".", true)
	b.queueStickyRepost(channelID)
	if user := interactionUser(interaction); user != nil {
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "sticky_enabled", channelMention(channelID))
	}
}

func (b *Bot) handleRemoveSticky(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	channelID := idOption(optionMap(data.Options), "channel")
	if channelID == "" {
		channelID = interaction.ChannelID
	}
	last, ok := b.reviews.DisableSticky(channelID)
	if !ok {
		b.respondError(session, interaction, "There is no sticky message in "+channelMention(channelID)+".")
		return
	}
	if last != "" {
		if err := session.ChannelMessageDelete(channelID, last); err != nil {
			b.logger.Debug("sticky delete failed", zap.String("message_id", last), zap.Error(err))
		}
	}
	if user := interactionUser(interaction); user != nil {
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "sticky_disabled", channelMention(channelID))
	}
	b.respond(session, interaction, "✅ Sticky message removed from "+channelMention(channelID)+".", true)
}

func (b *Bot) handleVouchStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	period := stringOption(optionMap(data.Options), "period")
	since, label := statsWindow(period, time.Now())

	report, err := b.analytics.Report(ctx, interaction.GuildID, since)
	if err != nil {
		b.logger.Error("review stats failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respondError(session, interaction, "Could not load review statistics.")
		return
	}

	var breakdown strings.Builder
	for stars := reviews.MaxStars; stars >= reviews.MinStars; stars-- {
		fmt.Fprintf(&breakdown, "%s %d\n", reviews.Stars(stars), report.ByStars[stars])
	}
	b.respondEmbed(session, interaction, b.commandEmbed("📊 Vouch Stats · "+label, "", b.cfg.Notifications.EmbedColors.Action, []*discordgo.MessageEmbedField{
		{Name: "Total", Value: strconv.Itoa(report.Total), Inline: true},
		{Name: "Average", Value: fmt.Sprintf("%.2f", report.Average), Inline: true},
		{Name: "By rating", Value: breakdown.String()},
	}), true)
}

func statsWindow(period string, now time.Time) (time.Time, string) {
	switch period {
	case "day":
		return now.Add(-24 * time.Hour), "last 24 hours"
	case "week":
		return now.Add(-7 * 24 * time.Hour), "last 7 days"
	default:
		return time.Time{}, "all time"
	}
}
