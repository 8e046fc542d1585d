package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/modules/verification"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	verifyIdentityID = "verify_identity"
	verifyCompleteID = "verify_complete"
	verifyCancelID   = "verify_cancel"
)

func (b *Bot) handleSetupVerification(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireGuild(session, interaction) || !b.requireAdmin(session, interaction) {
		return
	}
	channelID := idOption(optionMap(data.Options), "channel")
	if channelID == "" {
		channelID = interaction.ChannelID
	}

	embed := b.commandEmbed(
		"🔐 Verification",
		"Press **Verify** below to confirm your Discord account and unlock the server.",
		b.cfg.Verification.RoleColor,
		nil,
	)
	_, err := session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Verify",
					Style:    discordgo.PrimaryButton,
					CustomID: verifyIdentityID,
					Emoji:    discordgo.ComponentEmoji{Name: "✅"},
				},
			}},
		},
	})
	if err != nil {
		b.logger.Warn("verification panel post failed", zap.String("channel_id", channelID), zap.Error(err))
		b.respondError(session, interaction, "I could not post the verification panel in that channel.")
		return
	}
	if user := interactionUser(interaction); user != nil {
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "verification_panel", "panel posted in "+channelMention(channelID))
	}
	b.respond(session, interaction, "✅ Verification panel posted in "+channelMention(channelID)+".", true)
}

func (b *Bot) handleVerifyIdentity(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	if b.oauth == nil {
		b.respondError(session, interaction, "Verification is not configured on this bot.")
		return
	}

	var token string
	var beginErr error
	if err := b.loop.Do(ctx, func() {
		token, beginErr = b.verify.Begin(user.ID, interaction.GuildID, time.Now())
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}
	if errors.Is(beginErr, verification.ErrAlreadyVerified) {
		b.respond(session, interaction, "✅ You are already verified.", true)
		return
	}
	if beginErr != nil {
		b.logger.Error("verification begin failed", zap.String("user_id", user.ID), zap.Error(beginErr))
		b.respondError(session, interaction, "Could not start verification, try again.")
		return
	}

	authURL := b.oauth.AuthCodeURL(token, oauth2.SetAuthURLParam("permissions", "0"))
	embed := b.commandEmbed(
		"🔐 Verify your account",
		fmt.Sprintf("1. Click **Authorize** and approve the request.\n2. Come back and press **Complete**.\n\nThis link expires in %d minutes.", b.cfg.Verification.TTLMinutes),
		b.cfg.Verification.RoleColor,
		nil,
	)
	b.respondData(session, interaction, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Authorize", Style: discordgo.LinkButton, URL: authURL},
				discordgo.Button{Label: "Complete", Style: discordgo.SuccessButton, CustomID: verifyCompleteID},
				discordgo.Button{Label: "Cancel", Style: discordgo.DangerButton, CustomID: verifyCancelID},
			}},
		},
	}, true)
}

func (b *Bot) handleVerifyComplete(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	var verified, pending bool
	if err := b.loop.Do(ctx, func() {
		verified = b.verify.IsVerified(user.ID)
		_, pending = b.verify.Pending(user.ID)
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}

	switch {
	case verified:
		b.updateMessage(session, interaction, &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{b.commandEmbed("✅ Verified", "Your account is verified. Welcome!", b.cfg.Notifications.EmbedColors.Success, nil)},
		})
	case pending:
		b.respond(session, interaction, "Please click **Authorize** first, then press **Complete** again.", true)
	default:
		b.respond(session, interaction, "Your verification link expired. Press **Verify** on the panel to start again.", true)
	}
}

func (b *Bot) handleVerifyCancel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	_ = b.loop.Do(ctx, func() { b.verify.Cancel(user.ID) })
	b.updateMessage(session, interaction, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{b.commandEmbed("Verification cancelled", "You can start again from the verification panel.", b.cfg.Notifications.EmbedColors.Warning, nil)},
	})
}

func (b *Bot) handleVerifyStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireAdmin(session, interaction) {
		return
	}
	var verified, pending int
	if err := b.loop.Do(ctx, func() {
		verified = b.verify.VerifiedCount()
		pending = b.verify.PendingCount()
	}); err != nil {
		b.respondError(session, interaction, "The bot is shutting down, try again later.")
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("🔐 Verification Stats", "", b.cfg.Verification.RoleColor, []*discordgo.MessageEmbedField{
		{Name: "Verified", Value: strconv.Itoa(verified), Inline: true},
		{Name: "Pending", Value: strconv.Itoa(pending), Inline: true},
	}), true)
}

// CompleteVerification finishes the handshake for an OAuth redirect and grants
// the verified role. Role or DM failures are logged; the handshake result
// stands.
func (b *Bot) CompleteVerification(ctx context.Context, userID, state string, token *oauth2.Token) error {
	var grant verification.Grant
	var completeErr error
	if err := b.loop.Do(ctx, func() {
		grant, completeErr = b.verify.Complete(userID, state, token, time.Now())
	}); err != nil {
		return err
	}
	if completeErr != nil {
		b.logger.Info("verification rejected", zap.String("user_id", userID), zap.Error(completeErr))
		return completeErr
	}

	b.grantVerifiedRole(ctx, grant)
	return nil
}

func (b *Bot) grantVerifiedRole(ctx context.Context, grant verification.Grant) {
	if grant.GuildID == "" {
		b.logger.Warn("verified user has no guild to join", zap.String("user_id", grant.UserID))
		return
	}
	roleID, err := b.ensureRole(grant.GuildID, b.cfg.Verification.RoleName, b.cfg.Verification.RoleColor)
	if err != nil {
		b.logger.Warn("verified role unavailable", zap.String("guild_id", grant.GuildID), zap.Error(err))
		return
	}
	if err := b.session.GuildMemberRoleAdd(grant.GuildID, grant.UserID, roleID); err != nil {
		b.logger.Warn("verified role grant failed", zap.String("guild_id", grant.GuildID), zap.String("user_id", grant.UserID), zap.Error(err))
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, grant.GuildID, grant.UserID, "user_verified", "verified role granted")

	embed := b.commandEmbed("✅ Verification complete", "You now have access to the server. Enjoy your stay!", b.cfg.Notifications.EmbedColors.Success, nil)
	if err := b.sendDM(grant.UserID, embed); err != nil {
		b.logger.Debug("verification dm failed", zap.String("user_id", grant.UserID), zap.Error(err))
	}
}
